package value

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestValueTruthy(t *testing.T) {
	assert(t, !Nil().Truthy(), "nil must be falsy")
	assert(t, Number(0).Truthy(), "number 0 must be truthy")
	assert(t, FromTable(NewTable()).Truthy(), "table must be truthy")
}

func TestValueEqualNumber(t *testing.T) {
	assert(t, Equal(Number(3), Number(3)), "equal numbers must compare equal")
	assert(t, !Equal(Number(3), Number(4)), "unequal numbers must not compare equal")
	assert(t, !Equal(Number(0), Nil()), "different kinds never equal")
}

func TestValueEqualIdentity(t *testing.T) {
	a := NewTable()
	b := NewTable()
	assert(t, Equal(FromTable(a), FromTable(a)), "same table pointer must be equal")
	assert(t, !Equal(FromTable(a), FromTable(b)), "distinct tables must not be equal")
}

func TestValueHashStable(t *testing.T) {
	v := Number(1.5)
	assert(t, Hash(v) == Hash(Number(1.5)), "equal numbers must hash equal")
	assert(t, Hash(Nil()) != 0, "nil hash must be nonzero sentinel")
}

func TestTableSequenceAppendAndOverwrite(t *testing.T) {
	tab := NewTable()
	tab.Set(Number(1), Number(10))
	tab.Set(Number(2), Number(20))
	assert(t, tab.Len() == 2, "expected sequence length 2, got %d", tab.Len())
	assert(t, Equal(tab.Get(Number(1)), Number(10)), "expected index 1 == 10")

	tab.Set(Number(1), Number(99))
	assert(t, Equal(tab.Get(Number(1)), Number(99)), "expected overwrite at index 1")
	assert(t, tab.Len() == 2, "overwrite must not change sequence length")
}

func TestTableHashFallback(t *testing.T) {
	tab := NewTable()
	tab.Set(Number(5), Number(500)) // not len+1, falls into hash part
	assert(t, tab.Len() == 0, "non-contiguous index must not grow sequence")
	assert(t, Equal(tab.Get(Number(5)), Number(500)), "expected hash-stored value at 5")
	assert(t, tab.Get(Number(6)).IsNil(), "missing key must read as nil")
}

func TestTablePush(t *testing.T) {
	tab := NewTable()
	tab.Push(Number(1))
	tab.Push(Number(2))
	assert(t, tab.Len() == 2, "expected length 2 after two pushes")
	assert(t, Equal(tab.Get(Number(2)), Number(2)), "expected index 2 == 2")
}

func TestTableClone(t *testing.T) {
	tab := NewTable()
	tab.Push(Number(1))
	tab.Set(Number(5), Number(500))

	clone := tab.Clone()
	clone.Set(Number(1), Number(-1))
	assert(t, Equal(tab.Get(Number(1)), Number(1)), "mutating clone must not affect original")
	assert(t, Equal(clone.Get(Number(5)), Number(500)), "clone must carry over hash entries")
}
