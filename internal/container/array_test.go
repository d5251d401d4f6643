package container

import "testing"

func TestArrayPushPop(t *testing.T) {
	a := NewArray[int](0)
	for i := 0; i < 10; i++ {
		a.Push(i)
	}
	assert(t, a.Len() == 10, "expected length 10, got %d", a.Len())

	for i := 9; i >= 0; i-- {
		v := a.Pop()
		assert(t, v == i, "expected %d, got %d", i, v)
	}
	assert(t, a.Len() == 0, "expected empty array after popping all, got %d", a.Len())
}

func TestArrayEnsureLen(t *testing.T) {
	a := NewArray[int](0)
	a.Push(1)
	a.Push(2)
	a.EnsureLen(5)
	assert(t, a.Len() == 5, "expected length 5, got %d", a.Len())
	assert(t, a.Get(0) == 1 && a.Get(1) == 2, "existing values should be preserved")
	assert(t, a.Get(4) == 0, "new slots should be zero-valued")
}

func TestArrayRPeekPtr(t *testing.T) {
	a := NewArray[int](0)
	a.Push(41)
	*a.RPeekPtr() = 42
	assert(t, a.Peek() == 42, "expected mutated top value 42, got %d", a.Peek())
}

func TestArrayClone(t *testing.T) {
	a := NewArray[int](0)
	a.Push(1)
	a.Push(2)

	clone := a.Clone()
	clone.Push(3)

	assert(t, a.Len() == 2, "mutating clone should not affect original")
	assert(t, clone.Len() == 3, "expected clone length 3, got %d", clone.Len())
}
