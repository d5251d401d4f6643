package container

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func strHash(s string) uint64 {
	var hash uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= 1099511628211
	}
	if hash == 0 {
		return 1
	}
	return hash
}

func strEq(a, b string) bool { return a == b }

func TestHashMapSetGet(t *testing.T) {
	m := NewHashMap[string, int](strHash, strEq)

	for i := 0; i < 200; i++ {
		m.Set(fmt.Sprintf("key-%d", i), i)
	}

	assert(t, m.Len() == 200, "expected 200 entries, got %d", m.Len())

	for i := 0; i < 200; i++ {
		v, ok := m.Get(fmt.Sprintf("key-%d", i))
		assert(t, ok, "missing key-%d", i)
		assert(t, v == i, "wrong value for key-%d: got %d", i, v)
	}

	_, ok := m.Get("nonexistent")
	assert(t, !ok, "expected nonexistent key to be absent")
}

func TestHashMapOverwrite(t *testing.T) {
	m := NewHashMap[string, int](strHash, strEq)
	m.Set("a", 1)
	m.Set("a", 2)
	assert(t, m.Len() == 1, "overwrite should not grow count, got %d", m.Len())
	v, _ := m.Get("a")
	assert(t, v == 2, "expected overwritten value 2, got %d", v)
}

func TestHashMapDelete(t *testing.T) {
	m := NewHashMap[string, int](strHash, strEq)
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	for i := 0; i < 50; i += 2 {
		ok := m.Delete(fmt.Sprintf("k%d", i))
		assert(t, ok, "expected delete of k%d to succeed", i)
	}

	assert(t, m.Len() == 25, "expected 25 remaining, got %d", m.Len())

	for i := 0; i < 50; i++ {
		_, ok := m.Get(fmt.Sprintf("k%d", i))
		if i%2 == 0 {
			assert(t, !ok, "k%d should have been deleted", i)
		} else {
			assert(t, ok, "k%d should still be present", i)
		}
	}
}

func TestHashMapLoadFactorGrowth(t *testing.T) {
	m := NewHashMap[string, int](strHash, strEq)
	for i := 0; i < 1000; i++ {
		m.Set(fmt.Sprintf("item-%d", i), i)
	}

	assert(t, float64(m.Len()) <= float64(m.Cap())*maxLoadFactor,
		"load factor exceeded: %d entries in %d slots", m.Len(), m.Cap())

	seen := 0
	m.Each(func(k string, v int) bool {
		seen++
		return true
	})
	assert(t, seen == 1000, "Each visited %d entries, want 1000", seen)
}

func TestHashMapClone(t *testing.T) {
	m := NewHashMap[string, int](strHash, strEq)
	m.Set("x", 1)

	clone := m.Clone()
	clone.Set("y", 2)

	_, ok := m.Get("y")
	assert(t, !ok, "mutating clone should not affect original")

	v, ok := clone.Get("x")
	assert(t, ok && v == 1, "clone should retain original entries")
}
