package intern

import (
	"fmt"
	"testing"

	"nua/internal/value"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func rawAlloc(n int) *value.String {
	return &value.String{}
}

func TestInternDedup(t *testing.T) {
	tab := New()
	a := tab.Intern([]byte("hello"), rawAlloc)
	b := tab.Intern([]byte("hello"), rawAlloc)
	assert(t, a == b, "interning the same content twice must return the same pointer")
}

func TestInternDistinctContent(t *testing.T) {
	tab := New()
	a := tab.Intern([]byte("foo"), rawAlloc)
	b := tab.Intern([]byte("bar"), rawAlloc)
	assert(t, a != b, "distinct content must intern to distinct strings")
	assert(t, tab.Len() == 2, "expected 2 entries, got %d", tab.Len())
}

func TestInternLookup(t *testing.T) {
	tab := New()
	tab.Intern([]byte("x"), rawAlloc)
	_, ok := tab.Lookup([]byte("x"))
	assert(t, ok, "expected x to already be interned")
	_, ok = tab.Lookup([]byte("y"))
	assert(t, !ok, "y was never interned")
}

func TestInternPurge(t *testing.T) {
	tab := New()
	live := tab.Intern([]byte("live"), rawAlloc)
	tab.Intern([]byte("dead"), rawAlloc)

	tab.Purge(func(s *value.String) bool { return s == live })

	assert(t, tab.Len() == 1, "expected 1 survivor after purge, got %d", tab.Len())
	_, ok := tab.Lookup([]byte("dead"))
	assert(t, !ok, "dead string must be purged from the intern map")
	_, ok = tab.Lookup([]byte("live"))
	assert(t, ok, "live string must survive purge")
}
