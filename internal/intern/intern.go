// Package intern implements nua's string-interning table: every distinct
// byte sequence becomes exactly one heap *value.String, so that string
// equality and hashing reduce to pointer identity everywhere else in the
// system. Grounded on original_source/intern.h's str_map/intern().
package intern

import (
	"nua/internal/container"
	"nua/internal/value"
)

// fnv1a64 implements the same 64-bit FNV-1a hash as
// original_source/intern.h's slice_hash, with the same "hash must not
// return 0" convention container.HashMap relies on for its empty-slot
// sentinel.
func fnv1a64(b []byte) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211

	hash := uint64(offset)
	for _, c := range b {
		hash ^= uint64(c)
		hash *= prime
	}
	if hash == 0 {
		return 1
	}
	return hash
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Table is the global string-intern map. Keys are the content as Go
// strings (not *value.String, since lookup must work before a String
// object exists)
// and values are the canonical *value.String for that content.
type Table struct {
	entries *container.HashMap[string, *value.String]
}

func New() *Table {
	return &Table{
		entries: container.NewHashMap[string, *value.String](
			func(s string) uint64 { return fnv1a64([]byte(s)) },
			func(a, b string) bool { return a == b },
		),
	}
}

// Intern returns the canonical *value.String for b's content, allocating
// a new heap String and registering it in the table on first sight.
// alloc is supplied by the collector (internal/gc) so that every
// freshly interned string is threaded onto the GC's object list and
// counted against its allocation budget, matching original_source's
// intern() calling gc_alloc under the hood.
func (t *Table) Intern(b []byte, alloc func(n int) *value.String) *value.String {
	key := string(b) // the map key; Bytes below is a separate copy of it
	if s, ok := t.entries.Get(key); ok {
		return s
	}

	s := alloc(len(b))
	s.Bytes = []byte(key)
	t.entries.Set(key, s)
	return s
}

// Lookup reports whether content b is already interned, without
// allocating a String.
func (t *Table) Lookup(b []byte) (*value.String, bool) {
	return t.entries.Get(string(b))
}

// Purge removes every entry whose String didn't survive the mark phase
// of a collection (isLive reports false for it). This MUST run before the
// collector's sweep frees unreached objects, or the intern map would be
// left holding dangling pointers — the weak-reference discipline
// original_source/intern.h's global_intern_map depends on gc_alloc's
// generational bump allocator to sidestep, but nua's mark-and-sweep
// collector must enforce explicitly.
func (t *Table) Purge(isLive func(*value.String) bool) {
	var dead []string
	t.entries.Each(func(key string, s *value.String) bool {
		if !isLive(s) {
			dead = append(dead, key)
		}
		return true
	})
	for _, key := range dead {
		t.entries.Delete(key)
	}
}

func (t *Table) Len() int { return t.entries.Len() }
