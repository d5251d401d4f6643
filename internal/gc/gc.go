// Package gc implements nua's collector: a two-colour mark-and-sweep
// walk over a single intrusive linked list of heap objects, per
// spec.md §4.4. Grounded on original_source/gc.h's gc_sweep/gc_val_mark
// family, reimplemented without the C union-of-pointers trick — nua's
// value.Value already carries an explicit Kind tag.
package gc

import (
	"nua/internal/value"
)

// Collector owns the heap object list and the current white colour.
// Alternation between collections avoids per-cycle colour resets
// (spec.md §4.4): each collection flips which colour means "unvisited"
// instead of repainting every live object back to white first.
type Collector struct {
	head  *value.Header
	white byte

	allocated int
	nextGC    int

	purgeIntern func(isLive func(*value.String) bool)
}

const defaultNextGC = 1 << 10 // objects, not bytes; doubles after every collection

func New(purgeIntern func(isLive func(*value.String) bool)) *Collector {
	return &Collector{
		white:       0,
		nextGC:      defaultNextGC,
		purgeIntern: purgeIntern,
	}
}

// link threads a freshly allocated header onto the object list, tagging
// it white-by-construction (new objects are provisionally unreachable
// until the next mark reaches them, matching gc_alloc's "FIXME use real
// white" note resolved here: colour is always set to the collector's
// CURRENT white, not a hardcoded 0).
func (c *Collector) link(h *value.Header, tag value.ObjKind) {
	h.Tag = tag
	h.Colour = c.white
	h.Next = c.head
	c.head = h
	c.allocated++
}

func (c *Collector) NewString(n int) *value.String {
	s := &value.String{Bytes: make([]byte, 0, n)}
	c.link(&s.Header, value.ObjString)
	return s
}

func (c *Collector) NewTable() *value.Table {
	t := value.NewTable()
	c.link(&t.Header, value.ObjTable)
	return t
}

func (c *Collector) NewFuncDef(file string) *value.FuncDef {
	d := value.NewFuncDef(file)
	c.link(&d.Header, value.ObjFuncDef)
	return d
}

func (c *Collector) NewFunction() *value.Function {
	f := &value.Function{}
	c.link(&f.Header, value.ObjFunction)
	return f
}

// ShouldCollect reports whether enough allocation has happened since
// the last sweep to justify another pass — called by the VM at its
// between-instruction yield points (spec.md §4.3's "Ordering").
func (c *Collector) ShouldCollect() bool {
	return c.allocated >= c.nextGC
}

// Roots describes everything spec.md §4.4 names as a root: the live
// slice of the value stack (bounded by the executing frame's GC
// height), every frame's environment table, and the literal pool of
// every function definition reachable from a frame.
type Roots struct {
	Stack []value.Value
	Envs  []*value.Table
	Defs  []*value.FuncDef
}

// Collect runs one full mark-and-sweep pass: flip white, mark from
// roots with the new black, purge the intern table of strings that
// didn't survive, then sweep the object list. Order matters — the
// intern table MUST be purged before sweep (spec.md §4.4, §9) or it is
// left holding dangling *value.String pointers.
func (c *Collector) Collect(roots Roots) {
	black := 1 - c.white

	for _, v := range roots.Stack {
		c.markValue(v, black)
	}
	for _, env := range roots.Envs {
		c.markTable(env, black)
	}
	for _, def := range roots.Defs {
		c.markFuncDef(def, black)
	}

	if c.purgeIntern != nil {
		c.purgeIntern(func(s *value.String) bool { return s.Colour == black })
	}

	c.sweep()
	c.white = black
	c.allocated = 0
	c.nextGC = nextThreshold(c.nextGC)
}

func nextThreshold(prev int) int {
	// Double the previous threshold, independent of how many objects
	// survived, but never go below the default floor.
	doubled := prev * 2
	if doubled < defaultNextGC {
		return defaultNextGC
	}
	return doubled
}

func (c *Collector) markValue(v value.Value, black byte) {
	switch v.Kind {
	case value.KTable:
		c.markTable(v.Tab, black)
	case value.KFunction:
		c.markFunction(v.Func, black)
	case value.KString:
		if v.Str != nil {
			v.Str.Colour = black
		}
	}
}

func (c *Collector) markTable(t *value.Table, black byte) {
	if t == nil || t.Colour == black {
		return
	}
	t.Colour = black

	for i := 0; i < t.Seq.Len(); i++ {
		c.markValue(t.Seq.Get(i), black)
	}
	t.Hash.Each(func(k, v value.Value) bool {
		c.markValue(k, black)
		c.markValue(v, black)
		return true
	})
}

func (c *Collector) markFunction(f *value.Function, black byte) {
	if f == nil || f.Colour == black {
		return
	}
	f.Colour = black

	if f.Kind == value.FuncNative {
		return
	}
	c.markTable(f.Env, black)
	c.markFuncDef(f.Def, black)
}

func (c *Collector) markFuncDef(d *value.FuncDef, black byte) {
	if d == nil || d.Colour == black {
		return
	}
	d.Colour = black

	for i := 0; i < d.Literals.Len(); i++ {
		c.markValue(d.Literals.Get(i), black)
	}
}

// sweep walks the object list once, unlinking and discarding every
// node whose colour is still the outgoing white value. Unlike the
// original gc_sweep, there is no manual free() per tag: dropping the
// last Go reference is enough, so every case collapses to the same
// unlink step (the switch in gc.h existed only to release malloc'd
// sub-allocations Go's GC already reclaims).
func (c *Collector) sweep() {
	outgoingWhite := c.white
	prev := &c.head
	current := c.head
	for current != nil {
		if current.Colour == outgoingWhite {
			*prev = current.Next
			current = *prev
			continue
		}
		prev = &current.Next
		current = *prev
	}
}

// Live reports the number of objects currently linked into the heap
// list, for diagnostics and tests.
func (c *Collector) Live() int {
	n := 0
	for h := c.head; h != nil; h = h.Next {
		n++
	}
	return n
}
