// Package compiler implements nua's single-pass compiler: a
// recursive-descent parser that lowers directly into register-based
// bytecode with no explicit AST, per spec.md §4.2. Grounded on
// original_source/parse.c's f_data/add_scope/alloc_temp/alloc_literal
// family, generalized to the fuller language SPEC_FULL.md §A.1 and §B
// describe (functions, tables, environment access, multi-assignment,
// break/continue).
package compiler

import (
	"fmt"

	"nua/internal/bytecode"
	"nua/internal/container"
	"nua/internal/gc"
	"nua/internal/intern"
	"nua/internal/lexer"
	"nua/internal/token"
	"nua/internal/value"
)

// Error reports a compile-time failure with the source position it
// occurred at, per spec.md §7's "single-line diagnostic identifying
// the source file and line".
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// scope is one lexical block: an identifier-to-register map plus the
// register count at the time the scope was entered, so leaving the
// scope can return its locals to the free pool in O(1) instead of
// original_source/parse.c's rem_scope walk-and-free-each-key loop.
type scope struct {
	vars map[string]uint8
	base int
}

// loopCtx threads pending `break` jumps the way parse.c's while-loop
// compiler does it, except nua also supports `break`/`continue`, so the
// chain needs an
// explicit head pointer rather than relying on a single known slot.
type loopCtx struct {
	parent      *loopCtx
	startPC     int
	breakChain  int // index of most recently emitted pending break JMP, or -1
}

// funcState is per-function compilation state: register allocation,
// instruction/debug vectors, and the literal pool. Grounded on
// original_source/parse.c's f_data struct.
type funcState struct {
	scopes []scope
	reg    int // registers < reg are locals
	temp   int // registers reg..reg+temp-1 are temporaries
	maxReg int

	ins      *container.Array[bytecode.Instruction]
	lines    *container.Array[int]
	gcHeight *container.Array[int]

	literals *container.Array[value.Value]
	litNum   map[float64]int
	litStr   map[*value.String]int

	loop      *loopCtx
	numParams int

	// lastCallPC is the PC of the most recently emitted CALL instruction
	// if (and only if) nothing has been parsed since that would make its
	// result not a bare call's return values — used by raiseCallForExcessTargets
	// to decide whether a multi-assignment's last expression is eligible
	// to have its requested return count raised. -1 means "not a bare call".
	lastCallPC int
}

func newFuncState() *funcState {
	return &funcState{
		ins:        container.NewArray[bytecode.Instruction](32),
		lines:      container.NewArray[int](32),
		gcHeight:   container.NewArray[int](32),
		literals:   container.NewArray[value.Value](8),
		litNum:     make(map[float64]int),
		litStr:     make(map[*value.String]int),
		lastCallPC: -1,
	}
}

// Compiler drives one compilation of a single top-level chunk (and
// recursively, any nested function literals within it) into a tree of
// *value.FuncDef objects linked through the literal pool.
type Compiler struct {
	lex     *lexer.Lexer
	gc      *gc.Collector
	interns *intern.Table
	file    string
	fs      *funcState
}

// Compile lexes and compiles src in one pass, returning the top-level
// function definition (an implicit zero-argument function whose body
// is the whole file).
func Compile(file, src string, gcoll *gc.Collector, interns *intern.Table) (*value.FuncDef, error) {
	c := &Compiler{
		lex:     lexer.New(file, src),
		gc:      gcoll,
		interns: interns,
		file:    file,
		fs:      newFuncState(),
	}

	c.pushScope()
	if err := c.parseBlock(token.EOI); err != nil {
		return nil, err
	}
	c.popScope()

	c.emit(bytecode.Instruction{Op: bytecode.Ret, A: 0, B: 0, C: 0})

	return c.finish(), nil
}

func (c *Compiler) errorf(format string, args ...any) error {
	return &Error{File: c.file, Line: c.lex.Current().Line, Msg: fmt.Sprintf(format, args...)}
}

func (c *Compiler) cur() token.Token { return c.lex.Current() }

func (c *Compiler) advance() { c.lex.Next() }

func (c *Compiler) expect(k token.Kind) error {
	if c.cur().Kind != k {
		return c.errorf("expected %s, found %s", k, c.cur().Kind)
	}
	c.advance()
	return nil
}

// finish packages the current funcState into an immutable *value.FuncDef.
func (c *Compiler) finish() *value.FuncDef {
	def := c.gc.NewFuncDef(c.file)
	def.Instructions = c.fs.ins
	def.Literals = c.fs.literals
	def.Lines = c.fs.lines
	def.GCHeight = c.fs.gcHeight
	def.MaxReg = c.fs.maxReg
	def.NumParams = c.fs.numParams
	return def
}

// --- scopes ---

func (c *Compiler) pushScope() {
	c.fs.scopes = append(c.fs.scopes, scope{vars: make(map[string]uint8), base: c.fs.reg})
}

// popScope returns the scope's locals to the free register pool.
func (c *Compiler) popScope() {
	n := len(c.fs.scopes)
	top := c.fs.scopes[n-1]
	c.fs.scopes = c.fs.scopes[:n-1]
	c.fs.reg = top.base
}

func (c *Compiler) findLocal(name string) (uint8, bool) {
	for i := len(c.fs.scopes) - 1; i >= 0; i-- {
		if r, ok := c.fs.scopes[i].vars[name]; ok {
			return r, true
		}
	}
	return 0, false
}

// --- register allocation ---

func (c *Compiler) bumpMaxReg() {
	if total := c.fs.reg + c.fs.temp; total > c.fs.maxReg {
		c.fs.maxReg = total
	}
}

// allocLocal declares name as a new local in the innermost scope.
func (c *Compiler) allocLocal(name string) uint8 {
	reg := uint8(c.fs.reg)
	c.fs.reg++
	c.bumpMaxReg()
	c.fs.scopes[len(c.fs.scopes)-1].vars[name] = reg
	return reg
}

// allocTemp reserves the next temporary slot, per spec.md §4.2's
// "registers reg..reg+temp-1 are temporaries" convention.
func (c *Compiler) allocTemp() uint8 {
	reg := uint8(c.fs.reg + c.fs.temp)
	c.fs.temp++
	c.bumpMaxReg()
	return reg
}

func (c *Compiler) freeTemp() {
	c.fs.temp--
}

func (c *Compiler) topTempReg() uint8 {
	return uint8(c.fs.reg + c.fs.temp - 1)
}

// transTemp promotes the bottom-most live temporary (which, by
// allocation order, always sits at the current f.reg) into a fresh
// local bound to name. Because temporaries are laid out contiguously
// starting at f.reg, this is a pure bookkeeping move: no registers are
// renumbered or copied.
func (c *Compiler) transTemp(name string) uint8 {
	reg := uint8(c.fs.reg)
	c.fs.reg++
	c.fs.temp--
	c.fs.scopes[len(c.fs.scopes)-1].vars[name] = reg
	return reg
}

// --- instruction emission ---

func (c *Compiler) emit(i bytecode.Instruction) int {
	idx := c.fs.ins.Len()
	c.fs.ins.Push(i)
	c.fs.lines.Push(c.lex.Current().Line)
	c.fs.gcHeight.Push(c.fs.reg + c.fs.temp)
	return idx
}

func (c *Compiler) instAt(pc int) *bytecode.Instruction {
	items := c.fs.ins.Items()
	return &items[pc]
}

func (c *Compiler) here() int { return c.fs.ins.Len() }

// recomputeGCHeightFrom conservatively re-marks the GC-height vector
// for every instruction from pc (inclusive) to the current end,
// raising each entry to at least the current live-register count. This
// is SPEC_FULL.md §C decision 1: spec.md §9 only says the FIXME must be
// resolved by conservative recomputation, not how; raising rather than
// recomputing exactly is always safe because it can only widen root
// marking, never narrow it.
func (c *Compiler) recomputeGCHeightFrom(pc int) {
	live := c.fs.reg + c.fs.temp
	for i := pc; i < c.fs.gcHeight.Len(); i++ {
		if c.fs.gcHeight.Get(i) < live {
			c.fs.gcHeight.Set(i, live)
		}
	}
}

// --- literal pool ---

func (c *Compiler) allocLiteralNil() uint16 {
	return c.pushLiteral(value.Nil())
}

func (c *Compiler) allocLiteralNumber(n float64) uint16 {
	if idx, ok := c.fs.litNum[n]; ok {
		return uint16(idx)
	}
	idx := c.pushLiteral(value.Number(n))
	c.fs.litNum[n] = int(idx)
	return idx
}

// allocLiteralString interns text and deduplicates by the resulting
// canonical *value.String's identity, per spec.md §4.2's "string
// literals come from the parser's intern table so identity equality
// suffices".
func (c *Compiler) allocLiteralString(text string) uint16 {
	s := c.interns.Intern([]byte(text), c.gc.NewString)
	if idx, ok := c.fs.litStr[s]; ok {
		return uint16(idx)
	}
	idx := c.pushLiteral(value.FromString(s))
	c.fs.litStr[s] = int(idx)
	return idx
}

// allocLiteralFuncDef never dedups: each function literal is a
// distinct definition even if structurally identical to another.
func (c *Compiler) allocLiteralFuncDef(def *value.FuncDef) uint16 {
	return c.pushLiteral(value.Value{Kind: value.KFunction, Func: &value.Function{Kind: value.FuncNua, Def: def}})
}

func (c *Compiler) pushLiteral(v value.Value) uint16 {
	c.fs.literals.Push(v)
	return uint16(c.fs.literals.Len() - 1)
}

// --- retargeting peephole ---

// retarget rewrites the most recently emitted instruction's
// destination register to dst, in place of emitting a MOV, when that
// instruction is in bytecode.Opcode.Retargetable()'s set and it still
// targets the top temporary. Frees the temporary it would otherwise
// have occupied. Returns false (no-op) when retargeting isn't legal,
// leaving the caller to emit an explicit MOV.
func (c *Compiler) retarget(dst uint8) bool {
	if c.fs.temp == 0 {
		return false
	}
	last := c.instAt(c.here() - 1)
	if !last.Op.Retargetable() || last.A != c.topTempReg() {
		return false
	}
	last.A = dst
	c.freeTemp()
	return true
}

// topOrLocal reads the most recently produced value. If the last
// instruction is a MOV into the top temporary, it is folded away and
// the MOV's source register (a local) is returned directly; otherwise
// the top temporary itself is returned. Either way the temporary slot
// is freed, matching original_source/parse.c's top_or_local peephole.
func (c *Compiler) topOrLocal() uint8 {
	top := c.topTempReg()
	last := c.instAt(c.here() - 1)
	if last.Op == bytecode.Mov && last.A == top {
		src := last.B
		c.popInst()
		c.freeTemp()
		return src
	}
	c.freeTemp()
	return top
}

func (c *Compiler) popInst() {
	c.fs.ins.Pop()
	c.fs.lines.Pop()
	c.fs.gcHeight.Pop()
}
