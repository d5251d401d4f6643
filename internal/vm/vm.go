// Package vm implements nua's register-based bytecode interpreter, per
// spec.md §4.3. Grounded on vm/vm.go and vm/run.go's sentinel-error
// style, generalized from their flat opcode loop over a single
// stack-machine frame to the recursive register-window calling
// convention spec.md §4.1/§9 describe. Errors are returned from
// execFrame up through Run; there is no errcode field.
package vm

import (
	"errors"
	"fmt"

	"nua/internal/bytecode"
	"nua/internal/gc"
	"nua/internal/intern"
	"nua/internal/value"
)

// Sentinel errors for the conditions the interpreter loop itself can
// detect, mirroring vm/vm.go's errProgramFinished/errIllegalOperation
// family. Runtime errors that carry source position (the common case)
// are reported as *RuntimeError instead; these are for conditions that
// have no single offending instruction.
var (
	errStackOverflow = errors.New("call stack overflow")
)

// maxCallDepth bounds nua's call recursion — unlike vm/vm.go's single
// flat frame, nua's CALL recursively invokes the interpreter (spec.md
// §4.3's "recursively invoke the interpreter with the callee's
// definition"), so an unbounded recursive nua program would otherwise
// overflow the Go goroutine stack instead of failing cleanly.
const maxCallDepth = 1 << 14

// RuntimeError reports a failure at a specific instruction, the way
// vm/run.go's formatInstructionStr annotates a diagnostic with the
// failing instruction's position.
type RuntimeError struct {
	File string
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// frameInfo records one active call's register window, for the GC root
// walk (internal/gc's Collector needs every live frame's stack slice,
// environment table, and function definition, not just the innermost
// one — spec.md §4.4's "every frame's environment table").
type frameInfo struct {
	base int
	def  *value.FuncDef
	env  *value.Table
	pc   int
}

// VM holds the shared value stack and the collector/intern table it was
// wired against. One VM can Run multiple top-level chunks in sequence;
// internal/runtime creates one VM per program.
type VM struct {
	stack   []value.Value
	gc      *gc.Collector
	interns *intern.Table

	frames []frameInfo

	// Trace, when non-nil, is invoked before every instruction with the
	// function definition and program counter about to execute. It is
	// nua's analogue of vm/run.go's RunProgramDebugMode single-step
	// loop: since nua's interpreter recurses through execFrame rather
	// than running one flat dispatch loop a caller could pause and
	// resume from outside, internal/runtime's debug REPL instead blocks
	// synchronously inside this callback to get the same step/breakpoint
	// experience.
	Trace func(def *value.FuncDef, pc int)
}

func New(gcoll *gc.Collector, interns *intern.Table) *VM {
	return &VM{
		stack:   make([]value.Value, 256),
		gc:      gcoll,
		interns: interns,
	}
}

// Run executes def as a zero-argument top-level chunk against env
// (ordinarily the program's global environment table) and returns
// whatever its RET produced.
func (vm *VM) Run(def *value.FuncDef, env *value.Table) ([]value.Value, error) {
	vm.ensureStack(def.MaxReg + 1)
	return vm.execFrame(1, def, env)
}

// ensureStack grows the value stack to at least n slots. Growth always
// reassigns vm.stack's slice header rather than handing out a cached
// sub-slice, so every register access below re-derives its index fresh
// instead of carrying a pointer across a point where the backing array
// could have moved — spec.md §9's "any raw pointer into the stack must
// be re-derived after a potential reallocation", adapted to Go's slices.
func (vm *VM) ensureStack(n int) {
	if n <= len(vm.stack) {
		return
	}
	grown := make([]value.Value, n, n*2)
	copy(grown, vm.stack)
	vm.stack = grown
}

func (vm *VM) getReg(base int, r uint8) value.Value {
	return vm.stack[base+int(r)]
}

func (vm *VM) setReg(base int, r uint8, v value.Value) {
	vm.stack[base+int(r)] = v
}

func (vm *VM) setAbs(i int, v value.Value) {
	vm.ensureStack(i + 1)
	vm.stack[i] = v
}

func (vm *VM) runtimeErr(def *value.FuncDef, pc int, msg string) error {
	line := 0
	if pc < def.Lines.Len() {
		line = def.Lines.Get(pc)
	}
	return &RuntimeError{File: def.File, Line: line, Msg: msg}
}

// cloneLiteral implements SETL's materialization rule (spec.md §4.3):
// tables and functions are deep-cloned from the literal pool so that
// re-executing the same SETL (e.g. inside a loop body) never aliases a
// previous iteration's table, while a closure's Env is rebound to the
// CURRENTLY EXECUTING frame's environment rather than its definition-time
// one — nua has no separate upvalue list, so the whole enclosing
// environment table stands in for captured state (spec.md §4.1).
func cloneLiteral(gcoll *gc.Collector, lit value.Value, env *value.Table) value.Value {
	switch lit.Kind {
	case value.KTable:
		t := gcoll.NewTable()
		t.Seq = lit.Tab.Seq.Clone()
		t.Hash = lit.Tab.Hash.Clone()
		return value.FromTable(t)
	case value.KFunction:
		fn := gcoll.NewFunction()
		fn.Kind = lit.Func.Kind
		fn.Def = lit.Func.Def
		fn.Env = env
		return value.FromFunction(fn)
	default:
		return lit
	}
}

// collect runs one GC pass rooted at every currently active frame,
// bounded per frame by its recorded gc_height at the frame's current pc
// (spec.md §4.4). Called between instructions, never mid-instruction.
func (vm *VM) collect() {
	var roots gc.Roots
	for _, f := range vm.frames {
		live := f.def.GCHeight.Get(f.pc)
		top := f.base + live
		if top > len(vm.stack) {
			top = len(vm.stack)
		}
		roots.Stack = append(roots.Stack, vm.stack[f.base:top]...)
		roots.Envs = append(roots.Envs, f.env)
		roots.Defs = append(roots.Defs, f.def)
	}
	vm.gc.Collect(roots)
}

// execFrame interprets def's instructions with register 0 mapped to
// stack slot frameBase, per spec.md §9's calling convention: the slot
// immediately below frameBase (frameBase-1) holds the callee Function
// value itself, placed there by the CALL instruction that is about to
// recurse into this frame (or, for the top-level chunk, left unused).
func (vm *VM) execFrame(frameBase int, def *value.FuncDef, env *value.Table) ([]value.Value, error) {
	if len(vm.frames) >= maxCallDepth {
		return nil, errStackOverflow
	}

	vm.frames = append(vm.frames, frameInfo{base: frameBase, def: def, env: env})
	idx := len(vm.frames) - 1
	defer func() { vm.frames = vm.frames[:idx] }()

	ins := def.Instructions.Items()
	pc := 0

	for {
		vm.frames[idx].pc = pc

		if vm.gc.ShouldCollect() {
			vm.collect()
		}
		if vm.Trace != nil {
			vm.Trace(def, pc)
		}

		inst := ins[pc]
		next := pc + 1

		switch inst.Op {
		case bytecode.Nop:
			// no-op

		case bytecode.Setl:
			lit := def.Literals.Get(int(inst.Lit))
			vm.setReg(frameBase, inst.A, cloneLiteral(vm.gc, lit, env))

		case bytecode.Seti:
			vm.setReg(frameBase, inst.A, value.Number(float64(inst.ILit)))

		case bytecode.Nil:
			vm.setReg(frameBase, inst.A, value.Nil())

		case bytecode.Mov:
			vm.setReg(frameBase, inst.A, vm.getReg(frameBase, inst.B))

		case bytecode.Add, bytecode.Sub:
			a := vm.getReg(frameBase, inst.B)
			b := vm.getReg(frameBase, inst.C)
			if a.Kind != value.KNumber || b.Kind != value.KNumber {
				return nil, vm.runtimeErr(def, pc, "attempt to perform arithmetic on a non-number value")
			}
			r := a.Num + b.Num
			if inst.Op == bytecode.Sub {
				r = a.Num - b.Num
			}
			vm.setReg(frameBase, inst.A, value.Number(r))

		case bytecode.Gt, bytecode.Ge:
			a := vm.getReg(frameBase, inst.B)
			b := vm.getReg(frameBase, inst.C)
			hold := false
			if a.Kind == value.KNumber && b.Kind == value.KNumber {
				if inst.Op == bytecode.Gt {
					hold = a.Num > b.Num
				} else {
					hold = a.Num >= b.Num
				}
			}
			if hold {
				vm.setReg(frameBase, inst.A, b)
			} else {
				vm.setReg(frameBase, inst.A, value.Nil())
			}

		case bytecode.Cover:
			if vm.getReg(frameBase, inst.A).Truthy() {
				next++ // skip the following JMP
			}

		case bytecode.Jmp:
			next = pc + int(inst.Off)

		case bytecode.Tab:
			vm.setReg(frameBase, inst.A, value.FromTable(vm.gc.NewTable()))

		case bytecode.Ptab:
			t := vm.getReg(frameBase, inst.A).Tab
			if t == nil {
				return nil, vm.runtimeErr(def, pc, "attempt to append to a non-table value")
			}
			t.Push(vm.getReg(frameBase, inst.B))

		case bytecode.Gtab:
			t := vm.getReg(frameBase, inst.B).Tab
			if t == nil {
				return nil, vm.runtimeErr(def, pc, "attempt to index a non-table value")
			}
			vm.setReg(frameBase, inst.A, t.Get(vm.getReg(frameBase, inst.C)))

		case bytecode.Stab:
			t := vm.getReg(frameBase, inst.A).Tab
			if t == nil {
				return nil, vm.runtimeErr(def, pc, "attempt to index a non-table value")
			}
			t.Set(vm.getReg(frameBase, inst.B), vm.getReg(frameBase, inst.C))

		case bytecode.Genv:
			key := def.Literals.Get(int(inst.Lit))
			vm.setReg(frameBase, inst.A, env.Get(key))

		case bytecode.Senv:
			key := def.Literals.Get(int(inst.Lit))
			env.Set(key, vm.getReg(frameBase, inst.A))

		case bytecode.Call:
			results, err := vm.doCall(frameBase, inst, def, pc)
			if err != nil {
				return nil, err
			}
			_ = results

		case bytecode.Ret:
			return vm.collectReturns(frameBase, inst), nil

		default:
			return nil, vm.runtimeErr(def, pc, fmt.Sprintf("unrecognized instruction %s", inst.Op))
		}

		pc = next
	}
}

// doCall implements spec.md §4.3's CALL: the callee sits in register A,
// its arguments occupy the B consecutive registers above it (already in
// place, since the compiler allocates call arguments as temporaries
// directly above the callee register — no copy needed to hand them to
// the callee's own register window), and C is the number of results the
// caller wants back, padded with Nil or truncated to fit.
func (vm *VM) doCall(frameBase int, inst bytecode.Instruction, def *value.FuncDef, pc int) ([]value.Value, error) {
	calleeVal := vm.getReg(frameBase, inst.A)
	if calleeVal.Kind != value.KFunction || calleeVal.Func == nil {
		return nil, vm.runtimeErr(def, pc, "attempt to call a non-function value")
	}
	fn := calleeVal.Func
	nargs := int(inst.B)
	nret := int(inst.C)
	calleeSlot := frameBase + int(inst.A)

	var results []value.Value

	if fn.Kind == value.FuncNative {
		args := make([]value.Value, nargs)
		for i := 0; i < nargs; i++ {
			args[i] = vm.stack[calleeSlot+1+i]
		}
		results = fn.Native(args)
	} else {
		callee := fn.Def
		newBase := calleeSlot + 1
		vm.ensureStack(newBase + callee.MaxReg)

		// Arguments beyond what was passed are Nil-padded up to the
		// callee's declared parameter count; extras beyond that are
		// simply never addressed by the callee's own register window.
		for i := nargs; i < callee.NumParams; i++ {
			vm.setAbs(newBase+i, value.Nil())
		}

		var err error
		results, err = vm.execFrame(newBase, callee, fn.Env)
		if err != nil {
			return nil, err
		}
	}

	for i := 0; i < nret; i++ {
		if i < len(results) {
			vm.setAbs(calleeSlot+i, results[i])
		} else {
			vm.setAbs(calleeSlot+i, value.Nil())
		}
	}
	return results, nil
}

// collectReturns implements RET's operand shape: A is the first
// returned register, B is the count, per spec.md §4.3.
func (vm *VM) collectReturns(frameBase int, inst bytecode.Instruction) []value.Value {
	n := int(inst.B)
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = vm.getReg(frameBase, inst.A+uint8(i))
	}
	return out
}
