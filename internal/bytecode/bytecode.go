// Package bytecode defines nua's instruction set: the packed instruction
// record and opcode table that the compiler emits into and the VM
// interprets. It sits below both internal/value and internal/compiler so
// neither has to import the other just to talk about an Instruction.
package bytecode

// Opcode identifies one VM instruction, per spec.md §4.3. SETI is a
// domain addition (see SPEC_FULL.md §B.2): a narrower immediate-encoded
// sibling of SETL for small integral literals, grounded on
// original_source/parse.h's parse_pexpr numeric fast path.
type Opcode uint8

const (
	Nop Opcode = iota
	Setl
	Seti
	Nil
	Mov
	Add
	Sub
	Gt
	Ge
	Cover
	Jmp
	Tab
	Ptab
	Gtab
	Stab
	Genv
	Senv
	Call
	Ret
	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	Nop:   "NOP",
	Setl:  "SETL",
	Seti:  "SETI",
	Nil:   "NIL",
	Mov:   "MOV",
	Add:   "ADD",
	Sub:   "SUB",
	Gt:    "GT",
	Ge:    "GE",
	Cover: "COVER",
	Jmp:   "JMP",
	Tab:   "TAB",
	Ptab:  "PTAB",
	Gtab:  "GTAB",
	Stab:  "STAB",
	Genv:  "GENV",
	Senv:  "SENV",
	Call:  "CALL",
	Ret:   "RET",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "?unknown?"
}

// Retargetable reports whether op computes its result solely from its
// source operands and writes once to A, so the compiler's peephole
// (top_or_local / multi-assignment rewriting, spec.md §4.2) may safely
// rewrite its destination register post-emit. Extending the opcode set
// means updating this table — spec.md §9 calls this out explicitly.
func (op Opcode) Retargetable() bool {
	switch op {
	case Setl, Seti, Nil, Add, Sub, Gt, Ge, Mov, Tab:
		return true
	default:
		return false
	}
}

// Instruction is nua's fixed-shape bytecode record. Rather than the
// teacher's bit-packed single uint32/uint64 word (vm/bytecode.go's
// Instruction, main.go's Instruction), nua uses named fields of the
// narrowest practical width per spec.md §3's four payload shapes — still
// compact, but each opcode's dispatch code in internal/vm reads named
// fields instead of unpacking a bitfield, which keeps the interpreter
// loop's semantics close to spec.md's own wording.
//
// Field meaning depends on the opcode (documented per-case in
// internal/vm's dispatcher, matching spec.md §4.3's operand table):
//
//	(none):             no fields used                      (NOP)
//	(reg, lit):         A = register, Lit = literal index    (SETL, GENV, SENV)
//	(reg, ilit):        A = register, ILit = inline constant (SETI)
//	(reg):              A = register                         (NIL, COVER)
//	(dst, a, b):        A = dst, B = src-a, C = src-b         (ADD, SUB, GT, GE, MOV, TAB, PTAB, GTAB, STAB, CALL, RET)
//	(offset):           Off = signed jump offset              (JMP)
type Instruction struct {
	Op   Opcode
	A    uint8
	B    uint8
	C    uint8
	Lit  uint16
	ILit int16
	Off  int32
}
