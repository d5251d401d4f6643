package compiler

import (
	"fmt"
	"testing"

	"nua/internal/bytecode"
	"nua/internal/gc"
	"nua/internal/intern"
	"nua/internal/value"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func mustCompile(t *testing.T, src string) *value.FuncDef {
	t.Helper()
	coll := gc.New(nil)
	interns := intern.New()
	def, err := Compile("test.nua", src, coll, interns)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return def
}

func opcodes(def *value.FuncDef) []bytecode.Opcode {
	items := def.Instructions.Items()
	ops := make([]bytecode.Opcode, len(items))
	for i, ins := range items {
		ops[i] = ins.Op
	}
	return ops
}

func TestCompileArithmeticFoldsIntoLocal(t *testing.T) {
	def := mustCompile(t, `local x = 1 + 2 * 0 + 3`)
	assert(t, def.MaxReg >= 1, "expected at least 1 register, got %d", def.MaxReg)
	ops := opcodes(def)
	assert(t, ops[len(ops)-1] == bytecode.Ret, "expected trailing RET, got %s", ops[len(ops)-1])
}

func TestCompileRegisterInvariant(t *testing.T) {
	def := mustCompile(t, `
local a = 1
local b = 2
local c = a + b
`)
	for _, ins := range def.Instructions.Items() {
		assert(t, int(ins.A) < def.MaxReg, "register A=%d exceeds MaxReg=%d", ins.A, def.MaxReg)
		if ins.Op == bytecode.Add || ins.Op == bytecode.Sub || ins.Op == bytecode.Gt || ins.Op == bytecode.Ge {
			assert(t, int(ins.B) < def.MaxReg && int(ins.C) < def.MaxReg, "operand register exceeds MaxReg")
		}
	}
}

func TestCompileJumpTargetsAreInRange(t *testing.T) {
	def := mustCompile(t, `
local i = 0
while i < 3 do
	i = i + 1
end
`)
	items := def.Instructions.Items()
	for pc, ins := range items {
		if ins.Op != bytecode.Jmp {
			continue
		}
		target := pc + int(ins.Off)
		assert(t, target >= 0 && target <= len(items), "jump at pc=%d targets out-of-range pc=%d", pc, target)
	}
}

func TestCompileIfElse(t *testing.T) {
	def := mustCompile(t, `
if nil then
	local a = 1
else
	local b = 2
end
`)
	ops := opcodes(def)
	hasCover := false
	for _, op := range ops {
		if op == bytecode.Cover {
			hasCover = true
		}
	}
	assert(t, hasCover, "expected a COVER instruction for the if condition")
}

func TestCompileFunctionLiteralGoesToLiteralPool(t *testing.T) {
	def := mustCompile(t, `
function add(a, b)
	return a + b
end
`)
	found := false
	for i := 0; i < def.Literals.Len(); i++ {
		if def.Literals.Get(i).Kind == value.KFunction {
			found = true
			fn := def.Literals.Get(i).Func
			assert(t, fn.Def.NumParams == 2, "expected 2 params, got %d", fn.Def.NumParams)
		}
	}
	assert(t, found, "expected a function literal in the literal pool")
}

func TestCompileMultiAssignRaisesCallReturnCount(t *testing.T) {
	def := mustCompile(t, `
function pair()
	return 1, 2
end
local a, b = pair()
`)
	var callInst *bytecode.Instruction
	items := def.Instructions.Items()
	for i := range items {
		if items[i].Op == bytecode.Call {
			callInst = &items[i]
		}
	}
	assert(t, callInst != nil, "expected a CALL instruction")
	assert(t, callInst.C == 2, "expected CALL's requested return count raised to 2, got %d", callInst.C)
}

func TestCompileTableConstructorAndIndex(t *testing.T) {
	def := mustCompile(t, `
local t = {10, 20, 30}
t["k"] = 99
`)
	ops := opcodes(def)
	hasTab, hasPtab, hasStab := false, false, false
	for _, op := range ops {
		switch op {
		case bytecode.Tab:
			hasTab = true
		case bytecode.Ptab:
			hasPtab = true
		case bytecode.Stab:
			hasStab = true
		}
	}
	assert(t, hasTab && hasPtab, "expected TAB/PTAB for table constructor")
	assert(t, hasStab, "expected STAB for indexed assignment")
}

func TestCompileStringLiteralsAreDeduped(t *testing.T) {
	def := mustCompile(t, `
local a = "hello"
local b = "hello"
`)
	count := 0
	for i := 0; i < def.Literals.Len(); i++ {
		if v := def.Literals.Get(i); v.Kind == value.KString && v.Str.String() == "hello" {
			count++
		}
	}
	assert(t, count == 1, "expected exactly 1 deduped literal for \"hello\", got %d", count)
}

func TestCompileTempCountZeroBetweenStatements(t *testing.T) {
	// Not directly observable from outside, but a break in the
	// statement-boundary invariant would manifest as an unreasonably
	// large MaxReg for this straight-line, scalar-only program.
	def := mustCompile(t, `
local a = 1
local b = 2
local c = 3
local d = 4
`)
	assert(t, def.MaxReg <= 6, "expected modest MaxReg for 4 scalar locals, got %d", def.MaxReg)
}
