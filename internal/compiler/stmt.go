package compiler

import (
	"nua/internal/bytecode"
	"nua/internal/token"
)

// lvalueKind classifies an assignment target, per spec.md §4.2's
// "classify each as local/environment/table-index by inspecting the
// last emitted instruction (MOV ⇒ local target; GENV ⇒ environment
// store; GTAB ⇒ table store)".
type lvalueKind int

const (
	lvLocal lvalueKind = iota
	lvEnv
	lvTable
)

type lvalue struct {
	kind     lvalueKind
	reg      uint8  // lvLocal
	envLit   uint16 // lvEnv
	tabReg   uint8  // lvTable
	keyReg   uint8  // lvTable
	valueReg uint8  // register currently holding this expression's value, for discard
}

// parseBlock parses statements until the current token is one of ends.
func (c *Compiler) parseBlock(ends ...token.Kind) error {
	for !c.atOneOf(ends) {
		if err := c.parseStatement(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) atOneOf(ks []token.Kind) bool {
	cur := c.cur().Kind
	for _, k := range ks {
		if cur == k {
			return true
		}
	}
	return false
}

// parseStatement dispatches to one statement form and then restores
// the temporary count to what it was before the statement, enforcing
// spec.md §4.2's "outside a statement, the temporary count is zero"
// invariant without requiring every inner parse path to free every
// scratch temporary by hand.
func (c *Compiler) parseStatement() error {
	before := c.fs.temp

	var err error
	switch c.cur().Kind {
	case token.Local:
		err = c.parseLocalStmt()
	case token.If:
		err = c.parseIfStmt()
	case token.While:
		err = c.parseWhileStmt()
	case token.Break:
		err = c.parseBreakStmt()
	case token.Continue:
		err = c.parseContinueStmt()
	case token.Return:
		err = c.parseReturnStmt()
	case token.Function:
		err = c.parseNamedFunctionStmt()
	default:
		err = c.parseAssignOrExprStmt()
	}

	if err == nil {
		c.fs.temp = before
	}
	return err
}

func (c *Compiler) statementEndsHere() bool {
	switch c.cur().Kind {
	case token.End, token.Else, token.EOI:
		return true
	default:
		return false
	}
}

// parseLocalStmt: `local id(, id)* = expr(, expr)*`.
func (c *Compiler) parseLocalStmt() error {
	c.advance() // 'local'

	if c.cur().Kind != token.Ident {
		return c.errorf("expected identifier after 'local'")
	}
	names := []string{c.cur().Lexeme}
	c.advance()
	for c.cur().Kind == token.Comma {
		c.advance()
		if c.cur().Kind != token.Ident {
			return c.errorf("expected identifier in local list")
		}
		names = append(names, c.cur().Lexeme)
		c.advance()
	}

	if err := c.expect(token.Assign); err != nil {
		return err
	}

	n, lastCallPC, err := c.parseExprList()
	if err != nil {
		return err
	}

	n = c.raiseCallForExcessTargets(len(names), n, lastCallPC)

	for i := 0; i < len(names) && i < n; i++ {
		c.transTemp(names[i])
	}
	return nil
}

// parseExprList parses a comma-separated list of expressions into
// consecutive temporaries, returning how many were parsed and the PC
// of the last one's CALL instruction if (and only if) the last
// expression was a bare call.
func (c *Compiler) parseExprList() (count int, lastCallPC int, err error) {
	lastCallPC = -1
	for {
		if _, err := c.parseBinExpr(0); err != nil {
			return count, -1, err
		}
		count++
		lastCallPC = c.fs.lastCallPC
		if c.cur().Kind == token.Comma {
			c.advance()
			continue
		}
		break
	}
	return count, lastCallPC, nil
}

// raiseCallForExcessTargets implements spec.md §4.2's "If the final
// right-hand side is a call, its declared result count is raised to
// cover any excess identifiers" and SPEC_FULL.md §C decision 1's
// conservative GC-height recomputation after doing so.
func (c *Compiler) raiseCallForExcessTargets(numTargets, n, lastCallPC int) int {
	if numTargets <= n || lastCallPC < 0 {
		return n
	}
	additional := numTargets - n
	call := c.instAt(lastCallPC)
	call.C = uint8(int(call.C) + additional)
	for i := 0; i < additional; i++ {
		c.allocTemp()
	}
	c.recomputeGCHeightFrom(lastCallPC)
	return n + additional
}

// parseLValue parses one assignment target: an identifier followed by
// any run of `.ident`/`[expr]`/`(args)` continuations, classifying the
// final form as a local, environment, or table store target.
func (c *Compiler) parseLValue() (lvalue, error) {
	if c.cur().Kind != token.Ident {
		return lvalue{}, c.errorf("expected identifier, found %s", c.cur().Kind)
	}
	name := c.cur().Lexeme
	c.advance()

	var cur lvalue
	var curReg uint8
	if local, ok := c.findLocal(name); ok {
		cur = lvalue{kind: lvLocal, reg: local, valueReg: local}
		curReg = local
	} else {
		lit := c.allocLiteralString(name)
		curReg = c.allocTemp()
		c.emit(bytecode.Instruction{Op: bytecode.Genv, A: curReg, Lit: lit})
		cur = lvalue{kind: lvEnv, envLit: lit, valueReg: curReg}
	}

	for {
		switch c.cur().Kind {
		case token.Dot:
			c.advance()
			if c.cur().Kind != token.Ident {
				return lvalue{}, c.errorf("expected field name after '.'")
			}
			fname := c.cur().Lexeme
			c.advance()
			keyReg := c.allocTemp()
			lit := c.allocLiteralString(fname)
			c.emit(bytecode.Instruction{Op: bytecode.Setl, A: keyReg, Lit: lit})
			dst := c.allocTemp()
			c.emit(bytecode.Instruction{Op: bytecode.Gtab, A: dst, B: curReg, C: keyReg})
			cur = lvalue{kind: lvTable, tabReg: curReg, keyReg: keyReg, valueReg: dst}
			curReg = dst

		case token.BrackL:
			c.advance()
			keyReg, err := c.parseBinExpr(0)
			if err != nil {
				return lvalue{}, err
			}
			if err := c.expect(token.BrackR); err != nil {
				return lvalue{}, err
			}
			dst := c.allocTemp()
			c.emit(bytecode.Instruction{Op: bytecode.Gtab, A: dst, B: curReg, C: keyReg})
			cur = lvalue{kind: lvTable, tabReg: curReg, keyReg: keyReg, valueReg: dst}
			curReg = dst

		case token.ParenL:
			nargs, err := c.parseCallArgs()
			if err != nil {
				return lvalue{}, err
			}
			callPC := c.emit(bytecode.Instruction{Op: bytecode.Call, A: curReg, B: uint8(nargs), C: 1})
			for i := 0; i < nargs; i++ {
				c.freeTemp()
			}
			c.fs.lastCallPC = callPC
			cur = lvalue{kind: lvLocal, reg: curReg, valueReg: curReg}

		default:
			return cur, nil
		}
	}
}

// parseAssignOrExprStmt parses a comma-separated list of primary
// expressions. If '=' follows, it is a (possibly multi-target)
// assignment; otherwise a single parsed expression in statement
// position is evaluated for effect and its value discarded — the
// common case being a function call, per spec.md §4.2.
func (c *Compiler) parseAssignOrExprStmt() error {
	c.fs.lastCallPC = -1

	var lvs []lvalue
	lv, err := c.parseLValue()
	if err != nil {
		return err
	}
	lvs = append(lvs, lv)

	for c.cur().Kind == token.Comma {
		c.advance()
		lv, err := c.parseLValue()
		if err != nil {
			return err
		}
		lvs = append(lvs, lv)
	}

	if c.cur().Kind != token.Assign {
		if len(lvs) != 1 {
			return c.errorf("expected '=' after expression list")
		}
		return nil // value discarded; parseStatement resets the temp count
	}
	c.advance() // '='

	n, lastCallPC, err := c.parseExprList()
	if err != nil {
		return err
	}
	n = c.raiseCallForExcessTargets(len(lvs), n, lastCallPC)

	// Stores are emitted back-to-front so each one consumes whatever is
	// currently on top of the temporary stack, per original_source's
	// stack-discipline peephole (topOrLocal/retarget).
	for i := len(lvs) - 1; i >= 0; i-- {
		if i >= n {
			continue
		}
		target := lvs[i]
		switch target.kind {
		case lvLocal:
			if !c.retarget(target.reg) {
				src := c.topOrLocal()
				c.emit(bytecode.Instruction{Op: bytecode.Mov, A: target.reg, B: src})
			}
		case lvEnv:
			src := c.topOrLocal()
			c.emit(bytecode.Instruction{Op: bytecode.Senv, A: src, Lit: target.envLit})
		case lvTable:
			src := c.topOrLocal()
			c.emit(bytecode.Instruction{Op: bytecode.Stab, A: target.tabReg, B: target.keyReg, C: src})
		}
	}

	return nil
}

// parseNamedFunctionStmt desugars `function name(params) body end` to
// `name = function(params) body end`, per spec.md §8 scenario 4.
func (c *Compiler) parseNamedFunctionStmt() error {
	c.advance() // 'function'
	if c.cur().Kind != token.Ident {
		return c.errorf("expected function name")
	}
	name := c.cur().Lexeme
	c.advance()

	lv := c.lvalueForName(name)
	dst := c.allocTemp()
	if err := c.parseFunctionBody(dst); err != nil {
		return err
	}

	switch lv.kind {
	case lvLocal:
		if !c.retarget(lv.reg) {
			src := c.topOrLocal()
			c.emit(bytecode.Instruction{Op: bytecode.Mov, A: lv.reg, B: src})
		}
	case lvEnv:
		src := c.topOrLocal()
		c.emit(bytecode.Instruction{Op: bytecode.Senv, A: src, Lit: lv.envLit})
	}
	return nil
}

func (c *Compiler) lvalueForName(name string) lvalue {
	if reg, ok := c.findLocal(name); ok {
		return lvalue{kind: lvLocal, reg: reg}
	}
	lit := c.allocLiteralString(name)
	return lvalue{kind: lvEnv, envLit: lit}
}

// parseIfStmt: `if expr then … [else …] end`.
func (c *Compiler) parseIfStmt() error {
	c.advance() // 'if'
	c.pushScope()
	defer c.popScope()

	condReg, err := c.parseBinExpr(0)
	if err != nil {
		return err
	}
	if err := c.expect(token.Then); err != nil {
		return err
	}

	c.emit(bytecode.Instruction{Op: bytecode.Cover, A: condReg})
	c.freeTemp()
	jmpPC := c.emit(bytecode.Instruction{Op: bytecode.Jmp})

	if err := c.parseBlock(token.Else, token.End); err != nil {
		return err
	}
	c.instAt(jmpPC).Off = int32(c.here() - jmpPC)

	if c.cur().Kind == token.Else {
		c.instAt(jmpPC).Off++ // also skip the exit jump below
		exitPC := c.emit(bytecode.Instruction{Op: bytecode.Jmp})
		c.advance()
		if err := c.parseBlock(token.End); err != nil {
			return err
		}
		c.instAt(exitPC).Off = int32(c.here() - exitPC)
	}

	return c.expect(token.End)
}

// parseWhileStmt: `while expr do … end`.
func (c *Compiler) parseWhileStmt() error {
	c.advance() // 'while'
	c.pushScope()
	defer c.popScope()

	outer := c.fs.loop
	loop := &loopCtx{parent: outer, startPC: c.here(), breakChain: -1}
	c.fs.loop = loop
	defer func() { c.fs.loop = outer }()

	condReg, err := c.parseBinExpr(0)
	if err != nil {
		return err
	}
	if err := c.expect(token.Do); err != nil {
		return err
	}

	c.emit(bytecode.Instruction{Op: bytecode.Cover, A: condReg})
	c.freeTemp()
	jmpPC := c.emit(bytecode.Instruction{Op: bytecode.Jmp})

	if err := c.parseBlock(token.End); err != nil {
		return err
	}

	backPC := c.here()
	c.emit(bytecode.Instruction{Op: bytecode.Jmp, Off: int32(loop.startPC - backPC)})
	c.instAt(jmpPC).Off = int32(c.here() - jmpPC)

	for bpc := loop.breakChain; bpc != -1; {
		next := int(c.instAt(bpc).Off)
		c.instAt(bpc).Off = int32(c.here() - bpc)
		bpc = next
	}

	return c.expect(token.End)
}

// parseBreakStmt emits a JMP threaded through the loop's pending-break
// chain (its Off field temporarily holds the previous chain head's PC,
// not yet a real offset); parseWhileStmt patches the whole chain once
// the loop's end PC is known.
func (c *Compiler) parseBreakStmt() error {
	if c.fs.loop == nil {
		return c.errorf("'break' outside a loop")
	}
	c.advance()
	pc := c.emit(bytecode.Instruction{Op: bytecode.Jmp, Off: int32(c.fs.loop.breakChain)})
	c.fs.loop.breakChain = pc
	return nil
}

// parseContinueStmt emits a backward JMP straight to the loop's
// condition re-evaluation.
func (c *Compiler) parseContinueStmt() error {
	if c.fs.loop == nil {
		return c.errorf("'continue' outside a loop")
	}
	c.advance()
	pc := c.here()
	c.emit(bytecode.Instruction{Op: bytecode.Jmp, Off: int32(c.fs.loop.startPC - pc)})
	return nil
}

// parseReturnStmt: `return expr(, expr)*`.
func (c *Compiler) parseReturnStmt() error {
	c.advance() // 'return'
	base := uint8(c.fs.reg + c.fs.temp)

	n := 0
	if !c.statementEndsHere() {
		for {
			if _, err := c.parseBinExpr(0); err != nil {
				return err
			}
			n++
			if c.cur().Kind == token.Comma {
				c.advance()
				continue
			}
			break
		}
	}

	c.emit(bytecode.Instruction{Op: bytecode.Ret, A: base, B: uint8(n)})
	return nil
}
