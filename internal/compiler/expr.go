package compiler

import (
	"math"

	"nua/internal/bytecode"
	"nua/internal/token"
)

// binOpSpec describes one binary operator's opcode, precedence and
// whether its operands must be swapped before emission. Grounded on
// spec.md §4.2's "+ - at 4; < <= > >= at 1 ... < and <= are encoded by
// swapping operands of GT/GE."
type binOpSpec struct {
	op   bytecode.Opcode
	prec int
	swap bool
}

func binOpInfo(k token.Kind) (binOpSpec, bool) {
	switch k {
	case token.Add:
		return binOpSpec{bytecode.Add, 4, false}, true
	case token.Sub:
		return binOpSpec{bytecode.Sub, 4, false}, true
	case token.Gt:
		return binOpSpec{bytecode.Gt, 1, false}, true
	case token.Ge:
		return binOpSpec{bytecode.Ge, 1, false}, true
	case token.Lt:
		return binOpSpec{bytecode.Gt, 1, true}, true
	case token.Le:
		return binOpSpec{bytecode.Ge, 1, true}, true
	default:
		return binOpSpec{}, false
	}
}

// parseBinExpr is precedence-climbing over the left-associative table
// above: same-precedence operators recurse at prec+1 so they chain
// left instead of right.
func (c *Compiler) parseBinExpr(minPrec int) (uint8, error) {
	left, err := c.parsePrimaryExpr()
	if err != nil {
		return 0, err
	}

	for {
		spec, ok := binOpInfo(c.cur().Kind)
		if !ok || spec.prec < minPrec {
			break
		}
		c.advance()

		right, err := c.parseBinExpr(spec.prec + 1)
		if err != nil {
			return 0, err
		}
		left = c.emitBinOp(spec, left, right)
	}

	return left, nil
}

// emitBinOp frees the right operand's temporary and writes the result
// back into the left operand's register, per original_source/parse.c's
// emit_bin_code (`rout = left`).
func (c *Compiler) emitBinOp(spec binOpSpec, left, right uint8) uint8 {
	a, b := left, right
	if spec.swap {
		a, b = right, left
	}
	c.emit(bytecode.Instruction{Op: spec.op, A: left, B: a, C: b})
	c.freeTemp() // right's temporary; result now lives in left's register
	c.fs.lastCallPC = -1
	return left
}

// parsePrimaryExpr parses one primary expression (spec.md §4.2) plus
// any postfix continuations, allocating a fresh temporary to hold the
// result per "primary expressions push their result onto the
// temporary stack."
func (c *Compiler) parsePrimaryExpr() (uint8, error) {
	c.fs.lastCallPC = -1
	reg := c.allocTemp()

	switch c.cur().Kind {
	case token.Nil:
		c.advance()
		c.emit(bytecode.Instruction{Op: bytecode.Nil, A: reg})

	case token.Number:
		n := c.cur().Num
		c.advance()
		// original_source/parse.h's parse_pexpr numeric fast path: small
		// integral literals skip the literal pool entirely and ride along
		// in the instruction word itself (SPEC_FULL.md §B.2).
		if n == math.Trunc(n) && n >= -32768 && n <= 32767 {
			c.emit(bytecode.Instruction{Op: bytecode.Seti, A: reg, ILit: int16(n)})
		} else {
			lit := c.allocLiteralNumber(n)
			c.emit(bytecode.Instruction{Op: bytecode.Setl, A: reg, Lit: lit})
		}

	case token.String:
		lit := c.allocLiteralString(c.cur().Str)
		c.advance()
		c.emit(bytecode.Instruction{Op: bytecode.Setl, A: reg, Lit: lit})

	case token.Ident:
		name := c.cur().Lexeme
		c.advance()
		if local, ok := c.findLocal(name); ok {
			c.emit(bytecode.Instruction{Op: bytecode.Mov, A: reg, B: local})
		} else {
			lit := c.allocLiteralString(name)
			c.emit(bytecode.Instruction{Op: bytecode.Genv, A: reg, Lit: lit})
		}

	case token.BraceL:
		if err := c.parseTableConstructor(reg); err != nil {
			return 0, err
		}

	case token.Function:
		if err := c.parseFunctionLiteral(reg); err != nil {
			return 0, err
		}

	default:
		return 0, c.errorf("unexpected token %s in expression", c.cur().Kind)
	}

	return c.parsePostfix(reg)
}

// parsePostfix consumes a run of `.ident`, `[expr]`, `(args)`
// continuations after a primary, per spec.md §4.2.
func (c *Compiler) parsePostfix(reg uint8) (uint8, error) {
	for {
		switch c.cur().Kind {
		case token.Dot:
			c.advance()
			if c.cur().Kind != token.Ident {
				return 0, c.errorf("expected field name after '.'")
			}
			name := c.cur().Lexeme
			c.advance()

			keyReg := c.allocTemp()
			lit := c.allocLiteralString(name)
			c.emit(bytecode.Instruction{Op: bytecode.Setl, A: keyReg, Lit: lit})
			c.emit(bytecode.Instruction{Op: bytecode.Gtab, A: reg, B: reg, C: keyReg})
			c.freeTemp()
			c.fs.lastCallPC = -1

		case token.BrackL:
			c.advance()
			keyReg, err := c.parseBinExpr(0)
			if err != nil {
				return 0, err
			}
			if err := c.expect(token.BrackR); err != nil {
				return 0, err
			}
			c.emit(bytecode.Instruction{Op: bytecode.Gtab, A: reg, B: reg, C: keyReg})
			c.freeTemp()
			c.fs.lastCallPC = -1

		case token.ParenL:
			nargs, err := c.parseCallArgs()
			if err != nil {
				return 0, err
			}
			callPC := c.emit(bytecode.Instruction{Op: bytecode.Call, A: reg, B: uint8(nargs), C: 1})
			for i := 0; i < nargs; i++ {
				c.freeTemp()
			}
			c.fs.lastCallPC = callPC

		default:
			return reg, nil
		}
	}
}

// parseCallArgs parses a parenthesized, comma-separated argument list
// starting at the current '(' token. Arguments land in consecutive
// temporaries directly above the callee's register, per spec.md
// §4.3's CALL precondition.
func (c *Compiler) parseCallArgs() (int, error) {
	c.advance() // '('
	nargs := 0
	if c.cur().Kind != token.ParenR {
		for {
			if _, err := c.parseBinExpr(0); err != nil {
				return 0, err
			}
			nargs++
			if c.cur().Kind == token.Comma {
				c.advance()
				continue
			}
			break
		}
	}
	if err := c.expect(token.ParenR); err != nil {
		return 0, err
	}
	return nargs, nil
}

// parseTableConstructor implements `{expr, expr, …}`: a TAB followed
// by one PTAB per element, per spec.md §4.2/§4.3.
func (c *Compiler) parseTableConstructor(dst uint8) error {
	c.advance() // '{'
	c.emit(bytecode.Instruction{Op: bytecode.Tab, A: dst})

	if c.cur().Kind != token.BraceR {
		for {
			valReg, err := c.parseBinExpr(0)
			if err != nil {
				return err
			}
			c.emit(bytecode.Instruction{Op: bytecode.Ptab, A: dst, B: valReg})
			c.freeTemp()
			if c.cur().Kind == token.Comma {
				c.advance()
				continue
			}
			break
		}
	}

	return c.expect(token.BraceR)
}

// parseFunctionLiteral implements the expression form `function
// (params) body end`, per spec.md §4.2.
func (c *Compiler) parseFunctionLiteral(dst uint8) error {
	c.advance() // 'function'
	return c.parseFunctionBody(dst)
}

// parseFunctionBody parses a function's parameter list and body,
// assuming the 'function' keyword itself has already been consumed —
// shared between the anonymous expression form and the named
// top-level declaration sugar (parseNamedFunctionStmt).
func (c *Compiler) parseFunctionBody(dst uint8) error {
	if err := c.expect(token.ParenL); err != nil {
		return err
	}

	parentFS := c.fs
	c.fs = newFuncState()
	c.pushScope()

	for c.cur().Kind != token.ParenR {
		if c.cur().Kind != token.Ident {
			return c.errorf("expected parameter name")
		}
		c.allocLocal(c.cur().Lexeme)
		c.fs.numParams++
		c.advance()
		if c.cur().Kind == token.Comma {
			c.advance()
			continue
		}
		break
	}
	if err := c.expect(token.ParenR); err != nil {
		return err
	}

	if err := c.parseBlock(token.End); err != nil {
		return err
	}
	c.emit(bytecode.Instruction{Op: bytecode.Ret})
	c.popScope()

	def := c.finish()
	c.fs = parentFS

	if err := c.expect(token.End); err != nil {
		return err
	}

	lit := c.allocLiteralFuncDef(def)
	c.emit(bytecode.Instruction{Op: bytecode.Setl, A: dst, Lit: lit})
	return nil
}
