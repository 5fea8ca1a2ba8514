// Package parser builds an ast.Program from a token stream, implementing
// the precedence-ordered expression grammar of spec.md §4.2. The parser
// fails fast: the first syntax error aborts the phase (unlike the lexer's
// multi-error accumulation), reported via a recovered panic the way the
// hyperpb-go parser aborts on its first malformed-wire-format error.
package parser

import (
	"fmt"

	"github.com/gmofishsauce/vsopc/internal/ast"
	"github.com/gmofishsauce/vsopc/internal/diag"
	"github.com/gmofishsauce/vsopc/internal/lexer"
	"github.com/gmofishsauce/vsopc/internal/source"
	"github.com/gmofishsauce/vsopc/internal/token"
)

// syntaxError unwinds the recursive descent to Parse's recover point.
type syntaxError struct {
	d diag.Diagnostic
}

// Parser turns a token stream into an ast.Program.
type Parser struct {
	buf *source.Buffer
	lx  *lexer.Lexer
	cur token.Token
	nxt token.Token
}

// New creates a Parser reading from buf. ext enables the extension grammar
// (or, >, >=) at the same precedence slots as and/</<=.
func New(buf *source.Buffer, ext bool) *Parser {
	lx := lexer.New(buf, ext)
	p := &Parser{buf: buf, lx: lx}
	p.cur = lx.Next()
	p.nxt = lx.Next()
	return p
}

// Parse consumes the whole token stream and returns the AST, or the first
// syntax error encountered. Lexical errors accumulated by the underlying
// lexer are returned alongside if parsing did not itself fail first.
func (p *Parser) Parse() (prog *ast.Program, lexErrs []diag.Diagnostic, err *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(syntaxError)
			if !ok {
				panic(r)
			}
			d := se.d
			err = &d
		}
	}()

	prog = p.parseProgram()
	return prog, p.lx.Errors(), nil
}

func (p *Parser) advance() {
	p.cur = p.nxt
	p.nxt = p.lx.Next()
}

func (p *Parser) fail(format string, args ...any) {
	line, col := p.cur.Line, p.cur.Column
	panic(syntaxError{diag.New(p.buf.Path, line, col, diag.Syntax, format, args...)})
}

// expect consumes the current token if it has kind k, else aborts with the
// spec.md §4.2 diagnostic wording.
func (p *Parser) expect(k token.Kind) token.Token {
	if p.cur.Kind != k {
		p.failUnexpected()
	}
	t := p.cur
	p.advance()
	return t
}

func (p *Parser) failUnexpected() {
	p.fail(`element "%s"`, p.tokenText())
}

func (p *Parser) tokenText() string {
	if p.cur.Value != "" {
		return p.cur.Value
	}
	return p.cur.Kind.String()
}

func (p *Parser) loc() ast.Loc {
	return ast.Loc{Line: p.cur.Line, Col: p.cur.Column}
}

// --- program / class / member structure ---

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		prog.Classes = append(prog.Classes, p.parseClass())
	}
	return prog
}

func (p *Parser) parseClass() *ast.Class {
	loc := p.loc()
	p.expect(token.Class)
	name := p.expect(token.TypeIdentifier).Value

	parent := "Object"
	if p.cur.Kind == token.Extends {
		p.advance()
		parent = p.expect(token.TypeIdentifier).Value
	}

	c := &ast.Class{Name: name, Parent: parent, Loc: loc}
	p.expect(token.LBrace)
	for p.cur.Kind != token.RBrace {
		if p.nxt.Kind == token.LParen {
			c.Methods = append(c.Methods, p.parseMethod())
		} else {
			c.Fields = append(c.Fields, p.parseField())
		}
	}
	p.expect(token.RBrace)
	return c
}

func (p *Parser) parseField() *ast.Field {
	loc := p.loc()
	name := p.expect(token.ObjectIdentifier).Value
	p.expect(token.Colon)
	typ := p.parseType()

	f := &ast.Field{Name: name, Type: typ, Loc: loc}
	if p.cur.Kind == token.Assign {
		p.advance()
		f.Init = p.parseExpr()
	}
	p.expect(token.Semicolon)
	return f
}

func (p *Parser) parseMethod() *ast.Method {
	loc := p.loc()
	name := p.expect(token.ObjectIdentifier).Value
	p.expect(token.LParen)

	m := &ast.Method{Name: name, Loc: loc}
	if p.cur.Kind != token.RParen {
		m.Formals = append(m.Formals, p.parseFormal())
		for p.cur.Kind == token.Comma {
			p.advance()
			m.Formals = append(m.Formals, p.parseFormal())
		}
	}
	p.expect(token.RParen)
	p.expect(token.Colon)
	m.RetType = p.parseType()
	m.Body = p.parseBlock()
	return m
}

func (p *Parser) parseFormal() *ast.Formal {
	loc := p.loc()
	name := p.expect(token.ObjectIdentifier).Value
	p.expect(token.Colon)
	typ := p.parseType()
	return &ast.Formal{Name: name, Type: typ, Loc: loc}
}

func (p *Parser) parseType() string {
	switch p.cur.Kind {
	case token.TypeIdentifier:
		t := p.cur.Value
		p.advance()
		return t
	case token.Int32, token.Bool, token.String, token.Unit:
		t := p.cur.Kind.String()
		p.advance()
		return t
	}
	p.failUnexpected()
	return ""
}

func (p *Parser) parseBlock() *ast.Block {
	loc := p.loc()
	p.expect(token.LBrace)
	blk := &ast.Block{}
	blk.Loc = loc
	blk.Exprs = append(blk.Exprs, p.parseExpr())
	for p.cur.Kind == token.Semicolon {
		p.advance()
		blk.Exprs = append(blk.Exprs, p.parseExpr())
	}
	p.expect(token.RBrace)
	return blk
}

// --- expressions, loosest to tightest per spec.md §4.2 precedence table ---

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

// parseAssign: right <-. The left side of an assignment must be a bare
// identifier, so it is special-cased ahead of the operator-precedence
// chain rather than folded into it.
func (p *Parser) parseAssign() ast.Expr {
	if p.cur.Kind == token.ObjectIdentifier && p.nxt.Kind == token.Assign {
		loc := p.loc()
		name := p.cur.Value
		p.advance()
		p.advance()
		value := p.parseAssign()
		return &ast.Assign{ExprBase: ast.ExprBase{Loc: loc}, Name: name, Value: value}
	}
	return p.parseAndOr()
}

// parseAndOr: left and [or].
func (p *Parser) parseAndOr() ast.Expr {
	left := p.parseNot()
	for p.cur.Kind == token.And || p.cur.Kind == token.Or {
		loc := p.loc()
		op := binOpFor(p.cur.Kind)
		p.advance()
		right := p.parseNot()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: op, L: left, R: right}
	}
	return left
}

// parseNot: right not.
func (p *Parser) parseNot() ast.Expr {
	if p.cur.Kind == token.Not {
		loc := p.loc()
		p.advance()
		operand := p.parseNot()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: ast.Not, E: operand}
	}
	return p.parseComparison()
}

// parseComparison: nonassoc < <= = [> >=].
func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAdditive()
	switch p.cur.Kind {
	case token.Lower, token.LowerEqual, token.Equal, token.Greater, token.GreaterEqual:
		loc := p.loc()
		op := binOpFor(p.cur.Kind)
		p.advance()
		right := p.parseAdditive()
		return &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: op, L: left, R: right}
	}
	return left
}

// parseAdditive: left + -.
func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		loc := p.loc()
		op := binOpFor(p.cur.Kind)
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: op, L: left, R: right}
	}
	return left
}

// parseMultiplicative: left * /.
func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnaryTight()
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash {
		loc := p.loc()
		op := binOpFor(p.cur.Kind)
		p.advance()
		right := p.parseUnaryTight()
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: op, L: left, R: right}
	}
	return left
}

// parseUnaryTight: the unary - and isnull operators, one level looser than ^.
func (p *Parser) parseUnaryTight() ast.Expr {
	switch p.cur.Kind {
	case token.Minus:
		loc := p.loc()
		p.advance()
		operand := p.parseUnaryTight()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: ast.Neg, E: operand}
	case token.Isnull:
		loc := p.loc()
		p.advance()
		operand := p.parseUnaryTight()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: ast.IsNull, E: operand}
	}
	return p.parsePow()
}

// parsePow: right ^.
func (p *Parser) parsePow() ast.Expr {
	left := p.parsePostfix()
	if p.cur.Kind == token.Pow {
		loc := p.loc()
		p.advance()
		right := p.parsePow()
		return &ast.BinaryExpr{ExprBase: ast.ExprBase{Loc: loc}, Op: ast.Pow, L: left, R: right}
	}
	return left
}

// parsePostfix: left . (method call chaining), the tightest binding level.
func (p *Parser) parsePostfix() ast.Expr {
	recv := p.parsePrimary()
	for p.cur.Kind == token.Dot {
		loc := p.loc()
		p.advance()
		method := p.expect(token.ObjectIdentifier).Value
		args := p.parseArgs()
		recv = &ast.Call{ExprBase: ast.ExprBase{Loc: loc}, Receiver: recv, Method: method, Args: args}
	}
	return recv
}

func (p *Parser) parseArgs() []ast.Expr {
	p.expect(token.LParen)
	var args []ast.Expr
	if p.cur.Kind != token.RParen {
		args = append(args, p.parseExpr())
		for p.cur.Kind == token.Comma {
			p.advance()
			args = append(args, p.parseExpr())
		}
	}
	p.expect(token.RParen)
	return args
}

func (p *Parser) parsePrimary() ast.Expr {
	loc := p.loc()
	switch p.cur.Kind {
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Let:
		return p.parseLet()
	case token.New:
		p.advance()
		t := p.expect(token.TypeIdentifier).Value
		return &ast.New{ExprBase: ast.ExprBase{Loc: loc}, TypeName: t}
	case token.IntegerLiteral:
		v := p.cur.Value
		p.advance()
		return &ast.IntLit{ExprBase: ast.ExprBase{Loc: loc}, Value: v}
	case token.StringLiteral:
		v := p.cur.Value
		p.advance()
		return &ast.StrLit{ExprBase: ast.ExprBase{Loc: loc}, Raw: v}
	case token.True:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.ExprBase{Loc: loc}, Value: true}
	case token.False:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.ExprBase{Loc: loc}, Value: false}
	case token.LBrace:
		return p.parseBlock()
	case token.LParen:
		return p.parseParenOrUnit(loc)
	case token.ObjectIdentifier:
		name := p.cur.Value
		p.advance()
		if name == "self" {
			return &ast.SelfRef{ExprBase: ast.ExprBase{Loc: loc}}
		}
		if p.cur.Kind == token.LParen {
			args := p.parseArgs()
			return &ast.Call{ExprBase: ast.ExprBase{Loc: loc}, Receiver: &ast.SelfRef{ExprBase: ast.ExprBase{Loc: loc}}, Method: name, Args: args}
		}
		return &ast.ObjectId{ExprBase: ast.ExprBase{Loc: loc}, Name: name}
	}
	p.failUnexpected()
	return nil
}

func (p *Parser) parseParenOrUnit(loc ast.Loc) ast.Expr {
	p.advance() // consume '('
	if p.cur.Kind == token.RParen {
		p.advance()
		return &ast.UnitLit{ExprBase: ast.ExprBase{Loc: loc}}
	}
	e := p.parseExpr()
	p.expect(token.RParen)
	return e
}

func (p *Parser) parseIf() ast.Expr {
	loc := p.loc()
	p.advance()
	cond := p.parseExpr()
	p.expect(token.Then)
	then := p.parseExpr()
	n := &ast.If{ExprBase: ast.ExprBase{Loc: loc}, Cond: cond, Then: then}
	if p.cur.Kind == token.Else {
		p.advance()
		n.Else = p.parseExpr()
	}
	return n
}

func (p *Parser) parseWhile() ast.Expr {
	loc := p.loc()
	p.advance()
	cond := p.parseExpr()
	p.expect(token.Do)
	body := p.parseExpr()
	return &ast.While{ExprBase: ast.ExprBase{Loc: loc}, Cond: cond, Body: body}
}

func (p *Parser) parseLet() ast.Expr {
	loc := p.loc()
	p.advance()
	name := p.expect(token.ObjectIdentifier).Value
	p.expect(token.Colon)
	typ := p.parseType()

	n := &ast.Let{ExprBase: ast.ExprBase{Loc: loc}, Name: name, Type: typ}
	if p.cur.Kind == token.Assign {
		p.advance()
		n.Init = p.parseExpr()
	}
	p.expect(token.In)
	n.Scope = p.parseExpr() // right-extending: swallows as much as possible
	return n
}

func binOpFor(k token.Kind) ast.BinOp {
	switch k {
	case token.And:
		return ast.And
	case token.Or:
		return ast.Or
	case token.Equal:
		return ast.Eq
	case token.Lower:
		return ast.Lt
	case token.LowerEqual:
		return ast.Le
	case token.Greater:
		return ast.Gt
	case token.GreaterEqual:
		return ast.Ge
	case token.Plus:
		return ast.Add
	case token.Minus:
		return ast.Sub
	case token.Star:
		return ast.Mul
	case token.Slash:
		return ast.Div
	case token.Pow:
		return ast.Pow
	}
	panic(fmt.Sprintf("parser: no BinOp for token kind %v", k))
}
