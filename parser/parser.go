// Package parser implements a recursive-descent / Pratt parser for Lily
// source, producing an *ast.Program for the emitter. Parsing, like lexing,
// is explicitly out of scope for the runtime core (spec §1) — this package
// exists only so the CLI and tests have a real front end to drive the VM
// with, in the style of the teacher's own lang/parser package.
package parser

import (
	"fmt"
	"strconv"

	"github.com/FascinatedBox/lily/ast"
	"github.com/FascinatedBox/lily/lexer"
	"github.com/FascinatedBox/lily/token"
)

type precedence int

const (
	precLowest precedence = iota
	precOr
	precAnd
	precCmp
	precRange
	precAdd
	precMul
	precPrefix
	precPostfix
)

var infixPrecedence = map[token.Type]precedence{
	token.PIPEPIPE: precOr,
	token.AMPAMP:   precAnd,
	token.EQ:       precCmp,
	token.NEQ:      precCmp,
	token.LT:       precCmp,
	token.LTE:      precCmp,
	token.GT:       precCmp,
	token.GTE:      precCmp,
	token.DOTDOT:   precRange,
	token.PLUS:     precAdd,
	token.MINUS:    precAdd,
	token.STAR:     precMul,
	token.SLASH:    precMul,
	token.PERCENT:  precMul,
	token.LPAREN:   precPostfix,
	token.LBRACKET: precPostfix,
	token.DOT:      precPostfix,
}

// Parser holds the mutable state of a single parse run. Errors are
// collected rather than aborting immediately, mirroring the teacher's
// parser: a syntax error does not prevent later declarations in the same
// file from being reported too.
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token

	errors []error
}

// New creates a Parser over the given lexer.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{lex: l}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.Next()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Errorf("%s: %s", p.cur.Pos, fmt.Sprintf(format, args...)))
}

// Errors returns every error collected during the parse.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) expect(t token.Type) bool {
	if p.cur.Type == t {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s (%q)", t, p.cur.Type, p.cur.Literal)
	return false
}

// ParseProgram parses a whole source file (or REPL chunk) into an
// *ast.Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		} else {
			p.resync()
		}
	}
	return prog
}

// resync recovers from a statement-level parse error by skipping to the
// next semicolon or closing brace, so subsequent statements can still be
// parsed and reported on.
func (p *Parser) resync() {
	for p.cur.Type != token.EOF && p.cur.Type != token.SEMI && p.cur.Type != token.RBRACE {
		p.next()
	}
	if p.cur.Type == token.SEMI {
		p.next()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.VAR:
		return p.parseVarStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.DEFINE:
		return p.parseDefineStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK:
		tok := p.cur
		p.next()
		p.consumeSemi()
		return &ast.BreakStmt{Tok: tok}
	case token.CONTINUE:
		tok := p.cur
		p.next()
		p.consumeSemi()
		return &ast.ContinueStmt{Tok: tok}
	case token.RAISE:
		return p.parseRaiseStmt()
	case token.TRY:
		return p.parseTryStmt()
	case token.LBRACE:
		return p.parseBlockStmt()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) consumeSemi() {
	if p.cur.Type == token.SEMI {
		p.next()
	}
}

func (p *Parser) parseVarStmt() ast.Statement {
	tok := p.cur
	p.next()
	if p.cur.Type != token.IDENT {
		p.errorf("expected identifier after var")
		return nil
	}
	name := p.cur.Literal
	p.next()
	if p.cur.Type == token.COLON {
		// Skip an optional type annotation: `var x: Integer = ...`.
		p.next()
		for p.cur.Type != token.ASSIGN && p.cur.Type != token.SEMI && p.cur.Type != token.EOF {
			p.next()
		}
	}
	var value ast.Expression
	if p.cur.Type == token.ASSIGN {
		p.next()
		value = p.parseExpression(precLowest)
	}
	p.consumeSemi()
	return &ast.VarStmt{Tok: tok, Name: name, Value: value}
}

// parseSimpleStmt parses either an assignment or a bare expression
// statement, disambiguating on whether `=` follows the parsed expression.
func (p *Parser) parseSimpleStmt() ast.Statement {
	tok := p.cur
	expr := p.parseExpression(precLowest)
	if p.cur.Type == token.ASSIGN {
		p.next()
		value := p.parseExpression(precLowest)
		p.consumeSemi()
		return &ast.AssignStmt{Tok: tok, Target: expr, Value: value}
	}
	p.consumeSemi()
	return &ast.ExprStmt{Tok: tok, Expr: expr}
}

func (p *Parser) parseBlockStmt() *ast.BlockStmt {
	tok := p.cur
	block := &ast.BlockStmt{Tok: tok}
	if !p.expect(token.LBRACE) {
		return block
	}
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		} else {
			p.resync()
		}
	}
	p.expect(token.RBRACE)
	return block
}

func (p *Parser) parseIfStmt() ast.Statement {
	tok := p.cur
	stmt := &ast.IfStmt{Tok: tok}
	p.next()
	cond := p.parseExpression(precLowest)
	body := p.parseBlockStmt()
	stmt.Arms = append(stmt.Arms, ast.IfArm{Cond: cond, Body: body})
	for p.cur.Type == token.ELIF {
		p.next()
		c := p.parseExpression(precLowest)
		b := p.parseBlockStmt()
		stmt.Arms = append(stmt.Arms, ast.IfArm{Cond: c, Body: b})
	}
	if p.cur.Type == token.ELSE {
		p.next()
		stmt.Else = p.parseBlockStmt()
	}
	return stmt
}

func (p *Parser) parseWhileStmt() ast.Statement {
	tok := p.cur
	p.next()
	cond := p.parseExpression(precLowest)
	body := p.parseBlockStmt()
	return &ast.WhileStmt{Tok: tok, Cond: cond, Body: body}
}

func (p *Parser) parseForStmt() ast.Statement {
	tok := p.cur
	p.next()
	if p.cur.Type != token.IDENT {
		p.errorf("expected loop variable name")
		return nil
	}
	name := p.cur.Literal
	p.next()
	p.expect(token.IN)
	start := p.parseExpression(precRange + 1)
	p.expect(token.DOTDOT)
	stop := p.parseExpression(precRange + 1)
	var step ast.Expression
	if p.cur.Type == token.COLON {
		p.next()
		step = p.parseExpression(precRange + 1)
	}
	body := p.parseBlockStmt()
	return &ast.ForStmt{Tok: tok, Var: name, Start: start, Stop: stop, Step: step, Body: body}
}

func (p *Parser) parseDefineStmt() ast.Statement {
	tok := p.cur
	p.next()
	if p.cur.Type != token.IDENT {
		p.errorf("expected function name")
		return nil
	}
	name := p.cur.Literal
	p.next()
	p.expect(token.LPAREN)
	var params []string
	for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		if p.cur.Type == token.IDENT {
			params = append(params, p.cur.Literal)
			p.next()
			if p.cur.Type == token.COLON {
				p.next()
				for p.cur.Type != token.COMMA && p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
					p.next()
				}
			}
		}
		if p.cur.Type == token.COMMA {
			p.next()
		}
	}
	p.expect(token.RPAREN)
	if p.cur.Type == token.COLON {
		p.next()
		for p.cur.Type != token.LBRACE && p.cur.Type != token.EOF {
			p.next()
		}
	}
	body := p.parseBlockStmt()
	return &ast.DefineStmt{Tok: tok, Name: name, Params: params, Body: body}
}

func (p *Parser) parseReturnStmt() ast.Statement {
	tok := p.cur
	p.next()
	var value ast.Expression
	if p.cur.Type != token.SEMI && p.cur.Type != token.RBRACE {
		value = p.parseExpression(precLowest)
	}
	p.consumeSemi()
	return &ast.ReturnStmt{Tok: tok, Value: value}
}

func (p *Parser) parseRaiseStmt() ast.Statement {
	tok := p.cur
	p.next()
	value := p.parseExpression(precLowest)
	p.consumeSemi()
	return &ast.RaiseStmt{Tok: tok, Value: value}
}

func (p *Parser) parseTryStmt() ast.Statement {
	tok := p.cur
	p.next()
	body := p.parseBlockStmt()
	stmt := &ast.TryStmt{Tok: tok, Body: body}
	for p.cur.Type == token.EXCEPT {
		p.next()
		if p.cur.Type != token.IDENT {
			p.errorf("expected exception class name after except")
			break
		}
		className := p.cur.Literal
		p.next()
		capture := ""
		if p.cur.Type == token.AS {
			p.next()
			if p.cur.Type == token.IDENT {
				capture = p.cur.Literal
				p.next()
			}
		}
		armBody := p.parseBlockStmt()
		stmt.Excepts = append(stmt.Excepts, ast.ExceptArm{ClassName: className, Capture: capture, Body: armBody})
	}
	return stmt
}

// ---- Expressions --------------------------------------------------------

func (p *Parser) parseExpression(prec precedence) ast.Expression {
	left := p.parsePrefix()
	for p.cur.Type != token.SEMI && prec < p.curPrecedence() {
		op := p.cur
		switch op.Type {
		case token.LPAREN:
			left = p.parseCall(left)
		case token.LBRACKET:
			left = p.parseIndex(left)
		case token.DOT:
			left = p.parseProperty(left)
		default:
			left = p.parseInfix(left)
		}
	}
	return left
}

func (p *Parser) curPrecedence() precedence {
	if pr, ok := infixPrecedence[p.cur.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.cur.Type {
	case token.INTEGER:
		tok := p.cur
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf("invalid integer literal %q", tok.Literal)
		}
		p.next()
		return &ast.IntegerLit{Tok: tok, Value: v}
	case token.DOUBLE:
		tok := p.cur
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("invalid double literal %q", tok.Literal)
		}
		p.next()
		return &ast.DoubleLit{Tok: tok, Value: v}
	case token.STRING:
		tok := p.cur
		p.next()
		return &ast.StringLit{Tok: tok, Value: tok.Literal}
	case token.TRUE, token.FALSE:
		tok := p.cur
		p.next()
		return &ast.BoolLit{Tok: tok, Value: tok.Type == token.TRUE}
	case token.UNIT:
		tok := p.cur
		p.next()
		return &ast.UnitLit{Tok: tok}
	case token.IDENT:
		tok := p.cur
		name := tok.Literal
		p.next()
		// A `Module::function` reference is folded into a single Ident
		// carrying the qualified name; the emitter splits on "::" to route
		// it to a foreign module lookup instead of a local/global slot.
		for p.cur.Type == token.COLONCOLON {
			p.next()
			if p.cur.Type != token.IDENT {
				p.errorf("expected name after '::'")
				break
			}
			name = name + "::" + p.cur.Literal
			p.next()
		}
		return &ast.Ident{Tok: tok, Name: name}
	case token.LPAREN:
		tok := p.cur
		p.next()
		if p.cur.Type == token.RPAREN {
			// () is the empty tuple, not a grouping of nothing.
			p.next()
			return &ast.TupleLit{Tok: tok}
		}
		first := p.parseExpression(precLowest)
		if p.cur.Type != token.COMMA {
			p.expect(token.RPAREN)
			return first
		}
		// A comma after the first element means this parenthesized form is
		// a tuple literal, not a grouped expression.
		lit := &ast.TupleLit{Tok: tok, Elements: []ast.Expression{first}}
		for p.cur.Type == token.COMMA {
			p.next()
			if p.cur.Type == token.RPAREN {
				break
			}
			lit.Elements = append(lit.Elements, p.parseExpression(precLowest))
		}
		p.expect(token.RPAREN)
		return lit
	case token.LBRACKET:
		return p.parseListOrHash()
	case token.MINUS, token.BANG:
		tok := p.cur
		p.next()
		right := p.parseExpression(precPrefix)
		return &ast.PrefixExpr{Tok: tok, Operator: tok.Literal, Right: right}
	}
	p.errorf("unexpected token %s (%q)", p.cur.Type, p.cur.Literal)
	tok := p.cur
	p.next()
	return &ast.Ident{Tok: tok, Name: "<error>"}
}

// parseListOrHash disambiguates `[1,2,3]` from `[=>]`/`[k=>v, ...]` by
// looking for a `=>` after the first element, or an immediate `=>` for an
// explicitly empty hash literal.
func (p *Parser) parseListOrHash() ast.Expression {
	tok := p.cur
	p.next() // consume '['
	if p.cur.Type == token.FATARROW {
		p.next()
		p.expect(token.RBRACKET)
		return &ast.HashLit{Tok: tok}
	}
	if p.cur.Type == token.RBRACKET {
		p.next()
		return &ast.ListLit{Tok: tok}
	}
	first := p.parseExpression(precLowest)
	if p.cur.Type == token.FATARROW {
		p.next()
		firstVal := p.parseExpression(precLowest)
		lit := &ast.HashLit{Tok: tok, Pairs: []ast.HashPair{{Key: first, Value: firstVal}}}
		for p.cur.Type == token.COMMA {
			p.next()
			if p.cur.Type == token.RBRACKET {
				break
			}
			k := p.parseExpression(precLowest)
			p.expect(token.FATARROW)
			v := p.parseExpression(precLowest)
			lit.Pairs = append(lit.Pairs, ast.HashPair{Key: k, Value: v})
		}
		p.expect(token.RBRACKET)
		return lit
	}
	lit := &ast.ListLit{Tok: tok, Elements: []ast.Expression{first}}
	for p.cur.Type == token.COMMA {
		p.next()
		if p.cur.Type == token.RBRACKET {
			break
		}
		lit.Elements = append(lit.Elements, p.parseExpression(precLowest))
	}
	p.expect(token.RBRACKET)
	return lit
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	tok := p.cur
	prec := p.curPrecedence()
	p.next()
	right := p.parseExpression(prec)
	return &ast.InfixExpr{Tok: tok, Left: left, Operator: tok.Literal, Right: right}
}

func (p *Parser) parseCall(fn ast.Expression) ast.Expression {
	tok := p.cur
	p.next() // consume '('
	args := p.parseExprList(token.RPAREN)
	if method, ok := fn.(*ast.PropertyExpr); ok {
		return &ast.MethodCallExpr{Tok: tok, Left: method.Left, Method: method.Property, Args: args}
	}
	return &ast.CallExpr{Tok: tok, Fn: fn, Args: args}
}

func (p *Parser) parseExprList(end token.Type) []ast.Expression {
	var list []ast.Expression
	if p.cur.Type == end {
		p.next()
		return list
	}
	list = append(list, p.parseExpression(precLowest))
	for p.cur.Type == token.COMMA {
		p.next()
		list = append(list, p.parseExpression(precLowest))
	}
	p.expect(end)
	return list
}

func (p *Parser) parseIndex(left ast.Expression) ast.Expression {
	tok := p.cur
	p.next() // consume '['
	idx := p.parseExpression(precLowest)
	p.expect(token.RBRACKET)
	return &ast.IndexExpr{Tok: tok, Left: left, Index: idx}
}

func (p *Parser) parseProperty(left ast.Expression) ast.Expression {
	tok := p.cur
	p.next() // consume '.'
	if p.cur.Type != token.IDENT {
		p.errorf("expected identifier after '.'")
		return left
	}
	name := p.cur.Literal
	p.next()
	return &ast.PropertyExpr{Tok: tok, Left: left, Property: name}
}
