// Package parser implements a recursive-descent parser turning a do token
// stream into the untyped Op tree consumed by the type checker.
package parser

import (
	"fmt"

	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/lexer"
)

// Parser consumes a fully-scanned token slice. Parsing the whole buffer up
// front (rather than streaming token-by-token) lets bracket-matching
// lookahead decide, cheaply, whether a '[' opens a list literal or a
// binding form.
type Parser struct {
	toks []lexer.TokenValue
	pos  int
	diag *diag.List
}

// New creates a Parser from src, scanning it first and appending both lex
// and parse diagnostics to d.
func New(src string, d *diag.List) *Parser {
	return &Parser{toks: lexer.ScanAll(src, d), diag: d}
}

// Parse parses the whole token stream as a top-level program.
func Parse(src string, d *diag.List) []ast.Op {
	p := New(src, d)
	return p.parseUntil(lexer.EOF)
}

func (p *Parser) cur() lexer.TokenValue  { return p.toks[p.pos] }
func (p *Parser) at(t lexer.Token) bool  { return p.cur().Type == t }
func (p *Parser) advance() lexer.TokenValue {
	tv := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tv
}

func (p *Parser) expect(t lexer.Token) lexer.TokenValue {
	if !p.at(t) {
		tv := p.cur()
		p.diag.Add(diag.Parse, fmt.Sprintf("expected %s but found %s", t, tv.Type), tv.Span)
		return tv
	}
	return p.advance()
}

// parseUntil parses ops until the stop token (consumed by the caller) or EOF.
func (p *Parser) parseUntil(stop lexer.Token) []ast.Op {
	var ops []ast.Op
	for !p.at(stop) && !p.at(lexer.EOF) {
		ops = append(ops, p.parseOp())
	}
	return ops
}

var simpleKinds = map[lexer.Token]ast.Kind{
	lexer.DUP:     ast.Dup,
	lexer.OVER:    ast.Over,
	lexer.POP:     ast.Pop,
	lexer.ROT:     ast.Rot,
	lexer.SWAP:    ast.Swap,
	lexer.PRINT:   ast.Print,
	lexer.CONCAT:  ast.Concat,
	lexer.PUSH:    ast.Push,
	lexer.HEAD:    ast.Head,
	lexer.TAIL:    ast.Tail,
	lexer.DO:      ast.Do,
	lexer.FILTER:  ast.Filter,
	lexer.FOLD:    ast.Fold,
	lexer.FOREACH: ast.Foreach,
	lexer.LEN:     ast.Len,
	lexer.MAP:     ast.Map,
	lexer.PLUS:    ast.Add,
	lexer.MINUS:   ast.Sub,
	lexer.STAR:    ast.Mul,
	lexer.SLASH:   ast.Div,
	lexer.PERCENT: ast.Mod,
	lexer.LT:      ast.Lt,
	lexer.LE:      ast.Le,
	lexer.GT:      ast.Gt,
	lexer.GE:      ast.Ge,
	lexer.EQ:      ast.Eq,
	lexer.BANG:    ast.Not,
	lexer.DOT:     ast.Identity,
	lexer.QQQ:     ast.Dump,
	lexer.AND:     ast.And,
	lexer.OR:      ast.Or,
}

func (p *Parser) parseOp() ast.Op {
	tv := p.cur()

	if kind, ok := simpleKinds[tv.Type]; ok {
		p.advance()
		return ast.Op{Kind: kind, Span: tv.Span}
	}

	switch tv.Type {
	case lexer.INT:
		p.advance()
		return ast.Op{Kind: ast.PushInt, IntVal: tv.Int, Span: tv.Span}
	case lexer.TRUE:
		p.advance()
		return ast.Op{Kind: ast.PushBool, BoolVal: true, Span: tv.Span}
	case lexer.FALSE:
		p.advance()
		return ast.Op{Kind: ast.PushBool, BoolVal: false, Span: tv.Span}
	case lexer.IDENT:
		p.advance()
		return ast.Op{Kind: ast.Ident, Name: tv.Lexeme, Span: tv.Span}
	case lexer.LPAREN:
		return p.parseBlock()
	case lexer.LBRACK:
		return p.parseListOrBinding()
	case lexer.FN:
		return p.parseFn()
	case lexer.IF:
		return p.parseIf()
	case lexer.ELSE:
		p.advance()
		p.diag.Add(diag.Parse, "'else' without a matching 'if'", tv.Span)
		return ast.Op{Kind: ast.Dump, Span: tv.Span}
	case lexer.CHOICE:
		p.advance()
		p.diag.Add(diag.Parse, "'choice' without a matching 'if'", tv.Span)
		return ast.Op{Kind: ast.Dump, Span: tv.Span}
	case lexer.EOF:
		p.diag.Add(diag.Parse, "unexpected end of file", tv.Span)
		return ast.Op{Kind: ast.Dump, Span: tv.Span}
	default:
		p.advance()
		p.diag.Add(diag.Parse, fmt.Sprintf("unexpected token %s", tv.Type), tv.Span)
		return ast.Op{Kind: ast.Dump, Span: tv.Span}
	}
}

func (p *Parser) parseBlock() ast.Op {
	open := p.expect(lexer.LPAREN)
	body := p.parseUntil(lexer.RPAREN)
	p.expect(lexer.RPAREN)
	return ast.Op{Kind: ast.PushBlock, Body: body, Span: open.Span}
}

// parseListOrBinding resolves the '[' ambiguity: '[name1 name2] ( body )' is
// a binding form iff every token up to the matching ']' is a bare
// identifier and the token immediately following ']' is '('. Anything else
// is a list literal.
func (p *Parser) parseListOrBinding() ast.Op {
	open := p.expect(lexer.LBRACK)

	if p.looksLikeBinding() {
		var names []string
		for !p.at(lexer.RBRACK) {
			names = append(names, p.expect(lexer.IDENT).Lexeme)
		}
		p.expect(lexer.RBRACK)
		p.expect(lexer.LPAREN)
		body := p.parseUntil(lexer.RPAREN)
		p.expect(lexer.RPAREN)
		return ast.Op{Kind: ast.Binding, Names: names, Body: body, Span: open.Span}
	}

	elems := p.parseUntil(lexer.RBRACK)
	p.expect(lexer.RBRACK)
	return ast.Op{Kind: ast.PushList, Elems: elems, Span: open.Span}
}

// looksLikeBinding scans forward, without consuming, from the current
// position (just past '[') to the matching ']' and reports whether the
// contents are all bare identifiers and a '(' immediately follows.
func (p *Parser) looksLikeBinding() bool {
	depth := 0
	i := p.pos
	for {
		if i >= len(p.toks) {
			return false
		}
		tv := p.toks[i]
		switch tv.Type {
		case lexer.EOF:
			return false
		case lexer.RBRACK:
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Type == lexer.LPAREN
			}
			depth--
		case lexer.IDENT:
			// ok
		default:
			if depth == 0 {
				return false
			}
		}
		i++
	}
}

func (p *Parser) parseFn() ast.Op {
	kw := p.expect(lexer.FN)
	name := p.expect(lexer.IDENT)
	p.expect(lexer.LPAREN)
	body := p.parseUntil(lexer.RPAREN)
	p.expect(lexer.RPAREN)
	return ast.Op{Kind: ast.Fn, Name: name.Lexeme, Body: body, Span: kw.Span}
}

func (p *Parser) parseIf() ast.Op {
	kw := p.expect(lexer.IF)
	p.expect(lexer.LPAREN)
	body := p.parseUntil(lexer.RPAREN)
	p.expect(lexer.RPAREN)

	if !p.at(lexer.ELSE) && !p.at(lexer.CHOICE) {
		return ast.Op{Kind: ast.If, Body: body, Span: kw.Span}
	}
	p.advance()
	p.expect(lexer.LPAREN)
	elseBody := p.parseUntil(lexer.RPAREN)
	p.expect(lexer.RPAREN)
	return ast.Op{Kind: ast.IfElse, Body: body, Else: elseBody, Span: kw.Span}
}
