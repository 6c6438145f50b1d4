package entity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/istore/internal/fault"
)

// shapeExpr is a compiled dimension expression such as "N", "N+2" or
// "2*(M-1)". Supported: integer literals, dimension names, + - * / %,
// unary minus and parentheses.
type shapeExpr interface {
	eval(dims func(string) (int, bool)) (int, error)
	idents(out []string) []string
}

type (
	numExpr   int
	identExpr string
	negExpr   struct{ x shapeExpr }
	binExpr   struct {
		op   byte
		l, r shapeExpr
	}
)

func (e numExpr) eval(func(string) (int, bool)) (int, error) { return int(e), nil }
func (e numExpr) idents(out []string) []string              { return out }

func (e identExpr) eval(dims func(string) (int, bool)) (int, error) {
	v, ok := dims(string(e))
	if !ok {
		return 0, fault.New(fault.UnresolvedDimension, "dimension has no value", string(e))
	}
	return v, nil
}

func (e identExpr) idents(out []string) []string { return append(out, string(e)) }

func (e negExpr) eval(dims func(string) (int, bool)) (int, error) {
	v, err := e.x.eval(dims)
	return -v, err
}

func (e negExpr) idents(out []string) []string { return e.x.idents(out) }

func (e binExpr) eval(dims func(string) (int, bool)) (int, error) {
	l, err := e.l.eval(dims)
	if err != nil {
		return 0, err
	}
	r, err := e.r.eval(dims)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/', '%':
		if r == 0 {
			return 0, fault.New(fault.InvalidInput, "division by zero in shape expression", "")
		}
		if e.op == '/' {
			return l / r, nil
		}
		return l % r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", e.op)
}

func (e binExpr) idents(out []string) []string {
	return e.r.idents(e.l.idents(out))
}

// parseShape compiles a shape expression.
func parseShape(src string) (shapeExpr, error) {
	p := &shapeParser{src: src}
	p.next()
	e, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.tok != tokEOF {
		return nil, p.errorf("unexpected %q", p.text)
	}
	return e, nil
}

type shapeToken int

const (
	tokEOF shapeToken = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokBad
)

type shapeParser struct {
	src  string
	pos  int
	tok  shapeToken
	text string
}

func (p *shapeParser) errorf(format string, args ...any) error {
	return fault.New(fault.InvalidInput, "invalid shape expression", p.src).
		WithDetail(format, args...)
}

func (p *shapeParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok, p.text = tokEOF, ""
		return
	}
	start := p.pos
	c, size := utf8.DecodeRuneInString(p.src[p.pos:])
	switch {
	case isASCIIDigit(c):
		for p.pos < len(p.src) && isASCIIDigit(rune(p.src[p.pos])) {
			p.pos++
		}
		p.tok = tokNum
	case isIdentStart(c):
		p.pos += size
		for p.pos < len(p.src) {
			r, n := utf8.DecodeRuneInString(p.src[p.pos:])
			if !isIdentPart(r) {
				break
			}
			p.pos += n
		}
		p.tok = tokIdent
	case strings.ContainsRune("+-*/%", c):
		p.pos++
		p.tok = tokOp
	case c == '(':
		p.pos++
		p.tok = tokLParen
	case c == ')':
		p.pos++
		p.tok = tokRParen
	default:
		p.pos += size
		p.tok = tokBad
	}
	p.text = p.src[start:p.pos]
}

func isASCIIDigit(c rune) bool { return '0' <= c && c <= '9' }
func isIdentStart(c rune) bool  { return c == '_' || unicode.IsLetter(c) }
func isIdentPart(c rune) bool   { return isIdentStart(c) || unicode.IsDigit(c) }

// sum := term (('+'|'-') term)*
func (p *shapeParser) parseSum() (shapeExpr, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok == tokOp && (p.text == "+" || p.text == "-") {
		op := p.text[0]
		p.next()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: op, l: l, r: r}
	}
	return l, nil
}

// term := unary (('*'|'/'|'%') unary)*
func (p *shapeParser) parseTerm() (shapeExpr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok == tokOp && strings.Contains("*/%", p.text) {
		op := p.text[0]
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: op, l: l, r: r}
	}
	return l, nil
}

// unary := '-' unary | '+' unary | primary
func (p *shapeParser) parseUnary() (shapeExpr, error) {
	if p.tok == tokOp && (p.text == "-" || p.text == "+") {
		neg := p.text == "-"
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if neg {
			return negExpr{x: x}, nil
		}
		return x, nil
	}
	return p.parsePrimary()
}

// primary := number | ident | '(' sum ')'
func (p *shapeParser) parsePrimary() (shapeExpr, error) {
	switch p.tok {
	case tokNum:
		n, err := strconv.Atoi(p.text)
		if err != nil {
			return nil, p.errorf("bad number %q", p.text)
		}
		p.next()
		return numExpr(n), nil
	case tokIdent:
		id := identExpr(p.text)
		p.next()
		return id, nil
	case tokLParen:
		p.next()
		e, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.tok != tokRParen {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.next()
		return e, nil
	case tokEOF:
		return nil, p.errorf("unexpected end of expression")
	default:
		return nil, p.errorf("unexpected %q", p.text)
	}
}
