package policyengine

import (
	"fmt"
	"strconv"
)

// ============================================================================
// EXPRESSION SANDBOX (lexer + parser)
// ============================================================================
//
// The grammar is a strict allow-list. The lexer rejects any character
// outside it and the parser rejects any arrangement of tokens it does
// not explicitly expect, so assignments, calls other than len(),
// imports, indexing, lambdas and names outside user/resource/ctx all
// fail with a RejectError before anything runs.
//
//	expr    := or
//	or      := and { "or" and }
//	and     := not { "and" not }
//	not     := "not" not | cmp
//	cmp     := sum { ("=="|"!="|"<"|"<="|">"|">="|"in") sum }
//	sum     := term { ("+"|"-") term }
//	term    := unary { ("*"|"/") unary }
//	unary   := "-" unary | primary
//	primary := INT | STRING | "true" | "false"
//	         | "len" "(" expr ")" | "(" expr ")"
//	         | ("user"|"resource"|"ctx") "." IDENT

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// CompileExpression parses a condition string into a reusable
// Expression. Anything outside the sandbox grammar yields a
// RejectError; the offending construct is never evaluated.
func CompileExpression(expression string) (*Expression, error) {
	toks, err := lexAll(expression)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expression, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.reject(tok.pos, fmt.Sprintf("unexpected %q after end of expression", tok.text))
	}
	return &Expression{src: expression, root: root}, nil
}

func lexAll(src string) ([]token, error) {
	toks := make([]token, 0, 16)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, token{kind: tokInt, text: src[start:i], pos: start})
		case c == '"' || c == '\'':
			lit, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: lit, pos: i})
			i = next
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "==", pos: i})
				i += 2
			} else {
				return nil, &RejectError{Expr: src, Pos: i, Msg: "'=' is not an operator (assignment is not permitted)"}
			}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "!=", pos: i})
				i += 2
			} else {
				return nil, &RejectError{Expr: src, Pos: i, Msg: "'!' is not an operator (use 'not')"}
			}
		case c == '<' || c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: src[i : i+2], pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: src[i : i+1], pos: i})
				i++
			}
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')' || c == '.':
			toks = append(toks, token{kind: tokOp, text: src[i : i+1], pos: i})
			i++
		default:
			return nil, &RejectError{Expr: src, Pos: i, Msg: fmt.Sprintf("character %q is not part of the condition grammar", c)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b []byte
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) && (src[i+1] == quote || src[i+1] == '\\') {
			b = append(b, src[i+1])
			i += 2
			continue
		}
		if c == quote {
			return string(b), i + 1, nil
		}
		b = append(b, c)
		i++
	}
	return "", 0, &RejectError{Expr: src, Pos: start, Msg: "unterminated string literal"}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type parser struct {
	expr string
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) acceptOp(text string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == text {
		p.i++
		return true
	}
	return false
}

func (p *parser) acceptKeyword(word string) bool {
	if t := p.peek(); t.kind == tokIdent && t.text == word {
		p.i++
		return true
	}
	return false
}

func (p *parser) reject(pos int, msg string) error {
	return &RejectError{Expr: p.expr, Pos: pos, Msg: msg}
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolNode{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &boolNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (exprNode, error) {
	if p.acceptKeyword("not") {
		arg, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{arg: arg}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (exprNode, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	operands := []exprNode{first}
	var ops []string
	for {
		op, ok := p.peekCmpOp()
		if !ok {
			break
		}
		p.next()
		operand, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return first, nil
	}
	return &cmpNode{operands: operands, ops: ops}, nil
}

func (p *parser) peekCmpOp() (string, bool) {
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			return t.text, true
		}
	}
	if t.kind == tokIdent && t.text == "in" {
		return "in", true
	}
	return "", false
}

func (p *parser) parseSum() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op byte
		if p.acceptOp("+") {
			op = '+'
		} else if p.acceptOp("-") {
			op = '-'
		} else {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op byte
		if p.acceptOp("*") {
			op = '*'
		} else if p.acceptOp("/") {
			op = '/'
		} else {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	if p.acceptOp("-") {
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{arg: arg}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (exprNode, error) {
	t := p.next()
	switch t.kind {
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.reject(t.pos, "integer literal out of range")
		}
		return &litNode{val: n}, nil
	case tokString:
		return &litNode{val: t.text}, nil
	case tokOp:
		if t.text == "(" {
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, p.reject(p.peek().pos, "expected ')'")
			}
			return inner, nil
		}
		return nil, p.reject(t.pos, fmt.Sprintf("unexpected %q", t.text))
	case tokIdent:
		switch t.text {
		case "true":
			return &litNode{val: true}, nil
		case "false":
			return &litNode{val: false}, nil
		case "len":
			if !p.acceptOp("(") {
				return nil, p.reject(p.peek().pos, "len must be called as len(...)")
			}
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, p.reject(p.peek().pos, "expected ')' to close len(")
			}
			return &lenNode{arg: arg}, nil
		case "user", "resource", "ctx":
			if !p.acceptOp(".") {
				return nil, p.reject(p.peek().pos, fmt.Sprintf("namespace %q must be followed by '.field'", t.text))
			}
			field := p.next()
			if field.kind != tokIdent {
				return nil, p.reject(field.pos, "expected an attribute name after '.'")
			}
			return &attrNode{ns: t.text, field: field.text}, nil
		default:
			return nil, p.reject(t.pos, fmt.Sprintf("unknown name %q: only user, resource and ctx are addressable", t.text))
		}
	}
	return nil, p.reject(t.pos, "unexpected end of expression")
}
