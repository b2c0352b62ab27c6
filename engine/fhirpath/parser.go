package fhirpath

import (
	"fmt"
	"strconv"
	"strings"
)

// bindingPower returns the precedence of a binary operator, higher binds tighter
func bindingPower(op string) (int, bool) {
	switch op {
	case "*", "/", "div", "mod":
		return 8, true
	case "+", "-", "&":
		return 7, true
	case "|":
		return 6, true
	case "<", ">", "<=", ">=":
		return 5, true
	case "=", "!=", "~", "!~":
		return 4, true
	case "and":
		return 2, true
	case "or", "xor":
		return 1, true
	case "implies":
		return 0, true
	}
	return 0, false
}

type parser struct {
	tokens []token
	pos    int
	input  string
}

// compile parses a path expression into an evaluable tree
func compile(input string) (node, error) {
	tokens, err := scan(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, fmt.Errorf("empty expression")
	}

	p := &parser{tokens: tokens, input: input}
	n, err := p.parseExpr(-1)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.start)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(punct string) error {
	tok := p.advance()
	if tok.kind != tokPunct || tok.text != punct {
		if tok.kind == tokEOF {
			return fmt.Errorf("unexpected end of expression, expected %q", punct)
		}
		return fmt.Errorf("expected %q at offset %d, got %q", punct, tok.start, tok.text)
	}
	return nil
}

// infix returns the operator of tok when it is a binary operator
func infix(tok token) (string, bool) {
	switch tok.kind {
	case tokOperator:
		return tok.text, true
	case tokIdent:
		word := strings.ToLower(tok.text)
		if _, ok := bindingPower(word); ok {
			return word, true
		}
	}
	return "", false
}

func (p *parser) parseExpr(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := infix(p.peek())
		if !ok {
			return left, nil
		}
		prec, _ := bindingPower(op)
		if prec <= minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if tok := p.peek(); tok.kind == tokOperator && (tok.text == "-" || tok.text == "+") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.text, operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return n, nil
		}
		switch tok.text {
		case ".":
			p.advance()
			name := p.advance()
			if name.kind != tokIdent {
				if name.kind == tokEOF {
					return nil, fmt.Errorf("unexpected end of expression after '.'")
				}
				return nil, fmt.Errorf("expected identifier at offset %d, got %q", name.start, name.text)
			}
			next, err := p.parseInvocation(name, false)
			if err != nil {
				return nil, err
			}
			n = &invokeNode{target: n, next: next}
		case "[":
			p.advance()
			index, err := p.parseExpr(-1)
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &indexNode{target: n, index: index}
		default:
			return n, nil
		}
	}
}

// parseInvocation reads an identifier or a function call starting at name
func (p *parser) parseInvocation(name token, head bool) (node, error) {
	if tok := p.peek(); tok.kind != tokPunct || tok.text != "(" {
		return &identNode{name: name.text, head: head}, nil
	}
	p.advance()

	var args []node
	if tok := p.peek(); tok.kind == tokPunct && tok.text == ")" {
		p.advance()
	} else {
		for {
			arg, err := p.parseExpr(-1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if tok := p.peek(); tok.kind == tokPunct && tok.text == "," {
				p.advance()
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}

	fn, ok := functions[name.text]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name.text)
	}
	if err := fn.check(name.text, len(args)); err != nil {
		return nil, err
	}
	return &funcNode{name: name.text, args: args, fn: fn.call}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()

	switch tok.kind {
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	case tokString:
		return &literalNode{value: single(tok.text)}, nil

	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", tok.text, err)
		}
		return &literalNode{value: single(f)}, nil

	case tokDate:
		return &literalNode{value: single(tok.text)}, nil

	case tokVariable:
		return &variableNode{name: tok.text}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			return &literalNode{value: boolean(true)}, nil
		case "false":
			return &literalNode{value: boolean(false)}, nil
		}
		return p.parseInvocation(tok, true)

	case tokPunct:
		if tok.text == "(" {
			inner, err := p.parseExpr(-1)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}

	return nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.start)
}
