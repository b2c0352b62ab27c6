package parser

import (
	"github.com/omniql-engine/hfql/engine/lexer"
	"github.com/omniql-engine/hfql/mapping"
)

// stopFunc reports whether tok ends the expression being read. It is only
// consulted outside parentheses, with the lexer positioned before tok.
type stopFunc func(tok lexer.Token) bool

// parseExpression reads tokens up to a stop token and returns the source text
// they span, so spacing inside the expression is kept as written
func (p *Parser) parseExpression(stop stopFunc) (string, error) {
	var first, last lexer.Token
	count := 0
	depth := 0

	for {
		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return "", err
		}
		if tok.IsEOF() {
			if depth > 0 {
				return "", lexer.EndOfStreamExpected(")")
			}
			break
		}
		if depth == 0 && stop(tok) {
			break
		}

		switch {
		case tok.IsPunctuation("("):
			depth++
		case tok.IsPunctuation(")"):
			if depth == 0 {
				return "", lexer.UnexpectedToken(tok)
			}
			depth--
		}

		p.next(lexer.ModePath)
		if count == 0 {
			first = tok
		}
		last = tok
		count++
	}

	if count == 0 {
		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return "", err
		}
		if tok.IsEOF() {
			return "", lexer.EndOfStream()
		}
		return "", lexer.UnexpectedToken(tok)
	}

	return p.lex.Slice(first, last), nil
}

// stopAtListEnd ends select, group by and order by items
func stopAtListEnd(tok lexer.Token) bool {
	return tok.Type == lexer.TOKEN_KEYWORD || tok.IsPunctuation(",") || tok.IsPunctuation(":")
}

// stopAtCondition ends the left side of a HAVING term
func (p *Parser) stopAtCondition(tok lexer.Token) bool {
	if tok.Type == lexer.TOKEN_KEYWORD || tok.IsOperator("=") {
		return true
	}
	if tok.Type == lexer.TOKEN_OPERATOR && mapping.IsComparisonOperator(tok.Value) {
		right, err := p.peekSecond(lexer.ModePath)
		return err == nil && right.Type == lexer.TOKEN_STRING
	}
	return false
}
