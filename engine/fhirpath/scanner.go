package fhirpath

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDate
	tokOperator
	tokPunct
	tokVariable // $this, %resource
)

type token struct {
	kind  tokenKind
	text  string // literal value for strings (unescaped), raw text otherwise
	start int
}

// scan splits a path expression into tokens
func scan(input string) ([]token, error) {
	var tokens []token
	pos := 0

	for pos < len(input) {
		ch := input[pos]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			pos++

		case ch == '\'':
			text, next, err := scanString(input, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, start: pos})
			pos = next

		case ch == '`':
			end := strings.IndexByte(input[pos+1:], '`')
			if end < 0 {
				return nil, fmt.Errorf("unterminated delimited identifier at offset %d", pos)
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[pos+1 : pos+1+end], start: pos})
			pos += end + 2

		case isDigit(ch):
			start := pos
			for pos < len(input) && isDigit(input[pos]) {
				pos++
			}
			if pos+1 < len(input) && input[pos] == '.' && isDigit(input[pos+1]) {
				pos++
				for pos < len(input) && isDigit(input[pos]) {
					pos++
				}
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:pos], start: start})

		case ch == '@':
			start := pos
			pos++
			for pos < len(input) && (isIdentChar(input[pos]) || strings.IndexByte("-:.+", input[pos]) >= 0) {
				pos++
			}
			tokens = append(tokens, token{kind: tokDate, text: input[start+1 : pos], start: start})

		case (ch == '$' || ch == '%') && pos+1 < len(input) && isIdentStart(input[pos+1]):
			start := pos
			pos++
			for pos < len(input) && isIdentChar(input[pos]) {
				pos++
			}
			tokens = append(tokens, token{kind: tokVariable, text: input[start:pos], start: start})

		case isIdentStart(ch):
			start := pos
			for pos < len(input) && isIdentChar(input[pos]) {
				pos++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:pos], start: start})

		case strings.IndexByte("()[].,", ch) >= 0:
			tokens = append(tokens, token{kind: tokPunct, text: string(ch), start: pos})
			pos++

		default:
			if pos+1 < len(input) {
				two := input[pos : pos+2]
				if two == "!=" || two == "<=" || two == ">=" || two == "!~" {
					tokens = append(tokens, token{kind: tokOperator, text: two, start: pos})
					pos += 2
					continue
				}
			}
			if strings.IndexByte("=~<>+-*/&|", ch) >= 0 {
				tokens = append(tokens, token{kind: tokOperator, text: string(ch), start: pos})
				pos++
				continue
			}
			return nil, fmt.Errorf("unexpected character '%c' at offset %d", ch, pos)
		}
	}

	tokens = append(tokens, token{kind: tokEOF, start: len(input)})
	return tokens, nil
}

func scanString(input string, pos int) (string, int, error) {
	var value strings.Builder
	i := pos + 1
	for i < len(input) {
		ch := input[i]
		if ch == '\\' && i+1 < len(input) {
			switch input[i+1] {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case 'r':
				value.WriteByte('\r')
			default:
				value.WriteByte(input[i+1])
			}
			i += 2
			continue
		}
		if ch == '\'' {
			return value.String(), i + 1, nil
		}
		value.WriteByte(ch)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", pos)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
