package lexer

import (
	"strings"

	"github.com/omniql-engine/hfql/mapping"
)

// Mode selects which characters may continue an identifier
type Mode int

const (
	// ModePath lexes path expressions; ':' is punctuation
	ModePath Mode = iota
	// ModeSearchParam also accepts '-' and ':' inside identifiers (value-quantity, _has:Observation:subject)
	ModeSearchParam
)

// State is a saved lexer position, see Mark and Reset
type State struct {
	pos    int
	line   int
	column int
}

// Lexer produces tokens on demand. The caller picks the mode per token.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// New creates a lexer over input
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize converts a whole HFQL string to tokens in path mode.
// The returned slice always ends with an EOF token.
func Tokenize(input string) ([]Token, error) {
	l := New(input)
	var tokens []Token
	for {
		tok, err := l.Next(ModePath)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.IsEOF() {
			return tokens, nil
		}
	}
}

// Input returns the source text
func (l *Lexer) Input() string {
	return l.input
}

// Slice returns the source text between two tokens, inclusive
func (l *Lexer) Slice(first, last Token) string {
	return l.input[first.Position:last.End]
}

// Mark saves the current position
func (l *Lexer) Mark() State {
	return State{pos: l.pos, line: l.line, column: l.column}
}

// Reset rewinds to a position saved by Mark
func (l *Lexer) Reset(s State) {
	l.pos, l.line, l.column = s.pos, s.line, s.column
}

// Peek returns the next token without consuming it
func (l *Lexer) Peek(mode Mode) (Token, error) {
	saved := l.Mark()
	tok, err := l.Next(mode)
	l.Reset(saved)
	return tok, err
}

// Next consumes and returns the next token
func (l *Lexer) Next(mode Mode) (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Position: l.pos, End: l.pos, Line: l.line, Column: l.column}, nil
	}

	ch := l.input[l.pos]

	switch ch {
	case ',', '(', ')', ':', '|':
		return l.single(TOKEN_PUNCTUATION), nil
	case '\'':
		return l.scanString()
	}

	if isDigit(ch) {
		return l.scanNumber(), nil
	}

	// A leading '.' continues a path after a group: (a | b).count()
	if isIdentStart(ch) || (ch == '.' && l.pos+1 < len(l.input) && isIdentStart(l.input[l.pos+1])) {
		return l.scanIdentifier(mode)
	}

	if isOperatorChar(ch) {
		return l.scanOperator()
	}

	return Token{}, UnexpectedCharacter(l.pos, l.line, l.column, ch)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r', '\n':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	l.pos++
}

func (l *Lexer) start(tokenType TokenType) Token {
	return Token{
		Type:     tokenType,
		Position: l.pos,
		Line:     l.line,
		Column:   l.column,
	}
}

func (l *Lexer) finish(tok Token, value string) Token {
	tok.Value = value
	tok.End = l.pos
	return tok
}

func (l *Lexer) single(tokenType TokenType) Token {
	tok := l.start(tokenType)
	l.advance()
	return l.finish(tok, l.input[tok.Position:l.pos])
}

// scanString reads a quoted literal. The stored value keeps both quotes
// and replaces \' with '.
func (l *Lexer) scanString() (Token, error) {
	tok := l.start(TOKEN_STRING)
	l.advance() // Skip opening quote

	var value strings.Builder
	value.WriteByte('\'')
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == '\\' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
			value.WriteByte('\'')
			l.advance()
			l.advance()
			continue
		}

		if ch == '\'' {
			l.advance() // Skip closing quote
			value.WriteByte('\'')
			return l.finish(tok, value.String()), nil
		}

		value.WriteByte(ch)
		l.advance()
	}

	return Token{}, EndOfStreamExpected("'")
}

func (l *Lexer) scanNumber() Token {
	tok := l.start(TOKEN_NUMBER)

	// Integer part
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance()
	}

	// Decimal part
	if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(l.input[l.pos+1]) {
		l.advance()
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance()
		}
	}

	return l.finish(tok, l.input[tok.Position:l.pos])
}

// scanIdentifier reads a path. Bracket and parenthesis groups attached to the
// path are part of the same token, so name.given[0] and ofType(Quantity) stay whole.
func (l *Lexer) scanIdentifier(mode Mode) (Token, error) {
	tok := l.start(TOKEN_IDENTIFIER)

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isIdentChar(ch, mode) {
			l.advance()
			continue
		}
		if ch == '(' || ch == '[' {
			word := strings.ToUpper(l.input[tok.Position:l.pos])
			if word == "IN" || word == "AND" {
				break
			}
			if err := l.scanGroup(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	word := l.input[tok.Position:l.pos]
	if mapping.IsKeyword(word) {
		tok.Type = TOKEN_KEYWORD
	}
	return l.finish(tok, word), nil
}

// scanGroup consumes a balanced (...) or [...] group, skipping quoted literals inside it
func (l *Lexer) scanGroup() error {
	var closers []byte
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case '(':
			closers = append(closers, ')')
		case '[':
			closers = append(closers, ']')
		case ')', ']':
			if ch != closers[len(closers)-1] {
				return UnexpectedCharacter(l.pos, l.line, l.column, ch)
			}
			closers = closers[:len(closers)-1]
		case '\'':
			if _, err := l.scanString(); err != nil {
				return err
			}
			continue
		}
		l.advance()
		if len(closers) == 0 {
			return nil
		}
	}
	return EndOfStreamExpected(string(closers[len(closers)-1]))
}

func (l *Lexer) scanOperator() (Token, error) {
	tok := l.start(TOKEN_OPERATOR)

	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		if mapping.IsExpressionOperator(two) {
			l.advance()
			l.advance()
			return l.finish(tok, two), nil
		}
	}

	one := l.input[l.pos : l.pos+1]
	if !mapping.IsExpressionOperator(one) {
		return Token{}, UnexpectedCharacter(l.pos, l.line, l.column, l.input[l.pos])
	}
	l.advance()
	return l.finish(tok, one), nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$' || ch == '%'
}

func isIdentChar(ch byte, mode Mode) bool {
	if isIdentStart(ch) || isDigit(ch) || ch == '.' {
		return true
	}
	return mode == ModeSearchParam && (ch == '-' || ch == ':')
}

func isOperatorChar(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>' || ch == '*' || ch == '+' || ch == '-' || ch == '/' || ch == '&'
}
