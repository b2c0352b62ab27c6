package lexer

import "strings"

// TokenType represents the category of a token
type TokenType int

const (
	TOKEN_UNKNOWN     TokenType = iota
	TOKEN_KEYWORD               // SELECT, FROM, WHERE... (from mapping.Keywords)
	TOKEN_IDENTIFIER            // name.given[0], value.ofType(Quantity).value, Count(*)
	TOKEN_STRING                // 'John' (stored with its quotes)
	TOKEN_NUMBER                // 25, 3.14
	TOKEN_PUNCTUATION           // , ( ) : |
	TOKEN_OPERATOR              // = != > < >= <= + - * / &
	TOKEN_EOF                   // End of input
)

// Token represents a single token with position info
type Token struct {
	Type     TokenType
	Value    string // Token text (literals keep their quotes)
	Position int    // Byte offset of the first character in input
	End      int    // Byte offset just past the last character
	Line     int    // Line number (0-indexed)
	Column   int    // Column number (0-indexed)
}

// String returns human-readable token type name
func (t TokenType) String() string {
	names := []string{
		"UNKNOWN",
		"KEYWORD",
		"IDENTIFIER",
		"STRING",
		"NUMBER",
		"PUNCTUATION",
		"OPERATOR",
		"EOF",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// IsEOF reports whether the token marks the end of input
func (t Token) IsEOF() bool {
	return t.Type == TOKEN_EOF
}

// IsKeyword reports whether the token is the given keyword (case-insensitive)
func (t Token) IsKeyword(word string) bool {
	return t.Type == TOKEN_KEYWORD && strings.EqualFold(t.Value, word)
}

// IsPunctuation reports whether the token is the given punctuation mark
func (t Token) IsPunctuation(mark string) bool {
	return t.Type == TOKEN_PUNCTUATION && t.Value == mark
}

// IsOperator reports whether the token is the given operator
func (t Token) IsOperator(symbol string) bool {
	return t.Type == TOKEN_OPERATOR && t.Value == symbol
}

// Keyword returns the upper-cased keyword, or "" for other tokens
func (t Token) Keyword() string {
	if t.Type != TOKEN_KEYWORD {
		return ""
	}
	return strings.ToUpper(t.Value)
}
