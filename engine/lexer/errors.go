package lexer

import (
	"fmt"
	"strings"

	"github.com/omniql-engine/hfql/mapping"
)

// ParseError represents an error with position info.
// Line and Column are -1 when the error is at the end of the stream.
type ParseError struct {
	Message    string
	Position   int
	Line       int
	Column     int
	Token      string
	Suggestion string // Closest keyword or resource type, empty if none
}

func (e *ParseError) Error() string {
	return e.Message
}

func newParseError(token Token, message string) *ParseError {
	return &ParseError{
		Message:  message,
		Position: token.Position,
		Line:     token.Line,
		Column:   token.Column,
		Token:    token.Value,
	}
}

func position(token Token) string {
	return fmt.Sprintf("[line=%d, column=%d]", token.Line, token.Column)
}

// UnexpectedToken reports a token that is not valid where it appears
func UnexpectedToken(token Token) *ParseError {
	err := newParseError(token, fmt.Sprintf("Unexpected token at position %s: %s", position(token), token.Value))
	err.Suggestion = SuggestSimilar(token.Value)
	return err
}

// UnexpectedTokenExpected reports a token where the given keyword or mark was required
func UnexpectedTokenExpected(token Token, expected string) *ParseError {
	return newParseError(token, fmt.Sprintf("Unexpected token (expected %q) at position %s: %s", expected, position(token), token.Value))
}

// UnexpectedTokenDescribed reports a token where a kind of token was required ("quoted string")
func UnexpectedTokenDescribed(token Token, description string) *ParseError {
	return newParseError(token, fmt.Sprintf("Unexpected token (expected %s) at position %s: %s", description, position(token), token.Value))
}

// EndOfStream reports input that ended in the middle of a construct
func EndOfStream() *ParseError {
	return &ParseError{Message: "Unexpected end of stream", Position: -1, Line: -1, Column: -1}
}

// EndOfStreamExpected reports input that ended where the given keyword or mark was required
func EndOfStreamExpected(expected string) *ParseError {
	return &ParseError{Message: fmt.Sprintf("Unexpected end of stream (expected %q)", expected), Position: -1, Line: -1, Column: -1}
}

// EndOfStreamDescribed reports input that ended where a kind of token was required
func EndOfStreamDescribed(description string) *ParseError {
	return &ParseError{Message: fmt.Sprintf("Unexpected end of stream (expected %s)", description), Position: -1, Line: -1, Column: -1}
}

// InvalidFrom reports a FROM target that is not a known resource type
func InvalidFrom(token Token, known []string) *ParseError {
	err := newParseError(token, fmt.Sprintf("Invalid FROM statement. Unknown resource type '%s' at position: %s", token.Value, position(token)))
	err.Suggestion = closest(token.Value, known, 3)
	return err
}

// UnexpectedCharacter reports a character no token can start with
func UnexpectedCharacter(pos, line, column int, ch byte) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf("Unexpected character at position [line=%d, column=%d]: '%c'", line, column, ch),
		Position: pos,
		Line:     line,
		Column:   column,
		Token:    string(ch),
	}
}

// SuggestSimilar finds the closest matching keyword
func SuggestSimilar(unknown string) string {
	upper := strings.ToUpper(unknown)
	if mapping.IsKeyword(upper) {
		return ""
	}

	keywords := make([]string, 0, len(mapping.Keywords))
	for kw := range mapping.Keywords {
		keywords = append(keywords, kw)
	}
	return closest(upper, keywords, 2)
}

// closest returns the candidate within maxDistance edits of unknown, preferring
// the smallest distance and then the alphabetically first name
func closest(unknown string, candidates []string, maxDistance int) string {
	var bestMatch string
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		dist := levenshtein(strings.ToUpper(unknown), strings.ToUpper(candidate))
		if dist < bestDistance || (dist == bestDistance && bestMatch != "" && candidate < bestMatch) {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance > maxDistance {
		return ""
	}
	return bestMatch
}

// levenshtein calculates edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create matrix
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	// Fill matrix
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}
