// Package hfql compiles and runs HFQL, a small SQL-like query language over
// FHIR resources.
package hfql

import (
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/engine/parser"
	"github.com/omniql-engine/hfql/mapping"
)

// Parse compiles an HFQL statement. Errors are *lexer.ParseError values
// carrying the position of the offending token.
func Parse(input string) (*models.Statement, error) {
	return parser.Parse(input)
}

// ParseWithResourceTypes compiles a statement whose FROM type must be in types
func ParseWithResourceTypes(input string, types mapping.ResourceTypes) (*models.Statement, error) {
	return parser.Parse(input, parser.WithResourceTypes(types))
}
