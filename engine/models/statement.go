package models

import "strings"

// ============================================================================
// STATEMENT - Parsed HFQL query, never mutated after parsing
// ============================================================================

// Statement represents a parsed HFQL query against a single resource type
type Statement struct {
	FromResourceName string          `json:"fromResourceName"`
	SelectClauses    []SelectClause  `json:"selectClauses"`
	WhereClauses     []WhereClause   `json:"whereClauses,omitempty"`  // Pushed to the search provider
	HavingClauses    []WhereClause   `json:"havingClauses,omitempty"` // Evaluated per fetched resource
	GroupByClauses   []string        `json:"groupByClauses,omitempty"`
	OrderByClauses   []OrderByClause `json:"orderByClauses,omitempty"`
	Limit            *int            `json:"limit,omitempty"` // nil when no LIMIT was given
}

// SelectClauseOperator distinguishes plain projections from COUNT
type SelectClauseOperator string

const (
	SelectOperatorSelect SelectClauseOperator = "SELECT"
	SelectOperatorCount  SelectClauseOperator = "COUNT"
)

// SelectClause is one projected output column
type SelectClause struct {
	Clause   string               `json:"clause"` // Path expression text as written
	Operator SelectClauseOperator `json:"operator"`
	Alias    string               `json:"alias"`
}

// WhereClauseOperator is the comparison a WHERE or HAVING term applies
type WhereClauseOperator string

const (
	OperatorEquals             WhereClauseOperator = "EQUALS"
	OperatorIn                 WhereClauseOperator = "IN"
	OperatorGreaterThan        WhereClauseOperator = "GREATER_THAN"
	OperatorLessThan           WhereClauseOperator = "LESS_THAN"
	OperatorGreaterThanOrEqual WhereClauseOperator = "GREATER_THAN_OR_EQUAL"
	OperatorLessThanOrEqual    WhereClauseOperator = "LESS_THAN_OR_EQUAL"
	OperatorUnaryBoolean       WhereClauseOperator = "UNARY_BOOLEAN"
)

// IsComparison reports whether the operator orders its operands
func (o WhereClauseOperator) IsComparison() bool {
	switch o {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterThanOrEqual, OperatorLessThanOrEqual:
		return true
	}
	return false
}

// WhereClause is one term of a WHERE or HAVING conjunction
type WhereClause struct {
	Left     string              `json:"left"`
	Operator WhereClauseOperator `json:"operator"`
	Right    []string            `json:"right"` // Literals as written, quotes included; empty for UNARY_BOOLEAN
}

// RightValues returns the right-hand literals with their quotes removed
func (w WhereClause) RightValues() []string {
	values := make([]string, len(w.Right))
	for i, r := range w.Right {
		values[i] = UnquoteLiteral(r)
	}
	return values
}

// OrderByClause is one ORDER BY item
type OrderByClause struct {
	Clause    string `json:"clause"`
	Ascending bool   `json:"ascending"`
}

// ============================================================================
// HELPERS
// ============================================================================

// HasLimit reports whether a LIMIT was given
func (s *Statement) HasLimit() bool {
	return s.Limit != nil
}

// HasCount reports whether any select clause is a COUNT
func (s *Statement) HasCount() bool {
	for _, c := range s.SelectClauses {
		if c.Operator == SelectOperatorCount {
			return true
		}
	}
	return false
}

// NeedsMaterialization reports whether the statement groups, counts or orders,
// which requires reading every matching resource before producing rows
func (s *Statement) NeedsMaterialization() bool {
	return len(s.GroupByClauses) > 0 || len(s.OrderByClauses) > 0 || s.HasCount()
}

// Aliases returns the select aliases in order
func (s *Statement) Aliases() []string {
	names := make([]string, len(s.SelectClauses))
	for i, c := range s.SelectClauses {
		names[i] = c.Alias
	}
	return names
}

// UnquoteLiteral strips one pair of surrounding single quotes, if present
func UnquoteLiteral(literal string) string {
	if len(literal) >= 2 && strings.HasPrefix(literal, "'") && strings.HasSuffix(literal, "'") {
		return literal[1 : len(literal)-1]
	}
	return literal
}
