// Package search implements the search providers HFQL statements run
// against: an in-memory store, MongoDB, and a Redis cache in front of either.
package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

var (
	// ErrSearchNotFound is returned when resuming an unknown or expired search id
	ErrSearchNotFound = errors.New("search not found")
	// ErrUnsupportedParameter is returned for WHERE parameters a provider cannot evaluate
	ErrUnsupportedParameter = errors.New("unsupported search parameter")
)

// Operator names beyond models.WhereClauseOperator, produced by value prefixes and modifiers
const (
	opNotEquals = "NOT_EQUALS"
	opMissing   = "MISSING"
	opContains  = "CONTAINS"
)

// condition is a WHERE term resolved against the search parameter table
type condition struct {
	param    mapping.SearchParameter
	modifier string
	operator string
	values   []string // unquoted
}

// resolveConditions maps WHERE terms to conditions for resourceType
func resolveConditions(resourceType string, where []models.WhereClause) ([]condition, error) {
	conditions := make([]condition, 0, len(where))
	for _, term := range where {
		if mapping.IsChainedParameter(resourceType, term.Left) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedParameter, term.Left)
		}

		name, modifier := mapping.SplitModifier(term.Left)
		cond := condition{
			param:    mapping.LookupSearchParameter(resourceType, name),
			modifier: modifier,
			operator: string(term.Operator),
			values:   term.RightValues(),
		}

		switch {
		case modifier == "missing":
			if term.Operator != models.OperatorEquals || len(cond.values) != 1 {
				return nil, fmt.Errorf("%w: %s requires a single 'true' or 'false' value", ErrUnsupportedParameter, term.Left)
			}
			cond.operator = opMissing
		case modifier == "contains":
			cond.operator = opContains
		case term.Operator == models.OperatorEquals && isOrdered(cond.param):
			op, value := mapping.SplitSearchPrefix(cond.values[0])
			cond.operator = op
			cond.values = []string{value}
		}

		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// isOrdered reports whether values of the parameter accept comparison prefixes
func isOrdered(p mapping.SearchParameter) bool {
	switch p.Type {
	case "number", "date", "quantity":
		return true
	}
	return false
}

// matches tests a condition against the values found at its paths
func (c condition) matches(actual []string) bool {
	switch c.operator {
	case opMissing:
		return (len(actual) == 0) == strings.EqualFold(c.values[0], "true")
	case string(models.OperatorUnaryBoolean):
		for _, a := range actual {
			if a != "false" {
				return true
			}
		}
		return false
	case opNotEquals:
		for _, a := range actual {
			if c.equal(a, c.values[0]) {
				return false
			}
		}
		return len(actual) > 0
	}

	for _, a := range actual {
		for _, v := range c.values {
			if c.matchValue(a, v) {
				return true
			}
		}
	}
	return false
}

func (c condition) matchValue(actual, expected string) bool {
	switch c.operator {
	case opContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case string(models.OperatorGreaterThan):
		return compareValues(actual, expected) > 0
	case string(models.OperatorLessThan):
		return compareValues(actual, expected) < 0
	case string(models.OperatorGreaterThanOrEqual):
		return compareValues(actual, expected) >= 0
	case string(models.OperatorLessThanOrEqual):
		return compareValues(actual, expected) <= 0
	}
	return c.equal(actual, expected)
}

func (c condition) equal(actual, expected string) bool {
	if c.param.Type == "reference" && strings.HasSuffix(actual, "/"+expected) {
		return true
	}
	if isOrdered(c.param) {
		return compareValues(actual, expected) == 0
	}
	if c.modifier == "exact" {
		return actual == expected
	}
	return strings.EqualFold(actual, expected)
}

// compareValues compares numerically when both sides are numbers, else lexically
func compareValues(a, b string) int {
	aNum, err1 := strconv.ParseFloat(a, 64)
	bNum, err2 := strconv.ParseFloat(b, 64)
	if err1 != nil || err2 != nil {
		return strings.Compare(a, b)
	}
	switch {
	case aNum < bNum:
		return -1
	case aNum > bNum:
		return 1
	}
	return 0
}
