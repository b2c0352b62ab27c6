package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/omniql-engine/hfql/engine/models"
)

// CompileHaving builds the conjunction of HAVING terms. It returns nil when
// there are no terms, so every resource is kept.
func CompileHaving(terms []models.WhereClause, evaluator Evaluator) Predicate {
	if len(terms) == 0 {
		return nil
	}
	return func(ctx context.Context, res models.Resource) (bool, error) {
		for _, term := range terms {
			ok, err := evaluateTerm(ctx, evaluator, res, term)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// evaluateTerm tests a single term: true when any evaluated value matches
func evaluateTerm(ctx context.Context, evaluator Evaluator, res models.Resource, term models.WhereClause) (bool, error) {
	values, err := evaluator.Evaluate(ctx, res, term.Left)
	if err != nil {
		return false, fmt.Errorf("Failed to evaluate FHIRPath expression \"%s\". Error: %s", term.Left, err.Error())
	}

	expected := term.RightValues()
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		switch term.Operator {
		case models.OperatorUnaryBoolean:
			if v.IsTrue() {
				return true, nil
			}
		case models.OperatorEquals, models.OperatorIn:
			if matchMultiValue(v.Text, expected) {
				return true, nil
			}
		default:
			if len(expected) == 1 && matchComparison(v.Text, term.Operator, expected[0]) {
				return true, nil
			}
		}
	}
	return false, nil
}

// matchMultiValue reports whether actual equals one of values
func matchMultiValue(actual string, values []string) bool {
	for _, v := range values {
		if actual == v {
			return true
		}
	}
	return false
}

// matchComparison applies an ordering operator
func matchComparison(actual string, operator models.WhereClauseOperator, expected string) bool {
	cmp := compareNumeric(actual, expected)
	switch operator {
	case models.OperatorGreaterThan:
		return cmp > 0
	case models.OperatorLessThan:
		return cmp < 0
	case models.OperatorGreaterThanOrEqual:
		return cmp >= 0
	case models.OperatorLessThanOrEqual:
		return cmp <= 0
	}
	return false
}

// compareNumeric compares two values numerically, falls back to string
func compareNumeric(a, b string) int {
	aNum, err1 := strconv.ParseFloat(a, 64)
	bNum, err2 := strconv.ParseFloat(b, 64)

	if err1 != nil || err2 != nil {
		return strings.Compare(a, b)
	}
	if aNum < bNum {
		return -1
	}
	if aNum > bNum {
		return 1
	}
	return 0
}
