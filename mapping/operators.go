package mapping

import "strings"

// ConditionOperators maps a WHERE/HAVING operator symbol to its operator name.
// The names match models.WhereClauseOperator values.
var ConditionOperators = map[string]string{
	"=":  "EQUALS",
	">":  "GREATER_THAN",
	"<":  "LESS_THAN",
	">=": "GREATER_THAN_OR_EQUAL",
	"<=": "LESS_THAN_OR_EQUAL",
	"IN": "IN",
}

// ComparisonOperators is the subset of ConditionOperators that compare ordered values
var ComparisonOperators = map[string]bool{
	">":  true,
	"<":  true,
	">=": true,
	"<=": true,
}

// ExpressionOperators - operator symbols the lexer accepts inside path expressions
var ExpressionOperators = map[string]bool{
	"=":  true,
	"!=": true,
	">":  true,
	"<":  true,
	">=": true,
	"<=": true,
	"+":  true,
	"-":  true,
	"*":  true,
	"/":  true,
	"&":  true,
}

// OperatorMap - Runtime mapping for search providers
// Usage: OperatorMap["MongoDB"]["GREATER_THAN"] returns "$gt"
var OperatorMap = map[string]map[string]string{
	"MongoDB": {
		"EQUALS":                "$eq",
		"IN":                    "$in",
		"GREATER_THAN":          "$gt",
		"LESS_THAN":             "$lt",
		"GREATER_THAN_OR_EQUAL": "$gte",
		"LESS_THAN_OR_EQUAL":    "$lte",
		"NOT_EQUALS":            "$ne",
		"UNARY_BOOLEAN":         "$exists",
	},
}

// SearchPrefixes maps FHIR search value prefixes (e.g. 'lt500') to operator names
var SearchPrefixes = map[string]string{
	"eq": "EQUALS",
	"ne": "NOT_EQUALS",
	"gt": "GREATER_THAN",
	"lt": "LESS_THAN",
	"ge": "GREATER_THAN_OR_EQUAL",
	"le": "LESS_THAN_OR_EQUAL",
}

// IsComparisonOperator checks if symbol is an ordered comparison operator
func IsComparisonOperator(symbol string) bool {
	return ComparisonOperators[symbol]
}

// IsExpressionOperator checks if symbol is a valid operator token
func IsExpressionOperator(symbol string) bool {
	return ExpressionOperators[symbol]
}

// GetConditionOperator returns the operator name for a symbol or keyword
func GetConditionOperator(symbol string) (string, bool) {
	name, ok := ConditionOperators[strings.ToUpper(symbol)]
	return name, ok
}

// SplitSearchPrefix splits a FHIR prefixed value ("lt500") into operator name and remainder.
// Values without a known prefix followed by a digit or sign return ("EQUALS", value).
func SplitSearchPrefix(value string) (string, string) {
	if len(value) > 2 {
		if op, ok := SearchPrefixes[strings.ToLower(value[:2])]; ok {
			next := value[2]
			if (next >= '0' && next <= '9') || next == '-' || next == '+' || next == '.' {
				return op, value[2:]
			}
		}
	}
	return "EQUALS", value
}
