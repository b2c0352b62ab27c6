package mapping

import "strings"

// ClauseDefinition describes one HFQL section keyword
type ClauseDefinition struct {
	Keyword   string // The keyword as written (e.g., "WHERE", "ORDER")
	Follower  string // Keyword that must follow immediately ("BY"), empty if none
	ValueType string // CLAUSE_LIST, CONDITION, RESOURCE_TYPE, NUMERIC
}

// QueryClauses defines the section keywords that start or end a clause list
var QueryClauses = map[string]ClauseDefinition{
	"SELECT": {
		Keyword:   "SELECT",
		ValueType: "CLAUSE_LIST",
	},
	"FROM": {
		Keyword:   "FROM",
		ValueType: "RESOURCE_TYPE",
	},
	"WHERE": {
		Keyword:   "WHERE",
		ValueType: "CONDITION",
	},
	"HAVING": {
		Keyword:   "HAVING",
		ValueType: "CONDITION",
	},
	"GROUP": {
		Keyword:   "GROUP",
		Follower:  "BY",
		ValueType: "CLAUSE_LIST",
	},
	"ORDER": {
		Keyword:   "ORDER",
		Follower:  "BY",
		ValueType: "CLAUSE_LIST",
	},
	"LIMIT": {
		Keyword:   "LIMIT",
		ValueType: "NUMERIC",
	},
}

// Keywords lists every reserved word of the language. Matching is case-insensitive.
var Keywords = map[string]bool{
	"SELECT": true,
	"FROM":   true,
	"WHERE":  true,
	"HAVING": true,
	"GROUP":  true,
	"BY":     true,
	"ORDER":  true,
	"ASC":    true,
	"DESC":   true,
	"LIMIT":  true,
	"AS":     true,
	"IN":     true,
	"COUNT":  true,
	"AND":    true,
}

// IsKeyword checks if word is a reserved word
func IsKeyword(word string) bool {
	return Keywords[strings.ToUpper(word)]
}

// IsClause checks if word starts a section
func IsClause(word string) bool {
	_, exists := QueryClauses[strings.ToUpper(word)]
	return exists
}

// ClauseFollower returns the keyword that must follow a section keyword ("BY" for GROUP/ORDER)
func ClauseFollower(word string) string {
	return QueryClauses[strings.ToUpper(word)].Follower
}
