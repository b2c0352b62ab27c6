package mapping

import "strings"

// DataType is the declared type of a result column
type DataType string

const (
	TypeString    DataType = "STRING"
	TypeJSON      DataType = "JSON"
	TypeInteger   DataType = "INTEGER"
	TypeLongInt   DataType = "LONGINT"
	TypeDecimal   DataType = "DECIMAL"
	TypeBoolean   DataType = "BOOLEAN"
	TypeDate      DataType = "DATE"
	TypeTime      DataType = "TIME"
	TypeTimestamp DataType = "TIMESTAMP"
)

// TypeMap - Runtime mapping for result adapters
// Usage: TypeMap["SQL"]["DECIMAL"] returns "DOUBLE"
var TypeMap = map[string]map[string]string{
	"SQL": {
		"STRING":    "VARCHAR",
		"JSON":      "VARCHAR",
		"INTEGER":   "INTEGER",
		"LONGINT":   "BIGINT",
		"DECIMAL":   "DOUBLE",
		"BOOLEAN":   "BOOLEAN",
		"DATE":      "DATE",
		"TIME":      "TIME",
		"TIMESTAMP": "TIMESTAMP",
	},
}

// ElementTypes maps a FHIR element name to the column type it produces.
// Names not listed resolve to STRING.
var ElementTypes = map[string]DataType{
	// Primitive elements shared across resources
	"id":            TypeString,
	"active":        TypeBoolean,
	"birthDate":     TypeDate,
	"deceased":      TypeBoolean,
	"multipleBirth": TypeBoolean,
	"lastUpdated":   TypeTimestamp,
	"issued":        TypeTimestamp,
	"recorded":      TypeTimestamp,
	"authoredOn":    TypeTimestamp,
	"date":          TypeTimestamp,
	"effective":     TypeTimestamp,
	"onset":         TypeTimestamp,
	"start":         TypeTimestamp,
	"end":           TypeTimestamp,
	"versionId":     TypeString,
	"rank":          TypeInteger,
	"sequence":      TypeInteger,
	"total":         TypeInteger,
	"value":         TypeDecimal,

	// Complex elements are returned as JSON
	"name":          TypeJSON,
	"identifier":    TypeJSON,
	"telecom":       TypeJSON,
	"address":       TypeJSON,
	"meta":          TypeJSON,
	"code":          TypeJSON,
	"coding":        TypeJSON,
	"category":      TypeJSON,
	"subject":       TypeJSON,
	"extension":     TypeJSON,
	"contact":       TypeJSON,
	"communication": TypeJSON,
	"period":        TypeJSON,
	"component":     TypeJSON,
	"valueQuantity": TypeJSON,
}

// FunctionTypes maps a trailing path function to the column type it produces
var FunctionTypes = map[string]DataType{
	"count":      TypeInteger,
	"length":     TypeInteger,
	"exists":     TypeBoolean,
	"empty":      TypeBoolean,
	"not":        TypeBoolean,
	"startsWith": TypeBoolean,
	"contains":   TypeBoolean,
	"toString":   TypeString,
	"join":       TypeString,
	"lower":      TypeString,
	"upper":      TypeString,
}

// ResolveColumnType infers the column type of a select expression from its last path step.
// Count operators always resolve to INTEGER.
func ResolveColumnType(expression string, count bool) DataType {
	if count {
		return TypeInteger
	}
	step := lastStep(expression)
	if step == "" {
		return TypeString
	}
	if open := strings.IndexByte(step, '('); open > 0 {
		if t, ok := FunctionTypes[step[:open]]; ok {
			return t
		}
		if closing := strings.LastIndexByte(step, ')'); step[:open] == "ofType" && closing > open {
			return ofType(step[open+1 : closing])
		}
		// first(), where() and friends keep the type of the preceding step
		return ResolveColumnType(strings.TrimSuffix(expression[:len(expression)-len(step)], "."), false)
	}
	if bracket := strings.IndexByte(step, '['); bracket > 0 {
		step = step[:bracket]
	}
	if t, ok := ElementTypes[step]; ok {
		return t
	}
	return TypeString
}

// SQLTypeName returns the database/sql type name for a column type
func SQLTypeName(t DataType) string {
	if name, ok := TypeMap["SQL"][string(t)]; ok {
		return name
	}
	return "VARCHAR"
}

// lastStep returns the last dot-separated step of a path, ignoring dots nested in groups
func lastStep(expression string) string {
	expression = strings.TrimSpace(expression)
	depth := 0
	for i := len(expression) - 1; i >= 0; i-- {
		switch expression[i] {
		case ')', ']':
			depth++
		case '(', '[':
			depth--
		case '.':
			if depth == 0 {
				return expression[i+1:]
			}
		}
	}
	return expression
}

// ofType resolves the column type of an ofType(T) filter
func ofType(name string) DataType {
	switch name {
	case "string", "code", "uri", "id", "markdown":
		return TypeString
	case "integer", "positiveInt", "unsignedInt":
		return TypeInteger
	case "decimal":
		return TypeDecimal
	case "boolean":
		return TypeBoolean
	case "date":
		return TypeDate
	case "dateTime", "instant":
		return TypeTimestamp
	case "time":
		return TypeTime
	}
	return TypeJSON
}
