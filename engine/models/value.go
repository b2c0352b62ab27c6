package models

// ValueKind tags an evaluated value
type ValueKind int

const (
	// ValueNull is an absent value
	ValueNull ValueKind = iota
	// ValueIdentifier is a resource id; Text holds the id part only
	ValueIdentifier
	// ValueSerialized is any other value; Text holds its compact serialized form
	ValueSerialized
)

// Value is one result of evaluating a path expression.
// Raw keeps the decoded form for predicates and ordering, it may be nil.
type Value struct {
	Kind ValueKind
	Text string
	Raw  any
}

// Null returns the absent value
func Null() Value {
	return Value{Kind: ValueNull}
}

// Identifier returns an id value
func Identifier(id string) Value {
	return Value{Kind: ValueIdentifier, Text: id, Raw: id}
}

// Serialized returns a value with its serialized text
func Serialized(text string, raw any) Value {
	return Value{Kind: ValueSerialized, Text: text, Raw: raw}
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return v.Kind == ValueNull
}

// Cell converts the value into a row cell: nil for absent values, else the text
func (v Value) Cell() any {
	switch v.Kind {
	case ValueIdentifier, ValueSerialized:
		return v.Text
	}
	return nil
}

// IsTrue reports whether the value is the boolean true
func (v Value) IsTrue() bool {
	b, ok := v.Raw.(bool)
	return ok && b
}
