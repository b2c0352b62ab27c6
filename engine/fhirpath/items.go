package fhirpath

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/omniql-engine/hfql/engine/models"
)

// item is one element of an evaluation collection
type item struct {
	value      any
	typeName   string // FHIR type taken from a choice element suffix (valueQuantity -> Quantity)
	identifier bool   // the id element of a resource
}

type collection []item

func single(v any) collection {
	return collection{{value: v}}
}

func boolean(b bool) collection {
	return single(b)
}

// flatten appends v to out, expanding arrays and dropping nulls
func flatten(out collection, v any, typeName string, identifier bool) collection {
	switch val := v.(type) {
	case nil:
		return out
	case []any:
		for _, e := range val {
			out = flatten(out, e, typeName, false)
		}
		return out
	case []map[string]any:
		for _, e := range val {
			out = flatten(out, e, typeName, false)
		}
		return out
	}
	return append(out, item{value: v, typeName: typeName, identifier: identifier})
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case models.Resource:
		return m, true
	}
	return nil, false
}

func isResource(v any) bool {
	m, ok := asMap(v)
	if !ok {
		return false
	}
	_, ok = m["resourceType"].(string)
	return ok
}

// member navigates one child element. Choice elements (value[x]) match any
// key with the name as prefix followed by an upper-case type name.
func member(input collection, name string) collection {
	var out collection
	for _, it := range input {
		m, ok := asMap(it.value)
		if !ok {
			continue
		}
		if v, ok := m[name]; ok {
			out = flatten(out, v, "", name == "id" && isResource(m))
			continue
		}

		var choices []string
		for key := range m {
			if len(key) > len(name) && strings.HasPrefix(key, name) && isUpper(key[len(name)]) {
				choices = append(choices, key)
			}
		}
		sort.Strings(choices)
		for _, key := range choices {
			out = flatten(out, m[key], key[len(name):], false)
		}
	}
	return out
}

func isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

// typeOf returns the FHIR type name of an item, inferring primitives
func typeOf(it item) string {
	if it.typeName != "" {
		return it.typeName
	}
	switch v := it.value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64:
		return "integer"
	case json.Number:
		if strings.ContainsAny(string(v), ".eE") {
			return "decimal"
		}
		return "integer"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "decimal"
	}
	if m, ok := asMap(it.value); ok {
		if rt, ok := m["resourceType"].(string); ok {
			return rt
		}
	}
	return ""
}

func matchesType(it item, name string) bool {
	t := typeOf(it)
	if strings.EqualFold(t, name) {
		return true
	}
	// integers are also decimals
	return strings.EqualFold(name, "decimal") && t == "integer"
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return string(s), true
	}
	if n, ok := toNumber(v); ok {
		return formatNumber(n), true
	}
	return "", false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// equal compares two items by value
func equal(a, b item) bool {
	if x, ok := a.value.(json.Number); ok {
		if y, ok := b.value.(json.Number); ok && x == y {
			return true
		}
	}
	if x, ok := toNumber(a.value); ok {
		y, ok := toNumber(b.value)
		return ok && x == y
	}
	return reflect.DeepEqual(a.value, b.value)
}

// key returns a string identifying an item's value, for distinct and union
func key(it item) string {
	if s, ok := it.value.(string); ok {
		return "s:" + s
	}
	if n, ok := toNumber(it.value); ok {
		return "n:" + formatNumber(n)
	}
	data, err := json.Marshal(it.value)
	if err != nil {
		return fmt.Sprintf("%v", it.value)
	}
	return "j:" + string(data)
}

// toValue converts an item into the tagged result value
func toValue(it item) (models.Value, error) {
	if it.identifier {
		if s, ok := it.value.(string); ok {
			return models.Identifier(idPart(s)), nil
		}
	}
	switch v := it.value.(type) {
	case nil:
		return models.Null(), nil
	case string:
		return models.Serialized(v, v), nil
	case bool:
		return models.Serialized(strconv.FormatBool(v), v), nil
	case json.Number:
		return models.Serialized(string(v), v), nil
	}
	if n, ok := toNumber(it.value); ok {
		return models.Serialized(formatNumber(n), n), nil
	}
	data, err := json.Marshal(it.value)
	if err != nil {
		return models.Value{}, fmt.Errorf("failed to serialize value: %w", err)
	}
	return models.Serialized(string(data), it.value), nil
}

// idPart strips any Type/ prefix and /_history suffix from an id
func idPart(id string) string {
	if i := strings.Index(id, "/_history/"); i >= 0 {
		id = id[:i]
	}
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	return id
}
