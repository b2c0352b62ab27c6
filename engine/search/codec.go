package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/omniql-engine/hfql/engine/models"
)

// A cached resource is a protobuf Struct {resource, numbers}. Struct numbers
// are doubles, so the written text of every json.Number is kept in numbers,
// keyed by JSON pointer, and restored on decode.
const (
	resourceField = "resource"
	numbersField  = "numbers"
)

var (
	pointerEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// encodeResource serializes a resource as a protobuf Struct
func encodeResource(res models.Resource) ([]byte, error) {
	numbers := map[string]any{}
	collectNumbers(map[string]any(res), "", numbers)

	s, err := structpb.NewStruct(map[string]any{
		resourceField: map[string]any(res),
		numbersField:  numbers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return data, nil
}

// decodeResource reverses encodeResource
func decodeResource(data []byte) (models.Resource, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	doc := s.AsMap()
	res, ok := doc[resourceField].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to decode resource: missing %s field", resourceField)
	}
	numbers, _ := doc[numbersField].(map[string]any)
	for pointer, text := range numbers {
		if str, ok := text.(string); ok {
			setPointer(res, splitPointer(pointer), json.Number(str))
		}
	}
	return models.Resource(res), nil
}

// collectNumbers records the text of every json.Number below v
func collectNumbers(v any, pointer string, numbers map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			collectNumbers(e, pointer+"/"+pointerEscaper.Replace(k), numbers)
		}
	case []any:
		for i, e := range val {
			collectNumbers(e, pointer+"/"+strconv.Itoa(i), numbers)
		}
	case json.Number:
		numbers[pointer] = string(val)
	}
}

func splitPointer(pointer string) []string {
	segments := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, seg := range segments {
		segments[i] = pointerUnescaper.Replace(seg)
	}
	return segments
}

// setPointer replaces the element at segments, ignoring paths that do not exist
func setPointer(node any, segments []string, value any) {
	last := len(segments) - 1
	for i, seg := range segments {
		switch n := node.(type) {
		case map[string]any:
			if _, ok := n[seg]; !ok {
				return
			}
			if i == last {
				n[seg] = value
				return
			}
			node = n[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return
			}
			if i == last {
				n[idx] = value
				return
			}
			node = n[idx]
		default:
			return
		}
	}
}
