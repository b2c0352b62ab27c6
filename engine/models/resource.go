package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Resource is a decoded FHIR resource
type Resource map[string]any

// ResourceType returns the resourceType element, or "" when missing
func (r Resource) ResourceType() string {
	t, _ := r["resourceType"].(string)
	return t
}

// ID returns the id element, or "" when missing
func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

// DecodeResource parses one FHIR JSON resource
func DecodeResource(data []byte) (Resource, error) {
	var res Resource
	if err := unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("failed to decode resource: null document")
	}
	if res.ResourceType() == "" {
		return nil, fmt.Errorf("failed to decode resource: missing resourceType")
	}
	return res, nil
}

// DecodeResources parses a single resource, a JSON array of resources, or a
// Bundle whose entry[].resource elements are returned in order
func DecodeResources(data []byte) ([]Resource, error) {
	var raw any
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	switch doc := raw.(type) {
	case []any:
		return collect(doc)
	case map[string]any:
		res := Resource(doc)
		if res.ResourceType() != "Bundle" {
			if res.ResourceType() == "" {
				return nil, fmt.Errorf("failed to decode resources: missing resourceType")
			}
			return []Resource{res}, nil
		}
		entries, _ := doc["entry"].([]any)
		items := make([]any, 0, len(entries))
		for _, e := range entries {
			if entry, ok := e.(map[string]any); ok {
				if inner, ok := entry["resource"]; ok {
					items = append(items, inner)
				}
			}
		}
		return collect(items)
	}
	return nil, fmt.Errorf("failed to decode resources: expected object or array")
}

func collect(items []any) ([]Resource, error) {
	resources := make([]Resource, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("failed to decode resources: item %d is not an object", i)
		}
		res := Resource(m)
		if res.ResourceType() == "" {
			return nil, fmt.Errorf("failed to decode resources: item %d is missing resourceType", i)
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// unmarshal decodes numbers as json.Number so decimals keep their written
// precision ("1.50") and integers beyond 2^53 are not rounded
func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}
