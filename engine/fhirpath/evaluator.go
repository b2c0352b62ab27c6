// Package fhirpath evaluates the FHIRPath subset used by select, where-free
// having and group/order expressions against decoded resources.
package fhirpath

import (
	"context"
	"fmt"
	"sync"

	"github.com/omniql-engine/hfql/engine/models"
)

// Expression is a compiled path expression, safe for concurrent use
type Expression struct {
	source string
	root   node
}

// String returns the source of the expression
func (x *Expression) String() string {
	return x.source
}

// Evaluate runs the expression with res as both focus and %resource
func (x *Expression) Evaluate(res models.Resource) ([]models.Value, error) {
	items, err := x.evaluate(res)
	if err != nil {
		return nil, err
	}
	values := make([]models.Value, 0, len(items))
	for _, it := range items {
		v, err := toValue(it)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (x *Expression) evaluate(res models.Resource) (collection, error) {
	root := single(map[string]any(res))
	return x.root.eval(&env{root: root}, root)
}

// Evaluator compiles path expressions once and caches them by source
type Evaluator struct {
	cache sync.Map // map[string]*Expression
}

// New creates an Evaluator with an empty cache
func New() *Evaluator {
	return &Evaluator{}
}

// Compile returns the cached expression for source, compiling it on first use
func (ev *Evaluator) Compile(source string) (*Expression, error) {
	if val, ok := ev.cache.Load(source); ok {
		return val.(*Expression), nil
	}

	root, err := compile(source)
	if err != nil {
		return nil, err
	}

	expr := &Expression{source: source, root: root}
	actual, _ := ev.cache.LoadOrStore(source, expr)
	return actual.(*Expression), nil
}

// Evaluate compiles expression if needed and evaluates it against res
func (ev *Evaluator) Evaluate(ctx context.Context, res models.Resource, expression string) ([]models.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("no resource to evaluate against")
	}
	expr, err := ev.Compile(expression)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(res)
}
