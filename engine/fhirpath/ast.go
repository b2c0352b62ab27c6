package fhirpath

import (
	"fmt"
	"strings"
)

// env carries the evaluation root for %resource and %context
type env struct {
	root collection
}

// node is one compiled expression element, evaluated against a focus collection
type node interface {
	eval(e *env, focus collection) (collection, error)
}

// identNode navigates a child element. At the start of a path a resource type
// name selects the root resource itself (Patient.name).
type identNode struct {
	name string
	head bool
}

func (n *identNode) eval(e *env, focus collection) (collection, error) {
	if n.head && n.name != "" && isUpper(n.name[0]) {
		var out collection
		for _, it := range focus {
			if isResource(it.value) && typeOf(it) == n.name {
				out = append(out, it)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return member(focus, n.name), nil
}

// invokeNode evaluates next with the result of target as its focus (a.b, a.f())
type invokeNode struct {
	target node
	next   node
}

func (n *invokeNode) eval(e *env, focus collection) (collection, error) {
	left, err := n.target.eval(e, focus)
	if err != nil {
		return nil, err
	}
	return n.next.eval(e, left)
}

// indexNode selects one element by position (name.given[0])
type indexNode struct {
	target node
	index  node
}

func (n *indexNode) eval(e *env, focus collection) (collection, error) {
	items, err := n.target.eval(e, focus)
	if err != nil {
		return nil, err
	}
	idx, err := n.index.eval(e, focus)
	if err != nil {
		return nil, err
	}
	if len(idx) != 1 {
		return nil, fmt.Errorf("index must be a single integer")
	}
	f, ok := toNumber(idx[0].value)
	if !ok || f != float64(int(f)) {
		return nil, fmt.Errorf("index must be an integer")
	}
	i := int(f)
	if i < 0 || i >= len(items) {
		return nil, nil
	}
	return collection{items[i]}, nil
}

type literalNode struct {
	value collection
}

func (n *literalNode) eval(*env, collection) (collection, error) {
	return n.value, nil
}

// variableNode resolves $this and %resource style variables
type variableNode struct {
	name string
}

func (n *variableNode) eval(e *env, focus collection) (collection, error) {
	switch n.name {
	case "$this":
		return focus, nil
	case "%resource", "%context", "%rootResource":
		return e.root, nil
	}
	return nil, fmt.Errorf("unknown variable: %s", n.name)
}

type unaryNode struct {
	op      string
	operand node
}

func (n *unaryNode) eval(e *env, focus collection) (collection, error) {
	val, err := n.operand.eval(e, focus)
	if err != nil {
		return nil, err
	}
	if n.op == "+" || len(val) == 0 {
		return val, nil
	}
	if len(val) != 1 {
		return nil, fmt.Errorf("operator %s requires a single operand, got %d items", n.op, len(val))
	}
	f, ok := toNumber(val[0].value)
	if !ok {
		return nil, fmt.Errorf("operator %s requires a number", n.op)
	}
	return single(-f), nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(e *env, focus collection) (collection, error) {
	left, err := n.left.eval(e, focus)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(e, focus)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(n.op) {
	case "|":
		return union(left, right), nil
	case "=":
		return equality(left, right, false), nil
	case "!=":
		return equality(left, right, true), nil
	case "~":
		return equivalence(left, right, false), nil
	case "!~":
		return equivalence(left, right, true), nil
	case "<", ">", "<=", ">=":
		return compare(n.op, left, right)
	case "+", "-", "*", "/", "div", "mod":
		return arithmetic(n.op, left, right)
	case "&":
		return concat(left, right)
	case "and", "or", "xor", "implies":
		return logic(strings.ToLower(n.op), left, right)
	}
	return nil, fmt.Errorf("unsupported operator: %s", n.op)
}

// funcNode calls a function on the focus collection
type funcNode struct {
	name string
	args []node
	fn   function
}

func (n *funcNode) eval(e *env, focus collection) (collection, error) {
	return n.fn(e, focus, n.args)
}

// =============================================================================
// OPERATORS
// =============================================================================

func union(left, right collection) collection {
	seen := map[string]bool{}
	var out collection
	for _, it := range append(append(collection{}, left...), right...) {
		k := key(it)
		if !seen[k] {
			seen[k] = true
			out = append(out, it)
		}
	}
	return out
}

func equality(left, right collection, negate bool) collection {
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	eq := len(left) == len(right)
	for i := 0; eq && i < len(left); i++ {
		eq = equal(left[i], right[i])
	}
	return boolean(eq != negate)
}

func equivalence(left, right collection, negate bool) collection {
	if len(left) == 0 && len(right) == 0 {
		return boolean(!negate)
	}
	eq := len(left) == len(right)
	for i := 0; eq && i < len(left); i++ {
		a, aok := left[i].value.(string)
		b, bok := right[i].value.(string)
		if aok && bok {
			eq = strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
		} else {
			eq = equal(left[i], right[i])
		}
	}
	return boolean(eq != negate)
}

func singletons(op string, left, right collection) (item, item, bool, error) {
	if len(left) == 0 || len(right) == 0 {
		return item{}, item{}, false, nil
	}
	if len(left) != 1 || len(right) != 1 {
		return item{}, item{}, false, fmt.Errorf("operator %s requires single operands, got %d and %d items", op, len(left), len(right))
	}
	return left[0], right[0], true, nil
}

func compare(op string, left, right collection) (collection, error) {
	a, b, ok, err := singletons(op, left, right)
	if err != nil || !ok {
		return nil, err
	}

	var cmp int
	x, xok := toNumber(a.value)
	y, yok := toNumber(b.value)
	switch {
	case xok && yok:
		cmp = compareFloat(x, y)
	default:
		s, sok := a.value.(string)
		t, tok := b.value.(string)
		if !sok || !tok {
			return nil, fmt.Errorf("operator %s cannot compare %s with %s", op, describe(a), describe(b))
		}
		cmp = strings.Compare(s, t)
	}

	switch op {
	case "<":
		return boolean(cmp < 0), nil
	case ">":
		return boolean(cmp > 0), nil
	case "<=":
		return boolean(cmp <= 0), nil
	}
	return boolean(cmp >= 0), nil
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func arithmetic(op string, left, right collection) (collection, error) {
	a, b, ok, err := singletons(op, left, right)
	if err != nil || !ok {
		return nil, err
	}

	if op == "+" {
		s, sok := a.value.(string)
		t, tok := b.value.(string)
		if sok && tok {
			return single(s + t), nil
		}
	}

	x, xok := toNumber(a.value)
	y, yok := toNumber(b.value)
	if !xok || !yok {
		return nil, fmt.Errorf("operator %s cannot be applied to %s and %s", op, describe(a), describe(b))
	}

	switch op {
	case "+":
		return single(x + y), nil
	case "-":
		return single(x - y), nil
	case "*":
		return single(x * y), nil
	case "/":
		if y == 0 {
			return nil, nil
		}
		return single(x / y), nil
	case "div":
		if y == 0 {
			return nil, nil
		}
		return single(float64(int64(x / y))), nil
	}
	// mod
	if y == 0 {
		return nil, nil
	}
	return single(x - y*float64(int64(x/y))), nil
}

func concat(left, right collection) (collection, error) {
	var parts [2]string
	for i, side := range []collection{left, right} {
		if len(side) == 0 {
			continue
		}
		if len(side) != 1 {
			return nil, fmt.Errorf("operator & requires single operands, got %d items", len(side))
		}
		s, ok := toString(side[0].value)
		if !ok {
			return nil, fmt.Errorf("operator & cannot be applied to %s", describe(side[0]))
		}
		parts[i] = s
	}
	return single(parts[0] + parts[1]), nil
}

// truth converts a collection to three-valued logic: nil is unknown
func truth(c collection) (*bool, error) {
	switch len(c) {
	case 0:
		return nil, nil
	case 1:
		b, ok := c[0].value.(bool)
		if !ok {
			b = true
		}
		return &b, nil
	}
	return nil, fmt.Errorf("expected a single boolean, got %d items", len(c))
}

func logic(op string, left, right collection) (collection, error) {
	a, err := truth(left)
	if err != nil {
		return nil, err
	}
	b, err := truth(right)
	if err != nil {
		return nil, err
	}

	switch op {
	case "and":
		if (a != nil && !*a) || (b != nil && !*b) {
			return boolean(false), nil
		}
		if a == nil || b == nil {
			return nil, nil
		}
		return boolean(true), nil
	case "or":
		if (a != nil && *a) || (b != nil && *b) {
			return boolean(true), nil
		}
		if a == nil || b == nil {
			return nil, nil
		}
		return boolean(false), nil
	case "xor":
		if a == nil || b == nil {
			return nil, nil
		}
		return boolean(*a != *b), nil
	}
	// implies
	if a != nil && !*a {
		return boolean(true), nil
	}
	if b != nil && *b {
		return boolean(true), nil
	}
	if a == nil || b == nil {
		return nil, nil
	}
	return boolean(false), nil
}

func describe(it item) string {
	if t := typeOf(it); t != "" {
		return t
	}
	return fmt.Sprintf("%T", it.value)
}
