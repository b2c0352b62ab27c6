package fhirpath

import (
	"fmt"
	"strings"
)

type function func(e *env, focus collection, args []node) (collection, error)

type functionDef struct {
	min, max int
	call     function
}

func (d functionDef) check(name string, n int) error {
	if n < d.min || n > d.max {
		if d.min == d.max {
			return fmt.Errorf("function %s expects %d argument(s), got %d", name, d.min, n)
		}
		return fmt.Errorf("function %s expects %d to %d arguments, got %d", name, d.min, d.max, n)
	}
	return nil
}

var functions = map[string]functionDef{
	"exists":     {0, 1, fnExists},
	"empty":      {0, 0, fnEmpty},
	"count":      {0, 0, fnCount},
	"first":      {0, 0, fnFirst},
	"last":       {0, 0, fnLast},
	"tail":       {0, 0, fnTail},
	"not":        {0, 0, fnNot},
	"where":      {1, 1, fnWhere},
	"select":     {1, 1, fnSelect},
	"all":        {1, 1, fnAll},
	"ofType":     {1, 1, fnOfType},
	"distinct":   {0, 0, fnDistinct},
	"join":       {0, 1, fnJoin},
	"lower":      {0, 0, stringFn(strings.ToLower)},
	"upper":      {0, 0, stringFn(strings.ToUpper)},
	"trim":       {0, 0, stringFn(strings.TrimSpace)},
	"startsWith": {1, 1, stringTest(strings.HasPrefix)},
	"endsWith":   {1, 1, stringTest(strings.HasSuffix)},
	"contains":   {1, 1, stringTest(strings.Contains)},
	"length":     {0, 0, fnLength},
	"toString":   {0, 0, fnToString},
	"iif":        {2, 3, fnIif},
}

func fnExists(e *env, focus collection, args []node) (collection, error) {
	if len(args) == 1 {
		filtered, err := fnWhere(e, focus, args)
		if err != nil {
			return nil, err
		}
		focus = filtered
	}
	return boolean(len(focus) > 0), nil
}

func fnEmpty(_ *env, focus collection, _ []node) (collection, error) {
	return boolean(len(focus) == 0), nil
}

func fnCount(_ *env, focus collection, _ []node) (collection, error) {
	return single(float64(len(focus))), nil
}

func fnFirst(_ *env, focus collection, _ []node) (collection, error) {
	if len(focus) == 0 {
		return nil, nil
	}
	return focus[:1], nil
}

func fnLast(_ *env, focus collection, _ []node) (collection, error) {
	if len(focus) == 0 {
		return nil, nil
	}
	return focus[len(focus)-1:], nil
}

func fnTail(_ *env, focus collection, _ []node) (collection, error) {
	if len(focus) < 2 {
		return nil, nil
	}
	return focus[1:], nil
}

func fnNot(_ *env, focus collection, _ []node) (collection, error) {
	b, err := truth(focus)
	if err != nil || b == nil {
		return nil, err
	}
	return boolean(!*b), nil
}

// fnWhere keeps the items for which the criteria evaluates to true
func fnWhere(e *env, focus collection, args []node) (collection, error) {
	var out collection
	for _, it := range focus {
		res, err := args[0].eval(e, collection{it})
		if err != nil {
			return nil, err
		}
		b, err := truth(res)
		if err != nil {
			return nil, err
		}
		if b != nil && *b {
			out = append(out, it)
		}
	}
	return out, nil
}

func fnSelect(e *env, focus collection, args []node) (collection, error) {
	var out collection
	for _, it := range focus {
		res, err := args[0].eval(e, collection{it})
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func fnAll(e *env, focus collection, args []node) (collection, error) {
	for _, it := range focus {
		res, err := args[0].eval(e, collection{it})
		if err != nil {
			return nil, err
		}
		b, err := truth(res)
		if err != nil {
			return nil, err
		}
		if b == nil || !*b {
			return boolean(false), nil
		}
	}
	return boolean(true), nil
}

// fnOfType takes a bare type name as its argument, not an expression
func fnOfType(_ *env, focus collection, args []node) (collection, error) {
	ident, ok := args[0].(*identNode)
	if !ok {
		return nil, fmt.Errorf("ofType expects a type name")
	}
	var out collection
	for _, it := range focus {
		if matchesType(it, ident.name) {
			out = append(out, it)
		}
	}
	return out, nil
}

func fnDistinct(_ *env, focus collection, _ []node) (collection, error) {
	return union(focus, nil), nil
}

func fnJoin(e *env, focus collection, args []node) (collection, error) {
	sep := ""
	if len(args) == 1 {
		s, err := stringArg(e, focus, args[0], "join")
		if err != nil {
			return nil, err
		}
		sep = s
	}
	parts := make([]string, 0, len(focus))
	for _, it := range focus {
		s, ok := toString(it.value)
		if !ok {
			return nil, fmt.Errorf("join cannot be applied to %s", describe(it))
		}
		parts = append(parts, s)
	}
	return single(strings.Join(parts, sep)), nil
}

func fnLength(_ *env, focus collection, _ []node) (collection, error) {
	s, ok, err := singleString(focus, "length")
	if err != nil || !ok {
		return nil, err
	}
	return single(float64(len([]rune(s)))), nil
}

func fnToString(_ *env, focus collection, _ []node) (collection, error) {
	if len(focus) == 0 {
		return nil, nil
	}
	if len(focus) != 1 {
		return nil, fmt.Errorf("toString requires a single item, got %d", len(focus))
	}
	s, ok := toString(focus[0].value)
	if !ok {
		return nil, nil
	}
	return single(s), nil
}

func fnIif(e *env, focus collection, args []node) (collection, error) {
	cond, err := args[0].eval(e, focus)
	if err != nil {
		return nil, err
	}
	b, err := truth(cond)
	if err != nil {
		return nil, err
	}
	if b != nil && *b {
		return args[1].eval(e, focus)
	}
	if len(args) == 3 {
		return args[2].eval(e, focus)
	}
	return nil, nil
}

func stringFn(f func(string) string) function {
	return func(_ *env, focus collection, _ []node) (collection, error) {
		s, ok, err := singleString(focus, "string function")
		if err != nil || !ok {
			return nil, err
		}
		return single(f(s)), nil
	}
}

func stringTest(f func(s, arg string) bool) function {
	return func(e *env, focus collection, args []node) (collection, error) {
		s, ok, err := singleString(focus, "string test")
		if err != nil || !ok {
			return nil, err
		}
		arg, err := stringArg(e, focus, args[0], "string test")
		if err != nil {
			return nil, err
		}
		return boolean(f(s, arg)), nil
	}
}

func singleString(focus collection, name string) (string, bool, error) {
	if len(focus) == 0 {
		return "", false, nil
	}
	if len(focus) != 1 {
		return "", false, fmt.Errorf("%s requires a single item, got %d", name, len(focus))
	}
	s, ok := focus[0].value.(string)
	if !ok {
		return "", false, fmt.Errorf("%s requires a string, got %s", name, describe(focus[0]))
	}
	return s, true, nil
}

// stringArg evaluates a function argument against the original focus
func stringArg(e *env, focus collection, arg node, name string) (string, error) {
	res, err := arg.eval(e, focus)
	if err != nil {
		return "", err
	}
	if len(res) != 1 {
		return "", fmt.Errorf("%s argument must be a single string", name)
	}
	s, ok := res[0].value.(string)
	if !ok {
		return "", fmt.Errorf("%s argument must be a string", name)
	}
	return s, nil
}
