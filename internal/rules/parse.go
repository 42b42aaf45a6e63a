package rules

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed applicability rule")

// Operators lists the accepted rule operators.
var Operators = []string{
	"all", "any", "not",
	"equals", "not_equals", "in",
	"is_true", "is_false", "exists",
	"contains", "has_tag",
}

// Parse compiles a decoded YAML/JSON rule into a predicate. A nil or empty
// rule parses to Always.
func Parse(raw any) (Predicate, error) {
	if raw == nil {
		return Always{}, nil
	}
	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("%w: expected a mapping, got %T", ErrMalformed, raw)
	}
	if len(m) == 0 {
		return Always{}, nil
	}
	return parseNode(m, "$")
}

func parseNode(m map[string]any, path string) (Predicate, error) {
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w at %s: expected exactly one operator, got %v", ErrMalformed, path, keys)
	}
	var op string
	var arg any
	for k, v := range m {
		op, arg = k, v
	}
	at := path + "." + op

	switch op {
	case "all", "any":
		list, ok := arg.([]any)
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("%w at %s: expected a non-empty list", ErrMalformed, at)
		}
		children := make([]Predicate, 0, len(list))
		for i, e := range list {
			cm, ok := asMap(e)
			if !ok {
				return nil, fmt.Errorf("%w at %s[%d]: expected a mapping", ErrMalformed, at, i)
			}
			child, err := parseNode(cm, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if op == "all" {
			return All{Children: children}, nil
		}
		return Any{Children: children}, nil

	case "not":
		cm, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w at %s: expected a mapping", ErrMalformed, at)
		}
		child, err := parseNode(cm, at)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil

	case "equals", "not_equals", "contains":
		key, value, err := keyValue(arg, "value", at)
		if err != nil {
			return nil, err
		}
		switch op {
		case "equals":
			return Equals{Key: key, Value: normalize(value)}, nil
		case "not_equals":
			return NotEquals{Key: key, Value: normalize(value)}, nil
		default:
			return Contains{Key: key, Value: normalize(value)}, nil
		}

	case "in":
		key, value, err := keyValue(arg, "values", at)
		if err != nil {
			return nil, err
		}
		values, ok := normalize(value).([]any)
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("%w at %s: values must be a non-empty list", ErrMalformed, at)
		}
		return In{Key: key, Values: values}, nil

	case "is_true", "is_false", "exists":
		key, err := keyOnly(arg, at)
		if err != nil {
			return nil, err
		}
		switch op {
		case "is_true":
			return IsTrue{Key: key}, nil
		case "is_false":
			return IsFalse{Key: key}, nil
		default:
			return Exists{Key: key}, nil
		}

	case "has_tag":
		tag, ok := arg.(string)
		if !ok || tag == "" {
			return nil, fmt.Errorf("%w at %s: expected a tag name", ErrMalformed, at)
		}
		return HasTag{Tag: tag}, nil
	}

	return nil, fmt.Errorf("%w at %s: unknown operator %q (want one of %v)", ErrMalformed, path, op, Operators)
}

// keyValue accepts {key: k, <field>: v} or the shorthand [k, v].
func keyValue(arg any, field, at string) (string, any, error) {
	if list, ok := arg.([]any); ok {
		if len(list) != 2 {
			return "", nil, fmt.Errorf("%w at %s: expected [key, %s]", ErrMalformed, at, field)
		}
		key, ok := list[0].(string)
		if !ok || key == "" {
			return "", nil, fmt.Errorf("%w at %s: key must be a string", ErrMalformed, at)
		}
		return key, list[1], nil
	}
	m, ok := asMap(arg)
	if !ok {
		return "", nil, fmt.Errorf("%w at %s: expected {key, %s}", ErrMalformed, at, field)
	}
	key, ok := m["key"].(string)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("%w at %s: key must be a string", ErrMalformed, at)
	}
	value, ok := m[field]
	if !ok {
		return "", nil, fmt.Errorf("%w at %s: missing %s", ErrMalformed, at, field)
	}
	for k := range m {
		if k != "key" && k != field {
			return "", nil, fmt.Errorf("%w at %s: unexpected field %q", ErrMalformed, at, k)
		}
	}
	return key, value, nil
}

func keyOnly(arg any, at string) (string, error) {
	if key, ok := arg.(string); ok && key != "" {
		return key, nil
	}
	if m, ok := asMap(arg); ok && len(m) == 1 {
		if key, ok := m["key"].(string); ok && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w at %s: expected a key", ErrMalformed, at)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = e
		}
		return out, true
	}
	return nil, false
}
