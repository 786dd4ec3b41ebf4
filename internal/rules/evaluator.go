// Package rules evaluates the boolean expressions attached to case catalog
// entries. The language is a small JSONLogic subset: literal booleans, and/or,
// the four ordering comparisons and var lookups.
//
// Evaluation is total. Malformed rules, unknown operators and missing data all
// evaluate to false so a broken catalog entry never produces a case and never
// stops the pipeline.
package rules

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// Evaluate reports whether rule holds against metrics.
func Evaluate(rule any, metrics Metrics) bool {
	if metrics == nil {
		metrics = Map{}
	}

	switch r := rule.(type) {
	case bool:
		return r
	case map[string]any:
		return evalNode(r, metrics)
	case Map:
		return evalNode(r, metrics)
	case map[any]any:
		node, ok := stringKeys(r)
		if !ok {
			return false
		}
		return evalNode(node, metrics)
	default:
		return false
	}
}

func evalNode(node map[string]any, metrics Metrics) bool {
	if len(node) != 1 {
		return false
	}

	for op, arg := range node {
		switch op {
		case "and":
			args, ok := arg.([]any)
			if !ok {
				return false
			}
			for _, sub := range args {
				if !Evaluate(sub, metrics) {
					return false
				}
			}
			return true
		case "or":
			args, ok := arg.([]any)
			if !ok {
				return false
			}
			for _, sub := range args {
				if Evaluate(sub, metrics) {
					return true
				}
			}
			return false
		case ">", ">=", "<", "<=":
			return compare(op, arg, metrics)
		case "var":
			v, ok := resolveVar(arg, metrics)
			if !ok {
				return false
			}
			return truthy(v)
		}
	}
	return false
}

func compare(op string, arg any, metrics Metrics) bool {
	args, ok := arg.([]any)
	if !ok || len(args) != 2 {
		return false
	}

	a, ok := operand(args[0], metrics)
	if !ok {
		return false
	}
	b, ok := operand(args[1], metrics)
	if !ok {
		return false
	}

	if x, okX := toFloat(a); okX {
		y, okY := toFloat(b)
		if !okY || math.IsNaN(x) || math.IsNaN(y) {
			return false
		}
		return ordered(op, cmpFloat(x, y))
	}

	x, okX := a.(string)
	y, okY := b.(string)
	if !okX || !okY {
		return false
	}
	return ordered(op, strings.Compare(x, y))
}

func ordered(op string, c int) bool {
	switch op {
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// operand resolves a comparison argument; {"var": path} is looked up, anything
// else is taken literally.
func operand(v any, metrics Metrics) (any, bool) {
	var node map[string]any
	switch n := v.(type) {
	case map[string]any:
		node = n
	case Map:
		node = n
	case map[any]any:
		converted, ok := stringKeys(n)
		if !ok {
			return nil, false
		}
		node = converted
	case nil:
		return nil, false
	default:
		return v, true
	}

	path, ok := node["var"]
	if !ok || len(node) != 1 {
		return nil, false
	}
	return resolveVar(path, metrics)
}

// resolveVar accepts "a.b" or ["a.b"].
func resolveVar(arg any, metrics Metrics) (any, bool) {
	switch p := arg.(type) {
	case string:
		return metrics.Get(p)
	case []any:
		if len(p) == 0 {
			return nil, false
		}
		path, ok := p[0].(string)
		if !ok {
			return nil, false
		}
		return metrics.Get(path)
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	if s, ok := v.(string); ok {
		return s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func stringKeys(m map[any]any) (map[string]any, bool) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		s, ok := k.(string)
		if !ok {
			return nil, false
		}
		out[s] = v
	}
	return out, true
}
