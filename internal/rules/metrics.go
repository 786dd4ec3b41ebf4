package rules

import "strings"

// Metrics is the read-only view the evaluator resolves `var` paths against.
type Metrics interface {
	Get(path string) (any, bool)
}

// Map is a nested string-keyed mapping walked one dotted segment at a time.
type Map map[string]any

// Get resolves a dotted path such as "cronograma.atrasadas". Every segment,
// including an empty one, must name an existing key.
func (m Map) Get(path string) (any, bool) {
	var cur any = map[string]any(m)
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = next
		case Map:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}
