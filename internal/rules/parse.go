package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parse normalizes a rule coming from a catalog. Catalog rows store the tree
// serialized as JSON; YAML catalogs may embed it directly. Numbers are kept as
// json.Number so integer thresholds survive untouched.
func Parse(raw any) (any, error) {
	switch r := raw.(type) {
	case nil:
		return false, nil
	case string:
		return decode([]byte(r))
	case []byte:
		return decode(r)
	case json.RawMessage:
		return decode(r)
	default:
		return normalize(raw), nil
	}
}

// MustParse is Parse that maps any error to the always-false rule.
func MustParse(raw any) any {
	rule, err := Parse(raw)
	if err != nil {
		return false
	}
	return rule
}

func decode(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var rule any
	if err := dec.Decode(&rule); err != nil {
		return false, fmt.Errorf("decode rule %q: %w", truncate(string(b), 80), err)
	}
	return rule, nil
}

// normalize turns map[any]any nodes (older YAML decoders) into map[string]any.
func normalize(v any) any {
	switch n := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
