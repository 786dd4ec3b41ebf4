package rules

import (
	"encoding/json"
	"testing"
)

func sampleMetrics() Map {
	return Map{
		"cronograma": Map{
			"atrasadas":       2,
			"avance_promedio": 50.0,
			"score":           79.5,
		},
		"finanzas": map[string]any{
			"cpi": json.Number("0.87"),
		},
		"proyecto": map[string]any{
			"nombre": "Cobranza Norte",
			"tags":   []any{},
		},
		"flags": map[string]any{
			"activo": true,
			"nulo":   nil,
		},
	}
}

func TestEvaluate(t *testing.T) {
	m := sampleMetrics()

	tests := []struct {
		name string
		rule any
		want bool
	}{
		{"LiteralTrue", true, true},
		{"LiteralFalse", false, false},
		{"EmptyAnd", map[string]any{"and": []any{}}, true},
		{"EmptyOr", map[string]any{"or": []any{}}, false},
		{"GreaterVarLiteral", map[string]any{">": []any{map[string]any{"var": "cronograma.atrasadas"}, 1}}, true},
		{"GreaterEqualBoundary", map[string]any{">=": []any{map[string]any{"var": "cronograma.atrasadas"}, 2}}, true},
		{"LessThanFalse", map[string]any{"<": []any{map[string]any{"var": "cronograma.score"}, 70}}, false},
		{"LessEqualJSONNumber", map[string]any{"<=": []any{map[string]any{"var": "finanzas.cpi"}, 0.9}}, true},
		{"VarVsVar", map[string]any{">": []any{map[string]any{"var": "cronograma.score"}, map[string]any{"var": "cronograma.avance_promedio"}}}, true},
		{"MissingPathFailsClosed", map[string]any{">": []any{map[string]any{"var": "missing.path"}, 5}}, false},
		{"MissingPathFailsClosedLess", map[string]any{"<": []any{map[string]any{"var": "missing.path"}, 5}}, false},
		{"NilValueFailsClosed", map[string]any{"<": []any{map[string]any{"var": "flags.nulo"}, 5}}, false},
		{"StringComparison", map[string]any{">": []any{map[string]any{"var": "proyecto.nombre"}, "A"}}, true},
		{"MixedTypes", map[string]any{">": []any{map[string]any{"var": "proyecto.nombre"}, 3}}, false},
		{"VarTruthy", map[string]any{"var": "flags.activo"}, true},
		{"VarEmptyList", map[string]any{"var": "proyecto.tags"}, false},
		{"VarListForm", map[string]any{"var": []any{"cronograma.atrasadas"}}, true},
		{"VarMissing", map[string]any{"var": "nope"}, false},
		{"VarEmptyPath", map[string]any{"var": ""}, false},
		{"EmptyPathComparison", map[string]any{">": []any{map[string]any{"var": ""}, 0}}, false},
		{"UnknownOperator", map[string]any{"==": []any{1, 1}}, false},
		{"MultiKey", map[string]any{"and": []any{}, "or": []any{}}, false},
		{"WrongArity", map[string]any{">": []any{1}}, false},
		{"NonListArgs", map[string]any{"and": true}, false},
		{"Scalar", 42, false},
		{"Nil", nil, false},
		{"Nested", map[string]any{"and": []any{
			map[string]any{">": []any{map[string]any{"var": "cronograma.atrasadas"}, 0}},
			map[string]any{"or": []any{
				false,
				map[string]any{"<": []any{map[string]any{"var": "cronograma.avance_promedio"}, 60}},
			}},
		}}, true},
		{"AndShortCircuitFalse", map[string]any{"and": []any{true, false, true}}, false},
		{"YAMLStyleKeys", map[any]any{">": []any{map[any]any{"var": "cronograma.atrasadas"}, 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.rule, m); got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func TestEvaluate_NilMetrics(t *testing.T) {
	if !Evaluate(map[string]any{"and": []any{}}, nil) {
		t.Error("empty and should hold without metrics")
	}
	if Evaluate(map[string]any{"var": "x"}, nil) {
		t.Error("var should fail closed without metrics")
	}
}

func TestParse(t *testing.T) {
	rule, err := Parse(`{"and":[{">":[{"var":"cronograma.atrasadas"},1]},{"<":[{"var":"cronograma.score"},80]}]}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !Evaluate(rule, sampleMetrics()) {
		t.Error("parsed rule should match sample metrics")
	}

	if _, err := Parse(`{"and": [`); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if got := MustParse(`not json`); Evaluate(got, sampleMetrics()) {
		t.Error("MustParse of garbage must evaluate to false")
	}
	if got := MustParse(""); got != false {
		t.Errorf("MustParse(\"\") = %v, want false", got)
	}

	yamlTree := map[any]any{"or": []any{map[any]any{"var": "flags.activo"}}}
	parsed, err := Parse(yamlTree)
	if err != nil {
		t.Fatalf("Parse(yaml tree) error = %v", err)
	}
	if !Evaluate(parsed, sampleMetrics()) {
		t.Error("normalized YAML tree should evaluate true")
	}
}

func TestMapGet(t *testing.T) {
	m := sampleMetrics()
	if v, ok := m.Get("cronograma.atrasadas"); !ok || v != 2 {
		t.Errorf("Get(cronograma.atrasadas) = %v, %v", v, ok)
	}
	if _, ok := m.Get("cronograma.atrasadas.extra"); ok {
		t.Error("walking past a leaf must fail")
	}
	if _, ok := m.Get("flags.nulo"); ok {
		t.Error("nil leaf must count as missing")
	}
	if v, ok := m.Get(""); ok {
		t.Errorf("Get(\"\") = %v, want missing", v)
	}
	if _, ok := m.Get("cronograma."); ok {
		t.Error("trailing empty segment must fail")
	}
	if v, ok := (Map{"": 1}).Get(""); !ok || v != 1 {
		t.Errorf("Get(\"\") on an empty key = %v, %v", v, ok)
	}
}
