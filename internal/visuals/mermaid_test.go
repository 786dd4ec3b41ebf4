package visuals

import (
	"strings"
	"testing"

	"analisis-mcp/internal/analysis"
)

func TestGenerateScoreChart(t *testing.T) {
	chart := GenerateScoreChart(ScoreBars(analysis.DomainScores{Cronograma: 79.5, Recursos: 100, Finanzas: 58.9, Flujo: 70, Riesgos: 78}))

	for _, want := range []string{
		"xychart-beta",
		`x-axis ["Cronograma", "Recursos", "Finanzas", "Flujo", "Riesgos", "Calidad"]`,
		"bar [79.5, 100.0, 58.9, 70.0, 78.0, 90.0]",
		"line [75, 75, 75, 75, 75, 75]",
	} {
		if !strings.Contains(chart, want) {
			t.Errorf("GenerateScoreChart() missing %q in:\n%s", want, chart)
		}
	}
	if GenerateScoreChart(nil) != "" {
		t.Error("GenerateScoreChart(nil) should be empty")
	}
}

func TestGenerateTaskStatusPie(t *testing.T) {
	m := analysis.ScheduleMetrics{
		Total: 4,
		Tareas: []analysis.TaskDetail{
			{Completada: true},
			{Atrasada: true, EnRiesgo: true},
			{EnRiesgo: true},
			{},
		},
	}
	chart := GenerateTaskStatusPie(m)
	for _, want := range []string{`"Completadas" : 1`, `"Atrasadas" : 1`, `"En riesgo" : 1`, `"Al día" : 1`} {
		if !strings.Contains(chart, want) {
			t.Errorf("GenerateTaskStatusPie() missing %q in:\n%s", want, chart)
		}
	}
	if GenerateTaskStatusPie(analysis.ScheduleMetrics{}) != "" {
		t.Error("empty schedule should produce no chart")
	}
}

func TestGenerateWorkloadChart(t *testing.T) {
	chart := GenerateWorkloadChart([]analysis.PersonLoad{
		{UsuarioID: 1, Nombre: "Ana", HorasPlan: 8},
		{UsuarioID: 2, HorasPlan: 24},
	})
	if !strings.Contains(chart, `x-axis ["Usuario 2", "Ana"]`) {
		t.Errorf("people not ordered by load:\n%s", chart)
	}
	if !strings.Contains(chart, "bar [24, 8]") {
		t.Errorf("unexpected bars:\n%s", chart)
	}
}

func TestGenerateEVMChart(t *testing.T) {
	chart := GenerateEVMChart(analysis.FinanceMetrics{BAC: 3600000, PV: 1800000, EV: 1620000, AC: 1872000, EAC: 4137931.03})
	if !strings.Contains(chart, "bar [3.60, 1.80, 1.62, 1.87, 4.14]") {
		t.Errorf("unexpected EVM bars:\n%s", chart)
	}
	if GenerateEVMChart(analysis.FinanceMetrics{}) != "" {
		t.Error("zero budget should produce no chart")
	}
}

func TestFence(t *testing.T) {
	if got := Fence("pie"); got != "```mermaid\npie\n```" {
		t.Errorf("Fence() = %q", got)
	}
	if Fence("") != "" {
		t.Error("Fence(\"\") should be empty")
	}
}
