// Package visuals renders Mermaid chart definitions for analysis reports.
// Functions return the bare definition; Fence wraps it for Markdown output.
package visuals

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"analisis-mcp/internal/analysis"
)

// Fence wraps a chart definition in a mermaid code fence.
func Fence(chart string) string {
	if chart == "" {
		return ""
	}
	return "```mermaid\n" + chart + "\n```"
}

// DomainScore is one bar of the domain score chart.
type DomainScore struct {
	Label string
	Score float64
}

// ScoreBars builds the per-domain health chart from a run snapshot.
func ScoreBars(s analysis.DomainScores) []DomainScore {
	return []DomainScore{
		{"Cronograma", s.Cronograma},
		{"Recursos", s.Recursos},
		{"Finanzas", s.Finanzas},
		{"Flujo", s.Flujo},
		{"Riesgos", s.Riesgos},
		{"Calidad", analysis.CalidadScore},
	}
}

// GenerateScoreChart creates an xychart-beta bar chart of domain scores with
// the green threshold drawn as a line.
func GenerateScoreChart(scores []DomainScore) string {
	if len(scores) == 0 {
		return ""
	}

	var labels, values, threshold []string
	for _, s := range scores {
		labels = append(labels, fmt.Sprintf("%q", s.Label))
		values = append(values, fmt.Sprintf("%.1f", s.Score))
		threshold = append(threshold, "75")
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Salud por dominio\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Puntaje\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]", strings.Join(threshold, ", ")))
	return sb.String()
}

// GenerateTaskStatusPie splits leaf tasks into completed, overdue, at risk and
// on track. Overdue wins over at risk for a task that is both.
func GenerateTaskStatusPie(m analysis.ScheduleMetrics) string {
	if m.Total == 0 {
		return ""
	}

	var done, late, risk, ok int
	for _, t := range m.Tareas {
		switch {
		case t.Completada:
			done++
		case t.Atrasada:
			late++
		case t.EnRiesgo:
			risk++
		default:
			ok++
		}
	}

	var sb strings.Builder
	sb.WriteString("pie title Estado de tareas hoja\n")
	sb.WriteString(fmt.Sprintf("    \"Completadas\" : %d\n", done))
	sb.WriteString(fmt.Sprintf("    \"Atrasadas\" : %d\n", late))
	sb.WriteString(fmt.Sprintf("    \"En riesgo\" : %d\n", risk))
	sb.WriteString(fmt.Sprintf("    \"Al día\" : %d", ok))
	return sb.String()
}

// GenerateWorkloadChart creates a bar chart of planned hours for the most
// loaded people (top 15).
func GenerateWorkloadChart(people []analysis.PersonLoad) string {
	if len(people) == 0 {
		return ""
	}

	sorted := slices.Clone(people)
	slices.SortStableFunc(sorted, func(a, b analysis.PersonLoad) int {
		return cmp.Compare(b.HorasPlan, a.HorasPlan)
	})
	limit := min(15, len(sorted))

	var labels, values []string
	maxH := 0.0
	for _, p := range sorted[:limit] {
		name := p.Nombre
		if name == "" {
			name = fmt.Sprintf("Usuario %d", p.UsuarioID)
		}
		labels = append(labels, fmt.Sprintf("%q", name))
		values = append(values, fmt.Sprintf("%.0f", p.HorasPlan))
		maxH = math.Max(maxH, p.HorasPlan)
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Horas planeadas por persona\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Horas\" 0 --> %d\n", int(math.Ceil(maxH*1.2))+1))
	sb.WriteString(fmt.Sprintf("    bar [%s]", strings.Join(values, ", ")))
	return sb.String()
}

// GenerateEVMChart compares planned value, earned value and actual cost in
// millions of COP.
func GenerateEVMChart(m analysis.FinanceMetrics) string {
	if m.BAC == 0 {
		return ""
	}

	toM := func(v float64) string { return fmt.Sprintf("%.2f", v/1e6) }
	top := math.Ceil(m.BAC/1e6*1.1*100) / 100

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Valor ganado (millones COP)\"\n")
	sb.WriteString("    x-axis [\"BAC\", \"PV\", \"EV\", \"AC\", \"EAC\"]\n")
	sb.WriteString(fmt.Sprintf("    y-axis \"COP (M)\" 0 --> %.2f\n", math.Max(top, m.EAC/1e6*1.1)))
	sb.WriteString(fmt.Sprintf("    bar [%s, %s, %s, %s, %s]", toM(m.BAC), toM(m.PV), toM(m.EV), toM(m.AC), toM(m.EAC)))
	return sb.String()
}
