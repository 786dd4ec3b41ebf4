package analysis

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"analisis-mcp/internal/progress"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown

	htmlTag = regexp.MustCompile(`<[^>]*>`)
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// RenderMarkdown converts a Markdown fragment to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainText strips tags from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	return strings.Join(strings.Fields(html.UnescapeString(htmlTag.ReplaceAllString(fragment, " "))), " ")
}

// WordCount counts the visible words of an HTML fragment.
func WordCount(fragment string) int {
	return len(strings.Fields(PlainText(fragment)))
}

// BuildSections renders the fixed cronograma, recursos and finanzas report
// sections for a snapshot.
func BuildSections(runID string, s Snapshot) ([]Section, error) {
	c, r, f := s.Cronograma, s.Recursos, s.Finanzas
	sources := []struct {
		key, title, md string
	}{
		{
			progress.StageCronograma, "Cronograma & Tareas",
			bullets(
				fmt.Sprintf("**Tareas hoja analizadas:** %d", c.Total),
				fmt.Sprintf("**Atrasadas:** %d (%s%%)", c.Atrasadas, num(c.PctAtrasadas*100)),
				fmt.Sprintf("**En riesgo (≤3 días y <80%%):** %d", c.EnRiesgo),
				fmt.Sprintf("**Completadas:** %d", c.Completadas),
				fmt.Sprintf("**Avance promedio:** %s%%", num(c.AvancePromedio)),
				fmt.Sprintf("**Tareas en ruta crítica (estimada):** %d", c.RutaCritica),
				fmt.Sprintf("**Puntaje de cronograma:** %s", num(c.Score)),
			),
		},
		{
			progress.StageRecursos, "Recursos & Capacidad",
			bullets(
				fmt.Sprintf("**Personas asignadas:** %d", r.Personas),
				fmt.Sprintf("**Utilización promedio:** %s", num(r.UtilizacionPromedio)),
				fmt.Sprintf("**Sobrecargadas:** %d", r.Sobrecargados),
				fmt.Sprintf("**Subutilizadas:** %d", r.Subutilizados),
				fmt.Sprintf("**Balanceadas:** %d", r.Balanceados),
				fmt.Sprintf("**Puntaje de recursos:** %s", num(r.Score)),
			),
		},
		{
			progress.StageFinanzas, "Finanzas (EVM)",
			bullets(
				fmt.Sprintf("**BAC:** $%s", num(f.BAC)),
				fmt.Sprintf("**PV / EV / AC:** $%s / $%s / $%s", num(f.PV), num(f.EV), num(f.AC)),
				fmt.Sprintf("**CPI:** %s · **SPI:** %s", num(f.CPI), num(f.SPI)),
				fmt.Sprintf("**EAC:** $%s · **VAC:** $%s", num(f.EAC), num(f.VAC)),
				fmt.Sprintf("**Tasa de consumo:** $%s por hora planeada", num(f.BurnRate)),
				fmt.Sprintf("**Puntaje financiero:** %s", num(f.Score)),
			),
		},
	}

	sections := make([]Section, 0, len(sources))
	for i, src := range sources {
		body, err := RenderMarkdown(src.md)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", src.key, err)
		}
		sections = append(sections, Section{
			RunID:    runID,
			Clave:    src.key,
			Titulo:   src.title,
			HTML:     body,
			Palabras: WordCount(body),
			Orden:    i + 1,
		})
	}
	return sections, nil
}

func bullets(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
