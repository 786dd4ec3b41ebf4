package report

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"time"

	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
)

//go:embed informe.html.tmpl
var informeSource string

// Section fragments are produced by goldmark without raw HTML passthrough,
// so they are trusted as-is.
var informeTemplate = template.Must(template.New("informe").Funcs(template.FuncMap{
	"fecha":         func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	"semaforoClass": semaforoClass,
	"severidad":     severityLabel,
	"safeHTML":      func(s string) template.HTML { return template.HTML(s) },
	"markdown":      renderCaseText,
}).Parse(informeSource))

// RenderInforme writes the informe page for a loaded run.
func RenderInforme(inf *Informe) (string, error) {
	var buf bytes.Buffer
	if err := informeTemplate.Execute(&buf, inf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InformeHTML loads a run and renders its informe page.
func (s *Service) InformeHTML(ctx context.Context, runID string) (string, error) {
	inf, err := s.Load(ctx, runID)
	if err != nil {
		return "", err
	}
	return RenderInforme(inf)
}

func semaforoClass(s string) string {
	switch s {
	case analysis.SemaforoVerde, analysis.SemaforoAmarillo, analysis.SemaforoRojo:
		return s
	}
	return "sin-dato"
}

func severityLabel(n int) string {
	switch {
	case n >= 3:
		return "alta"
	case n == 2:
		return "media"
	}
	return "baja"
}

// renderCaseText formats catalog text, whose paragraphs are separated by
// blank lines, as HTML. On a render error the text is escaped as-is.
func renderCaseText(text string) template.HTML {
	out, err := analysis.RenderMarkdown(text)
	if err != nil {
		log.Warn().Err(err).Msg("Rendering case text as plain paragraph")
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(out)
}
