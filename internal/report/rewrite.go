package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
)

// Audience selects the register of a rewritten report.
type Audience string

const (
	AudienceEjecutivo Audience = "ejecutivo"
	AudienceTecnico   Audience = "tecnico"
)

var (
	ErrRewriterDisabled = errors.New("report rewriting is not configured")
	ErrRunNotCompleted  = errors.New("run is not completed")
	ErrUnknownAudience  = errors.New("unknown audience")
)

// ParseAudience accepts the audience names with or without accents and
// defaults to the executive register.
func ParseAudience(s string) (Audience, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ejecutivo", "ejecutiva":
		return AudienceEjecutivo, nil
	case "tecnico", "técnico", "tecnica", "técnica":
		return AudienceTecnico, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAudience, s)
}

// Completer turns a system prompt and a user prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// RewrittenReport is an informe retold for one audience.
type RewrittenReport struct {
	RunID      string    `json:"run_id"`
	Audiencia  Audience  `json:"audiencia"`
	Texto      string    `json:"texto"`
	HTML       string    `json:"html"`
	GeneradoEn time.Time `json:"generado_en"`
}

// Rewrite retells a completed run for the given audience. The source text is
// built from the persisted sections and cases only.
func (s *Service) Rewrite(ctx context.Context, runID string, audience Audience) (*RewrittenReport, error) {
	if s.completer == nil {
		return nil, ErrRewriterDisabled
	}
	inf, err := s.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if inf.Run.Estado != analysis.RunCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotCompleted, runID, inf.Run.Estado)
	}

	started := s.now()
	text, err := s.completer.Complete(ctx, systemPrompt(audience), SourceText(inf))
	if err != nil {
		return nil, fmt.Errorf("rewrite run %s: %w", runID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("rewrite run %s: empty completion", runID)
	}

	body, err := analysis.RenderMarkdown(text)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run", runID).
		Str("audience", string(audience)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Report rewritten")

	return &RewrittenReport{
		RunID:      runID,
		Audiencia:  audience,
		Texto:      text,
		HTML:       body,
		GeneradoEn: s.now(),
	}, nil
}

func systemPrompt(audience Audience) string {
	base := "Eres un analista de PMO. Reescribe el informe de salud del proyecto en español, en Markdown, " +
		"sin inventar cifras ni hechos que no estén en el texto fuente."
	if audience == AudienceTecnico {
		return base + " La audiencia es el equipo técnico: conserva todas las métricas, explica las causas " +
			"de cada caso y detalla las acciones por responsable."
	}
	return base + " La audiencia es la dirección: máximo cinco párrafos breves, empieza por el semáforo " +
		"y el puntaje global, y cierra con las tres decisiones más urgentes."
}

// SourceText flattens an informe into the plain text handed to the rewriter.
func SourceText(inf *Informe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", inf.Run.ProyectoNombre)
	fmt.Fprintf(&b, "Semáforo: %s. Puntaje global: %.2f.\n", inf.Run.Semaforo, inf.Run.Score)
	if inf.Run.Resumen != "" {
		fmt.Fprintf(&b, "%s\n", inf.Run.Resumen)
	}

	for _, sec := range inf.Secciones {
		fmt.Fprintf(&b, "\n## %s\n%s\n", sec.Titulo, analysis.PlainText(sec.HTML))
	}

	if len(inf.Casos) > 0 {
		b.WriteString("\n## Casos\n")
	}
	for _, c := range inf.Casos {
		fmt.Fprintf(&b, "\n### %d. %s (%s, severidad %s)\n", c.OrdenNarrativo, c.Titulo, c.Modulo, severityLabel(c.Severidad))
		for _, part := range []string{c.Lead, c.Cuerpo} {
			if part != "" {
				fmt.Fprintf(&b, "%s\n", part)
			}
		}
		if c.Accion != "" {
			fmt.Fprintf(&b, "Acción: %s\n", c.Accion)
		}
		if c.KPI != "" {
			fmt.Fprintf(&b, "KPI: %s\n", c.KPI)
		}
	}
	return b.String()
}

const (
	DefaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 2048
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a completer. An empty model selects
// DefaultModel.
func NewAnthropicCompleter(apiKey, model string, opts ...option.RequestOption) *AnthropicCompleter {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
