// Package report assembles persisted run data into the HTML informe and
// audience-specific rewrites of it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/visuals"
)

// Reader is the read side of the run store.
type Reader interface {
	GetRun(ctx context.Context, runID string) (*analysis.Run, error)
	ListMetrics(ctx context.Context, runID string) ([]analysis.DomainMetrics, error)
	ListCases(ctx context.Context, runID string) ([]cases.Instance, error)
	ListSections(ctx context.Context, runID string) ([]analysis.Section, error)
	ListRuns(ctx context.Context, f analysis.RunFilter) ([]analysis.Run, error)
}

// Informe is everything persisted for one run, with domain metrics decoded
// back into their typed form. Domains that were never written stay nil.
type Informe struct {
	Run        analysis.Run
	Cronograma *analysis.ScheduleMetrics
	Recursos   *analysis.ResourceMetrics
	Finanzas   *analysis.FinanceMetrics
	Secciones  []analysis.Section
	Casos      []cases.Instance
}

// Scores returns the domain scores behind the overall score, using the fixed
// placeholder values for flujo and riesgos.
func (inf *Informe) Scores() analysis.DomainScores {
	s := analysis.DomainScores{Flujo: analysis.FlujoScore, Riesgos: analysis.RiesgosScore}
	if inf.Cronograma != nil {
		s.Cronograma = inf.Cronograma.Score
	}
	if inf.Recursos != nil {
		s.Recursos = inf.Recursos.Score
	}
	if inf.Finanzas != nil {
		s.Finanzas = inf.Finanzas.Score
	}
	return s
}

// Charts returns the Mermaid definitions available for this informe, in
// display order.
func (inf *Informe) Charts() []string {
	var charts []string
	if inf.Run.Estado == analysis.RunCompleted {
		charts = append(charts, visuals.GenerateScoreChart(visuals.ScoreBars(inf.Scores())))
	}
	if inf.Cronograma != nil {
		charts = append(charts, visuals.GenerateTaskStatusPie(*inf.Cronograma))
	}
	if inf.Recursos != nil {
		charts = append(charts, visuals.GenerateWorkloadChart(inf.Recursos.Detalle))
	}
	if inf.Finanzas != nil {
		charts = append(charts, visuals.GenerateEVMChart(*inf.Finanzas))
	}

	out := charts[:0]
	for _, c := range charts {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Service serves informes and rewrites from a run store.
type Service struct {
	reader    Reader
	completer Completer
	now       func() time.Time
}

// NewService creates a report service. completer may be nil, in which case
// Rewrite reports ErrRewriterDisabled.
func NewService(reader Reader, completer Completer) *Service {
	return &Service{reader: reader, completer: completer, now: time.Now}
}

// Load reads a run and all of its persisted artefacts.
func (s *Service) Load(ctx context.Context, runID string) (*Informe, error) {
	run, err := s.reader.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	inf := &Informe{Run: *run}

	metrics, err := s.reader.ListMetrics(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	for _, dm := range metrics {
		var target any
		switch dm.Dominio {
		case progress.StageCronograma:
			inf.Cronograma = &analysis.ScheduleMetrics{}
			target = inf.Cronograma
		case progress.StageRecursos:
			inf.Recursos = &analysis.ResourceMetrics{}
			target = inf.Recursos
		case progress.StageFinanzas:
			inf.Finanzas = &analysis.FinanceMetrics{}
			target = inf.Finanzas
		default:
			log.Debug().Str("run", runID).Str("dominio", dm.Dominio).Msg("Ignoring metrics for unknown domain")
			continue
		}
		if err := decodeMetrics(dm.Metricas, target); err != nil {
			return nil, fmt.Errorf("decode %s metrics: %w", dm.Dominio, err)
		}
	}

	if inf.Secciones, err = s.reader.ListSections(ctx, runID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	if inf.Casos, err = s.reader.ListCases(ctx, runID); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return inf, nil
}

// ListRuns passes a filtered run listing through from the store.
func (s *Service) ListRuns(ctx context.Context, f analysis.RunFilter) ([]analysis.Run, error) {
	return s.reader.ListRuns(ctx, f)
}

// decodeMetrics accepts the typed struct written in process, a decoded
// history map or raw JSON from the database.
func decodeMetrics(src, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, dst)
}
