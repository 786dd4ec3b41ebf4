package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/report"
)

const dateLayout = "2006-01-02"

// RunSummary is the tool-facing view of a run.
type RunSummary struct {
	RunID     string            `json:"run_id"`
	Proyecto  string            `json:"proyecto"`
	Estado    analysis.RunState `json:"estado"`
	Score     float64           `json:"score,omitempty"`
	Semaforo  string            `json:"semaforo,omitempty"`
	Resumen   string            `json:"resumen,omitempty"`
	Error     string            `json:"error,omitempty"`
	CaseError string            `json:"case_error,omitempty"`
	Inicio    time.Time         `json:"inicio"`
	Fin       *time.Time        `json:"fin,omitempty"`
}

func summarize(r *analysis.Run) RunSummary {
	return RunSummary{
		RunID:     r.ID,
		Proyecto:  r.ProyectoNombre,
		Estado:    r.Estado,
		Score:     r.Score,
		Semaforo:  r.Semaforo,
		Resumen:   r.Resumen,
		Error:     r.Error,
		CaseError: r.CaseError,
		Inicio:    r.Inicio,
		Fin:       r.Fin,
	}
}

func (s *Server) handleAnalyzeProject(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeProjectInput) (*mcp.CallToolResult, any, error) {
	if in.ProjectID <= 0 {
		return nil, nil, fmt.Errorf("project_id must be a positive integer")
	}
	mode := in.Mode
	if mode == "" {
		mode = s.defaultMode
	}

	if in.Async {
		job, err := s.analyzer.Prepare(ctx, in.ProjectID, mode)
		if err != nil {
			return nil, nil, err
		}
		started := summarize(job.Run)
		// The run outlives this request; it keeps the request values but not
		// its cancellation.
		bg := context.WithoutCancel(ctx)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if _, err := s.analyzer.Execute(bg, job); err != nil {
				log.Error().Err(err).Str("run", started.RunID).Msg("Background analysis failed")
			}
		}()
		return WrapResponse(started,
			fmt.Sprintf("Poll 'progress_get' with run_id %q until the state is completed or failed.", started.RunID))
	}

	run, err := s.analyzer.AnalyzeProject(ctx, in.ProjectID, mode)
	if err != nil {
		var perr *analysis.PipelineError
		if errors.As(err, &perr) && run != nil {
			return nil, nil, fmt.Errorf("run %s closed as failed: %w", run.ID, err)
		}
		return nil, nil, err
	}

	guidance := []string{fmt.Sprintf("Call 'get_informe_html' with run_id %q for the full informe.", run.ID)}
	if run.CaseError != "" {
		guidance = append(guidance, "Some narrative cases could not be generated; the scores are complete but the case list may be partial.")
	}
	return WrapResponse(summarize(run), guidance...)
}

func (s *Server) handleProgressGet(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, any, error) {
	if err := requireRunID(in.RunID); err != nil {
		return nil, nil, err
	}
	rec, err := s.progress.Get(ctx, in.RunID)
	if err != nil {
		return nil, nil, err
	}
	return WrapResponse(rec)
}

func (s *Server) handleGetInformeHTML(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, any, error) {
	if err := requireRunID(in.RunID); err != nil {
		return nil, nil, err
	}
	page, err := s.reports.InformeHTML(ctx, in.RunID)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: page}},
	}, nil, nil
}

func (s *Server) handleGetReportes(ctx context.Context, _ *mcp.CallToolRequest, in ListReportsInput) (*mcp.CallToolResult, any, error) {
	filter, err := in.filter()
	if err != nil {
		return nil, nil, err
	}
	runs, err := s.reports.ListRuns(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	out := make([]RunSummary, 0, len(runs))
	for i := range runs {
		out = append(out, summarize(&runs[i]))
	}
	var guidance []string
	if len(out) == filter.EffectiveLimit() {
		guidance = append(guidance, "The listing hit the limit; narrow the filters or raise 'limit' to see older runs.")
	}
	return WrapResponse(out, guidance...)
}

func (s *Server) handleRewriteReport(ctx context.Context, _ *mcp.CallToolRequest, in RewriteReportInput) (*mcp.CallToolResult, any, error) {
	if err := requireRunID(in.RunID); err != nil {
		return nil, nil, err
	}
	audience, err := report.ParseAudience(in.Audience)
	if err != nil {
		return nil, nil, err
	}
	rewritten, err := s.reports.Rewrite(ctx, in.RunID, audience)
	if err != nil {
		return nil, nil, err
	}
	return WrapResponse(rewritten)
}

func (in ListReportsInput) filter() (analysis.RunFilter, error) {
	f := analysis.RunFilter{
		ProyectoID:  in.ProjectID,
		SoloActivos: in.ActiveOnly,
		Estado:      analysis.RunState(strings.ToLower(in.State)),
		Semaforo:    strings.ToLower(in.Semaforo),
		Texto:       in.Search,
		Limite:      in.Limit,
	}
	var err error
	if in.From != "" {
		if f.Desde, err = time.ParseInLocation(dateLayout, in.From, time.Local); err != nil {
			return f, fmt.Errorf("invalid from date %q (want YYYY-MM-DD)", in.From)
		}
	}
	if in.To != "" {
		if f.Hasta, err = time.ParseInLocation(dateLayout, in.To, time.Local); err != nil {
			return f, fmt.Errorf("invalid to date %q (want YYYY-MM-DD)", in.To)
		}
	}
	if !f.Desde.IsZero() && !f.Hasta.IsZero() && !f.Desde.Before(f.Hasta) {
		return f, fmt.Errorf("from (%s) must be before to (%s)", in.From, in.To)
	}
	return f, nil
}

func requireRunID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("run_id is required")
	}
	return nil
}
