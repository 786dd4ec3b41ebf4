package mcp

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/report"
)

type AnalyzeProjectInput struct {
	ProjectID int64  `json:"project_id" jsonschema:"ID of the project to analyse"`
	Mode      string `json:"mode,omitempty" jsonschema:"Narrative mode: 'ejecutivo' hides technical cases, 'completo' (default) keeps all"`
	Async     bool   `json:"async,omitempty" jsonschema:"If true, return the run id immediately and poll progress_get"`
}

type RunInput struct {
	RunID string `json:"run_id" jsonschema:"Run id returned by analyze_project"`
}

type ListReportsInput struct {
	ProjectID  int64  `json:"project_id,omitempty" jsonschema:"Only runs of this project"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"Only runs of active projects"`
	State      string `json:"state,omitempty" jsonschema:"Run state: running, completed or failed"`
	Semaforo   string `json:"semaforo,omitempty" jsonschema:"Traffic light: verde, amarillo or rojo"`
	From       string `json:"from,omitempty" jsonschema:"Runs started on or after this date (YYYY-MM-DD)"`
	To         string `json:"to,omitempty" jsonschema:"Runs started before this date (YYYY-MM-DD)"`
	Search     string `json:"search,omitempty" jsonschema:"Free text matched against project name and summary"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum runs returned (default 50, max 500)"`
}

type RewriteReportInput struct {
	RunID    string `json:"run_id" jsonschema:"Run id of a completed analysis"`
	Audience string `json:"audience,omitempty" jsonschema:"Target audience: 'ejecutivo' (default) or 'tecnico'"`
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "analyze_project",
		Description: "Run the project health analysis (schedule, resources, EVM finance) and generate the prioritised narrative cases. " +
			"Returns the closed run with its global score and semaforo. With async=true the run id is returned at once; " +
			"poll 'progress_get' and then read the result with 'get_informe_html'.",
		InputSchema: mustSchema[AnalyzeProjectInput](func(sc *jsonschema.Schema) {
			sc.Properties["mode"].Enum = []any{cases.ModeEjecutivo, cases.ModeCompleto}
		}),
	}, s.handleAnalyzeProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "progress_get",
		Description: "Get the per-stage progress of an analysis run: global state, percent and stage states.",
		InputSchema: mustSchema[RunInput](nil),
	}, s.handleProgressGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_informe_html",
		Description: "Render the HTML informe of a run: header, semaforo, domain sections, charts and cases.",
		InputSchema: mustSchema[RunInput](nil),
	}, s.handleGetInformeHTML)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_reportes",
		Description: "List historical analysis runs, newest first, filtered by project, state, semaforo, date range or free text.",
		InputSchema: mustSchema[ListReportsInput](func(sc *jsonschema.Schema) {
			sc.Properties["state"].Enum = []any{string(analysis.RunRunning), string(analysis.RunCompleted), string(analysis.RunFailed)}
			sc.Properties["semaforo"].Enum = []any{analysis.SemaforoVerde, analysis.SemaforoAmarillo, analysis.SemaforoRojo}
		}),
	}, s.handleGetReportes)

	mcp.AddTool(server, &mcp.Tool{
		Name: "rewrite_report",
		Description: "Retell a completed run's informe for an executive or technical audience. " +
			"Only the persisted sections and cases are used as source; requires the rewriter to be configured.",
		InputSchema: mustSchema[RewriteReportInput](func(sc *jsonschema.Schema) {
			sc.Properties["audience"].Enum = []any{string(report.AudienceEjecutivo), string(report.AudienceTecnico)}
		}),
	}, s.handleRewriteReport)
}

// mustSchema infers the input schema of T and lets the caller refine it.
func mustSchema[T any](refine func(*jsonschema.Schema)) *jsonschema.Schema {
	sc, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("schema for %T: %v", *new(T), err))
	}
	if refine != nil {
		refine(sc)
	}
	return sc
}
