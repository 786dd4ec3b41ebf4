package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/rules"
)

const (
	DefaultStageTimeout = 2 * time.Minute
	domainWorkers       = 3
)

// StageError is the failure of one domain stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// PipelineError is returned when a domain stage failed and the run was
// closed as failed. Metrics persisted by the other stages are kept.
type PipelineError struct {
	RunID  string
	Stages []string
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("analysis run %s failed in %s: %v", e.RunID, strings.Join(e.Stages, ", "), e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Options tunes a Pipeline. Zero values select defaults.
type Options struct {
	StageTimeout time.Duration
	Observer     Observer
	Notifier     Notifier
}

// Pipeline runs the full analysis for one project at a time. It is safe for
// concurrent use; all per-run state lives in the Job.
type Pipeline struct {
	source       DataSource
	sink         Sink
	catalog      cases.Catalog
	tracker      progress.Store
	observer     Observer
	notifier     Notifier
	stageTimeout time.Duration
	now          func() time.Time
	newID        func() string
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(source DataSource, sink Sink, catalog cases.Catalog, tracker progress.Store, opts Options) *Pipeline {
	p := &Pipeline{
		source:       source,
		sink:         sink,
		catalog:      catalog,
		tracker:      tracker,
		observer:     opts.Observer,
		notifier:     opts.Notifier,
		stageTimeout: opts.StageTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.stageTimeout <= 0 {
		p.stageTimeout = DefaultStageTimeout
	}
	return p
}

// Job is a prepared run waiting to be executed.
type Job struct {
	Run     *Run
	Project *Project
}

// NormalizeMode maps user input to a narrative mode; unknown values select
// the complete narrative.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), cases.ModeEjecutivo) {
		return cases.ModeEjecutivo
	}
	return cases.ModeCompleto
}

// AnalyzeProject prepares and executes a run synchronously.
func (p *Pipeline) AnalyzeProject(ctx context.Context, projectID int64, mode string) (*Run, error) {
	job, err := p.Prepare(ctx, projectID, mode)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, job)
}

// Prepare looks the project up, creates the run row and seeds its progress.
// Nothing is persisted when the project does not exist.
func (p *Pipeline) Prepare(ctx context.Context, projectID int64, mode string) (*Job, error) {
	project, err := p.source.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("lookup project %d: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("lookup project %d: %w", projectID, ErrProjectNotFound)
	}

	run := &Run{
		ID:             p.newID(),
		ProyectoID:     project.ID,
		ProyectoNombre: project.Nombre,
		Modo:           NormalizeMode(mode),
		Estado:         RunRunning,
		Inicio:         p.now(),
	}
	if err := p.sink.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := p.tracker.Init(ctx, run.ID); err != nil {
		err = fmt.Errorf("init progress: %w", err)
		p.abandon(ctx, run, err)
		return nil, err
	}

	log.Info().Str("run", run.ID).Int64("project", project.ID).Str("mode", run.Modo).Msg("Analysis run created")
	return &Job{Run: run, Project: project}, nil
}

// Execute runs every stage of a prepared job and closes its run.
func (p *Pipeline) Execute(ctx context.Context, job *Job) (*Run, error) {
	run, project := job.Run, job.Project
	started := p.now()

	var (
		cron ScheduleMetrics
		rec  ResourceMetrics
		fin  FinanceMetrics
	)
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{progress.StageCronograma, func(ctx context.Context) (err error) {
			cron, err = p.scheduleStage(ctx, run)
			return err
		}},
		{progress.StageRecursos, func(ctx context.Context) (err error) {
			rec, err = p.resourceStage(ctx, run)
			return err
		}},
		{progress.StageFinanzas, func(ctx context.Context) (err error) {
			fin, err = p.financeStage(ctx, run)
			return err
		}},
	}

	// Every stage runs to its own end so the others still persist their
	// metrics; failures are gathered at the join.
	failures := make([]error, len(stages))
	var g errgroup.Group
	g.SetLimit(domainWorkers)
	for i, st := range stages {
		g.Go(func() error {
			failures[i] = p.runStage(ctx, run.ID, st.name, st.fn)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(failures...); err != nil {
		var names []string
		for i, f := range failures {
			if f != nil {
				names = append(names, stages[i].name)
			}
		}
		return run, p.fail(ctx, run, names, err, started)
	}

	p.placeholderStage(ctx, run.ID, progress.StageFlujo, fmt.Sprintf("Flujo de trabajo: puntaje provisional %s", num(FlujoScore)))
	p.placeholderStage(ctx, run.ID, progress.StageRiesgos, fmt.Sprintf("Riesgos: puntaje provisional %s", num(RiesgosScore)))

	snap := NewSnapshot(*project, cron, rec, fin)
	p.update(ctx, run.ID, progress.StageInforme, progress.Running("Informe: generando casos narrativos"))

	if n, err := p.generateCases(ctx, run, snap); err != nil {
		run.CaseError = err.Error()
		log.Warn().Err(err).Str("run", run.ID).Msg("Case generation failed, closing run anyway")
	} else {
		log.Debug().Str("run", run.ID).Int("cases", n).Msg("Cases persisted")
	}
	p.update(ctx, run.ID, progress.StageInforme, progress.StageUpdate{StepsDone: progress.Steps(1), Substage: progress.Text("casos")})

	if err := p.saveSections(ctx, run, snap); err != nil {
		run.CaseError = joinMessages(run.CaseError, err.Error())
		log.Warn().Err(err).Str("run", run.ID).Msg("Report sections failed, closing run anyway")
	}
	p.update(ctx, run.ID, progress.StageInforme, progress.StageUpdate{StepsDone: progress.Steps(2), Substage: progress.Text("secciones")})

	run.Score = Overall(snap.Scores())
	run.Semaforo = Semaforo(run.Score)
	run.Resumen = Summary(run.Semaforo)
	p.update(ctx, run.ID, progress.StageInforme, progress.StageUpdate{
		StepsDone: progress.Steps(3),
		Substage:  progress.Text("puntaje"),
		Message:   progress.Text(fmt.Sprintf("Informe: puntaje global %s (%s)", num(run.Score), run.Semaforo)),
	})

	end := p.now()
	run.Fin = &end
	run.Estado = RunCompleted
	if err := p.sink.CloseRun(ctx, run); err != nil {
		return run, p.fail(ctx, run, []string{progress.StageInforme}, fmt.Errorf("close run: %w", err), started)
	}
	p.update(ctx, run.ID, progress.StageInforme, progress.Done(progress.StageInforme, "Informe: listo"))
	if err := p.tracker.SetState(ctx, run.ID, progress.StateCompleted, "Análisis completado"); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("Failed to mark progress completed")
	}

	p.observer.RunFinished(RunCompleted, run.Semaforo, end.Sub(started))
	log.Info().
		Str("run", run.ID).
		Int64("project", run.ProyectoID).
		Float64("score", run.Score).
		Str("semaforo", run.Semaforo).
		Dur("elapsed", end.Sub(started)).
		Msg("Analysis run completed")

	if p.notifier != nil {
		if err := p.notifier.RunCompleted(ctx, run, project); err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("Run notification failed")
		}
	}
	return run, nil
}

// runStage applies the per-stage timeout and reports stage lifecycle.
func (p *Pipeline) runStage(ctx context.Context, runID, stage string, fn func(context.Context) error) error {
	start := p.now()
	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	p.update(ctx, runID, stage, progress.Running(stageLabel(stage)+": iniciando"))
	err := fn(sctx)
	if err == nil {
		err = sctx.Err()
	}
	p.observer.StageFinished(stage, p.now().Sub(start), err)
	if err != nil {
		log.Error().Err(err).Str("run", runID).Str("stage", stage).Msg("Stage failed")
		return &StageError{Stage: stage, Err: err}
	}
	log.Debug().Str("run", runID).Str("stage", stage).Dur("elapsed", p.now().Sub(start)).Msg("Stage done")
	return nil
}

func (p *Pipeline) scheduleStage(ctx context.Context, run *Run) (ScheduleMetrics, error) {
	stage := progress.StageCronograma
	tasks, err := p.source.ListTasks(ctx, run.ProyectoID)
	if err != nil {
		return ScheduleMetrics{}, fmt.Errorf("list tasks: %w", err)
	}
	p.step(ctx, run.ID, stage, 1, "datos")

	m := CalculateSchedule(tasks)
	p.step(ctx, run.ID, stage, 2, "calculo")

	if err := p.sink.SaveDomainMetrics(ctx, DomainMetrics{RunID: run.ID, Dominio: stage, Score: m.Score, Metricas: m}); err != nil {
		return m, fmt.Errorf("save metrics: %w", err)
	}
	p.update(ctx, run.ID, stage, progress.Done(stage, fmt.Sprintf(
		"Cronograma: %d tareas, %d atrasadas, %d en riesgo, puntaje %s", m.Total, m.Atrasadas, m.EnRiesgo, num(m.Score))))
	return m, nil
}

func (p *Pipeline) resourceStage(ctx context.Context, run *Run) (ResourceMetrics, error) {
	stage := progress.StageRecursos
	tasks, err := p.source.ListTasks(ctx, run.ProyectoID)
	if err != nil {
		return ResourceMetrics{}, fmt.Errorf("list tasks: %w", err)
	}
	assignments, err := p.source.ListAssignments(ctx, run.ProyectoID)
	if err != nil {
		return ResourceMetrics{}, fmt.Errorf("list assignments: %w", err)
	}
	p.step(ctx, run.ID, stage, 1, "datos")

	m := CalculateResources(tasks, assignments)
	p.step(ctx, run.ID, stage, 2, "calculo")

	if err := p.sink.SaveDomainMetrics(ctx, DomainMetrics{RunID: run.ID, Dominio: stage, Score: m.Score, Metricas: m}); err != nil {
		return m, fmt.Errorf("save metrics: %w", err)
	}
	p.update(ctx, run.ID, stage, progress.Done(stage, fmt.Sprintf(
		"Recursos: %d personas, %d sobrecargadas, puntaje %s", m.Personas, m.Sobrecargados, num(m.Score))))
	return m, nil
}

func (p *Pipeline) financeStage(ctx context.Context, run *Run) (FinanceMetrics, error) {
	stage := progress.StageFinanzas
	tasks, err := p.source.ListTasks(ctx, run.ProyectoID)
	if err != nil {
		return FinanceMetrics{}, fmt.Errorf("list tasks: %w", err)
	}
	p.step(ctx, run.ID, stage, 1, "datos")

	m := CalculateFinance(tasks)
	p.step(ctx, run.ID, stage, 2, "calculo")

	if err := p.sink.SaveDomainMetrics(ctx, DomainMetrics{RunID: run.ID, Dominio: stage, Score: m.Score, Metricas: m}); err != nil {
		return m, fmt.Errorf("save metrics: %w", err)
	}
	p.update(ctx, run.ID, stage, progress.Done(stage, fmt.Sprintf(
		"Finanzas: CPI %s, SPI %s, puntaje %s", num(m.CPI), num(m.SPI), num(m.Score))))
	return m, nil
}

func (p *Pipeline) placeholderStage(ctx context.Context, runID, stage, msg string) {
	p.update(ctx, runID, stage, progress.Running(msg))
	p.update(ctx, runID, stage, progress.Done(stage, msg))
}

// generateCases evaluates the catalog module by module. It never panics out:
// a failing builder or catalog lookup is reported as an error and the caller
// keeps closing the run.
func (p *Pipeline) generateCases(ctx context.Context, run *Run, snap Snapshot) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("case generation panic: %v", r)
		}
	}()

	metrics := snap.Metrics()
	var (
		instances []cases.Instance
		errs      []error
	)
	order := 0
	for _, module := range cases.Modules {
		entries, err := p.catalog.ListCasos(ctx, module)
		if err != nil {
			errs = append(errs, fmt.Errorf("list casos %s: %w", module, err))
			continue
		}

		var values map[string]any
		matched := 0
		for _, entry := range entries {
			if !cases.Visible(entry, run.Modo) || !rules.Evaluate(entry.Regla, metrics) {
				continue
			}
			if values == nil {
				values = Values(module, snap)
			}
			order++
			inst := cases.BuildInstance(entry, values, order)
			inst.RunID = run.ID
			instances = append(instances, inst)
			matched++
		}
		p.observer.CasesGenerated(module, matched)
	}

	if len(instances) > 0 {
		if err := p.sink.SaveCases(ctx, run.ID, instances); err != nil {
			errs = append(errs, fmt.Errorf("save casos: %w", err))
		}
	}
	return len(instances), errors.Join(errs...)
}

func (p *Pipeline) saveSections(ctx context.Context, run *Run, snap Snapshot) error {
	sections, err := BuildSections(run.ID, snap)
	if err != nil {
		return err
	}
	if err := p.sink.SaveSections(ctx, run.ID, sections); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	return nil
}

// fail closes the run as failed. Writes use a context detached from
// cancellation so a cancelled caller still leaves a closed run behind.
func (p *Pipeline) fail(ctx context.Context, run *Run, stages []string, cause error, started time.Time) error {
	wctx := context.WithoutCancel(ctx)
	end := p.now()
	run.Estado = RunFailed
	run.Fin = &end
	run.Error = cause.Error()

	if err := p.sink.CloseRun(wctx, run); err != nil {
		log.Error().Err(err).Str("run", run.ID).Msg("Failed to close failed run")
	}
	if err := p.tracker.SetState(wctx, run.ID, progress.StateFailed, "Análisis fallido: "+run.Error); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("Failed to mark progress failed")
	}
	p.observer.RunFinished(RunFailed, "", end.Sub(started))
	log.Error().Err(cause).Str("run", run.ID).Strs("stages", stages).Msg("Analysis run failed")

	return &PipelineError{RunID: run.ID, Stages: stages, Err: cause}
}

// abandon closes a run that was created but never started, so no running
// row outlives a failed Prepare.
func (p *Pipeline) abandon(ctx context.Context, run *Run, cause error) {
	end := p.now()
	run.Estado = RunFailed
	run.Fin = &end
	run.Error = cause.Error()

	if err := p.sink.CloseRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Str("run", run.ID).Msg("Failed to close abandoned run")
	}
	p.observer.RunFinished(RunFailed, "", end.Sub(run.Inicio))
	log.Error().Err(cause).Str("run", run.ID).Msg("Analysis run abandoned before start")
}

func (p *Pipeline) step(ctx context.Context, runID, stage string, n int, substage string) {
	p.update(ctx, runID, stage, progress.StageUpdate{StepsDone: progress.Steps(n), Substage: progress.Text(substage)})
}

// update pushes a stage fact. Tracker failures never fail the run.
func (p *Pipeline) update(ctx context.Context, runID, stage string, upd progress.StageUpdate) {
	if err := p.tracker.Update(ctx, runID, stage, upd); err != nil {
		log.Warn().Err(err).Str("run", runID).Str("stage", stage).Msg("Progress update failed")
	}
}

func stageLabel(stage string) string {
	for _, def := range progress.Stages {
		if def.Name == stage {
			return def.Label
		}
	}
	return stage
}

func joinMessages(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
