package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
)

// Fixture is the JSON document the offline store loads project data from.
type Fixture struct {
	Proyectos    []analysis.Project    `json:"proyectos"`
	Tareas       []analysis.Task       `json:"tareas"`
	Asignaciones []analysis.Assignment `json:"asignaciones"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (Fixture, error) {
	var fx Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("read fixture: %w", err)
	}
	if err := json.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return fx, nil
}

// RunRecord is everything persisted for one run. It is also the line format
// of the history file.
type RunRecord struct {
	Run       analysis.Run             `json:"run"`
	Metricas  []analysis.DomainMetrics `json:"metricas,omitempty"`
	Casos     []cases.Instance         `json:"casos,omitempty"`
	Secciones []analysis.Section       `json:"secciones,omitempty"`
}

// Memory is the in-process store used by tests and the offline CLI. When a
// history path is set, every closed run is flushed to a JSONL file.
type Memory struct {
	mu          sync.RWMutex
	projects    map[int64]analysis.Project
	tasks       map[int64][]analysis.Task
	assignments map[int64][]analysis.Assignment
	runs        map[string]*RunRecord
	historyPath string
	saveMu      sync.Mutex
}

// NewMemory creates an empty store. historyPath may be empty.
func NewMemory(historyPath string) *Memory {
	return &Memory{
		projects:    make(map[int64]analysis.Project),
		tasks:       make(map[int64][]analysis.Task),
		assignments: make(map[int64][]analysis.Assignment),
		runs:        make(map[string]*RunRecord),
		historyPath: historyPath,
	}
}

// AddFixture merges fixture rows. Assignments are attached to the project of
// their task; assignments to unknown tasks are dropped.
func (m *Memory) AddFixture(fx Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range fx.Proyectos {
		m.projects[p.ID] = p
	}
	taskProject := make(map[int64]int64, len(fx.Tareas))
	for _, t := range fx.Tareas {
		m.tasks[t.ProyectoID] = append(m.tasks[t.ProyectoID], t)
		taskProject[t.ID] = t.ProyectoID
	}
	for _, a := range fx.Asignaciones {
		pid, ok := taskProject[a.TareaID]
		if !ok {
			log.Debug().Int64("tarea", a.TareaID).Msg("Skipping assignment for unknown task")
			continue
		}
		m.assignments[pid] = append(m.assignments[pid], a)
	}
}

func (m *Memory) GetProject(_ context.Context, id int64) (*analysis.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", analysis.ErrProjectNotFound, id)
	}
	return &p, nil
}

func (m *Memory) ListTasks(_ context.Context, projectID int64) ([]analysis.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.tasks[projectID]), nil
}

func (m *Memory) ListAssignments(_ context.Context, projectID int64) ([]analysis.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.assignments[projectID]), nil
}

func (m *Memory) CreateRun(_ context.Context, run *analysis.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.runs[run.ID]; dup {
		return fmt.Errorf("create run: duplicate id %s", run.ID)
	}
	m.runs[run.ID] = &RunRecord{Run: *run}
	return nil
}

func (m *Memory) SaveDomainMetrics(_ context.Context, dm analysis.DomainMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.record(dm.RunID)
	if err != nil {
		return err
	}
	for _, existing := range rec.Metricas {
		if existing.Dominio == dm.Dominio {
			return fmt.Errorf("save %s metrics: already written for run %s", dm.Dominio, dm.RunID)
		}
	}
	rec.Metricas = append(rec.Metricas, dm)
	return nil
}

func (m *Memory) SaveCases(_ context.Context, runID string, instances []cases.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.record(runID)
	if err != nil {
		return err
	}
	rec.Casos = append(rec.Casos, instances...)
	return nil
}

func (m *Memory) SaveSections(_ context.Context, runID string, sections []analysis.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.record(runID)
	if err != nil {
		return err
	}
	rec.Secciones = append(rec.Secciones, sections...)
	return nil
}

// CloseRun stores the terminal fields and flushes history when configured.
func (m *Memory) CloseRun(_ context.Context, run *analysis.Run) error {
	m.mu.Lock()
	rec, err := m.record(run.ID)
	if err == nil {
		rec.Run = *run
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if m.historyPath == "" {
		return nil
	}
	return m.SaveHistory(m.historyPath)
}

func (m *Memory) record(runID string) (*RunRecord, error) {
	rec, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", analysis.ErrRunNotFound, runID)
	}
	return rec, nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*analysis.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.record(runID)
	if err != nil {
		return nil, err
	}
	r := rec.Run
	return &r, nil
}

func (m *Memory) ListMetrics(_ context.Context, runID string) ([]analysis.DomainMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.record(runID)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(rec.Metricas)
	slices.SortFunc(out, func(a, b analysis.DomainMetrics) int { return strings.Compare(a.Dominio, b.Dominio) })
	return out, nil
}

func (m *Memory) ListCases(_ context.Context, runID string) ([]cases.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.record(runID)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(rec.Casos)
	slices.SortStableFunc(out, func(a, b cases.Instance) int { return a.OrdenNarrativo - b.OrdenNarrativo })
	return out, nil
}

func (m *Memory) ListSections(_ context.Context, runID string) ([]analysis.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.record(runID)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(rec.Secciones)
	slices.SortStableFunc(out, func(a, b analysis.Section) int { return a.Orden - b.Orden })
	return out, nil
}

// ListRuns applies the filter in process, newest first.
func (m *Memory) ListRuns(_ context.Context, f analysis.RunFilter) ([]analysis.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	text := strings.ToLower(strings.TrimSpace(f.Texto))
	var out []analysis.Run
	for _, rec := range m.runs {
		r := rec.Run
		switch {
		case f.ProyectoID != 0 && r.ProyectoID != f.ProyectoID:
			continue
		case f.SoloActivos && !m.projects[r.ProyectoID].Activo:
			continue
		case f.Estado != "" && r.Estado != f.Estado:
			continue
		case f.Semaforo != "" && r.Semaforo != f.Semaforo:
			continue
		case !f.Desde.IsZero() && r.Inicio.Before(f.Desde):
			continue
		case !f.Hasta.IsZero() && !r.Inicio.Before(f.Hasta):
			continue
		case text != "" &&
			!strings.Contains(strings.ToLower(r.ProyectoNombre), text) &&
			!strings.Contains(strings.ToLower(r.Resumen), text):
			continue
		}
		out = append(out, r)
	}

	slices.SortFunc(out, func(a, b analysis.Run) int {
		if c := b.Inicio.Compare(a.Inicio); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LoadHistory reads run records from a JSONL file. A missing file is not an
// error; unreadable lines are skipped.
func (m *Memory) LoadHistory(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	var records []RunRecord
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in history")
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	m.mu.Lock()
	for i := range records {
		rec := records[i]
		m.runs[rec.Run.ID] = &rec
	}
	m.mu.Unlock()

	log.Info().Str("path", path).Int("runs", len(records)).Msg("Loaded run history")
	return nil
}

// SaveHistory rewrites the JSONL history atomically through a temp file.
func (m *Memory) SaveHistory(path string) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	records := make([]RunRecord, 0, len(m.runs))
	for _, rec := range m.runs {
		records = append(records, *rec)
	}
	m.mu.RUnlock()

	slices.SortFunc(records, func(a, b RunRecord) int {
		if c := a.Run.Inicio.Compare(b.Run.Inicio); c != 0 {
			return c
		}
		return strings.Compare(a.Run.ID, b.Run.ID)
	})

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("encode run %s: %w", rec.Run.ID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush history: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename history file: %w", err)
	}

	log.Debug().Str("path", path).Int("runs", len(records)).Msg("Run history saved")
	return nil
}
