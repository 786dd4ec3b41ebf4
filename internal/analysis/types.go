package analysis

import (
	"context"
	"errors"
	"time"

	"analisis-mcp/internal/cases"
)

var (
	// ErrProjectNotFound is returned before any run is created.
	ErrProjectNotFound = errors.New("project not found")
	ErrRunNotFound     = errors.New("run not found")
)

// Project is the analysed entity.
type Project struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Activo bool   `json:"activo"`
	Gestor string `json:"gestor,omitempty"`
}

// Task is one WBS row. Parent rows are recognised through PadreID links.
type Task struct {
	ID                int64   `json:"id"`
	ProyectoID        int64   `json:"proyecto_id"`
	PadreID           *int64  `json:"padre_id,omitempty"`
	Nombre            string  `json:"nombre"`
	Estado            string  `json:"estado"`
	Porcentaje        float64 `json:"porcentaje"`
	DiasAtraso        int     `json:"dias_atraso"`
	DiasRestantes     int     `json:"dias_restantes"`
	ResponsableID     int64   `json:"responsable_id,omitempty"`
	ResponsableNombre string  `json:"responsable_nombre,omitempty"`
	// SinPlazo marks a task without a due date; DiasRestantes is then
	// meaningless and the task is never at risk.
	SinPlazo          bool    `json:"sin_plazo,omitempty"`
}

// Assignment links a task to one of possibly several users.
type Assignment struct {
	TareaID       int64  `json:"tarea_id"`
	UsuarioID     int64  `json:"usuario_id"`
	UsuarioNombre string `json:"usuario_nombre,omitempty"`
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// Traffic-light labels.
const (
	SemaforoVerde    = "verde"
	SemaforoAmarillo = "amarillo"
	SemaforoRojo     = "rojo"
)

// Run is one analytics invocation for one project.
type Run struct {
	ID             string     `json:"run_id"`
	ProyectoID     int64      `json:"proyecto_id"`
	ProyectoNombre string     `json:"proyecto_nombre"`
	Modo           string     `json:"modo"`
	Estado         RunState   `json:"estado"`
	Inicio         time.Time  `json:"inicio"`
	Fin            *time.Time `json:"fin,omitempty"`
	Score          float64    `json:"score"`
	Semaforo       string     `json:"semaforo,omitempty"`
	Resumen        string     `json:"resumen,omitempty"`
	Error          string     `json:"error,omitempty"`
	CaseError      string     `json:"case_error,omitempty"`
}

// DomainMetrics is the persisted result of one domain computer.
type DomainMetrics struct {
	RunID    string  `json:"run_id"`
	Dominio  string  `json:"dominio"`
	Score    float64 `json:"score"`
	Metricas any     `json:"metricas"`
}

// Section is a named HTML fragment of the report.
type Section struct {
	RunID    string `json:"run_id"`
	Clave    string `json:"clave"`
	Titulo   string `json:"titulo"`
	HTML     string `json:"html"`
	Palabras int    `json:"palabras"`
	Orden    int    `json:"orden"`
}

// RunFilter narrows historical run listings. Zero values mean "any".
type RunFilter struct {
	ProyectoID  int64
	SoloActivos bool
	Estado      RunState
	Semaforo    string
	Desde       time.Time
	Hasta       time.Time
	Texto       string
	Limite      int
}

const (
	DefaultRunLimit = 50
	MaxRunLimit     = 500
)

// EffectiveLimit clamps the requested result cap.
func (f RunFilter) EffectiveLimit() int {
	switch {
	case f.Limite <= 0:
		return DefaultRunLimit
	case f.Limite > MaxRunLimit:
		return MaxRunLimit
	}
	return f.Limite
}

// DataSource provides the project rows the computers read.
type DataSource interface {
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListTasks(ctx context.Context, projectID int64) ([]Task, error)
	ListAssignments(ctx context.Context, projectID int64) ([]Assignment, error)
}

// Sink persists everything a run produces.
type Sink interface {
	CreateRun(ctx context.Context, run *Run) error
	SaveDomainMetrics(ctx context.Context, m DomainMetrics) error
	SaveCases(ctx context.Context, runID string, instances []cases.Instance) error
	SaveSections(ctx context.Context, runID string, sections []Section) error
	CloseRun(ctx context.Context, run *Run) error
}

// Observer receives pipeline telemetry.
type Observer interface {
	StageFinished(stage string, d time.Duration, err error)
	CasesGenerated(module string, n int)
	RunFinished(state RunState, semaforo string, d time.Duration)
}

// Notifier is told about every completed run.
type Notifier interface {
	RunCompleted(ctx context.Context, run *Run, project *Project) error
}

type nopObserver struct{}

func (nopObserver) StageFinished(string, time.Duration, error)  {}
func (nopObserver) CasesGenerated(string, int)                  {}
func (nopObserver) RunFinished(RunState, string, time.Duration) {}
