// Package progress tracks per-stage completion of an analysis run so clients
// can poll it while the pipeline works. Stores own the percent computation;
// callers only push stage-level facts.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// State is shared by stages and by the run as a whole.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateSkipped   State = "skipped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Stage names.
const (
	StageCronograma = "cronograma"
	StageRecursos   = "recursos"
	StageFinanzas   = "finanzas"
	StageFlujo      = "flujo"
	StageRiesgos    = "riesgos"
	StageInforme    = "informe"
)

var (
	ErrRunNotFound  = errors.New("progress record not found")
	ErrUnknownStage = errors.New("unknown stage")
)

// StageDef describes a tracked stage and how many steps it reports.
type StageDef struct {
	Name  string
	Label string
	Steps int
}

// Stages is the fixed stage table, in display order.
var Stages = []StageDef{
	{StageCronograma, "Cronograma & Tareas", 3},
	{StageRecursos, "Recursos & Capacidad", 3},
	{StageFinanzas, "Finanzas (EVM)", 3},
	{StageFlujo, "Flujo de trabajo", 1},
	{StageRiesgos, "Riesgos", 1},
	{StageInforme, "Informe narrativo", 4},
}

// Stage is the persisted state of one stage.
type Stage struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	State      State     `json:"state"`
	StepsDone  int       `json:"steps_done"`
	StepsTotal int       `json:"steps_total"`
	Substage   string    `json:"substage,omitempty"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Record is the progress snapshot for one run.
type Record struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	Percent   float64   `json:"percent_global"`
	Message   string    `json:"message,omitempty"`
	Stages    []Stage   `json:"stages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageUpdate is a partial update; nil fields are left unchanged.
type StageUpdate struct {
	StepsDone *int
	Substage  *string
	Message   *string
	State     *State
}

// Store persists progress records.
type Store interface {
	Init(ctx context.Context, runID string) error
	Update(ctx context.Context, runID, stage string, upd StageUpdate) error
	Get(ctx context.Context, runID string) (Record, error)
	SetState(ctx context.Context, runID string, state State, message string) error
}

// Steps, Text and StatePtr build StageUpdate fields.
func Steps(n int) *int        { return &n }
func Text(s string) *string   { return &s }
func StatePtr(s State) *State { return &s }

// Running marks a stage started.
func Running(msg string) StageUpdate {
	return StageUpdate{State: StatePtr(StateRunning), Message: Text(msg)}
}

// Done marks a stage finished with all its steps.
func Done(stage, msg string) StageUpdate {
	return StageUpdate{State: StatePtr(StateDone), StepsDone: Steps(stepsFor(stage)), Message: Text(msg)}
}

// NewRecord seeds every stage as pending.
func NewRecord(runID string, now time.Time) Record {
	rec := Record{
		RunID:     runID,
		State:     StateRunning,
		Stages:    make([]Stage, len(Stages)),
		UpdatedAt: now,
	}
	for i, def := range Stages {
		rec.Stages[i] = Stage{
			Name:       def.Name,
			Label:      def.Label,
			State:      StatePending,
			StepsTotal: def.Steps,
			UpdatedAt:  now,
		}
	}
	return rec
}

// Apply merges upd into the named stage. Stage states only move forward and
// steps never decrease, so a late or duplicated write cannot regress progress.
func (r *Record) Apply(stage string, upd StageUpdate, now time.Time) error {
	idx := -1
	for i := range r.Stages {
		if r.Stages[i].Name == stage {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	s := &r.Stages[idx]
	if upd.State != nil && rank(*upd.State) > rank(s.State) {
		s.State = *upd.State
	}
	if upd.StepsDone != nil && *upd.StepsDone > s.StepsDone {
		s.StepsDone = min(*upd.StepsDone, s.StepsTotal)
	}
	if upd.Substage != nil {
		s.Substage = *upd.Substage
	}
	if upd.Message != nil {
		s.Message = *upd.Message
		r.Message = *upd.Message
	}
	s.UpdatedAt = now
	r.UpdatedAt = now
	r.recompute()
	return nil
}

// SetState moves the run-level state. Terminal states are sticky.
func (r *Record) SetState(state State, message string, now time.Time) {
	if r.State == StateCompleted || r.State == StateFailed {
		return
	}
	r.State = state
	if message != "" {
		r.Message = message
	}
	r.UpdatedAt = now
	if state == StateCompleted {
		r.Percent = 100
		return
	}
	r.recompute()
}

func (r *Record) recompute() {
	if len(r.Stages) == 0 {
		return
	}

	total := 0.0
	for _, s := range r.Stages {
		switch s.State {
		case StateDone, StateSkipped:
			total += 1
		case StateRunning:
			if s.StepsTotal > 0 {
				total += math.Min(float64(s.StepsDone)/float64(s.StepsTotal), 0.99)
			}
		}
	}

	pct := math.Round(total/float64(len(r.Stages))*100*100) / 100
	if pct > r.Percent {
		r.Percent = pct
	}
}

func rank(s State) int {
	switch s {
	case StatePending:
		return 0
	case StateRunning:
		return 1
	case StateDone, StateSkipped:
		return 2
	}
	return -1
}

func stepsFor(stage string) int {
	for _, def := range Stages {
		if def.Name == stage {
			return def.Steps
		}
	}
	return 0
}
