package engine

import (
	"context"
	"path/filepath"
	"testing"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/store"
)

func TestGenerate_Shape(t *testing.T) {
	fx := Generate(GeneratorConfig{Scenario: ScenarioMild, Projects: 2, Count: 12, Seed: 1})

	if len(fx.Proyectos) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(fx.Proyectos))
	}
	// 12 leaves need 3 phases per project.
	if len(fx.Tareas) != 2*(12+3) {
		t.Fatalf("expected 30 tasks, got %d", len(fx.Tareas))
	}

	ids := make(map[int64]analysis.Task, len(fx.Tareas))
	for _, task := range fx.Tareas {
		if _, dup := ids[task.ID]; dup {
			t.Fatalf("duplicate task id %d", task.ID)
		}
		ids[task.ID] = task
	}
	for _, task := range fx.Tareas {
		if task.PadreID == nil {
			continue
		}
		parent, ok := ids[*task.PadreID]
		if !ok || parent.ProyectoID != task.ProyectoID {
			t.Errorf("task %d has a dangling parent", task.ID)
		}
		if task.Porcentaje < 0 || task.Porcentaje > 100 {
			t.Errorf("task %d progress %v out of range", task.ID, task.Porcentaje)
		}
	}
	for _, a := range fx.Asignaciones {
		if _, ok := ids[a.TareaID]; !ok {
			t.Errorf("assignment to unknown task %d", a.TareaID)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{Scenario: ScenarioChaos, Distribution: "weibull", Projects: 1, Count: 30, Seed: 42}
	a, b := Generate(cfg), Generate(cfg)
	for i := range a.Tareas {
		if a.Tareas[i].DiasAtraso != b.Tareas[i].DiasAtraso || a.Tareas[i].Porcentaje != b.Tareas[i].Porcentaje {
			t.Fatalf("same seed produced different task %d", i)
		}
	}
}

func TestGenerate_ScenariosOrderScheduleHealth(t *testing.T) {
	score := func(scenario string) float64 {
		fx := Generate(GeneratorConfig{Scenario: scenario, Projects: 1, Count: 200, Seed: 7})
		return analysis.CalculateSchedule(fx.Tareas).Score
	}
	mild, late := score(ScenarioMild), score(ScenarioLate)
	if mild <= late {
		t.Errorf("expected mild schedule score > late, got %.2f <= %.2f", mild, late)
	}
}

func TestSave_FixtureLoadsAndAnalyses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chaos.json")
	if err := Save(path, Generate(GeneratorConfig{Scenario: ScenarioChaos, Projects: 1, Count: 20, Seed: 3})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fx, err := store.LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	m := store.NewMemory("")
	m.AddFixture(fx)
	cat, err := cases.LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}

	run, err := analysis.NewPipeline(m, m, cat, progress.NewMemoryStore(), analysis.Options{}).
		AnalyzeProject(context.Background(), 1, cases.ModeCompleto)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if run.Estado != analysis.RunCompleted {
		t.Errorf("run state %s", run.Estado)
	}
}
