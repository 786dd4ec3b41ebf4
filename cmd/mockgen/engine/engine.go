package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/store"
)

// Scenarios understood by Generate.
const (
	ScenarioMild  = "mild"
	ScenarioLate  = "late"
	ScenarioChaos = "chaos"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Projects     int
	Count        int // leaf tasks per project
	Seed         int64
}

type scenarioParams struct {
	doneShare float64
	lateShare float64
	k, lambda float64 // Weibull shape and scale of the delay in days
	team      int
	hotShare  float64 // tasks piled on the first team member
}

func paramsFor(scenario string) scenarioParams {
	switch scenario {
	case ScenarioLate:
		return scenarioParams{doneShare: 0.20, lateShare: 0.35, k: 1.5, lambda: 8, team: 6, hotShare: 0.15}
	case ScenarioChaos:
		// Heavy-tailed delays and one overloaded person.
		return scenarioParams{doneShare: 0.10, lateShare: 0.25, k: 0.8, lambda: 12, team: 8, hotShare: 0.45}
	default:
		return scenarioParams{doneShare: 0.35, lateShare: 0.05, k: 2.5, lambda: 3, team: 6, hotShare: 0}
	}
}

var names = []string{
	"Ana Gómez", "Luis Pérez", "Marta Ríos", "Jorge Díaz", "Sofía Castro", "Andrés Mora",
	"Camila Vargas", "Diego Rojas", "Valentina Ruiz", "Felipe Herrera", "Laura Medina", "Tomás León",
}

// Generate builds a synthetic fixture: each project has one phase per five
// leaf tasks, an owner per leaf and occasional co-assignees.
func Generate(cfg GeneratorConfig) store.Fixture {
	if cfg.Projects <= 0 {
		cfg.Projects = 1
	}
	if cfg.Count <= 0 {
		cfg.Count = 40
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	p := paramsFor(cfg.Scenario)

	var fx store.Fixture
	for pi := 1; pi <= cfg.Projects; pi++ {
		pid := int64(pi)
		fx.Proyectos = append(fx.Proyectos, analysis.Project{
			ID:     pid,
			Nombre: fmt.Sprintf("Proyecto %s %d", cfg.Scenario, pi),
			Activo: pi%5 != 0,
			Gestor: names[(pi-1)%len(names)],
		})

		seq := pid * 10000
		var phase int64
		for i := 0; i < cfg.Count; i++ {
			if i%5 == 0 {
				seq++
				phase = seq
				fx.Tareas = append(fx.Tareas, analysis.Task{
					ID:         phase,
					ProyectoID: pid,
					Nombre:     fmt.Sprintf("Fase %d", i/5+1),
					Estado:     "En curso",
				})
			}

			seq++
			parent := phase
			owner := pickOwner(rng, p)
			t := analysis.Task{
				ID:                seq,
				ProyectoID:        pid,
				PadreID:           &parent,
				Nombre:            fmt.Sprintf("Tarea %d.%d", i/5+1, i%5+1),
				ResponsableID:     userID(owner),
				ResponsableNombre: names[owner],
			}
			fillStatus(rng, p, cfg.Distribution, &t)
			fx.Tareas = append(fx.Tareas, t)

			fx.Asignaciones = append(fx.Asignaciones, analysis.Assignment{TareaID: t.ID, UsuarioID: t.ResponsableID, UsuarioNombre: t.ResponsableNombre})
			if rng.Float64() < 0.3 {
				co := (owner + 1 + rng.Intn(p.team-1)) % p.team
				fx.Asignaciones = append(fx.Asignaciones, analysis.Assignment{TareaID: t.ID, UsuarioID: userID(co), UsuarioNombre: names[co]})
			}
		}
	}
	return fx
}

func pickOwner(rng *rand.Rand, p scenarioParams) int {
	if rng.Float64() < p.hotShare {
		return 0
	}
	return rng.Intn(p.team)
}

func userID(idx int) int64 { return int64(100 + idx) }

func fillStatus(rng *rand.Rand, p scenarioParams, distribution string, t *analysis.Task) {
	r := rng.Float64()
	switch {
	case r < p.doneShare:
		t.Estado = "Completada"
		t.Porcentaje = 100
	case r < p.doneShare+p.lateShare:
		t.Estado = "En curso"
		t.Porcentaje = math.Round(10 + rng.Float64()*60)
		t.DiasAtraso = int(math.Ceil(delaySample(rng, p, distribution)))
	default:
		t.DiasRestantes = 1 + rng.Intn(30)
		t.Porcentaje = math.Round(rng.Float64() * 95)
		t.Estado = "En curso"
		if t.Porcentaje < 10 {
			t.Estado = "Pendiente"
		}
	}
}

func delaySample(rng *rand.Rand, p scenarioParams, distribution string) float64 {
	if distribution == "weibull" {
		return weibullSample(rng, p.k, p.lambda)
	}
	// Uniform baseline around the scenario scale.
	return 1 + rng.Float64()*p.lambda
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the fixture as indented JSON, creating parent directories.
func Save(path string, fx store.Fixture) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
