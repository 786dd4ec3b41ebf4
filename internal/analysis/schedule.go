package analysis

import "strings"

const (
	riskWindowDays       = 3
	riskProgressCeil     = 80.0
	criticalProgressCeil = 60.0
	targetProgress       = 80.0
)

// terminalStatuses are the labels that close a task regardless of its percent.
var terminalStatuses = map[string]bool{
	"completada": true,
	"completado": true,
	"finalizada": true,
	"finalizado": true,
	"terminada":  true,
	"terminado":  true,
	"cerrada":    true,
	"cerrado":    true,
	"done":       true,
	"completed":  true,
	"closed":     true,
}

// IsDone reports whether a task counts as finished.
func IsDone(t Task) bool {
	return terminalStatuses[strings.ToLower(strings.TrimSpace(t.Estado))] || t.Porcentaje >= 100
}

// ScheduleMetrics is the persisted payload of the cronograma domain.
// Percentages are fractions in [0,1].
type ScheduleMetrics struct {
	Score          float64      `json:"score"`
	Total          int          `json:"total"`
	Atrasadas      int          `json:"atrasadas"`
	EnRiesgo       int          `json:"en_riesgo"`
	Completadas    int          `json:"completadas"`
	AvancePromedio float64      `json:"avance_promedio"`
	PctAtrasadas   float64      `json:"pct_atrasadas"`
	PctEnRiesgo    float64      `json:"pct_en_riesgo"`
	BrechaAvance   float64      `json:"brecha_avance"`
	RutaCritica    int          `json:"ruta_critica"` // heuristic, not CPM
	Tareas         []TaskDetail `json:"tareas,omitempty"`
}

// TaskDetail is one leaf task as seen by the schedule computer.
type TaskDetail struct {
	TareaID       int64   `json:"tarea_id"`
	Nombre        string  `json:"nombre"`
	Estado        string  `json:"estado"`
	Porcentaje    float64 `json:"porcentaje"`
	DiasAtraso    int     `json:"dias_atraso"`
	DiasRestantes int     `json:"dias_restantes"`
	Responsable   string  `json:"responsable,omitempty"`
	Completada    bool    `json:"completada"`
	Atrasada      bool    `json:"atrasada"`
	EnRiesgo      bool    `json:"en_riesgo"`
	RutaCritica   bool    `json:"ruta_critica"`
}

// CalculateSchedule scores delivery health over the leaf tasks of a project.
// Overdue work weighs most, then near-term risk, then aggregate slowness.
func CalculateSchedule(tasks []Task) ScheduleMetrics {
	leaves := Leaves(tasks)
	m := ScheduleMetrics{Total: len(leaves), Score: 100}
	if m.Total == 0 {
		return m
	}

	sum := 0.0
	m.Tareas = make([]TaskDetail, 0, len(leaves))
	for _, t := range leaves {
		d := TaskDetail{
			TareaID:       t.ID,
			Nombre:        t.Nombre,
			Estado:        t.Estado,
			Porcentaje:    t.Porcentaje,
			DiasAtraso:    t.DiasAtraso,
			DiasRestantes: t.DiasRestantes,
			Responsable:   t.ResponsableNombre,
			Completada:    IsDone(t),
		}
		dueSoon := !t.SinPlazo && t.DiasRestantes <= riskWindowDays
		if !d.Completada {
			d.Atrasada = t.DiasAtraso > 0
			d.EnRiesgo = dueSoon && t.Porcentaje < riskProgressCeil
		}
		d.RutaCritica = dueSoon && t.Porcentaje < criticalProgressCeil

		if d.Completada {
			m.Completadas++
		}
		if d.Atrasada {
			m.Atrasadas++
		}
		if d.EnRiesgo {
			m.EnRiesgo++
		}
		if d.RutaCritica {
			m.RutaCritica++
		}
		sum += t.Porcentaje
		m.Tareas = append(m.Tareas, d)
	}

	total := float64(m.Total)
	avg := sum / total
	m.PctAtrasadas = float64(m.Atrasadas) / total
	m.PctEnRiesgo = float64(m.EnRiesgo) / total
	m.BrechaAvance = max(0, (targetProgress-avg)/targetProgress)

	penalty := clamp(0.50*m.PctAtrasadas+0.30*m.PctEnRiesgo+0.20*m.BrechaAvance, 0, 1)
	m.Score = max(0, round2(100*(1-penalty)))

	m.AvancePromedio = round2(avg)
	m.PctAtrasadas = round4(m.PctAtrasadas)
	m.PctEnRiesgo = round4(m.PctEnRiesgo)
	m.BrechaAvance = round4(m.BrechaAvance)
	return m
}
