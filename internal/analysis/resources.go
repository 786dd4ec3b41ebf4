package analysis

import "sort"

// Flat cost model shared by the resource and financial computers.
const (
	HoursPerTask = 8.0
	HourlyRate   = 45000.0 // COP
)

// actualFactor models logged hours until time tracking is wired in.
const actualFactor = 1.1

const (
	overloadedAt      = 1.2
	underusedAt       = 0.6
	baseResourceScore = 60.0
	overloadWeight    = 5.0
)

// Person load classes.
const (
	LoadSobrecargado = "sobrecargado"
	LoadSubutilizado = "subutilizado"
	LoadBalanceado   = "balanceado"
)

// PersonLoad is the capacity picture of one assigned user.
type PersonLoad struct {
	UsuarioID     int64   `json:"usuario_id"`
	Nombre        string  `json:"nombre"`
	Tareas        int     `json:"tareas"`
	HorasPlan     float64 `json:"horas_plan"`
	HorasReal     float64 `json:"horas_real"`
	Utilizacion   float64 `json:"utilizacion"`
	Clasificacion string  `json:"clasificacion"`
}

// ResourceMetrics is the persisted payload of the recursos domain.
type ResourceMetrics struct {
	Score               float64      `json:"score"`
	Personas            int          `json:"personas"`
	Sobrecargados       int          `json:"sobrecargados"`
	Subutilizados       int          `json:"subutilizados"`
	Balanceados         int          `json:"balanceados"`
	UtilizacionPromedio float64      `json:"utilizacion_promedio"`
	HorasPlan           float64      `json:"horas_plan"`
	Detalle             []PersonLoad `json:"detalle,omitempty"`
}

// Overloaded returns the names of overloaded people in detail order.
func (m ResourceMetrics) Overloaded() []string {
	var names []string
	for _, p := range m.Detalle {
		if p.Clasificacion == LoadSobrecargado {
			names = append(names, p.Nombre)
		}
	}
	return names
}

// CalculateResources accumulates planned hours per assigned user. The
// assignment table wins; the task owner is used only when a task has no
// assignment rows. Unowned tasks are ignored.
func CalculateResources(tasks []Task, assignments []Assignment) ResourceMetrics {
	byTask := make(map[int64][]Assignment, len(assignments))
	for _, a := range assignments {
		byTask[a.TareaID] = append(byTask[a.TareaID], a)
	}

	people := make(map[int64]*PersonLoad)
	add := func(id int64, name string) {
		p, ok := people[id]
		if !ok {
			p = &PersonLoad{UsuarioID: id, Nombre: name}
			people[id] = p
		}
		if p.Nombre == "" {
			p.Nombre = name
		}
		p.Tareas++
		p.HorasPlan += HoursPerTask
	}

	for _, t := range Leaves(tasks) {
		if rows := byTask[t.ID]; len(rows) > 0 {
			seen := make(map[int64]bool, len(rows))
			for _, a := range rows {
				if seen[a.UsuarioID] {
					continue
				}
				seen[a.UsuarioID] = true
				add(a.UsuarioID, a.UsuarioNombre)
			}
			continue
		}
		if t.ResponsableID != 0 {
			add(t.ResponsableID, t.ResponsableNombre)
		}
	}

	m := ResourceMetrics{Detalle: make([]PersonLoad, 0, len(people))}
	utilSum := 0.0
	for _, p := range people {
		p.HorasReal = round2(p.HorasPlan * actualFactor)
		p.Utilizacion = round2(ratio(p.HorasReal, p.HorasPlan, 0))
		switch {
		case p.Utilizacion >= overloadedAt:
			p.Clasificacion = LoadSobrecargado
			m.Sobrecargados++
		case p.Utilizacion <= underusedAt:
			p.Clasificacion = LoadSubutilizado
			m.Subutilizados++
		default:
			p.Clasificacion = LoadBalanceado
			m.Balanceados++
		}
		utilSum += p.Utilizacion
		m.HorasPlan += p.HorasPlan
		m.Detalle = append(m.Detalle, *p)
	}
	sort.Slice(m.Detalle, func(i, j int) bool { return m.Detalle[i].UsuarioID < m.Detalle[j].UsuarioID })

	m.Personas = len(m.Detalle)
	balancedShare := 0.0
	if m.Personas > 0 {
		balancedShare = float64(m.Balanceados) / float64(m.Personas)
		m.UtilizacionPromedio = round2(utilSum / float64(m.Personas))
	}
	m.Score = round2(clamp(baseResourceScore+balancedShare*40-overloadWeight*float64(m.Sobrecargados), 0, 100))
	return m
}
