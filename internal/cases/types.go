package cases

import "context"

// Topic modules, in narrative order.
const (
	ModuleCronograma     = "cronograma"
	ModuleRecursos       = "recursos"
	ModuleFlujo          = "flujo"
	ModuleFinanzas       = "finanzas"
	ModuleCalidad        = "calidad"
	ModuleComunicaciones = "comunicaciones"
	ModuleAlcance        = "alcance"
	ModuleRiesgos        = "riesgos"
)

// Modules lists every topic module in the order cases are generated.
var Modules = []string{
	ModuleCronograma,
	ModuleRecursos,
	ModuleFlujo,
	ModuleFinanzas,
	ModuleCalidad,
	ModuleComunicaciones,
	ModuleAlcance,
	ModuleRiesgos,
}

// Narrative modes.
const (
	ModeEjecutivo = "ejecutivo"
	ModeCompleto  = "completo"
)

// CatalogEntry is an externally curated case template. Rule holds the decoded
// rule tree (see rules.Parse).
type CatalogEntry struct {
	ID              string `json:"id" yaml:"id"`
	Modulo          string `json:"modulo" yaml:"modulo"`
	Severidad       int    `json:"severidad" yaml:"severidad"` // 1-3
	Prioridad       int    `json:"prioridad" yaml:"prioridad"`
	Regla           any    `json:"regla" yaml:"regla"`
	Audiencia       string `json:"audiencia,omitempty" yaml:"audiencia"`
	Nivel           string `json:"nivel,omitempty" yaml:"nivel"`
	Titulo          string `json:"titulo" yaml:"titulo"`
	Lead            string `json:"lead,omitempty" yaml:"lead"`
	Cuerpo          string `json:"cuerpo,omitempty" yaml:"cuerpo"`
	CuerpoExtendido string `json:"cuerpo_extendido,omitempty" yaml:"cuerpo_extendido"`
	Explicacion     string `json:"explicacion,omitempty" yaml:"explicacion"`
	FAQs            string `json:"faqs,omitempty" yaml:"faqs"`
	Accion          string `json:"accion,omitempty" yaml:"accion"`
	AccionDetallada string `json:"accion_detallada,omitempty" yaml:"accion_detallada"`
	KPI             string `json:"kpi,omitempty" yaml:"kpi"`
}

// Instance is a filled-in case for one run.
type Instance struct {
	RunID          string `json:"run_id"`
	CasoID         string `json:"caso_id"`
	Modulo         string `json:"modulo"`
	Severidad      int    `json:"severidad"`
	Prioridad      int    `json:"prioridad"`
	Titulo         string `json:"titulo"`
	Lead           string `json:"lead"`
	Cuerpo         string `json:"cuerpo"`
	Accion         string `json:"accion"`
	KPI            string `json:"kpi"`
	ValoresJSON    string `json:"valores_json"`
	OrdenNarrativo int    `json:"orden_narrativo"`
}

// Catalog is the read-only source of case templates.
type Catalog interface {
	ListCasos(ctx context.Context, module string) ([]CatalogEntry, error)
}
