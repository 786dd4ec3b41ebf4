package analysis

import "analisis-mcp/internal/rules"

// FlowMetrics, RiskMetrics, QualityMetrics, CommsMetrics and ScopeMetrics
// carry fixed values until their data sources exist.
type FlowMetrics struct {
	Score             float64 `json:"score"`
	WIP               int     `json:"wip"`
	LeadTimeDias      float64 `json:"lead_time_dias"`
	ThroughputSemanal float64 `json:"throughput_semanal"`
}

type RiskMetrics struct {
	Score    float64 `json:"score"`
	Abiertos int     `json:"abiertos"`
	Criticos int     `json:"criticos"`
}

type QualityMetrics struct {
	Score            float64 `json:"score"`
	DefectosAbiertos int     `json:"defectos_abiertos"`
	RetrabajoPct     float64 `json:"retrabajo_pct"`
}

type CommsMetrics struct {
	ReportesPendientes     int `json:"reportes_pendientes"`
	StakeholdersSinReporte int `json:"stakeholders_sin_reporte"`
}

type ScopeMetrics struct {
	CambiosPendientes int     `json:"cambios_pendientes"`
	CrecimientoPct    float64 `json:"crecimiento_pct"`
}

// Snapshot is the combined, typed view of one run's metrics.
type Snapshot struct {
	Proyecto       Project
	Cronograma     ScheduleMetrics
	Recursos       ResourceMetrics
	Finanzas       FinanceMetrics
	Flujo          FlowMetrics
	Riesgos        RiskMetrics
	Calidad        QualityMetrics
	Comunicaciones CommsMetrics
	Alcance        ScopeMetrics
}

// NewSnapshot fills the unmodelled domains with their placeholder values.
func NewSnapshot(p Project, cron ScheduleMetrics, rec ResourceMetrics, fin FinanceMetrics) Snapshot {
	return Snapshot{
		Proyecto:   p,
		Cronograma: cron,
		Recursos:   rec,
		Finanzas:   fin,
		Flujo:      FlowMetrics{Score: FlujoScore},
		Riesgos:    RiskMetrics{Score: RiesgosScore},
		Calidad:    QualityMetrics{Score: CalidadScore},
	}
}

// Scores extracts the overall blend inputs.
func (s Snapshot) Scores() DomainScores {
	return DomainScores{
		Cronograma: s.Cronograma.Score,
		Recursos:   s.Recursos.Score,
		Finanzas:   s.Finanzas.Score,
		Flujo:      s.Flujo.Score,
		Riesgos:    s.Riesgos.Score,
	}
}

// Metrics is the dotted-path view the rule evaluator reads.
func (s Snapshot) Metrics() rules.Metrics {
	c, r, f := s.Cronograma, s.Recursos, s.Finanzas
	return rules.Map{
		"cronograma": rules.Map{
			"score":           c.Score,
			"total":           c.Total,
			"atrasadas":       c.Atrasadas,
			"en_riesgo":       c.EnRiesgo,
			"completadas":     c.Completadas,
			"avance_promedio": c.AvancePromedio,
			"pct_atrasadas":   c.PctAtrasadas,
			"pct_en_riesgo":   c.PctEnRiesgo,
			"ruta_critica":    c.RutaCritica,
		},
		"recursos": rules.Map{
			"score":                r.Score,
			"personas":             r.Personas,
			"sobrecargados":        r.Sobrecargados,
			"subutilizados":        r.Subutilizados,
			"balanceados":          r.Balanceados,
			"utilizacion_promedio": r.UtilizacionPromedio,
		},
		"finanzas": rules.Map{
			"score":     f.Score,
			"bac":       f.BAC,
			"pv":        f.PV,
			"ev":        f.EV,
			"ac":        f.AC,
			"cpi":       f.CPI,
			"spi":       f.SPI,
			"eac":       f.EAC,
			"etc":       f.ETC,
			"vac":       f.VAC,
			"burn_rate": f.BurnRate,
		},
		"flujo": rules.Map{
			"score":              s.Flujo.Score,
			"wip":                s.Flujo.WIP,
			"lead_time_dias":     s.Flujo.LeadTimeDias,
			"throughput_semanal": s.Flujo.ThroughputSemanal,
		},
		"riesgos": rules.Map{
			"score":    s.Riesgos.Score,
			"abiertos": s.Riesgos.Abiertos,
			"criticos": s.Riesgos.Criticos,
		},
		"calidad": rules.Map{
			"score":             s.Calidad.Score,
			"defectos_abiertos": s.Calidad.DefectosAbiertos,
			"retrabajo_pct":     s.Calidad.RetrabajoPct,
		},
		"comunicaciones": rules.Map{
			"reportes_pendientes":      s.Comunicaciones.ReportesPendientes,
			"stakeholders_sin_reporte": s.Comunicaciones.StakeholdersSinReporte,
		},
		"alcance": rules.Map{
			"cambios_pendientes": s.Alcance.CambiosPendientes,
			"crecimiento_pct":    s.Alcance.CrecimientoPct,
		},
	}
}
