package analysis

import (
	"strconv"
	"strings"

	"analisis-mcp/internal/cases"
)

const maxListedNames = 5

// ValueBuilder assembles the placeholder values for one topic module.
type ValueBuilder func(s Snapshot) map[string]any

// valueBuilders is keyed by topic module. Every builder starts from the
// shared project values.
var valueBuilders = map[string]ValueBuilder{
	cases.ModuleCronograma:     cronogramaValues,
	cases.ModuleRecursos:       recursosValues,
	cases.ModuleFlujo:          flujoValues,
	cases.ModuleFinanzas:       finanzasValues,
	cases.ModuleCalidad:        calidadValues,
	cases.ModuleComunicaciones: comunicacionesValues,
	cases.ModuleAlcance:        alcanceValues,
	cases.ModuleRiesgos:        riesgosValues,
}

// Values returns the placeholder values for module.
func Values(module string, s Snapshot) map[string]any {
	v := baseValues(s)
	if b, ok := valueBuilders[module]; ok {
		for k, val := range b(s) {
			v[k] = val
		}
	}
	return v
}

func baseValues(s Snapshot) map[string]any {
	return map[string]any{
		"PROYECTO":     s.Proyecto.Nombre,
		"TOTAL_TAREAS": s.Cronograma.Total,
	}
}

func cronogramaValues(s Snapshot) map[string]any {
	c := s.Cronograma
	var critical []string
	for _, t := range c.Tareas {
		if t.RutaCritica {
			critical = append(critical, t.Nombre)
		}
	}
	return map[string]any{
		"ATRASADAS":        c.Atrasadas,
		"PCT_ATRASADAS":    round2(c.PctAtrasadas * 100),
		"EN_RIESGO":        c.EnRiesgo,
		"AVANCE_PROMEDIO":  c.AvancePromedio,
		"OBJETIVO_AVANCE":  round2(min(100, c.AvancePromedio+15)),
		"SCORE_CRONOGRAMA": c.Score,
		"RUTA_CRITICA":     c.RutaCritica,
		"TAREAS_CRITICAS":  nameList(critical),
	}
}

func recursosValues(s Snapshot) map[string]any {
	r := s.Recursos
	return map[string]any{
		"PERSONAS":              r.Personas,
		"SOBRECARGADOS":         r.Sobrecargados,
		"SUBUTILIZADOS":         r.Subutilizados,
		"BALANCEADOS":           r.Balanceados,
		"UTILIZACION_PROMEDIO":  r.UtilizacionPromedio,
		"NOMBRES_SOBRECARGADOS": nameList(r.Overloaded()),
	}
}

func flujoValues(s Snapshot) map[string]any {
	return map[string]any{
		"SCORE_FLUJO": s.Flujo.Score,
	}
}

func finanzasValues(s Snapshot) map[string]any {
	f := s.Finanzas
	objective := 1.0
	if f.CPI < 0.95 {
		objective = 0.95
	}
	return map[string]any{
		"BAC":          f.BAC,
		"PV":           f.PV,
		"EV":           f.EV,
		"AC":           f.AC,
		"CPI":          f.CPI,
		"SPI":          f.SPI,
		"EAC":          f.EAC,
		"VAC":          f.VAC,
		"OBJETIVO_CPI": objective,
	}
}

func calidadValues(s Snapshot) map[string]any {
	return map[string]any{
		"DEFECTOS_ABIERTOS": s.Calidad.DefectosAbiertos,
		"RETRABAJO_PCT":     s.Calidad.RetrabajoPct,
	}
}

func comunicacionesValues(s Snapshot) map[string]any {
	return map[string]any{
		"REPORTES_PENDIENTES":      s.Comunicaciones.ReportesPendientes,
		"STAKEHOLDERS_SIN_REPORTE": s.Comunicaciones.StakeholdersSinReporte,
	}
}

func alcanceValues(s Snapshot) map[string]any {
	return map[string]any{
		"CAMBIOS_PENDIENTES":      s.Alcance.CambiosPendientes,
		"CRECIMIENTO_ALCANCE_PCT": s.Alcance.CrecimientoPct,
	}
}

func riesgosValues(s Snapshot) map[string]any {
	return map[string]any{
		"SCORE_RIESGOS":    s.Riesgos.Score,
		"RIESGOS_ABIERTOS": s.Riesgos.Abiertos,
		"RIESGOS_CRITICOS": s.Riesgos.Criticos,
	}
}

// nameList joins up to maxListedNames names, noting how many were left out.
func nameList(names []string) string {
	if len(names) == 0 {
		return cases.Fallback
	}
	if len(names) <= maxListedNames {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxListedNames], ", ") + " y " + strconv.Itoa(len(names)-maxListedNames) + " más"
}
