package analysis

import "fmt"

// Placeholder scores for domains without a computer yet.
const (
	FlujoScore   = 70.0
	RiesgosScore = 78.0
	CalidadScore = 90.0
)

const (
	verdeAt    = 75.0
	amarilloAt = 60.0
)

// DomainScores are the inputs of the overall health blend.
type DomainScores struct {
	Cronograma float64
	Recursos   float64
	Finanzas   float64
	Flujo      float64
	Riesgos    float64
}

// Overall blends the domain scores. Quality is not modelled and enters as a
// constant.
func Overall(s DomainScores) float64 {
	return round2(0.30*s.Cronograma +
		0.20*s.Recursos +
		0.20*s.Finanzas +
		0.15*s.Flujo +
		0.10*s.Riesgos +
		0.05*CalidadScore)
}

// Semaforo maps a score to its traffic-light label.
func Semaforo(score float64) string {
	switch {
	case score >= verdeAt:
		return SemaforoVerde
	case score >= amarilloAt:
		return SemaforoAmarillo
	}
	return SemaforoRojo
}

// Summary is the one-line executive summary stored on the run.
func Summary(semaforo string) string {
	return fmt.Sprintf("El proyecto se encuentra en estado %s según el análisis integral de salud. "+
		"Revise los casos priorizados para definir las acciones de la próxima semana.", semaforo)
}
