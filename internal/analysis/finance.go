package analysis

// Earned-value fractions of BAC. Real cost tracking is not available yet, so
// PV, EV and AC are modelled as fixed shares of the budget.
const (
	pvShare = 0.50
	evShare = 0.45
	acShare = 0.52

	onBudgetScore = 75.0
)

// FinanceMetrics is the persisted payload of the finanzas domain. Money is COP.
type FinanceMetrics struct {
	Score     float64 `json:"score"`
	Tareas    int     `json:"tareas"`
	HorasPlan float64 `json:"horas_plan"`
	BAC       float64 `json:"bac"`
	PV        float64 `json:"pv"`
	EV        float64 `json:"ev"`
	AC        float64 `json:"ac"`
	CPI       float64 `json:"cpi"`
	SPI       float64 `json:"spi"`
	EAC       float64 `json:"eac"`
	ETC       float64 `json:"etc"`
	VAC       float64 `json:"vac"`
	BurnRate  float64 `json:"burn_rate"`
}

// CalculateFinance derives EVM figures from the leaf task count. Derived
// figures are computed from the already-rounded indices so that
// EAC = BAC/CPI and VAC = BAC-EAC hold on the reported values.
func CalculateFinance(tasks []Task) FinanceMetrics {
	n := len(Leaves(tasks))
	hours := float64(n) * HoursPerTask
	bac := round2(hours * HourlyRate)

	m := FinanceMetrics{
		Tareas:    n,
		HorasPlan: hours,
		BAC:       bac,
		PV:        round2(pvShare * bac),
		EV:        round2(evShare * bac),
		AC:        round2(acShare * bac),
	}
	m.CPI = round2(ratio(m.EV, m.AC, 1))
	m.SPI = round2(ratio(m.EV, m.PV, 1))
	if m.CPI != 0 {
		m.EAC = round2(m.BAC / m.CPI)
	}
	m.ETC = round2(m.EAC - m.AC)
	m.VAC = round2(m.BAC - m.EAC)
	m.BurnRate = round2(ratio(m.AC, hours, 0))

	score := onBudgetScore
	if m.CPI < 1 {
		score = 70*m.CPI + 20*m.SPI - 20
	}
	m.Score = round2(clamp(score, 0, 100))
	return m
}
