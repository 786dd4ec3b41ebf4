package analysis

import "math"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ratio returns num/den, or fallback when den is zero.
func ratio(num, den, fallback float64) float64 {
	if den == 0 {
		return fallback
	}
	return num / den
}

// Leaves returns the tasks no other task points to as parent.
func Leaves(tasks []Task) []Task {
	parents := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		if t.PadreID != nil {
			parents[*t.PadreID] = true
		}
	}

	leaves := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !parents[t.ID] {
			leaves = append(leaves, t)
		}
	}
	return leaves
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
