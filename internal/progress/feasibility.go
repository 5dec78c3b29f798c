package progress

import "time"

// DefaultFeasibilityThreshold is two thirds of a day. Above it a daily workload is
// considered unfeasible even though it still fits in 24 hours.
const DefaultFeasibilityThreshold = 16 * time.Hour

const dayLength = 24 * time.Hour

// Level classifies how achievable a daily workload is
type Level string

const (
	Feasible   Level = "feasible"
	Unfeasible Level = "unfeasible"
	Impossible Level = "impossible"
)

// Feasibility is a level plus, for feasible and unfeasible workloads, how far the
// workload is from the upper bound of its band (1 = no work, 0 = at the bound).
type Feasibility struct {
	Level    Level
	Relative float64
}

// ClassifyFeasibility places a per-day workload into its band. A non-positive threshold,
// or one of a day or more, falls back to DefaultFeasibilityThreshold.
func ClassifyFeasibility(perDay, threshold time.Duration) Feasibility {
	if threshold <= 0 || threshold >= dayLength {
		threshold = DefaultFeasibilityThreshold
	}
	switch {
	case perDay < threshold:
		return Feasibility{Level: Feasible, Relative: 1 - float64(perDay)/float64(threshold)}
	case perDay < dayLength:
		return Feasibility{Level: Unfeasible, Relative: 1 - float64(perDay)/float64(dayLength)}
	default:
		return Feasibility{Level: Impossible}
	}
}
