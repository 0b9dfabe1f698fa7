package engine

import "math"

// BaseLevel computes ACT-R base-level activation from an access-time series:
//
//	B = ln( Σ_k max(1, (now − t_k)/1000)^(−d) )
//
// Timestamps are in milliseconds; elapsed time is floored at one second so
// just-accessed and simultaneous accesses stay finite. An empty history
// yields 0, not -Inf.
func BaseLevel(accesses []int64, now int64, decay float64) float64 {
	if len(accesses) == 0 {
		return 0
	}
	if decay <= 0 {
		decay = 0.5
	}

	var sum float64
	for _, t := range accesses {
		elapsed := float64(now-t) / 1000.0
		if elapsed < 1 {
			elapsed = 1
		}
		sum += math.Pow(elapsed, -decay)
	}
	return math.Log(sum)
}

// RetrievalProbability maps combined activation to a retrieval probability
// via the logistic function P = 1/(1 + exp((τ − A)/s)). Used for filtering,
// not re-ranking. Non-positive noise degenerates to a step at the threshold.
func RetrievalProbability(activation, threshold, noise float64) float64 {
	if noise <= 0 {
		if activation >= threshold {
			return 1
		}
		return 0
	}
	return 1.0 / (1.0 + math.Exp((threshold-activation)/noise))
}
