package engine

import "github.com/lucidmem/lucid/internal/store"

// Spread computes one-hop spreading activation for a memory: the probe's
// similarity to each associated neighbor, weighted by edge strength and
// normalized by the total incident edge count (fan effect — well-connected
// nodes contribute less per edge).
//
// Edges whose far endpoint has no embedding contribute 0. Negative
// similarities are floored at 0 before weighting. Activation does not travel
// further than one hop.
func Spread(probe []float64, memoryID string, edges []store.Association, embeddings map[string][]float64) float64 {
	if len(edges) == 0 || len(probe) == 0 {
		return 0
	}

	var sum float64
	for _, e := range edges {
		other := e.Other(memoryID)
		vec, ok := embeddings[other]
		if !ok {
			continue
		}
		sim, err := Cosine(probe, vec)
		if err != nil || sim <= 0 {
			continue
		}
		sum += e.Strength * sim
	}
	return sum / float64(len(edges))
}
