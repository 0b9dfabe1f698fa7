package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lucidmem/lucid/internal/store"
)

// Options controls a retrieval call. Weights are used as given — they are
// never normalized, since users tune them.
type Options struct {
	MaxResults     int
	MinProbability float64

	Decay     float64 // base-level decay exponent d
	Noise     float64 // logistic noise s
	Threshold float64 // logistic threshold τ

	ProbeWeight     float64
	BaseLevelWeight float64
	SpreadingWeight float64

	Kind      string // filter by memory kind (empty = all)
	ProjectID string // filter by project scope (empty = all)

	Vector []float64 // pre-computed probe vector; skips the embed step
}

// DefaultOptions returns the standard retrieval configuration.
func DefaultOptions() Options {
	return Options{
		MaxResults:      10,
		MinProbability:  0.1,
		Decay:           0.5,
		Noise:           0.25,
		Threshold:       0.0,
		ProbeWeight:     0.4,
		BaseLevelWeight: 0.3,
		SpreadingWeight: 0.3,
	}
}

func (o Options) maxResults() int {
	if o.MaxResults <= 0 {
		return 10
	}
	return o.MaxResults
}

// Result is one ranked memory with its score breakdown.
type Result struct {
	Memory      store.Memory `json:"memory"`
	Score       float64      `json:"score"`
	Similarity  float64      `json:"similarity"`
	BaseLevel   float64      `json:"base_level"`
	Spreading   float64      `json:"spreading"`
	Probability float64      `json:"probability"`
}

// RetrievalResult is the outcome of one retrieval call.
type RetrievalResult struct {
	Results  []Result `json:"results"`
	Fallback bool     `json:"fallback"` // base-level-only ranking was used
}

// Retrieve ranks stored memories against a probe and returns the top
// candidates. Given an identical store snapshot, options, probe vector, and
// clock reading, the ranking is deterministic.
//
// Side effect: each returned memory gets one access record, all sharing the
// single now captured at call entry. Memories filtered out by probability or
// truncation are not reinforced. Nothing else is written.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) (*RetrievalResult, error) {
	if opts.ProbeWeight < 0 || opts.BaseLevelWeight < 0 || opts.SpreadingWeight < 0 {
		return nil, fmt.Errorf("negative ranking weight: %w", ErrInvariant)
	}

	now := time.Now().UnixMilli()

	probe, err := e.probeVector(ctx, query, opts)
	fallback := err != nil || len(probe) == 0

	candidates, err := e.DB.ListMemories(opts.Kind, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return &RetrievalResult{Fallback: fallback}, nil
	}

	ids := make([]string, len(candidates))
	for i, m := range candidates {
		ids[i] = m.ID
	}

	histories, err := e.DB.AccessTimesFor(ids)
	if err != nil {
		return nil, fmt.Errorf("load access histories: %w", err)
	}

	var vectors map[string][]float64
	var edges map[string][]store.Association
	if !fallback {
		edges, err = e.DB.AssociationsForAll(ids)
		if err != nil {
			return nil, fmt.Errorf("load associations: %w", err)
		}

		// Spreading needs neighbor vectors too, even for neighbors outside
		// the candidate scope.
		idSet := make(map[string]bool, len(ids))
		for _, id := range ids {
			idSet[id] = true
		}
		fetch := append([]string(nil), ids...)
		for _, es := range edges {
			for _, a := range es {
				for _, end := range []string{a.SourceID, a.TargetID} {
					if !idSet[end] {
						idSet[end] = true
						fetch = append(fetch, end)
					}
				}
			}
		}
		vectors, err = e.DB.EmbeddingsFor(fetch)
		if err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
	}

	var results []Result
	for _, m := range candidates {
		r := Result{Memory: m, BaseLevel: BaseLevel(histories[m.ID], now, opts.Decay)}

		if fallback {
			r.Score = r.BaseLevel
		} else {
			vec, ok := vectors[m.ID]
			if !ok {
				// Similarity mode skips candidates without embeddings; a
				// malformed candidate must not poison the batch.
				continue
			}
			sim, err := Cosine(probe, vec)
			if err != nil {
				continue
			}
			r.Similarity = sim
			r.Spreading = Spread(probe, m.ID, edges[m.ID], vectors)
			r.Score = opts.ProbeWeight*Cube(sim) +
				opts.BaseLevelWeight*r.BaseLevel +
				opts.SpreadingWeight*r.Spreading
		}

		r.Probability = RetrievalProbability(r.Score, opts.Threshold, opts.Noise)
		// The probability gate belongs to cognitive ranking; the recency
		// fallback ranks everything and truncates.
		if !fallback && r.Probability < opts.MinProbability {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		li := lastAccess(histories[results[i].Memory.ID])
		lj := lastAccess(histories[results[j].Memory.ID])
		if li != lj {
			return li > lj
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if max := opts.maxResults(); len(results) > max {
		results = results[:max]
	}

	// Retrieval reinforcement: returned memories are themselves accessed.
	returned := make([]string, len(results))
	for i, r := range results {
		returned[i] = r.Memory.ID
	}
	if err := e.DB.RecordAccesses(returned, now); err != nil {
		return nil, fmt.Errorf("record retrieval accesses: %w", err)
	}

	return &RetrievalResult{Results: results, Fallback: fallback}, nil
}

// probeVector resolves the probe embedding. A missing embedder, provider
// failure, or expired deadline all degrade to base-level-only ranking — the
// caller sees a fallback result, never an error.
func (e *Engine) probeVector(ctx context.Context, query string, opts Options) ([]float64, error) {
	if len(opts.Vector) > 0 {
		return opts.Vector, nil
	}
	if query == "" || e.Embedder == nil {
		return nil, ErrMissingEmbedding
	}

	vec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed probe: %w", err)
	}
	return vec, nil
}

func lastAccess(history []int64) int64 {
	if len(history) == 0 {
		return 0
	}
	return history[len(history)-1]
}
