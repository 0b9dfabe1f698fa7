package engine

import (
	"context"
	"fmt"
)

// charsPerToken is the rough token estimate used for context budgeting.
const charsPerToken = 4

// minContextSimilarity gates candidates out of assembled context even when
// they survived retrieval ranking.
const minContextSimilarity = 0.3

// ContextOptions controls context assembly for the current task.
type ContextOptions struct {
	TokenBudget int    // default 300
	Kind        string // optional kind filter
	ProjectID   string // optional project scope
}

// ContextMemory is one gist selected into the assembled context.
type ContextMemory struct {
	ID         string  `json:"id"`
	Gist       string  `json:"gist"`
	Kind       string  `json:"kind"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// ContextResult is the assembled context for a task.
type ContextResult struct {
	Memories []ContextMemory `json:"memories"`
	Tokens   int             `json:"tokens"`
	Summary  string          `json:"summary"`
}

// AssembleContext retrieves memories relevant to the task description and
// greedily packs their gists into the token budget, in ranked order.
func (e *Engine) AssembleContext(ctx context.Context, task string, opts ContextOptions) (*ContextResult, error) {
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = 300
	}
	charBudget := budget * charsPerToken

	retrOpts := DefaultOptions()
	retrOpts.MaxResults = 10
	retrOpts.Kind = opts.Kind
	retrOpts.ProjectID = opts.ProjectID

	retrieved, err := e.Retrieve(ctx, task, retrOpts)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	result := &ContextResult{Memories: []ContextMemory{}}
	used := 0
	for _, r := range retrieved.Results {
		// Raw similarity gate; meaningless in base-level fallback mode where
		// no similarities exist.
		if !retrieved.Fallback && r.Similarity < minContextSimilarity {
			continue
		}
		if used+len(r.Memory.Gist) > charBudget {
			continue
		}
		used += len(r.Memory.Gist)
		result.Memories = append(result.Memories, ContextMemory{
			ID:         r.Memory.ID,
			Gist:       r.Memory.Gist,
			Kind:       r.Memory.Kind,
			Score:      r.Score,
			Similarity: r.Similarity,
		})
	}

	result.Tokens = used / charsPerToken
	result.Summary = fmt.Sprintf("%d memories, ~%d tokens", len(result.Memories), result.Tokens)
	return result, nil
}
