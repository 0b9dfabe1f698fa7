package engine

import (
	"context"
	"fmt"
	"log"
)

// MigrationStatus reports how far an embedding space has drifted from the
// active model.
type MigrationStatus struct {
	Model       string `json:"model"`
	NotMatching int    `json:"not_matching"`
	Pending     int    `json:"pending"`
}

// Status reports the textual embedding space against the active model tag.
func (e *Engine) Status(model string) (*MigrationStatus, error) {
	notMatching, err := e.DB.CountEmbeddingsNotMatching(model)
	if err != nil {
		return nil, err
	}
	pending, err := e.DB.PendingEmbeddingCount()
	if err != nil {
		return nil, err
	}
	return &MigrationStatus{Model: model, NotMatching: notMatching, Pending: pending}, nil
}

// VisualStatus reports the visual embedding space against the active model
// tag. The two spaces do not interfere.
func (e *Engine) VisualStatus(model string) (*MigrationStatus, error) {
	notMatching, err := e.DB.CountVisualEmbeddingsNotMatching(model)
	if err != nil {
		return nil, err
	}
	pending, err := e.DB.PendingVisualEmbeddingCount()
	if err != nil {
		return nil, err
	}
	return &MigrationStatus{Model: model, NotMatching: notMatching, Pending: pending}, nil
}

// Purge deletes stored vectors whose model tag differs from the active one.
// Their owners become pending and are rebuilt lazily by the regeneration
// sweep. Returns the number deleted.
func (e *Engine) Purge(model string) (int, error) {
	return e.DB.DeleteEmbeddingsNotMatching(model)
}

// PurgeVisual deletes visual vectors whose model tag differs.
func (e *Engine) PurgeVisual(model string) (int, error) {
	return e.DB.DeleteVisualEmbeddingsNotMatching(model)
}

// RegenerateMissing embeds one batch of memories that have no embedding row.
// Per-item failures are logged and skipped; the batch keeps going. Returns
// how many embeddings were stored.
func (e *Engine) RegenerateMissing(ctx context.Context, batchSize int) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	pending, err := e.DB.MemoriesWithoutEmbeddings(batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending memories: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, m := range pending {
		texts[i] = m.Content
	}

	vecs, err := e.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Batch call failed outright; fall back to one-at-a-time so a single
		// oversized input cannot stall the whole sweep.
		embedded := 0
		for _, m := range pending {
			if err := ctx.Err(); err != nil {
				return embedded, err
			}
			vec, err := e.Embedder.Embed(ctx, m.Content)
			if err != nil {
				log.Printf("regen: embed %s: %v", m.ID, err)
				continue
			}
			if err := e.DB.SaveEmbedding(m.ID, vec, e.Embedder.Model()); err != nil {
				log.Printf("regen: save %s: %v", m.ID, err)
				continue
			}
			embedded++
		}
		return embedded, nil
	}

	embedded := 0
	for i, m := range pending {
		if err := e.DB.SaveEmbedding(m.ID, vecs[i], e.Embedder.Model()); err != nil {
			log.Printf("regen: save %s: %v", m.ID, err)
			continue
		}
		embedded++
	}
	return embedded, nil
}
