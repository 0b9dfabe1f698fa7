package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lucidmem/lucid/internal/store"
)

// Engine orchestrates cognitive retrieval: similarity, base-level activation,
// spreading activation, and the embedding lifecycle. All state lives in the
// backing store; an Engine is safe for concurrent use.
type Engine struct {
	DB       *store.DB
	Embedder Embedder
	stopCh   chan struct{}
}

// New creates a new Engine.
func New(db *store.DB) *Engine {
	return &Engine{
		DB:     db,
		stopCh: make(chan struct{}),
	}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// Store persists a new memory and embeds it if a provider is configured.
// Embedding failures are logged, not fatal — the memory stays pending and the
// background regeneration sweep picks it up later.
func (e *Engine) Store(ctx context.Context, m *store.Memory) error {
	if err := e.DB.CreateMemory(m); err != nil {
		return err
	}

	if e.Embedder != nil {
		vec, err := e.Embedder.Embed(ctx, m.Content)
		if err != nil {
			log.Printf("store: embed %s: %v", m.ID, err)
			return nil
		}
		if err := e.DB.SaveEmbedding(m.ID, vec, e.Embedder.Model()); err != nil {
			log.Printf("store: save embedding %s: %v", m.ID, err)
		}
	}
	return nil
}

// Forget deletes a memory. Its embedding, access records, and associations
// cascade with it.
func (e *Engine) Forget(id string) error {
	deleted, err := e.DB.DeleteMemory(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("forget %s: %w", id, ErrNotFound)
	}
	return nil
}

// Associate upserts a weighted edge between two memories. Both endpoints
// must exist.
func (e *Engine) Associate(sourceID, targetID string, strength float64, kind string) error {
	for _, id := range []string{sourceID, targetID} {
		m, err := e.DB.GetMemory(id)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("associate %s: %w", id, ErrNotFound)
		}
	}
	return e.DB.UpsertAssociation(sourceID, targetID, strength, kind)
}

// StartRegenTimer regenerates missing embeddings in batches on a fixed
// cadence until Stop is called. Errors are logged and never propagate.
func (e *Engine) StartRegenTimer(interval time.Duration, batchSize int) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n, err := e.RegenerateMissing(context.Background(), batchSize); err != nil {
					log.Printf("regen error: %v", err)
				} else if n > 0 {
					log.Printf("regen: embedded %d memories", n)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
