package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucidmem/lucid/internal/config"
	"github.com/lucidmem/lucid/internal/engine"
	"github.com/lucidmem/lucid/internal/location"
	"github.com/lucidmem/lucid/internal/server"
	"github.com/lucidmem/lucid/internal/store"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Config file path (default ~/.lucid/config.yaml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db)
	defer eng.Stop()

	// Detect and configure embedder. Without one, retrieval runs in
	// base-level-only mode — degraded, never broken.
	if engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Dimensions))
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embedding.Model)
	} else {
		emb, tfidfErr := engine.NewTFIDFEmbedder(db, 512)
		if tfidfErr != nil {
			fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", tfidfErr)
		} else {
			eng.SetEmbedder(emb)
			fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
		}
	}

	if eng.Embedder != nil {
		eng.StartRegenTimer(time.Duration(cfg.Embedding.RegenInterval)*time.Second, cfg.Embedding.RegenBatch)
	}

	locs := location.NewService(db)
	locs.CoAccessWindow = time.Duration(cfg.Location.CoAccessMinutes) * time.Minute
	locs.Decay = location.DecayOptions{
		Factor:          cfg.Location.DecayFactor,
		StickyThreshold: cfg.Location.StickyThreshold,
		Floor:           cfg.Location.Floor,
		WellKnownFloor:  cfg.Location.WellKnownFloor,
		StaleDays:       cfg.Location.StaleDays,
	}
	locs.StartDecayTimer(time.Duration(cfg.Location.DecayInterval) * time.Second)
	defer locs.Stop()

	srv := server.New(db, eng, locs, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lucid serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
