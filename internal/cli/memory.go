package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lucidmem/lucid/internal/config"
	"github.com/lucidmem/lucid/internal/engine"
	"github.com/lucidmem/lucid/internal/store"
	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Store, query, and manage text memories",
}

var (
	memStoreKind    string
	memStoreTags    []string
	memStoreWeight  float64
	memStoreProject string

	memQueryKind    string
	memQueryProject string
	memQueryLimit   int

	memContextBudget  int
	memContextProject string
)

var memStoreCmd = &cobra.Command{
	Use:   "store [content]",
	Short: "Store a new memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryStore,
}

var memQueryCmd = &cobra.Command{
	Use:   "query [probe]",
	Short: "Retrieve memories ranked by usefulness",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryQuery,
}

var memContextCmd = &cobra.Command{
	Use:   "context [task description]",
	Short: "Assemble task context within a token budget",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryContext,
}

var memForgetCmd = &cobra.Command{
	Use:   "forget [id]",
	Short: "Delete a memory and everything attached to it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryForget,
}

var memStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	RunE:  runMemoryStats,
}

func init() {
	memStoreCmd.Flags().StringVarP(&memStoreKind, "kind", "k", "context", "Memory kind (learning, decision, context, bug, solution, conversation)")
	memStoreCmd.Flags().StringSliceVarP(&memStoreTags, "tag", "t", nil, "Tags (repeatable)")
	memStoreCmd.Flags().Float64VarP(&memStoreWeight, "weight", "w", 0.5, "Emotional weight in [0,1]")
	memStoreCmd.Flags().StringVarP(&memStoreProject, "project", "p", "", "Project path scope")

	memQueryCmd.Flags().StringVarP(&memQueryKind, "kind", "k", "", "Filter by kind")
	memQueryCmd.Flags().StringVarP(&memQueryProject, "project", "p", "", "Filter by project path")
	memQueryCmd.Flags().IntVarP(&memQueryLimit, "limit", "n", 10, "Maximum number of results")

	memContextCmd.Flags().IntVarP(&memContextBudget, "budget", "b", 300, "Token budget")
	memContextCmd.Flags().StringVarP(&memContextProject, "project", "p", "", "Filter by project path")

	memoryCmd.AddCommand(memStoreCmd)
	memoryCmd.AddCommand(memQueryCmd)
	memoryCmd.AddCommand(memContextCmd)
	memoryCmd.AddCommand(memForgetCmd)
	memoryCmd.AddCommand(memStatsCmd)
}

// openEngine opens the database and wires an embedder: Ollama when
// reachable, TF-IDF otherwise.
func openEngine() (*engine.Engine, *store.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	eng := engine.New(db)
	cfg := config.Default()
	if engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Dimensions))
	} else if emb, err := engine.NewTFIDFEmbedder(db, 512); err == nil {
		eng.SetEmbedder(emb)
	}
	return eng, db, nil
}

func runMemoryStore(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	var projectID string
	if memStoreProject != "" {
		project, err := db.EnsureProject(memStoreProject)
		if err != nil {
			return err
		}
		projectID = project.ID
	}

	m := &store.Memory{
		Content:         strings.Join(args, " "),
		Kind:            memStoreKind,
		Tags:            memStoreTags,
		EmotionalWeight: memStoreWeight,
		ProjectID:       projectID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := eng.Store(ctx, m); err != nil {
		return err
	}
	fmt.Printf("stored %s: %s\n", m.ID, m.Gist)
	return nil
}

func runMemoryQuery(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := engine.DefaultOptions()
	opts.Kind = memQueryKind
	opts.MaxResults = memQueryLimit
	if memQueryProject != "" {
		project, err := db.GetProjectByPath(memQueryProject)
		if err != nil {
			return err
		}
		if project == nil {
			fmt.Println("no memories found")
			return nil
		}
		opts.ProjectID = project.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := eng.Retrieve(ctx, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}
	if len(result.Results) == 0 {
		fmt.Println("no memories found")
		return nil
	}
	if result.Fallback {
		fmt.Println("(no embedder available — ranked by recency and frequency only)")
	}

	for i, r := range result.Results {
		fmt.Printf("%2d. [%.3f] (%s) %s\n", i+1, r.Score, r.Memory.Kind, r.Memory.Gist)
		fmt.Printf("    id=%s sim=%.3f base=%.3f spread=%.3f p=%.3f\n",
			r.Memory.ID, r.Similarity, r.BaseLevel, r.Spreading, r.Probability)
	}
	return nil
}

func runMemoryContext(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := engine.ContextOptions{TokenBudget: memContextBudget}
	if memContextProject != "" {
		project, err := db.GetProjectByPath(memContextProject)
		if err != nil {
			return err
		}
		if project != nil {
			opts.ProjectID = project.ID
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := eng.AssembleContext(ctx, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}

	for _, m := range result.Memories {
		fmt.Printf("- (%s) %s\n", m.Kind, m.Gist)
	}
	fmt.Println(result.Summary)
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	eng := engine.New(db)
	if err := eng.Forget(args[0]); err != nil {
		return err
	}
	fmt.Printf("forgot %s\n", args[0])
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("memories:     %d\n", stats.Total)
	for kind, count := range stats.ByKind {
		fmt.Printf("  %-12s%d\n", kind+":", count)
	}
	fmt.Printf("embedded:     %d\n", stats.Embedded)
	fmt.Printf("pending:      %d\n", stats.Pending)
	fmt.Printf("associations: %d\n", stats.Associations)
	return nil
}
