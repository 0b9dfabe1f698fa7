package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lucidmem/lucid/internal/engine"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the embedding lifecycle across model changes",
}

var (
	migrateModel  string
	migrateVisual bool
	migrateBatch  int
)

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Count embeddings not produced by the active model",
	RunE:  runMigrateStatus,
}

var migratePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete embeddings not produced by the active model",
	RunE:  runMigratePurge,
}

var migrateRegenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate missing embeddings in batches",
	RunE:  runMigrateRegen,
}

func init() {
	for _, c := range []*cobra.Command{migrateStatusCmd, migratePurgeCmd, migrateRegenCmd} {
		c.Flags().StringVarP(&migrateModel, "model", "m", "", "Active model tag (default: configured embedder)")
		c.Flags().BoolVar(&migrateVisual, "visual", false, "Operate on the visual embedding space")
	}
	migrateRegenCmd.Flags().IntVarP(&migrateBatch, "batch", "b", 10, "Batch size")

	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migratePurgeCmd)
	migrateCmd.AddCommand(migrateRegenCmd)
}

// resolveModel returns the model tag to migrate toward: the flag if given,
// else the live embedder's tag.
func resolveModel(eng *engine.Engine) (string, error) {
	if migrateModel != "" {
		return migrateModel, nil
	}
	if eng.Embedder != nil {
		return eng.Embedder.Model(), nil
	}
	return "", fmt.Errorf("no embedder reachable; pass --model")
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	model, err := resolveModel(eng)
	if err != nil {
		return err
	}

	var status *engine.MigrationStatus
	if migrateVisual {
		status, err = eng.VisualStatus(model)
	} else {
		status, err = eng.Status(model)
	}
	if err != nil {
		return err
	}

	fmt.Printf("model:        %s\n", status.Model)
	fmt.Printf("not matching: %d\n", status.NotMatching)
	fmt.Printf("pending:      %d\n", status.Pending)
	return nil
}

func runMigratePurge(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	model, err := resolveModel(eng)
	if err != nil {
		return err
	}

	var deleted int
	if migrateVisual {
		deleted, err = eng.PurgeVisual(model)
	} else {
		deleted, err = eng.Purge(model)
	}
	if err != nil {
		return err
	}
	fmt.Printf("purged %d embeddings; owners pending regeneration\n", deleted)
	return nil
}

func runMigrateRegen(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	if eng.Embedder == nil {
		return fmt.Errorf("no embedder reachable; cannot regenerate")
	}

	total := 0
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		n, err := eng.RegenerateMissing(ctx, migrateBatch)
		cancel()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		total += n
		fmt.Printf("embedded %d (total %d)\n", n, total)
	}
	fmt.Printf("regeneration complete: %d embeddings\n", total)
	return nil
}
