package cli

import (
	"os"

	"github.com/lucidmem/lucid/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lucid",
	Short: "Cognitive retrieval engine for assistant memory",
	Long:  "Lucid ranks stored memories by usefulness, not just similarity: semantic match, recency and frequency, spreading activation, and emotional salience. Single Go binary backed by SQLite.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("LUCID_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
