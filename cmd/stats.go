package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print notified-offer ledger statistics",
	Run: func(_ *cobra.Command, _ []string) {
		runStats()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// runStats only touches the local store, so it skips the analytics
// connection the full runtime would open.
func runStats() {
	ctx := context.Background()

	zlog := mustLogger()

	config, err := getConfig()
	if err != nil || config == nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	db, err := store.NewSQLite(config.StorePath)
	if err != nil {
		zlog.Fatal("opening store", zap.String("path", config.StorePath), zap.Error(err))
	}
	defer db.Close()

	stats, err := db.LedgerStats(ctx)
	if err != nil {
		zlog.Fatal("reading ledger statistics", zap.Error(err))
	}
	printSummary(stats)
}
