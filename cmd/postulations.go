package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var postulationsCmd = &cobra.Command{
	Use:   "postulations",
	Short: "Detect new applications per convocatoria and notify companies",
	Run: func(cmd *cobra.Command, _ []string) {
		runPostulations(cmd)
	},
}

func init() {
	rootCmd.AddCommand(postulationsCmd)

	postulationsCmd.Flags().Bool("overview", false, "print current totals next to stored snapshots without notifying")
}

func runPostulations(cmd *cobra.Command) {
	ctx := context.Background()

	rt, err := newRuntime(ctx)
	if err != nil {
		log := mustLogger()
		log.Fatal("setting up", zap.Error(err))
	}
	defer rt.Close()

	p := rt.postulationsPipeline()

	if cmd.Flag("overview").Value.String() == "true" {
		overview, err := p.CurrentOverview(ctx)
		if err != nil {
			rt.logger.Fatal("building the overview", zap.Error(err))
		}
		printSummary(overview)
		return
	}

	summary, err := p.Run(ctx)
	if err != nil {
		rt.logger.Fatal("reconciling postulations", zap.Error(err))
	}
	printSummary(summary)
}
