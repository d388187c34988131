package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Match recent offers to user profiles and notify them",
	Run: func(cmd *cobra.Command, _ []string) {
		runOffers(cmd)
	},
}

func init() {
	rootCmd.AddCommand(offersCmd)

	offersCmd.Flags().IntP("days-back", "b", 0, "how many days of offers to scan (1-30)")
	offersCmd.Flags().Bool("dry-run", false, "analyze skill extraction without matching or notifying")

	viper.BindPFlag("pipeline.days-back", offersCmd.Flags().Lookup("days-back"))
}

func runOffers(cmd *cobra.Command) {
	ctx := context.Background()

	rt, err := newRuntime(ctx)
	if err != nil {
		log := mustLogger()
		log.Fatal("setting up", zap.Error(err))
	}
	defer rt.Close()

	p, err := rt.offersPipeline()
	if err != nil {
		rt.logger.Fatal("building the offers pipeline", zap.Error(err))
	}

	if cmd.Flag("dry-run").Value.String() == "true" {
		summary, err := p.Analyze(ctx)
		if err != nil {
			rt.logger.Fatal("analyzing offers", zap.Error(err))
		}
		printSummary(summary)
		return
	}

	summary, err := p.Run(ctx)
	if err != nil {
		rt.logger.Fatal("reconciling offers", zap.Error(err))
	}
	printSummary(summary)
}
