package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run both reconciliation pipelines on a schedule",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		log := mustLogger()
		log.Fatal("setting up", zap.Error(err))
	}
	defer rt.Close()

	offers, err := rt.offersPipeline()
	if err != nil {
		rt.logger.Fatal("building the offers pipeline", zap.Error(err))
	}
	postulations := rt.postulationsPipeline()

	offersSpec := rt.config.Schedule.Offers
	postulationsSpec := rt.config.Schedule.Postulations

	c := cron.New()
	_, err = c.AddFunc(offersSpec, func() {
		summary, err := offers.Run(ctx)
		if err != nil {
			rt.logger.Error("scheduled offer reconciliation failed", zap.Error(err))
			return
		}
		printSummary(summary)
	})
	if err != nil {
		rt.logger.Fatal("scheduling offers", zap.String("spec", offersSpec), zap.Error(err))
	}

	_, err = c.AddFunc(postulationsSpec, func() {
		summary, err := postulations.Run(ctx)
		if err != nil {
			rt.logger.Error("scheduled postulation reconciliation failed", zap.Error(err))
			return
		}
		printSummary(summary)
	})
	if err != nil {
		rt.logger.Fatal("scheduling postulations", zap.String("spec", postulationsSpec), zap.Error(err))
	}

	rt.logger.Info("scheduler started",
		zap.String("offers", offersSpec),
		zap.String("postulations", postulationsSpec),
	)

	c.Start()
	<-ctx.Done()

	rt.logger.Info("shutting down, waiting for running jobs")
	<-c.Stop().Done()
}
