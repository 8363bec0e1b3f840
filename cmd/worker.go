package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/application"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume dataset events (Kafka or Redis Streams) and index them. Deploy separately from api.",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	w, err := application.NewWorker(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker starting", zap.String("driver", cfg.Events.Driver))
	if err := w.Run(ctx); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}
