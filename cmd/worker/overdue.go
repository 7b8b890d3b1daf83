package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Periodically mark past-due pending invoices as overdue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dbx, err := setup(cmd)
		if err != nil {
			return err
		}
		defer dbx.Close()

		w := worker.NewOverdueSweeper(newService(cfg, dbx), cfg.Billing.OverdueInterval)

		// graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Named("overdue").Info("overdue sweeper started", zap.Duration("interval", w.Interval))
		return w.Run(ctx)
	},
}
