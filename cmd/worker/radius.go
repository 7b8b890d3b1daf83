package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/isp-billing/internal/coa"
	"github.com/jmehdipour/isp-billing/internal/kafka"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var radiusCmd = &cobra.Command{
	Use:   "radius",
	Short: "Consume customer/plan events, repair RADIUS rows and send CoA",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dbx, err := setup(cmd)
		if err != nil {
			return err
		}
		defer dbx.Close()
		log := logger.Named("radius")

		notifier := coa.NewNotifier(coa.EndpointsFrom(cfg.CoA), cfg.CoA.MaxAttempts)
		if !notifier.Enabled() {
			log.Warn("no CoA endpoints enabled; RADIUS rows are repaired without notifying the NAS")
		}

		kcfg := kafka.ConfigFrom(cfg.Kafka)
		consumer := kafka.NewConsumerFromConfig(kcfg)
		defer consumer.Close()

		w := worker.NewRadiusReconciler(consumer, newService(cfg, dbx), notifier)
		if cfg.Reconciler.WorkerCount > 0 {
			w.Workers = cfg.Reconciler.WorkerCount
		}

		// graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("radius reconciler started",
			zap.String("topic", kcfg.Topic),
			zap.String("group", kcfg.GroupID),
			zap.Int("workers", w.Workers),
		)
		return w.Run(ctx)
	},
}
