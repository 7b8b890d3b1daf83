package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/isp-billing/internal/logger"
	"go.uber.org/zap"
)

type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

// OverdueSweeper periodically moves past-due pending invoices to overdue.
type OverdueSweeper struct {
	Marker   OverdueMarker
	Interval time.Duration
}

func NewOverdueSweeper(m OverdueMarker, interval time.Duration) *OverdueSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueSweeper{Marker: m, Interval: interval}
}

// Run sweeps once immediately, then every Interval until ctx is cancelled.
func (w *OverdueSweeper) Run(ctx context.Context) error {
	log := logger.Named("overdue")
	tick := time.NewTicker(w.Interval)
	defer tick.Stop()

	for {
		if _, err := w.Marker.MarkOverdue(ctx); err != nil && ctx.Err() == nil {
			log.Error("overdue sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}
