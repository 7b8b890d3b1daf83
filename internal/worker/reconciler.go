package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/isp-billing/internal/coa"
	"github.com/jmehdipour/isp-billing/internal/kafka"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/model"
	"go.uber.org/zap"
)

// Source is the subset of kafka.Consumer the reconciler reads from.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Resyncer re-applies RADIUS rows from the authoritative customer and plan rows.
type Resyncer interface {
	ResyncCustomer(ctx context.Context, id int64) (*model.Customer, error)
	ResyncPlan(ctx context.Context, planID int64) ([]model.Customer, error)
}

type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, req coa.Request) error
}

// RadiusReconciler:
// - fetches customer/plan events from Kafka,
// - re-applies the affected customers' RADIUS rows,
// - sends a CoA so live sessions pick up the change.
type RadiusReconciler struct {
	Source   Source
	Resync   Resyncer
	Notifier Notifier // optional
	Workers  int

	log *zap.Logger
}

func NewRadiusReconciler(src Source, resync Resyncer, notifier Notifier) *RadiusReconciler {
	return &RadiusReconciler{
		Source:   src,
		Resync:   resync,
		Notifier: notifier,
		Workers:  4,
		log:      logger.Named("radius-reconciler"),
	}
}

// Run starts the worker and blocks until ctx is cancelled and in-flight
// messages are done.
func (w *RadiusReconciler) Run(ctx context.Context) error {
	if w.Source == nil || w.Resync == nil {
		return errors.New("radius-reconciler: missing source or resyncer")
	}
	if w.Workers <= 0 {
		w.Workers = 4
	}
	if w.log == nil {
		w.log = logger.Named("radius-reconciler")
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				w.processOne(ctx, m)
			}
		}()
	}

	wg.Wait()
	return nil
}

func (w *RadiusReconciler) processOne(ctx context.Context, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.Type == "" {
		// poison → commit, skip
		metrics.EventsTotal.WithLabelValues("skipped", "invalid").Inc()
		w.log.Warn("bad envelope", zap.Error(err), zap.Int64("offset", m.Offset))
		w.commit(ctx, m)
		return
	}

	if err := w.Handle(ctx, env); err != nil {
		metrics.EventsTotal.WithLabelValues("failed", env.Type.String()).Inc()
		w.log.Error("event handling failed",
			zap.String("event_id", env.ID),
			zap.String("type", env.Type.String()),
			zap.Error(err),
		)
	} else {
		metrics.EventsTotal.WithLabelValues("processed", env.Type.String()).Inc()
	}

	// Always commit (at-least-once; the next change event repairs again)
	w.commit(ctx, m)
}

func (w *RadiusReconciler) commit(ctx context.Context, m kafka.Message) {
	if err := w.Source.Commit(ctx, m); err != nil && ctx.Err() == nil {
		w.log.Warn("kafka commit failed", zap.Error(err))
	}
}

// Handle applies one event.
func (w *RadiusReconciler) Handle(ctx context.Context, env model.Envelope) error {
	switch env.Type {
	case model.EventCustomerCreated, model.EventCustomerUpdated:
		c, err := w.Resync.ResyncCustomer(ctx, env.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			metrics.EventsTotal.WithLabelValues("skipped", env.Type.String()).Inc()
			return nil
		}
		w.notify(ctx, coa.Request{Action: coa.ActionUpdate, CustomerID: c.ID, Username: c.Username, Reason: env.Type.String()})
		return nil

	case model.EventCustomerDeleted:
		// rows are gone already; drop any live session
		w.notify(ctx, coa.Request{Action: coa.ActionDisconnect, CustomerID: env.CustomerID, Username: env.Username, Reason: env.Type.String()})
		return nil

	case model.EventPlanUpdated:
		customers, err := w.Resync.ResyncPlan(ctx, env.ServicePlanID)
		if err != nil {
			return err
		}
		for _, c := range customers {
			w.notify(ctx, coa.Request{Action: coa.ActionUpdate, CustomerID: c.ID, Username: c.Username, Reason: env.Type.String()})
		}
		return nil

	default:
		metrics.EventsTotal.WithLabelValues("skipped", env.Type.String()).Inc()
		return nil
	}
}

func (w *RadiusReconciler) notify(ctx context.Context, req coa.Request) {
	if w.Notifier == nil || !w.Notifier.Enabled() {
		return
	}
	err := w.Notifier.Notify(ctx, req)
	if coa.IsSessionNotFound(err) {
		w.log.Debug("no live session to update", zap.String("username", req.Username))
		return
	}
	if err != nil {
		w.log.Warn("coa notification failed",
			zap.Int64("customer_id", req.CustomerID),
			zap.String("username", req.Username),
			zap.Error(err),
		)
	}
}
