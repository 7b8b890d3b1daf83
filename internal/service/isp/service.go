// Package isp holds the service plan, customer and billing use cases. Every
// mutation runs in one transaction together with its RADIUS rows and outbox event.
package isp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/radius"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AggregateCustomer    = "customer"
	AggregateServicePlan = "service_plan"

	DefaultEventsTopic = "isp.events"

	// detail pages embed this many related rows
	relatedLimit = 10
)

// Deps are the collaborators of Service.
type Deps struct {
	Tx        repository.TxRunner
	Plans     repository.PlansRepository
	Customers repository.CustomersRepository
	Billing   repository.BillingRepository
	Outbox    repository.OutboxRepository
	Dashboard repository.DashboardRepository
	Radius    *radius.Synchronizer
	Invoices  *invoice.Numberer
	Cache     DashboardCache // optional
	Clock     util.Clock
}

type Options struct {
	EventsTopic string
	BcryptCost  int
}

type Service struct {
	tx        repository.TxRunner
	plans     repository.PlansRepository
	customers repository.CustomersRepository
	billing   repository.BillingRepository
	outbox    repository.OutboxRepository
	dashboard repository.DashboardRepository
	radius    *radius.Synchronizer
	invoices  *invoice.Numberer
	cache     DashboardCache
	clock     util.Clock

	topic      string
	bcryptCost int
	log        *zap.Logger
}

func New(d Deps, opt Options) *Service {
	if d.Clock == nil {
		d.Clock = util.SystemClock()
	}
	if opt.EventsTopic == "" {
		opt.EventsTopic = DefaultEventsTopic
	}
	if opt.BcryptCost == 0 {
		opt.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		tx:         d.Tx,
		plans:      d.Plans,
		customers:  d.Customers,
		billing:    d.Billing,
		outbox:     d.Outbox,
		dashboard:  d.Dashboard,
		radius:     d.Radius,
		invoices:   d.Invoices,
		cache:      d.Cache,
		clock:      d.Clock,
		topic:      opt.EventsTopic,
		bcryptCost: opt.BcryptCost,
		log:        logger.Named("isp"),
	}
}

// ListResult is one page of a listing.
type ListResult[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}

func newListResult[T any](rows []T, total int64, p repository.Page) ListResult[T] {
	p = p.Normalize()
	if rows == nil {
		rows = []T{}
	}
	return ListResult[T]{Results: rows, Total: total, Limit: p.Limit, Offset: p.Offset}
}

// unit is the state of one transactional operation.
type unit struct {
	tx     *sqlx.Tx
	s      *Service
	queued []model.EventType
}

// inTx runs fn in a transaction and counts its outbox events once committed.
func (s *Service) inTx(ctx context.Context, fn func(u *unit) error) error {
	var u *unit
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		u = &unit{tx: tx, s: s}
		return fn(u)
	})
	if err != nil {
		return err
	}
	for _, t := range u.queued {
		metrics.EventsTotal.WithLabelValues("queued", t.String()).Inc()
	}
	return nil
}

// publish writes env to the outbox inside the unit's transaction.
func (u *unit) publish(ctx context.Context, aggregate string, aggregateID int64, env model.Envelope) error {
	now := u.s.clock.Now()
	env.ID = util.NewID(now)
	env.OccurredAt = now

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ev := &model.OutboxEvent{
		Aggregate:   aggregate,
		AggregateID: strconv.FormatInt(aggregateID, 10),
		Topic:       u.s.topic,
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := u.s.outbox.Insert(ctx, u.tx, ev); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	u.queued = append(u.queued, env.Type)
	return nil
}
