// Package radius keeps the radius_users attribute rows of each customer in
// line with the customer's credentials and service plan.
package radius

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Store is the persistence the synchronizer needs; repository.RadiusRepositoryImpl satisfies it.
type Store interface {
	ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.RadiusAttribute, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error
	Update(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error
	DeleteByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error)
	DeleteByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error)
}

// PlanLookup resolves a customer's service plan.
type PlanLookup interface {
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.ServicePlan, error)
}

// KbpsPerMbps converts plan bandwidth to the kilobit values NAS vendors expect.
const KbpsPerMbps = 1024

// Synchronizer writes the radius_users rows of a customer inside the caller's transaction.
type Synchronizer struct {
	store    Store
	plans    PlanLookup
	clock    util.Clock
	download string
	upload   string
	op       string
	fallback string
	log      *zap.Logger
}

func NewSynchronizer(store Store, plans PlanLookup, clock util.Clock, cfg config.RadiusConfig) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		plans:    plans,
		clock:    clock,
		download: cfg.DownloadAttribute,
		upload:   cfg.UploadAttribute,
		op:       cfg.Op,
		fallback: cfg.FallbackPassword,
		log:      logger.Named("radius"),
	}
	if s.download == "" {
		s.download = "WISPr-Bandwidth-Max-Down"
	}
	if s.upload == "" {
		s.upload = "WISPr-Bandwidth-Max-Up"
	}
	if s.op == "" {
		s.op = model.RadiusDefaultOp
	}
	return s
}

// Desired builds the complete row set for c: the credential row, plus the
// download and upload rows when plan is non-nil.
func (s *Synchronizer) Desired(c *model.Customer, plan *model.ServicePlan, password string) []model.RadiusAttribute {
	id := c.ID
	rows := []model.RadiusAttribute{{
		Username:   c.Username,
		Attribute:  model.RadiusPasswordAttribute,
		Op:         s.op,
		Value:      password,
		CustomerID: &id,
	}}
	if plan == nil {
		return rows
	}

	kbps := strconv.FormatInt(plan.BandwidthMbps*KbpsPerMbps, 10)
	for _, attr := range []string{s.download, s.upload} {
		rows = append(rows, model.RadiusAttribute{
			Username:   c.Username,
			Attribute:  attr,
			Op:         s.op,
			Value:      kbps,
			CustomerID: &id,
		})
	}
	return rows
}

// Create writes the row set of a new customer.
func (s *Synchronizer) Create(ctx context.Context, tx *sqlx.Tx, c *model.Customer, password string) error {
	err := s.sync(ctx, tx, c, &password)
	observe("create", err)
	return err
}

// Update reconciles the row set of c. A nil password keeps the stored credential.
func (s *Synchronizer) Update(ctx context.Context, tx *sqlx.Tx, c *model.Customer, password *string) error {
	err := s.sync(ctx, tx, c, password)
	observe("update", err)
	return err
}

// Delete removes every row of the customer. Deleting twice is a no-op.
func (s *Synchronizer) Delete(ctx context.Context, tx *sqlx.Tx, customerID int64) error {
	n, err := s.store.DeleteByCustomer(ctx, tx, customerID)
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete radius rows: %w", err)
	}
	metrics.RadiusRowChanges.WithLabelValues("delete").Add(float64(n))
	return nil
}

func (s *Synchronizer) sync(ctx context.Context, tx *sqlx.Tx, c *model.Customer, password *string) error {
	plan, err := s.resolvePlan(ctx, tx, c.ServicePlanID)
	if err != nil {
		return err
	}

	existing, err := s.store.ListByCustomer(ctx, tx, c.ID)
	if err != nil {
		return fmt.Errorf("list radius rows: %w", err)
	}

	secret := s.credential(c, existing, password)
	desired := s.Desired(c, plan, secret)

	byKey := make(map[model.RadiusKey]model.RadiusAttribute, len(existing))
	for _, row := range existing {
		byKey[row.Key()] = row
	}

	now := s.clock.Now()
	var stale []int64
	keep := make(map[model.RadiusKey]bool, len(desired))
	for _, d := range desired {
		keep[d.Key()] = true
	}
	for _, row := range existing {
		if !keep[row.Key()] {
			stale = append(stale, row.ID)
		}
	}

	// Stale rows go first so a renamed username can reuse its old keys.
	if len(stale) > 0 {
		n, err := s.store.DeleteByIDs(ctx, tx, stale)
		if err != nil {
			return fmt.Errorf("delete stale radius rows: %w", err)
		}
		metrics.RadiusRowChanges.WithLabelValues("delete").Add(float64(n))
	}

	for i := range desired {
		d := desired[i]
		cur, ok := byKey[d.Key()]
		switch {
		case !ok:
			d.CreatedAt, d.UpdatedAt = now, now
			if err := s.store.Upsert(ctx, tx, &d); err != nil {
				return fmt.Errorf("insert radius row %s: %w", d.Attribute, err)
			}
			metrics.RadiusRowChanges.WithLabelValues("insert").Inc()
		case cur.Op != d.Op || cur.Value != d.Value:
			cur.Op, cur.Value, cur.UpdatedAt = d.Op, d.Value, now
			if err := s.store.Update(ctx, tx, &cur); err != nil {
				return fmt.Errorf("update radius row %s: %w", d.Attribute, err)
			}
			metrics.RadiusRowChanges.WithLabelValues("update").Inc()
		}
	}
	return nil
}

// credential picks the value of the Cleartext-Password row.
func (s *Synchronizer) credential(c *model.Customer, existing []model.RadiusAttribute, password *string) string {
	if password != nil {
		return *password
	}
	for _, row := range existing {
		if row.Attribute == model.RadiusPasswordAttribute {
			return row.Value
		}
	}
	s.log.Warn("no plaintext credential available, writing fallback password",
		zap.Int64("customer_id", c.ID),
		zap.String("username", c.Username),
	)
	return s.fallback
}

func (s *Synchronizer) resolvePlan(ctx context.Context, tx *sqlx.Tx, id int64) (*model.ServicePlan, error) {
	if id <= 0 || s.plans == nil {
		return nil, nil
	}
	plan, err := s.plans.Get(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve plan %d: %w", id, err)
	}
	return plan, nil
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RadiusSyncTotal.WithLabelValues(op, result).Inc()
}
