package isp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmoiron/sqlx"
)

// ResyncCustomer re-applies the RADIUS rows of one customer, keeping the
// stored credential. It returns nil when the customer no longer exists.
func (s *Service) ResyncCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var out *model.Customer
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		out = nil
		c, err := s.customers.GetForUpdate(ctx, tx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get customer %d: %w", id, err)
		}
		if err := s.radius.Update(ctx, tx, c, nil); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ResyncPlan re-applies the RADIUS rows of every customer on the plan.
func (s *Service) ResyncPlan(ctx context.Context, planID int64) ([]model.Customer, error) {
	var out []model.Customer
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		customers, err := s.customers.ListByPlan(ctx, tx, planID)
		if err != nil {
			return fmt.Errorf("customers of plan %d: %w", planID, err)
		}
		for i := range customers {
			if err := s.radius.Update(ctx, tx, &customers[i], nil); err != nil {
				return fmt.Errorf("resync customer %d: %w", customers[i].ID, err)
			}
		}
		out = customers
		return nil
	})
	return out, err
}
