package isp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlanInput is the create/update payload of a service plan.
type PlanInput struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	BandwidthMbps *int64           `json:"bandwidth_mbps" validate:"required,min=1"`
	DataLimitGB   *int64           `json:"data_limit_gb" validate:"omitempty,min=1"`
	IsActive      *bool            `json:"is_active"`
}

func (in *PlanInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	ve := check(in)
	checkMoney(ve, "price", in.Price)
	return ve.orNil()
}

func (in *PlanInput) apply(p *model.ServicePlan) {
	p.Name = in.Name
	p.Description = cleanText(in.Description)
	p.Price = in.Price.Round(2)
	p.BandwidthMbps = *in.BandwidthMbps
	p.DataLimitGB = in.DataLimitGB
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func (s *Service) ListPlans(ctx context.Context, f repository.PlanFilter) (ListResult[model.ServicePlanView], error) {
	rows, total, err := s.plans.List(ctx, f)
	if err != nil {
		return ListResult[model.ServicePlanView]{}, fmt.Errorf("list plans: %w", err)
	}

	views := make([]model.ServicePlanView, 0, len(rows))
	for _, p := range rows {
		n, err := s.plans.CountCustomers(ctx, nil, p.ID)
		if err != nil {
			return ListResult[model.ServicePlanView]{}, fmt.Errorf("count customers of plan %d: %w", p.ID, err)
		}
		views = append(views, model.NewServicePlanView(p, n))
	}
	return newListResult(views, total, f.Page), nil
}

// GetPlan returns the plan with its customer count and latest customers.
func (s *Service) GetPlan(ctx context.Context, id int64) (model.ServicePlanView, error) {
	p, err := s.plans.Get(ctx, nil, id)
	if err != nil {
		return model.ServicePlanView{}, fmt.Errorf("get plan %d: %w", id, err)
	}
	n, err := s.plans.CountCustomers(ctx, nil, id)
	if err != nil {
		return model.ServicePlanView{}, fmt.Errorf("count customers of plan %d: %w", id, err)
	}
	latest, err := s.customers.LatestByPlan(ctx, id, relatedLimit)
	if err != nil {
		return model.ServicePlanView{}, fmt.Errorf("latest customers of plan %d: %w", id, err)
	}

	v := model.NewServicePlanView(*p, n)
	v.Customers = latest
	return v, nil
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (model.ServicePlanView, error) {
	if err := in.validate(); err != nil {
		return model.ServicePlanView{}, err
	}

	now := s.clock.Now()
	p := model.ServicePlan{IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(&p)

	if err := s.plans.Insert(ctx, nil, &p); err != nil {
		return model.ServicePlanView{}, uniqueViolation(fmt.Errorf("insert plan: %w", err), "name")
	}
	return model.NewServicePlanView(p, 0), nil
}

// UpdatePlan saves the plan. A bandwidth change rewrites the RADIUS bandwidth
// rows of every customer on the plan in the same transaction.
func (s *Service) UpdatePlan(ctx context.Context, id int64, in PlanInput) (model.ServicePlanView, error) {
	if err := in.validate(); err != nil {
		return model.ServicePlanView{}, err
	}

	var (
		out     model.ServicePlan
		count   int64
		resyncd int
	)
	err := s.inTx(ctx, func(u *unit) error {
		p, err := s.plans.Get(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("get plan %d: %w", id, err)
		}
		oldBandwidth := p.BandwidthMbps

		in.apply(p)
		p.UpdatedAt = s.clock.Now()
		if err := s.plans.Update(ctx, u.tx, p); err != nil {
			return uniqueViolation(fmt.Errorf("update plan %d: %w", id, err), "name")
		}
		out = *p

		customers, err := s.customers.ListByPlan(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("customers of plan %d: %w", id, err)
		}
		count = int64(len(customers))

		if p.BandwidthMbps == oldBandwidth {
			return nil
		}
		for i := range customers {
			if err := s.radius.Update(ctx, u.tx, &customers[i], nil); err != nil {
				return fmt.Errorf("resync radius of customer %d: %w", customers[i].ID, err)
			}
		}
		resyncd = len(customers)
		return u.publish(ctx, AggregateServicePlan, id, model.Envelope{
			Type:          model.EventPlanUpdated,
			ServicePlanID: id,
		})
	})
	if err != nil {
		return model.ServicePlanView{}, err
	}

	if resyncd > 0 {
		s.log.Info("plan bandwidth changed, radius rows resynced",
			zap.Int64("plan_id", id),
			zap.Int("customers", resyncd),
		)
	}
	return model.NewServicePlanView(out, count), nil
}

// DeletePlan refuses to delete a plan that still has customers.
func (s *Service) DeletePlan(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(u *unit) error {
		if _, err := s.plans.Get(ctx, u.tx, id); err != nil {
			return fmt.Errorf("get plan %d: %w", id, err)
		}
		n, err := s.plans.CountCustomers(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("count customers of plan %d: %w", id, err)
		}
		if n > 0 {
			return ErrPlanInUse
		}

		err = s.plans.Delete(ctx, u.tx, id)
		if errors.Is(err, repository.ErrForeignKey) {
			return ErrPlanInUse
		}
		if err != nil {
			return fmt.Errorf("delete plan %d: %w", id, err)
		}
		return nil
	})
}
