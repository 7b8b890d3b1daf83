package isp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BillingInput is the create/update payload of a billing record. Status and
// PaidDate are only honoured on update; a new record is always pending.
type BillingInput struct {
	CustomerID         int64            `json:"customer_id" validate:"required,gt=0"`
	BillingPeriodStart string           `json:"billing_period_start" validate:"required,datetime=2006-01-02"`
	BillingPeriodEnd   string           `json:"billing_period_end" validate:"required,datetime=2006-01-02"`
	Amount             *decimal.Decimal `json:"amount" validate:"required"`
	DueDate            string           `json:"due_date" validate:"required,datetime=2006-01-02"`
	Status             string           `json:"status" validate:"omitempty,oneof=pending paid overdue cancelled"`
	PaidDate           *string          `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	Notes              *string          `json:"notes"`
}

func (s *Service) validateBilling(ctx context.Context, in *BillingInput) error {
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.PaidDate = trimPtr(in.PaidDate)
	ve := check(in)
	checkMoney(ve, "amount", in.Amount)

	_, badStart := ve.Fields["billing_period_start"]
	_, badEnd := ve.Fields["billing_period_end"]
	if !badStart && !badEnd {
		start, _ := parseDate(in.BillingPeriodStart)
		end, _ := parseDate(in.BillingPeriodEnd)
		if !end.After(start) {
			ve.add("billing_period_end", "must be a date after billing_period_start")
		}
	}

	if _, bad := ve.Fields["customer_id"]; !bad {
		_, err := s.customers.Get(ctx, nil, in.CustomerID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			ve.add("customer_id", "selected customer does not exist")
		case err != nil:
			return fmt.Errorf("get customer %d: %w", in.CustomerID, err)
		}
	}
	return ve.orNil()
}

func (in *BillingInput) apply(b *model.BillingRecord) {
	b.CustomerID = in.CustomerID
	b.BillingPeriodStart, _ = parseDate(in.BillingPeriodStart)
	b.BillingPeriodEnd, _ = parseDate(in.BillingPeriodEnd)
	b.Amount = in.Amount.Round(2)
	b.DueDate, _ = parseDate(in.DueDate)
	b.Notes = cleanText(in.Notes)
}

func (s *Service) ListBillingRecords(ctx context.Context, f repository.BillingFilter) (ListResult[model.BillingRecordView], error) {
	rows, total, err := s.billing.List(ctx, f)
	if err != nil {
		return ListResult[model.BillingRecordView]{}, fmt.Errorf("list billing records: %w", err)
	}

	views, err := s.billingViews(ctx, rows)
	if err != nil {
		return ListResult[model.BillingRecordView]{}, err
	}
	return newListResult(views, total, f.Page), nil
}

// billingViews attaches each record's customer and plan.
func (s *Service) billingViews(ctx context.Context, rows []model.BillingRecord) ([]model.BillingRecordView, error) {
	plans := map[int64]*model.ServicePlan{}
	customers := map[int64]*model.CustomerView{}

	views := make([]model.BillingRecordView, 0, len(rows))
	for _, b := range rows {
		cv, ok := customers[b.CustomerID]
		if !ok {
			c, err := s.customers.Get(ctx, nil, b.CustomerID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return nil, fmt.Errorf("get customer %d: %w", b.CustomerID, err)
			default:
				plan, err := s.planOf(ctx, plans, c.ServicePlanID)
				if err != nil {
					return nil, err
				}
				v := model.NewCustomerView(*c, plan)
				cv = &v
			}
			customers[b.CustomerID] = cv
		}
		views = append(views, model.NewBillingRecordView(b, cv))
	}
	return views, nil
}

func (s *Service) GetBillingRecord(ctx context.Context, id int64) (model.BillingRecordView, error) {
	b, err := s.billing.Get(ctx, nil, id)
	if err != nil {
		return model.BillingRecordView{}, fmt.Errorf("get billing record %d: %w", id, err)
	}
	views, err := s.billingViews(ctx, []model.BillingRecord{*b})
	if err != nil {
		return model.BillingRecordView{}, err
	}
	return views[0], nil
}

// CreateBillingRecord stores a pending record under the next free invoice
// number of the current month.
func (s *Service) CreateBillingRecord(ctx context.Context, in BillingInput) (model.BillingRecordView, error) {
	if err := s.validateBilling(ctx, &in); err != nil {
		return model.BillingRecordView{}, err
	}

	var b model.BillingRecord
	err := s.inTx(ctx, func(u *unit) error {
		_, err := s.invoices.Assign(ctx, u.tx, func(number string) error {
			now := s.clock.Now()
			b = model.BillingRecord{
				CustomerID:    in.CustomerID,
				InvoiceNumber: number,
				Status:        model.BillingPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			in.apply(&b)
			return s.billing.Insert(ctx, u.tx, &b)
		})
		if errors.Is(err, repository.ErrForeignKey) {
			return fieldError("customer_id", "selected customer does not exist")
		}
		return err
	})
	if errors.Is(err, invoice.ErrNumberConflict) {
		return model.BillingRecordView{}, ErrInvoiceNumberConflict
	}
	if err != nil {
		return model.BillingRecordView{}, err
	}

	s.log.Info("billing record created",
		zap.Int64("billing_record_id", b.ID),
		zap.String("invoice_number", b.InvoiceNumber),
	)
	return s.GetBillingRecord(ctx, b.ID)
}

// UpdateBillingRecord overwrites the editable fields. Any status may follow
// any other. An omitted paid_date keeps the stored one; a record that ends up
// paid without one is stamped with today.
func (s *Service) UpdateBillingRecord(ctx context.Context, id int64, in BillingInput) (model.BillingRecordView, error) {
	if err := s.validateBilling(ctx, &in); err != nil {
		return model.BillingRecordView{}, err
	}

	err := s.inTx(ctx, func(u *unit) error {
		b, err := s.billing.Get(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("get billing record %d: %w", id, err)
		}
		in.apply(b)
		if in.Status != "" {
			b.Status = model.BillingStatus(in.Status)
		}
		now := s.clock.Now()
		if paid := parseOptionalDate(in.PaidDate); paid != nil {
			b.PaidDate = paid
		}
		if b.Status == model.BillingPaid && b.PaidDate == nil {
			today := util.StartOfDay(now)
			b.PaidDate = &today
		}
		b.UpdatedAt = now

		err = s.billing.Update(ctx, u.tx, b)
		if errors.Is(err, repository.ErrForeignKey) {
			return fieldError("customer_id", "selected customer does not exist")
		}
		if err != nil {
			return fmt.Errorf("update billing record %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.BillingRecordView{}, err
	}
	return s.GetBillingRecord(ctx, id)
}

// MarkPaid sets status paid and paid_date to today.
func (s *Service) MarkPaid(ctx context.Context, id int64) (model.BillingRecordView, error) {
	err := s.inTx(ctx, func(u *unit) error {
		b, err := s.billing.Get(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("get billing record %d: %w", id, err)
		}
		now := s.clock.Now()
		paid := util.StartOfDay(now)
		b.Status = model.BillingPaid
		b.PaidDate = &paid
		b.UpdatedAt = now
		if err := s.billing.Update(ctx, u.tx, b); err != nil {
			return fmt.Errorf("update billing record %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.BillingRecordView{}, err
	}
	return s.GetBillingRecord(ctx, id)
}

func (s *Service) DeleteBillingRecord(ctx context.Context, id int64) error {
	if err := s.billing.Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("delete billing record %d: %w", id, err)
	}
	return nil
}

// MarkOverdue moves pending records whose due date is before today to overdue.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.billing.MarkOverdue(ctx, nil, util.StartOfDay(now), now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		metrics.OverdueMarked.Add(float64(n))
		s.log.Info("billing records marked overdue", zap.Int64("count", n))
	}
	return n, nil
}
