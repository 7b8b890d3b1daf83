package isp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CustomerInput is the create/update payload of a customer. Password is
// required on create and optional on update.
type CustomerInput struct {
	Name             string  `json:"name" validate:"required,max=255"`
	Email            string  `json:"email" validate:"required,email,max=255"`
	Phone            *string `json:"phone" validate:"omitempty,max=20"`
	Address          *string `json:"address"`
	Username         string  `json:"username" validate:"required,max=255"`
	Password         *string `json:"password" validate:"omitempty,min=6"`
	IPAddress        *string `json:"ip_address" validate:"omitempty,ip"`
	ServicePlanID    int64   `json:"service_plan_id" validate:"required,gt=0"`
	Status           string  `json:"status" validate:"required,oneof=active suspended inactive"`
	ServiceStartDate string  `json:"service_start_date" validate:"required,datetime=2006-01-02"`
	ServiceEndDate   *string `json:"service_end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (in *CustomerInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.IPAddress = trimPtr(in.IPAddress)
	in.ServiceEndDate = trimPtr(in.ServiceEndDate)
	if p := trimPtr(in.Phone); p != nil {
		n := util.NormalizePhone(*p)
		in.Phone = &n
	} else {
		in.Phone = nil
	}
}

func (s *Service) validateCustomer(ctx context.Context, in *CustomerInput, creating bool) error {
	in.normalize()
	ve := check(in)

	if creating && in.Password == nil {
		ve.add("password", "is required")
	}

	if _, bad := ve.Fields["service_start_date"]; !bad {
		start, _ := parseDate(in.ServiceStartDate)
		if end := parseOptionalDate(in.ServiceEndDate); end != nil && end.Before(start) {
			ve.add("service_end_date", "must be a date after or equal to service_start_date")
		}
	}

	if _, bad := ve.Fields["service_plan_id"]; !bad {
		_, err := s.plans.Get(ctx, nil, in.ServicePlanID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			ve.add("service_plan_id", "selected service plan does not exist")
		case err != nil:
			return fmt.Errorf("get plan %d: %w", in.ServicePlanID, err)
		}
	}
	return ve.orNil()
}

func (in *CustomerInput) apply(c *model.Customer) {
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Address = cleanText(in.Address)
	c.Username = in.Username
	c.IPAddress = in.IPAddress
	c.ServicePlanID = in.ServicePlanID
	c.Status = model.CustomerStatus(in.Status)
	c.ServiceStartDate, _ = parseDate(in.ServiceStartDate)
	c.ServiceEndDate = parseOptionalDate(in.ServiceEndDate)
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// customerWriteErr maps storage errors of a customer insert/update.
func customerWriteErr(err error) error {
	if errors.Is(err, repository.ErrForeignKey) {
		return fieldError("service_plan_id", "selected service plan does not exist")
	}
	return uniqueViolation(err, "email", "username")
}

func (s *Service) ListCustomers(ctx context.Context, f repository.CustomerFilter) (ListResult[model.CustomerView], error) {
	rows, total, err := s.customers.List(ctx, f)
	if err != nil {
		return ListResult[model.CustomerView]{}, fmt.Errorf("list customers: %w", err)
	}

	plans := map[int64]*model.ServicePlan{}
	views := make([]model.CustomerView, 0, len(rows))
	for _, c := range rows {
		plan, err := s.planOf(ctx, plans, c.ServicePlanID)
		if err != nil {
			return ListResult[model.CustomerView]{}, err
		}
		views = append(views, model.NewCustomerView(c, plan))
	}
	return newListResult(views, total, f.Page), nil
}

// planOf loads a plan through a per-request memo; a missing plan is nil.
func (s *Service) planOf(ctx context.Context, memo map[int64]*model.ServicePlan, id int64) (*model.ServicePlan, error) {
	if p, ok := memo[id]; ok {
		return p, nil
	}
	p, err := s.plans.Get(ctx, nil, id)
	if errors.Is(err, repository.ErrNotFound) {
		p, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %d: %w", id, err)
	}
	memo[id] = p
	return p, nil
}

// GetCustomer returns the customer with its plan and latest billing records.
func (s *Service) GetCustomer(ctx context.Context, id int64) (model.CustomerView, error) {
	c, err := s.customers.Get(ctx, nil, id)
	if err != nil {
		return model.CustomerView{}, fmt.Errorf("get customer %d: %w", id, err)
	}
	plan, err := s.planOf(ctx, map[int64]*model.ServicePlan{}, c.ServicePlanID)
	if err != nil {
		return model.CustomerView{}, err
	}
	records, err := s.billing.LatestByCustomer(ctx, id, relatedLimit)
	if err != nil {
		return model.CustomerView{}, fmt.Errorf("latest billing of customer %d: %w", id, err)
	}

	v := model.NewCustomerView(*c, plan)
	v.BillingRecords = records
	return v, nil
}

// CreateCustomer stores the customer, its RADIUS rows and a customer.created
// event in one transaction.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (model.CustomerView, error) {
	if err := s.validateCustomer(ctx, &in, true); err != nil {
		return model.CustomerView{}, err
	}

	hashed, err := s.hash(*in.Password)
	if err != nil {
		return model.CustomerView{}, err
	}

	now := s.clock.Now()
	c := model.Customer{Password: hashed, CreatedAt: now, UpdatedAt: now}
	in.apply(&c)

	err = s.inTx(ctx, func(u *unit) error {
		if err := s.customers.Insert(ctx, u.tx, &c); err != nil {
			return customerWriteErr(fmt.Errorf("insert customer: %w", err))
		}
		if err := s.radius.Create(ctx, u.tx, &c, *in.Password); err != nil {
			return fmt.Errorf("create radius rows: %w", err)
		}
		return u.publish(ctx, AggregateCustomer, c.ID, model.Envelope{
			Type:          model.EventCustomerCreated,
			CustomerID:    c.ID,
			ServicePlanID: c.ServicePlanID,
			Username:      c.Username,
		})
	})
	if err != nil {
		return model.CustomerView{}, err
	}

	s.log.Info("customer created", zap.Int64("customer_id", c.ID), zap.String("username", c.Username))
	plan, _ := s.planOf(ctx, map[int64]*model.ServicePlan{}, c.ServicePlanID)
	return model.NewCustomerView(c, plan), nil
}

// UpdateCustomer saves the customer. RADIUS rows are reconciled when the
// password, plan or username changed; an omitted password keeps the hash.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (model.CustomerView, error) {
	if err := s.validateCustomer(ctx, &in, false); err != nil {
		return model.CustomerView{}, err
	}

	var newHash string
	if in.Password != nil {
		h, err := s.hash(*in.Password)
		if err != nil {
			return model.CustomerView{}, err
		}
		newHash = h
	}

	var out model.Customer
	err := s.inTx(ctx, func(u *unit) error {
		c, err := s.customers.GetForUpdate(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("get customer %d: %w", id, err)
		}
		prevPlan, prevUsername := c.ServicePlanID, c.Username

		in.apply(c)
		if in.Password != nil {
			c.Password = newHash
		}
		c.UpdatedAt = s.clock.Now()

		if err := s.customers.Update(ctx, u.tx, c); err != nil {
			return customerWriteErr(fmt.Errorf("update customer %d: %w", id, err))
		}
		out = *c

		if in.Password == nil && c.ServicePlanID == prevPlan && c.Username == prevUsername {
			return nil
		}
		if err := s.radius.Update(ctx, u.tx, c, in.Password); err != nil {
			return fmt.Errorf("update radius rows: %w", err)
		}
		return u.publish(ctx, AggregateCustomer, c.ID, model.Envelope{
			Type:          model.EventCustomerUpdated,
			CustomerID:    c.ID,
			ServicePlanID: c.ServicePlanID,
			Username:      c.Username,
		})
	})
	if err != nil {
		return model.CustomerView{}, err
	}

	plan, _ := s.planOf(ctx, map[int64]*model.ServicePlan{}, out.ServicePlanID)
	return model.NewCustomerView(out, plan), nil
}

// DeleteCustomer removes the customer and its RADIUS rows. Customers with
// billing records are kept.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(u *unit) error {
		c, err := s.customers.GetForUpdate(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("get customer %d: %w", id, err)
		}
		n, err := s.billing.CountByCustomer(ctx, u.tx, id)
		if err != nil {
			return fmt.Errorf("count billing of customer %d: %w", id, err)
		}
		if n > 0 {
			return ErrCustomerHasBillingRecords
		}

		if err := s.radius.Delete(ctx, u.tx, id); err != nil {
			return err
		}
		err = s.customers.Delete(ctx, u.tx, id)
		if errors.Is(err, repository.ErrForeignKey) {
			return ErrCustomerHasBillingRecords
		}
		if err != nil {
			return fmt.Errorf("delete customer %d: %w", id, err)
		}
		return u.publish(ctx, AggregateCustomer, id, model.Envelope{
			Type:       model.EventCustomerDeleted,
			CustomerID: id,
			Username:   c.Username,
		})
	})
}
