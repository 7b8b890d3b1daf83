package isp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/radius"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/testutil"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type failingOutbox struct{}

func (failingOutbox) Insert(context.Context, *sqlx.Tx, *model.OutboxEvent) error {
	return errors.New("outbox unavailable")
}

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	mem   *testutil.Memory
	clock *util.FixedClock
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = testutil.NewMemory()
	s.clock = util.NewFixedClock(time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC))
	s.svc = s.newService(s.mem.Outbox)
}

func (s *ServiceSuite) newService(outbox repository.OutboxRepository) *Service {
	sync := radius.NewSynchronizer(s.mem.Radius, s.mem.Plans, s.clock, config.RadiusConfig{
		DownloadAttribute: "WISPr-Bandwidth-Max-Down",
		UploadAttribute:   "WISPr-Bandwidth-Max-Up",
		Op:                "==",
		FallbackPassword:  "password123",
	})
	return New(Deps{
		Tx:        s.mem,
		Plans:     s.mem.Plans,
		Customers: s.mem.Customers,
		Billing:   s.mem.Billing,
		Outbox:    outbox,
		Dashboard: s.mem.Dashboard,
		Radius:    sync,
		Invoices:  invoice.NewNumberer(s.mem.Billing, s.clock, 5),
		Clock:     s.clock,
	}, Options{EventsTopic: "isp.events", BcryptCost: bcrypt.MinCost})
}

func ptr[T any](v T) *T { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (s *ServiceSuite) plan(name string, mbps int64) model.ServicePlanView {
	p, err := s.svc.CreatePlan(s.ctx, PlanInput{
		Name:          name,
		Price:         dec("29.99"),
		BandwidthMbps: ptr(mbps),
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) customerInput(planID int64, username string) CustomerInput {
	return CustomerInput{
		Name:             "Jane Doe",
		Email:            username + "@example.com",
		Phone:            ptr("+1 (555) 010-2000"),
		Username:         username,
		Password:         ptr("abc123"),
		ServicePlanID:    planID,
		Status:           "active",
		ServiceStartDate: "2024-03-01",
	}
}

func (s *ServiceSuite) customer(planID int64, username string) model.CustomerView {
	c, err := s.svc.CreateCustomer(s.ctx, s.customerInput(planID, username))
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) billingInput(customerID int64, amount string) BillingInput {
	return BillingInput{
		CustomerID:         customerID,
		BillingPeriodStart: "2024-03-01",
		BillingPeriodEnd:   "2024-03-31",
		Amount:             dec(amount),
		DueDate:            "2024-04-05",
	}
}

func (s *ServiceSuite) radiusValues(username string) map[string]string {
	out := map[string]string{}
	for _, row := range s.mem.Radius.ByUsername(username) {
		out[row.Attribute] = row.Value
	}
	return out
}

func (s *ServiceSuite) requireField(err error, field string) {
	ve, ok := IsValidation(err)
	s.Require().True(ok, "expected validation error, got %v", err)
	s.Contains(ve.Fields, field)
}

// ---- plans ----

func (s *ServiceSuite) TestCreatePlanView() {
	p, err := s.svc.CreatePlan(s.ctx, PlanInput{
		Name:          "  Home 50 ",
		Description:   ptr("<b>Fast</b> & cheap"),
		Price:         dec("29.999"),
		BandwidthMbps: ptr(int64(50)),
	})
	s.Require().NoError(err)
	s.Equal("Home 50", p.Name)
	s.Equal("Fast & cheap", *p.Description)
	s.Equal("30.00", p.Price.StringFixed(2))
	s.True(p.IsActive)
	s.Equal("50 Mbps", p.FormattedBandwidth)
	s.Equal("Unlimited", p.FormattedDataLimit)
}

func (s *ServiceSuite) TestPlanValidation() {
	_, err := s.svc.CreatePlan(s.ctx, PlanInput{Price: dec("1000000.00"), BandwidthMbps: ptr(int64(0)), DataLimitGB: ptr(int64(0))})
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	s.Contains(ve.Fields, "name")
	s.Contains(ve.Fields, "price")
	s.Contains(ve.Fields, "bandwidth_mbps")
	s.Contains(ve.Fields, "data_limit_gb")

	_, err = s.svc.CreatePlan(s.ctx, PlanInput{Name: "Neg", Price: dec("-0.01"), BandwidthMbps: ptr(int64(5))})
	s.requireField(err, "price")

	_, err = s.svc.CreatePlan(s.ctx, PlanInput{Name: "Missing"})
	s.requireField(err, "price")

	p, err := s.svc.CreatePlan(s.ctx, PlanInput{Name: "Max", Price: dec("999999.99"), BandwidthMbps: ptr(int64(1000))})
	s.Require().NoError(err)
	s.Equal("999999.99", p.Price.StringFixed(2))
}

func (s *ServiceSuite) TestPlanNameUnique() {
	s.plan("Home 50", 50)
	_, err := s.svc.CreatePlan(s.ctx, PlanInput{Name: "Home 50", Price: dec("1"), BandwidthMbps: ptr(int64(1))})
	s.requireField(err, "name")
}

func (s *ServiceSuite) TestDeletePlanInUse() {
	p := s.plan("Home 50", 50)
	s.customer(p.ID, "jane")

	err := s.svc.DeletePlan(s.ctx, p.ID)
	s.ErrorIs(err, ErrPlanInUse)

	got, err := s.svc.GetPlan(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.CustomersCount)
	s.Len(got.Customers, 1)
}

func (s *ServiceSuite) TestDeletePlan() {
	p := s.plan("Trial", 5)
	s.Require().NoError(s.svc.DeletePlan(s.ctx, p.ID))

	_, err := s.svc.GetPlan(s.ctx, p.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.svc.DeletePlan(s.ctx, p.ID), ErrNotFound)
}

func (s *ServiceSuite) TestUpdatePlanBandwidthResyncsCustomers() {
	p := s.plan("Home 50", 50)
	s.customer(p.ID, "jane")
	s.customer(p.ID, "john")
	before := len(s.mem.Outbox.Events())

	_, err := s.svc.UpdatePlan(s.ctx, p.ID, PlanInput{Name: "Home 100", Price: dec("39.99"), BandwidthMbps: ptr(int64(100))})
	s.Require().NoError(err)

	for _, u := range []string{"jane", "john"} {
		v := s.radiusValues(u)
		s.Equal("102400", v["WISPr-Bandwidth-Max-Down"], u)
		s.Equal("102400", v["WISPr-Bandwidth-Max-Up"], u)
		s.Equal("abc123", v["Cleartext-Password"], u)
	}

	events := s.mem.Outbox.Events()
	s.Require().Len(events, before+1)
	s.Equal(AggregateServicePlan, events[len(events)-1].Aggregate)
	s.Contains(string(events[len(events)-1].Payload), `"type":"plan.updated"`)
}

func (s *ServiceSuite) TestUpdatePlanSameBandwidthEmitsNothing() {
	p := s.plan("Home 50", 50)
	before := len(s.mem.Outbox.Events())
	_, err := s.svc.UpdatePlan(s.ctx, p.ID, PlanInput{Name: "Home 50 Plus", Price: dec("31"), BandwidthMbps: ptr(int64(50)), IsActive: ptr(false)})
	s.Require().NoError(err)
	s.Len(s.mem.Outbox.Events(), before)

	list, err := s.svc.ListPlans(s.ctx, repository.PlanFilter{ActiveOnly: true})
	s.Require().NoError(err)
	s.Empty(list.Results)
}

// ---- customers ----

func (s *ServiceSuite) TestCreateCustomer() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	s.Equal("green", c.StatusColor)
	s.Equal("+15550102000", *c.Phone)
	s.Require().NotNil(c.ServicePlan)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(c.Password), []byte("abc123")))

	s.Equal(map[string]string{
		"Cleartext-Password":       "abc123",
		"WISPr-Bandwidth-Max-Down": "51200",
		"WISPr-Bandwidth-Max-Up":   "51200",
	}, s.radiusValues("jane"))

	events := s.mem.Outbox.Events()
	s.Require().Len(events, 1)
	s.Equal(AggregateCustomer, events[0].Aggregate)
	s.Equal("isp.events", events[0].Topic)
	s.Contains(string(events[0].Payload), `"type":"customer.created"`)
}

func (s *ServiceSuite) TestCustomerValidation() {
	p := s.plan("Home 50", 50)

	in := s.customerInput(p.ID, "jane")
	in.Password = nil
	in.Email = "not-an-email"
	in.ServiceEndDate = ptr("2024-02-01")
	in.Status = "closed"
	in.IPAddress = ptr("10.0.0.300")
	_, err := s.svc.CreateCustomer(s.ctx, in)
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	for _, f := range []string{"password", "email", "service_end_date", "status", "ip_address"} {
		s.Contains(ve.Fields, f)
	}

	in = s.customerInput(p.ID, "jane")
	in.Password = ptr("abc")
	_, err = s.svc.CreateCustomer(s.ctx, in)
	s.requireField(err, "password")

	in = s.customerInput(p.ID+100, "jane")
	_, err = s.svc.CreateCustomer(s.ctx, in)
	s.requireField(err, "service_plan_id")

	in = s.customerInput(p.ID, "jane")
	in.ServiceStartDate = "03/01/2024"
	_, err = s.svc.CreateCustomer(s.ctx, in)
	s.requireField(err, "service_start_date")
}

func (s *ServiceSuite) TestCustomerUniqueness() {
	p := s.plan("Home 50", 50)
	s.customer(p.ID, "jane")

	in := s.customerInput(p.ID, "jane")
	in.Email = "other@example.com"
	_, err := s.svc.CreateCustomer(s.ctx, in)
	s.requireField(err, "username")

	in = s.customerInput(p.ID, "jane2")
	in.Email = "JANE@example.com"
	_, err = s.svc.CreateCustomer(s.ctx, in)
	s.requireField(err, "email")
}

func (s *ServiceSuite) TestCreateCustomerRollsBackOnOutboxFailure() {
	p := s.plan("Home 50", 50)
	svc := s.newService(failingOutbox{})

	_, err := svc.CreateCustomer(s.ctx, s.customerInput(p.ID, "jane"))
	s.Require().Error(err)

	list, err := s.svc.ListCustomers(s.ctx, repository.CustomerFilter{})
	s.Require().NoError(err)
	s.Empty(list.Results)
	s.Empty(s.mem.Radius.All())
}

func (s *ServiceSuite) TestUpdateCustomerWithoutPasswordKeepsCredentials() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	in := s.customerInput(p.ID, "jane")
	in.Password = nil
	in.Name = "Jane Roe"
	out, err := s.svc.UpdateCustomer(s.ctx, c.ID, in)
	s.Require().NoError(err)
	s.Equal("Jane Roe", out.Name)
	s.Equal(c.Password, out.Password)
	s.Equal("abc123", s.radiusValues("jane")["Cleartext-Password"])
	s.Len(s.mem.Outbox.Events(), 1)
}

func (s *ServiceSuite) TestUpdateCustomerPasswordAndPlan() {
	slow := s.plan("Home 50", 50)
	fast := s.plan("Fiber 200", 200)
	c := s.customer(slow.ID, "jane")

	in := s.customerInput(fast.ID, "jane")
	in.Password = ptr("s3cret!")
	out, err := s.svc.UpdateCustomer(s.ctx, c.ID, in)
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(out.Password), []byte("s3cret!")))

	s.Equal(map[string]string{
		"Cleartext-Password":       "s3cret!",
		"WISPr-Bandwidth-Max-Down": "204800",
		"WISPr-Bandwidth-Max-Up":   "204800",
	}, s.radiusValues("jane"))

	events := s.mem.Outbox.Events()
	s.Contains(string(events[len(events)-1].Payload), `"type":"customer.updated"`)
}

func (s *ServiceSuite) TestUpdateCustomerUsernameMovesRadiusRows() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	in := s.customerInput(p.ID, "jane.doe")
	in.Email = "jane@example.com"
	in.Password = nil
	_, err := s.svc.UpdateCustomer(s.ctx, c.ID, in)
	s.Require().NoError(err)

	s.Empty(s.radiusValues("jane"))
	s.Equal("abc123", s.radiusValues("jane.doe")["Cleartext-Password"])
	s.Len(s.mem.Radius.All(), 3)
}

func (s *ServiceSuite) TestDeleteCustomer() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	s.Require().NoError(s.svc.DeleteCustomer(s.ctx, c.ID))
	s.Empty(s.mem.Radius.All())
	_, err := s.svc.GetCustomer(s.ctx, c.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.svc.DeleteCustomer(s.ctx, c.ID), ErrNotFound)

	events := s.mem.Outbox.Events()
	s.Contains(string(events[len(events)-1].Payload), `"type":"customer.deleted"`)
}

func (s *ServiceSuite) TestDeleteCustomerWithBillingBlocked() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")
	_, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)

	s.ErrorIs(s.svc.DeleteCustomer(s.ctx, c.ID), ErrCustomerHasBillingRecords)
	s.Len(s.mem.Radius.ByUsername("jane"), 3)

	got, err := s.svc.GetCustomer(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(got.BillingRecords, 1)
}

// ---- billing ----

func (s *ServiceSuite) TestInvoiceNumbering() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	first, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)
	s.Equal("INV-2024-03-0001", first.InvoiceNumber)
	s.Equal(model.BillingPending, first.Status)
	s.Equal("blue", first.StatusColor)
	s.Require().NotNil(first.Customer)
	s.Equal("jane", first.Customer.Username)

	var last model.BillingRecordView
	for i := 0; i < 14; i++ {
		s.clock.Advance(time.Minute)
		last, err = s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
		s.Require().NoError(err)
	}
	s.Equal("INV-2024-03-0015", last.InvoiceNumber)

	s.clock.Set(time.Date(2024, 4, 1, 0, 5, 0, 0, time.UTC))
	april, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)
	s.Equal("INV-2024-04-0001", april.InvoiceNumber)
}

func (s *ServiceSuite) TestInvoiceNumberCollisionRenumbers() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	// a record created last month already holds this month's first number
	s.Require().NoError(s.mem.Billing.Insert(s.ctx, nil, &model.BillingRecord{
		CustomerID:    c.ID,
		InvoiceNumber: "INV-2024-03-0001",
		Status:        model.BillingPending,
		CreatedAt:     time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	}))

	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "10"))
	s.Require().NoError(err)
	s.Equal("INV-2024-03-0002", b.InvoiceNumber)
}

func (s *ServiceSuite) TestBillingAmountBoundaries() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "999999.99"))
	s.Require().NoError(err)
	s.Equal("999999.99", b.Amount.StringFixed(2))

	_, err = s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "1000000.00"))
	s.requireField(err, "amount")

	_, err = s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "-5"))
	s.requireField(err, "amount")

	_, err = s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "0"))
	s.NoError(err)
}

func (s *ServiceSuite) TestBillingValidation() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	in := s.billingInput(c.ID, "10")
	in.BillingPeriodEnd = in.BillingPeriodStart
	_, err := s.svc.CreateBillingRecord(s.ctx, in)
	s.requireField(err, "billing_period_end")

	in = s.billingInput(c.ID+100, "10")
	in.DueDate = ""
	_, err = s.svc.CreateBillingRecord(s.ctx, in)
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	s.Contains(ve.Fields, "customer_id")
	s.Contains(ve.Fields, "due_date")
}

func (s *ServiceSuite) TestMarkPaidAndStatusChanges() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")
	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)

	in := s.billingInput(c.ID, "29.99")
	in.Status = "cancelled"
	b2, err := s.svc.UpdateBillingRecord(s.ctx, b.ID, in)
	s.Require().NoError(err)
	s.Equal(model.BillingCancelled, b2.Status)
	s.Equal(b.InvoiceNumber, b2.InvoiceNumber)

	paid, err := s.svc.MarkPaid(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(model.BillingPaid, paid.Status)
	s.Require().NotNil(paid.PaidDate)
	s.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *paid.PaidDate)

	_, err = s.svc.MarkPaid(s.ctx, 12345)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestUpdateKeepsPaidDate() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")
	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)
	_, err = s.svc.MarkPaid(s.ctx, b.ID)
	s.Require().NoError(err)

	s.clock.Set(time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	in := s.billingInput(c.ID, "29.99")
	in.Notes = ptr("paid at the counter")
	got, err := s.svc.UpdateBillingRecord(s.ctx, b.ID, in)
	s.Require().NoError(err)
	s.Equal(model.BillingPaid, got.Status)
	s.Require().NotNil(got.PaidDate)
	s.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *got.PaidDate)

	in.PaidDate = ptr("2024-03-12")
	got, err = s.svc.UpdateBillingRecord(s.ctx, b.ID, in)
	s.Require().NoError(err)
	s.Require().NotNil(got.PaidDate)
	s.Equal(time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), *got.PaidDate)
}

func (s *ServiceSuite) TestUpdateToPaidStampsToday() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")
	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "29.99"))
	s.Require().NoError(err)

	in := s.billingInput(c.ID, "29.99")
	in.Status = "paid"
	got, err := s.svc.UpdateBillingRecord(s.ctx, b.ID, in)
	s.Require().NoError(err)
	s.Require().NotNil(got.PaidDate)
	s.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *got.PaidDate)
}

func (s *ServiceSuite) TestInvoiceNumberingAfterDeletes() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	var ids []int64
	for i := 0; i < 12; i++ {
		s.clock.Advance(time.Minute)
		b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "10"))
		s.Require().NoError(err)
		ids = append(ids, b.ID)
	}
	for _, id := range ids[:6] {
		s.Require().NoError(s.svc.DeleteBillingRecord(s.ctx, id))
	}

	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "10"))
	s.Require().NoError(err)
	s.Equal("INV-2024-03-0013", b.InvoiceNumber)

	b, err = s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "10"))
	s.Require().NoError(err)
	s.Equal("INV-2024-03-0014", b.InvoiceNumber)
}

func (s *ServiceSuite) TestMarkOverdue() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	due := s.billingInput(c.ID, "10")
	due.DueDate = "2024-03-09"
	old, err := s.svc.CreateBillingRecord(s.ctx, due)
	s.Require().NoError(err)

	today := s.billingInput(c.ID, "10")
	today.DueDate = "2024-03-10"
	current, err := s.svc.CreateBillingRecord(s.ctx, today)
	s.Require().NoError(err)

	n, err := s.svc.MarkOverdue(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.svc.GetBillingRecord(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Equal(model.BillingOverdue, got.Status)
	s.Equal("red", got.StatusColor)

	got, err = s.svc.GetBillingRecord(s.ctx, current.ID)
	s.Require().NoError(err)
	s.Equal(model.BillingPending, got.Status)
}

func (s *ServiceSuite) TestDeleteBillingRecord() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")
	b, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(c.ID, "10"))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.DeleteBillingRecord(s.ctx, b.ID))
	s.ErrorIs(s.svc.DeleteBillingRecord(s.ctx, b.ID), ErrNotFound)
	s.NoError(s.svc.DeleteCustomer(s.ctx, c.ID))
}

// ---- reconcile ----

func (s *ServiceSuite) TestResyncCustomerRepairsRows() {
	p := s.plan("Home 50", 50)
	c := s.customer(p.ID, "jane")

	rows := s.mem.Radius.ByUsername("jane")
	_, err := s.mem.Radius.DeleteByIDs(s.ctx, nil, []int64{rows[1].ID})
	s.Require().NoError(err)

	got, err := s.svc.ResyncCustomer(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("jane", got.Username)
	s.Len(s.mem.Radius.ByUsername("jane"), 3)

	got, err = s.svc.ResyncCustomer(s.ctx, 9999)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *ServiceSuite) TestResyncPlan() {
	p := s.plan("Home 50", 50)
	a := s.customer(p.ID, "jane")
	b := s.customer(p.ID, "john")

	customers, err := s.svc.ResyncPlan(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(customers, 2)
	s.ElementsMatch([]int64{a.ID, b.ID}, []int64{customers[0].ID, customers[1].ID})
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
