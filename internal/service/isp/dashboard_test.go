package isp

import (
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func (s *ServiceSuite) TestDashboardStats() {
	p := s.plan("Home 50", 50)
	s.plan("Legacy", 10)
	jane := s.customer(p.ID, "jane")

	in := s.customerInput(p.ID, "john")
	in.Status = "suspended"
	_, err := s.svc.CreateCustomer(s.ctx, in)
	s.Require().NoError(err)

	paid, err := s.svc.CreateBillingRecord(s.ctx, s.billingInput(jane.ID, "29.99"))
	s.Require().NoError(err)
	_, err = s.svc.MarkPaid(s.ctx, paid.ID)
	s.Require().NoError(err)

	late := s.billingInput(jane.ID, "15.50")
	late.DueDate = "2024-03-01"
	_, err = s.svc.CreateBillingRecord(s.ctx, late)
	s.Require().NoError(err)

	d, err := s.svc.Dashboard(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(int64(2), d.Stats.TotalCustomers)
	s.Equal(int64(1), d.Stats.ActiveCustomers)
	s.Equal(int64(2), d.Stats.TotalPlans)
	s.Equal(int64(1), d.Stats.PendingInvoices)
	s.Equal("29.99", d.Stats.MonthlyRevenue.StringFixed(2))
	s.Equal("29.99", d.Stats.TotalRevenue.StringFixed(2))
	s.Len(d.RecentCustomers, 2)
	s.Len(d.RecentBilling, 2)
	s.Require().Len(d.OverdueInvoices, 1)
	s.Equal("15.50", d.OverdueInvoices[0].Amount.StringFixed(2))
}

func (s *ServiceSuite) TestDashboardCached() {
	mr := miniredis.RunT(s.T())
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()
	s.svc.cache = NewRedisCache(rds)

	p := s.plan("Home 50", 50)
	s.customer(p.ID, "jane")

	first, err := s.svc.Dashboard(s.ctx, 30*time.Second)
	s.Require().NoError(err)
	s.Equal(int64(1), first.Stats.TotalCustomers)
	s.True(mr.Exists(dashboardKey))

	s.customer(p.ID, "john")
	cached, err := s.svc.Dashboard(s.ctx, 30*time.Second)
	s.Require().NoError(err)
	s.Equal(int64(1), cached.Stats.TotalCustomers)

	mr.FastForward(31 * time.Second)
	fresh, err := s.svc.Dashboard(s.ctx, 30*time.Second)
	s.Require().NoError(err)
	s.Equal(int64(2), fresh.Stats.TotalCustomers)
}
