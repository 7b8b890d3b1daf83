package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmehdipour/isp-billing/internal/db"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	seedCustomerCount = 25
	seedPassword      = "password123"
	dateLayout        = "2006-01-02"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a freshly migrated database with demo plans, customers and invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Named("seed")

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		// everything goes through the service so RADIUS rows and outbox events exist
		svc := isp.NewFromDB(cfg, sqlDB, nil)
		ctx := cmd.Context()

		plans, err := seedPlans(ctx, svc)
		if err != nil {
			return err
		}
		customers, invoices, err := seedCustomers(ctx, svc, plans, time.Now().UTC())
		if err != nil {
			return err
		}

		log.Info("seed completed",
			zap.Int("plans", len(plans)),
			zap.Int("customers", customers),
			zap.Int("billing_records", invoices),
		)
		return nil
	},
}

type seedPlan struct {
	name, description string
	price             string
	bandwidth         int64
	dataLimit         *int64
	active            bool
}

var demoPlans = []seedPlan{
	{"Basic Home", "Perfect for light browsing and email. Ideal for single users.", "29.99", 10, nil, true},
	{"Family Plus", "Great for families with streaming needs. Multiple device support.", "49.99", 25, nil, true},
	{"Power User", "High-speed internet for power users and small businesses.", "79.99", 50, nil, true},
	{"Business Pro", "Professional grade internet for businesses with priority support.", "129.99", 100, nil, true},
	{"Enterprise", "Ultra-high speed for enterprise customers with dedicated support.", "249.99", 200, nil, true},
	{"Legacy Basic", "Old basic plan (discontinued).", "19.99", 5, int64ptr(100), false},
}

// seedPlans creates the demo plans and returns the active ones.
func seedPlans(ctx context.Context, svc *isp.Service) ([]model.ServicePlanView, error) {
	var active []model.ServicePlanView
	for _, p := range demoPlans {
		price := decimal.RequireFromString(p.price)
		in := isp.PlanInput{
			Name:          p.name,
			Description:   strptr(p.description),
			Price:         &price,
			BandwidthMbps: int64ptr(p.bandwidth),
			DataLimitGB:   p.dataLimit,
			IsActive:      boolptr(p.active),
		}
		view, err := svc.CreatePlan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("create plan %q: %w", p.name, err)
		}
		if view.IsActive {
			active = append(active, view)
		}
	}
	return active, nil
}

// seedCustomers creates deterministic demo customers, each with 2-6 invoices.
func seedCustomers(ctx context.Context, svc *isp.Service, plans []model.ServicePlanView, now time.Time) (int, int, error) {
	if len(plans) == 0 {
		return 0, 0, fmt.Errorf("no active plans to assign")
	}
	rnd := rand.New(rand.NewPCG(42, 2024))
	statuses := []string{"active", "active", "active", "active", "suspended", "inactive"}

	invoices := 0
	for i := 1; i <= seedCustomerCount; i++ {
		plan := plans[rnd.IntN(len(plans))]
		start := now.AddDate(0, -1-rnd.IntN(23), 0)

		in := isp.CustomerInput{
			Name:             fmt.Sprintf("Demo Customer %02d", i),
			Email:            fmt.Sprintf("customer%02d@example.com", i),
			Phone:            strptr(fmt.Sprintf("+1 555 010 %04d", i)),
			Address:          strptr(fmt.Sprintf("%d Fiber Street, Springfield", 100+i)),
			Username:         fmt.Sprintf("user%02d", i),
			Password:         strptr(seedPassword),
			ServicePlanID:    plan.ID,
			Status:           statuses[rnd.IntN(len(statuses))],
			ServiceStartDate: start.Format(dateLayout),
		}
		if rnd.IntN(10) < 7 {
			in.IPAddress = strptr(fmt.Sprintf("192.168.%d.%d", rnd.IntN(255), 1+rnd.IntN(253)))
		}

		c, err := svc.CreateCustomer(ctx, in)
		if err != nil {
			return 0, 0, fmt.Errorf("create customer %q: %w", in.Username, err)
		}

		amount := plan.Price
		for j, n := 0, 2+rnd.IntN(5); j < n; j++ {
			periodStart := now.AddDate(0, 0, -rnd.IntN(180))
			periodEnd := periodStart.AddDate(0, 1, 0)
			due := periodEnd.AddDate(0, 0, 15)

			b := isp.BillingInput{
				CustomerID:         c.ID,
				BillingPeriodStart: periodStart.Format(dateLayout),
				BillingPeriodEnd:   periodEnd.Format(dateLayout),
				Amount:             &amount,
				DueDate:            due.Format(dateLayout),
				Status:             "pending",
			}
			switch {
			case due.Before(now) && rnd.IntN(10) < 7:
				b.Status = "paid"
				b.PaidDate = strptr(periodEnd.AddDate(0, 0, rnd.IntN(15)).Format(dateLayout))
			case due.Before(now):
				b.Status = "overdue"
			case rnd.IntN(10) < 3:
				b.Status = "paid"
				b.PaidDate = strptr(periodEnd.Format(dateLayout))
			}

			// new records are always pending; settle the rest with an update
			rec, err := svc.CreateBillingRecord(ctx, b)
			if err != nil {
				return 0, 0, fmt.Errorf("create invoice for %q: %w", in.Username, err)
			}
			if b.Status != "pending" {
				if _, err := svc.UpdateBillingRecord(ctx, rec.ID, b); err != nil {
					return 0, 0, fmt.Errorf("settle invoice %s: %w", rec.InvoiceNumber, err)
				}
			}
			invoices++
		}
	}
	return seedCustomerCount, invoices, nil
}

func strptr(s string) *string { return &s }
func int64ptr(v int64) *int64 { return &v }
func boolptr(b bool) *bool    { return &b }
