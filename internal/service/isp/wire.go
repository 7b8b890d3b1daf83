package isp

import (
	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/radius"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// NewFromDB wires MySQL repositories into a Service. rds may be nil, which
// disables dashboard caching.
func NewFromDB(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client) *Service {
	clock := util.SystemClock()

	plansRepo := repository.NewPlansRepository(mysqlDB)
	billingRepo := repository.NewBillingRepository(mysqlDB)

	var cache DashboardCache
	if rds != nil {
		cache = NewRedisCache(rds)
	}

	return New(Deps{
		Tx:        repository.NewTxRunner(mysqlDB),
		Plans:     plansRepo,
		Customers: repository.NewCustomersRepository(mysqlDB),
		Billing:   billingRepo,
		Outbox:    repository.NewOutboxRepository(mysqlDB),
		Dashboard: repository.NewDashboardRepository(mysqlDB),
		Radius:    radius.NewSynchronizer(repository.NewRadiusRepository(mysqlDB), plansRepo, clock, cfg.Radius),
		Invoices:  invoice.NewNumberer(billingRepo, clock, cfg.Billing.InvoiceAttempts),
		Cache:     cache,
		Clock:     clock,
	}, Options{
		EventsTopic: cfg.Kafka.Topic,
		BcryptCost:  cfg.Customers.BcryptCost,
	})
}
