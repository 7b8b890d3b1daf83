package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/isp-billing/internal/config"
	"github.com/jmehdipour/isp-billing/internal/http/middleware"
	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// Routes are the dependencies of the HTTP surface.
type Routes struct {
	Service  *isp.Service
	Revenue  repository.CHRevenueRepository // nil when ClickHouse is not configured
	Redis    *redis.Client                  // nil disables rate limiting
	RPS      int
	CacheTTL time.Duration
}

// NewServer wires repositories and services over the given connections.
// clickhouseDB and rds may be nil.
func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (ClickHouse)
	var chRevenueRepo repository.CHRevenueRepository
	if clickhouseDB != nil {
		chRevenueRepo = repository.NewCHRevenueRepository(clickhouseDB)
	}

	return &Server{e: NewRouter(Routes{
		Service:  isp.NewFromDB(cfg, mysqlDB, rds),
		Revenue:  chRevenueRepo,
		Redis:    rds,
		RPS:      cfg.RateLimit.RPS,
		CacheTTL: cfg.Dashboard.CacheTTL,
	})}
}

// NewRouter builds the echo instance. Metrics collectors must be registered by the caller.
func NewRouter(r Routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          r.Redis,
		RPS:            r.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", rlMW)

	v1.GET("/service-plans", listPlansHandler(r.Service))
	v1.POST("/service-plans", createPlanHandler(r.Service))
	v1.GET("/service-plans/:id", getPlanHandler(r.Service))
	v1.PUT("/service-plans/:id", updatePlanHandler(r.Service))
	v1.DELETE("/service-plans/:id", deletePlanHandler(r.Service))

	v1.GET("/customers", listCustomersHandler(r.Service))
	v1.POST("/customers", createCustomerHandler(r.Service))
	v1.GET("/customers/:id", getCustomerHandler(r.Service))
	v1.PUT("/customers/:id", updateCustomerHandler(r.Service))
	v1.DELETE("/customers/:id", deleteCustomerHandler(r.Service))

	v1.GET("/billing-records", listBillingHandler(r.Service))
	v1.POST("/billing-records", createBillingHandler(r.Service))
	v1.GET("/billing-records/:id", getBillingHandler(r.Service))
	v1.PUT("/billing-records/:id", updateBillingHandler(r.Service))
	v1.DELETE("/billing-records/:id", deleteBillingHandler(r.Service))
	v1.POST("/billing-records/:id/pay", markPaidHandler(r.Service))

	v1.GET("/dashboard", dashboardHandler(r.Service, r.CacheTTL))
	v1.GET("/reports/revenue", revenueHandler(r.Revenue))

	return e
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
