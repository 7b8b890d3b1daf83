package isp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dashboardKey = "ispb:dashboard"
	recentLimit  = 5
	overdueLimit = 10
)

// DashboardCache stores the rendered dashboard between requests.
type DashboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type RedisCache struct {
	rds *redis.Client
}

func NewRedisCache(rds *redis.Client) *RedisCache {
	return &RedisCache{rds: rds}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rds.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rds.Set(ctx, key, val, ttl).Err()
}

// Dashboard aggregates the operator overview. With a cache and ttl > 0 the
// result is reused for ttl.
func (s *Service) Dashboard(ctx context.Context, ttl time.Duration) (model.Dashboard, error) {
	useCache := s.cache != nil && ttl > 0
	if useCache {
		if raw, ok, err := s.cache.Get(ctx, dashboardKey); err != nil {
			s.log.Warn("dashboard cache read failed", zap.Error(err))
		} else if ok {
			var d model.Dashboard
			if err := json.Unmarshal(raw, &d); err == nil {
				return d, nil
			}
		}
	}

	d, err := s.buildDashboard(ctx)
	if err != nil {
		return model.Dashboard{}, err
	}

	if useCache {
		if raw, err := json.Marshal(d); err == nil {
			if err := s.cache.Set(ctx, dashboardKey, raw, ttl); err != nil {
				s.log.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return d, nil
}

func (s *Service) buildDashboard(ctx context.Context) (model.Dashboard, error) {
	now := s.clock.Now()
	monthStart, monthEnd := util.MonthBounds(now)

	stats, err := s.dashboard.Stats(ctx, monthStart, monthEnd)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("dashboard stats: %w", err)
	}

	customers, err := s.dashboard.RecentCustomers(ctx, recentLimit)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("recent customers: %w", err)
	}
	plans := map[int64]*model.ServicePlan{}
	recentCustomers := make([]model.CustomerView, 0, len(customers))
	for _, c := range customers {
		plan, err := s.planOf(ctx, plans, c.ServicePlanID)
		if err != nil {
			return model.Dashboard{}, err
		}
		recentCustomers = append(recentCustomers, model.NewCustomerView(c, plan))
	}

	billing, err := s.dashboard.RecentBilling(ctx, recentLimit)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("recent billing: %w", err)
	}
	recentBilling, err := s.billingViews(ctx, billing)
	if err != nil {
		return model.Dashboard{}, err
	}

	due, err := s.dashboard.PendingDueBefore(ctx, util.StartOfDay(now), overdueLimit)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("overdue invoices: %w", err)
	}
	overdue, err := s.billingViews(ctx, due)
	if err != nil {
		return model.Dashboard{}, err
	}

	return model.Dashboard{
		Stats:           stats,
		RecentCustomers: recentCustomers,
		RecentBilling:   recentBilling,
		OverdueInvoices: overdue,
		GeneratedAt:     now,
	}, nil
}
