package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/service/isp"
	echo "github.com/labstack/echo/v4"
)

func dashboardHandler(svc *isp.Service, cacheTTL time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		d, err := svc.Dashboard(c.Request().Context(), cacheTTL)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, d)
	}
}

// revenueHandler serves monthly paid revenue from the ClickHouse replica.
func revenueHandler(chRepo repository.CHRevenueRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if chRepo == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "reports disabled"})
		}

		months := 12
		if v := c.QueryParam("months"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 60 {
				months = n
			}
		}

		points, err := chRepo.MonthlyRevenue(c.Request().Context(), months)
		if err != nil {
			c.Logger().Errorf("clickhouse revenue failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"months":  months,
			"count":   len(points),
			"results": points,
		})
	}
}
