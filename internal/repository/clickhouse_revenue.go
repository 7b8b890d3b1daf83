package repository

import (
	"context"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHRevenueRepository reads monthly revenue from the ClickHouse replica (final view).
type CHRevenueRepository interface {
	MonthlyRevenue(ctx context.Context, months int) ([]model.RevenuePoint, error)
}

type chRevenueRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHRevenueRepository(ch *sqlx.DB) CHRevenueRepository {
	return &chRevenueRepository{ch: ch}
}

func (r *chRevenueRepository) MonthlyRevenue(ctx context.Context, months int) ([]model.RevenuePoint, error) {
	if months <= 0 || months > 60 {
		months = 12
	}

	const q = `
		SELECT
		    toStartOfMonth(assumeNotNull(paid_date)) AS month,
		    toString(sum(amount))                    AS revenue,
		    count()                                  AS paid
		FROM isp.billing_records_latest FINAL
		WHERE status = 'paid'
		  AND paid_date >= addMonths(toStartOfMonth(today()), -?)
		GROUP BY month
		ORDER BY month
	`

	var rows []model.RevenuePoint
	if err := r.ch.SelectContext(ctx, &rows, q, months-1); err != nil {
		return nil, err
	}
	return rows, nil
}
