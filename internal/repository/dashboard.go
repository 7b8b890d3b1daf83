package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type DashboardRepository interface {
	Stats(ctx context.Context, monthStart, monthEnd time.Time) (model.DashboardStats, error)
	RecentCustomers(ctx context.Context, limit int) ([]model.Customer, error)
	RecentBilling(ctx context.Context, limit int) ([]model.BillingRecord, error)
	// PendingDueBefore lists pending records whose due date has passed, oldest due first.
	PendingDueBefore(ctx context.Context, day time.Time, limit int) ([]model.BillingRecord, error)
}

type DashboardRepositoryImpl struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepositoryImpl {
	return &DashboardRepositoryImpl{db: db}
}

var _ DashboardRepository = (*DashboardRepositoryImpl)(nil)

func (r *DashboardRepositoryImpl) Stats(ctx context.Context, monthStart, monthEnd time.Time) (model.DashboardStats, error) {
	const q = `
		SELECT
		    (SELECT COUNT(*) FROM customers) AS total_customers,
		    (SELECT COUNT(*) FROM customers WHERE status = 'active') AS active_customers,
		    (SELECT COUNT(*) FROM service_plans) AS total_plans,
		    (SELECT COUNT(*) FROM service_plans WHERE is_active = 1) AS active_plans,
		    (SELECT COUNT(*) FROM billing_records WHERE status = 'pending') AS pending_invoices,
		    (SELECT COUNT(*) FROM billing_records WHERE status = 'overdue') AS overdue_invoices,
		    (SELECT COALESCE(SUM(amount), 0) FROM billing_records
		      WHERE status = 'paid' AND paid_date >= ? AND paid_date < ?) AS monthly_revenue,
		    (SELECT COALESCE(SUM(amount), 0) FROM billing_records WHERE status = 'paid') AS total_revenue
	`
	var s model.DashboardStats
	err := r.db.GetContext(ctx, &s, q, monthStart, monthEnd)
	return s, err
}

func (r *DashboardRepositoryImpl) RecentCustomers(ctx context.Context, limit int) ([]model.Customer, error) {
	var rows []model.Customer
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	return rows, err
}

func (r *DashboardRepositoryImpl) RecentBilling(ctx context.Context, limit int) ([]model.BillingRecord, error) {
	var rows []model.BillingRecord
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+billingColumns+` FROM billing_records ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	return rows, err
}

func (r *DashboardRepositoryImpl) PendingDueBefore(ctx context.Context, day time.Time, limit int) ([]model.BillingRecord, error) {
	var rows []model.BillingRecord
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+billingColumns+` FROM billing_records WHERE status = 'pending' AND due_date < ? ORDER BY due_date, id LIMIT ?`,
		day, limit)
	return rows, err
}
