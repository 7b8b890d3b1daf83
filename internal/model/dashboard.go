package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats are the headline counters of the operator dashboard.
type DashboardStats struct {
	TotalCustomers  int64           `db:"total_customers" json:"total_customers"`
	ActiveCustomers int64           `db:"active_customers" json:"active_customers"`
	TotalPlans      int64           `db:"total_plans" json:"total_plans"`
	ActivePlans     int64           `db:"active_plans" json:"active_plans"`
	PendingInvoices int64           `db:"pending_invoices" json:"pending_invoices"`
	OverdueInvoices int64           `db:"overdue_invoices" json:"overdue_invoices"`
	MonthlyRevenue  decimal.Decimal `db:"monthly_revenue" json:"monthly_revenue"`
	TotalRevenue    decimal.Decimal `db:"total_revenue" json:"total_revenue"`
}

type Dashboard struct {
	Stats           DashboardStats      `json:"stats"`
	RecentCustomers []CustomerView      `json:"recent_customers"`
	RecentBilling   []BillingRecordView `json:"recent_billing_records"`
	OverdueInvoices []BillingRecordView `json:"overdue_invoices"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// RevenuePoint is paid revenue for one calendar month.
type RevenuePoint struct {
	Month   time.Time       `db:"month" json:"month"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
	Paid    uint64          `db:"paid" json:"paid"`
}
