package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BillingStatus string

const (
	BillingPending   BillingStatus = "pending"
	BillingPaid      BillingStatus = "paid"
	BillingOverdue   BillingStatus = "overdue"
	BillingCancelled BillingStatus = "cancelled"
)

func (s BillingStatus) String() string { return string(s) }

func (s BillingStatus) Valid() bool {
	switch s {
	case BillingPending, BillingPaid, BillingOverdue, BillingCancelled:
		return true
	}
	return false
}

// ParseBillingStatus normalizes input; empty => pending.
func ParseBillingStatus(s string) (BillingStatus, bool) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return BillingPending, true
	}
	st := BillingStatus(raw)
	return st, st.Valid()
}

func (s BillingStatus) Color() string {
	switch s {
	case BillingPaid:
		return "green"
	case BillingPending:
		return "blue"
	case BillingOverdue:
		return "red"
	default:
		return "gray"
	}
}

// BillingRecord is one invoice for one billing period of one customer.
type BillingRecord struct {
	ID                 int64           `db:"id" json:"id"`
	CustomerID         int64           `db:"customer_id" json:"customer_id"`
	InvoiceNumber      string          `db:"invoice_number" json:"invoice_number"`
	BillingPeriodStart time.Time       `db:"billing_period_start" json:"billing_period_start"`
	BillingPeriodEnd   time.Time       `db:"billing_period_end" json:"billing_period_end"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	DueDate            time.Time       `db:"due_date" json:"due_date"`
	Status             BillingStatus   `db:"status" json:"status"`
	PaidDate           *time.Time      `db:"paid_date" json:"paid_date"`
	Notes              *string         `db:"notes" json:"notes"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether a pending record is past its due date at now.
func (b BillingRecord) IsOverdue(now time.Time) bool {
	return b.Status == BillingPending && b.DueDate.Before(now)
}

// BillingRecordView is the API shape of a billing record.
type BillingRecordView struct {
	BillingRecord
	StatusColor string        `json:"status_color"`
	Customer    *CustomerView `json:"customer,omitempty"`
}

func NewBillingRecordView(b BillingRecord, c *CustomerView) BillingRecordView {
	return BillingRecordView{BillingRecord: b, StatusColor: b.Status.Color(), Customer: c}
}
