package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ServicePlan is a priced bandwidth tier a customer subscribes to.
type ServicePlan struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	BandwidthMbps int64           `db:"bandwidth_mbps" json:"bandwidth_mbps"`
	DataLimitGB   *int64          `db:"data_limit_gb" json:"data_limit_gb"` // nil = unlimited
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// FormattedBandwidth renders the plan speed, e.g. "50 Mbps".
func (p ServicePlan) FormattedBandwidth() string {
	return fmt.Sprintf("%d Mbps", p.BandwidthMbps)
}

// FormattedDataLimit renders the monthly cap or "Unlimited".
func (p ServicePlan) FormattedDataLimit() string {
	if p.DataLimitGB == nil || *p.DataLimitGB == 0 {
		return "Unlimited"
	}
	return fmt.Sprintf("%d GB", *p.DataLimitGB)
}

// ServicePlanView is the API shape of a plan, with display values and usage.
type ServicePlanView struct {
	ServicePlan
	FormattedBandwidth string     `json:"formatted_bandwidth"`
	FormattedDataLimit string     `json:"formatted_data_limit"`
	CustomersCount     int64      `json:"customers_count"`
	Customers          []Customer `json:"customers,omitempty"`
}

func NewServicePlanView(p ServicePlan, customersCount int64) ServicePlanView {
	return ServicePlanView{
		ServicePlan:        p,
		FormattedBandwidth: p.FormattedBandwidth(),
		FormattedDataLimit: p.FormattedDataLimit(),
		CustomersCount:     customersCount,
	}
}
