package model

import (
	"strings"
	"time"
)

type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerInactive  CustomerStatus = "inactive"
)

func (s CustomerStatus) String() string { return string(s) }

func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerSuspended || s == CustomerInactive
}

// ParseCustomerStatus normalizes input. Returns (value, true) if valid.
func ParseCustomerStatus(s string) (CustomerStatus, bool) {
	st := CustomerStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Color is the badge color used by the operator UI.
func (s CustomerStatus) Color() string {
	switch s {
	case CustomerActive:
		return "green"
	case CustomerSuspended:
		return "yellow"
	case CustomerInactive:
		return "red"
	default:
		return "gray"
	}
}

// Customer is a subscriber. Password holds the bcrypt hash and is never serialized.
type Customer struct {
	ID               int64          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Email            string         `db:"email" json:"email"`
	Phone            *string        `db:"phone" json:"phone"`
	Address          *string        `db:"address" json:"address"`
	Username         string         `db:"username" json:"username"`
	Password         string         `db:"password" json:"-"`
	IPAddress        *string        `db:"ip_address" json:"ip_address"`
	ServicePlanID    int64          `db:"service_plan_id" json:"service_plan_id"`
	Status           CustomerStatus `db:"status" json:"status"`
	ServiceStartDate time.Time      `db:"service_start_date" json:"service_start_date"`
	ServiceEndDate   *time.Time     `db:"service_end_date" json:"service_end_date"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// CustomerView is the API shape of a customer.
type CustomerView struct {
	Customer
	StatusColor    string          `json:"status_color"`
	ServicePlan    *ServicePlan    `json:"service_plan,omitempty"`
	BillingRecords []BillingRecord `json:"billing_records,omitempty"`
}

func NewCustomerView(c Customer, plan *ServicePlan) CustomerView {
	return CustomerView{Customer: c, StatusColor: c.Status.Color(), ServicePlan: plan}
}
