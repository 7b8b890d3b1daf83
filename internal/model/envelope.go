package model

import "time"

type EventType string

const (
	EventCustomerCreated EventType = "customer.created"
	EventCustomerUpdated EventType = "customer.updated"
	EventCustomerDeleted EventType = "customer.deleted"
	EventPlanUpdated     EventType = "plan.updated"
)

func (t EventType) String() string { return string(t) }

// Envelope is the payload written to the outbox and published to Kafka by the CDC connector.
type Envelope struct {
	ID            string    `json:"id"` // ULID
	Type          EventType `json:"type"`
	CustomerID    int64     `json:"customer_id,omitempty"`
	ServicePlanID int64     `json:"service_plan_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
