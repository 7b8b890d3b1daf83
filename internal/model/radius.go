package model

import "time"

const (
	RadiusPasswordAttribute = "Cleartext-Password"
	RadiusDefaultOp         = "=="
)

// RadiusAttribute is one (username, attribute, op, value) row read by the RADIUS server.
// CustomerID is a weak back-reference; the row set is rebuildable from customer + plan.
type RadiusAttribute struct {
	ID         int64     `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Attribute  string    `db:"attribute" json:"attribute"`
	Op         string    `db:"op" json:"op"`
	Value      string    `db:"value" json:"-"`
	CustomerID *int64    `db:"customer_id" json:"customer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RadiusKey identifies a row for diffing.
type RadiusKey struct {
	Username  string
	Attribute string
}

func (a RadiusAttribute) Key() RadiusKey {
	return RadiusKey{Username: a.Username, Attribute: a.Attribute}
}
