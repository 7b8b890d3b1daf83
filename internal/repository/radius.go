package repository

import (
	"context"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

// RadiusRepository persists the attribute rows read by the RADIUS server (radcheck-style).
type RadiusRepository interface {
	ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.RadiusAttribute, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error
	Update(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error
	DeleteByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error)
	DeleteByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error)
}

type RadiusRepositoryImpl struct {
	db *sqlx.DB
}

func NewRadiusRepository(db *sqlx.DB) *RadiusRepositoryImpl {
	return &RadiusRepositoryImpl{db: db}
}

var _ RadiusRepository = (*RadiusRepositoryImpl)(nil)

const radiusColumns = `id, username, attribute, op, value, customer_id, created_at, updated_at`

func (r *RadiusRepositoryImpl) ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.RadiusAttribute, error) {
	var rows []model.RadiusAttribute
	err := sqlx.SelectContext(ctx, conn(r.db, tx), &rows,
		`SELECT `+radiusColumns+` FROM radius_users WHERE customer_id = ? ORDER BY id`, customerID)
	return rows, err
}

// Upsert inserts a row or takes over the existing (username, attribute) row,
// e.g. one orphaned by a deleted customer.
func (r *RadiusRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error {
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO radius_users (username, attribute, op, value, customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    op = VALUES(op),
		    value = VALUES(value),
		    customer_id = VALUES(customer_id),
		    updated_at = VALUES(updated_at)
	`, a.Username, a.Attribute, a.Op, a.Value, a.CustomerID, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (r *RadiusRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, a *model.RadiusAttribute) error {
	res, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE radius_users SET username = ?, op = ?, value = ?, updated_at = ? WHERE id = ?`,
		a.Username, a.Op, a.Value, a.UpdatedAt, a.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *RadiusRepositoryImpl) DeleteByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM radius_users WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := conn(r.db, tx).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RadiusRepositoryImpl) DeleteByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error) {
	res, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM radius_users WHERE customer_id = ?`, customerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
