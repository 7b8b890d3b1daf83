package repository

import (
	"context"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type PlanFilter struct {
	ActiveOnly bool
	Page
}

type PlansRepository interface {
	List(ctx context.Context, f PlanFilter) ([]model.ServicePlan, int64, error)
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.ServicePlan, error)
	Insert(ctx context.Context, tx *sqlx.Tx, p *model.ServicePlan) error
	Update(ctx context.Context, tx *sqlx.Tx, p *model.ServicePlan) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	CountCustomers(ctx context.Context, tx *sqlx.Tx, planID int64) (int64, error)
}

type PlansRepositoryImpl struct {
	db *sqlx.DB
}

func NewPlansRepository(db *sqlx.DB) *PlansRepositoryImpl {
	return &PlansRepositoryImpl{db: db}
}

var _ PlansRepository = (*PlansRepositoryImpl)(nil)

const planColumns = `id, name, description, price, bandwidth_mbps, data_limit_gb, is_active, created_at, updated_at`

func (r *PlansRepositoryImpl) List(ctx context.Context, f PlanFilter) ([]model.ServicePlan, int64, error) {
	pg := f.Page.Normalize()

	where := ""
	if f.ActiveOnly {
		where = " WHERE is_active = 1"
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM service_plans`+where); err != nil {
		return nil, 0, err
	}

	var rows []model.ServicePlan
	q := `SELECT ` + planColumns + ` FROM service_plans` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &rows, q, pg.Limit, pg.Offset); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *PlansRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.ServicePlan, error) {
	var p model.ServicePlan
	err := sqlx.GetContext(ctx, conn(r.db, tx), &p, `SELECT `+planColumns+` FROM service_plans WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// Insert stores p and sets its ID.
func (r *PlansRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, p *model.ServicePlan) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO service_plans
		    (name, description, price, bandwidth_mbps, data_limit_gb, is_active, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, p.Price, p.BandwidthMbps, p.DataLimitGB, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *PlansRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, p *model.ServicePlan) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE service_plans
		   SET name = ?, description = ?, price = ?, bandwidth_mbps = ?, data_limit_gb = ?, is_active = ?, updated_at = ?
		 WHERE id = ?
	`, p.Name, p.Description, p.Price, p.BandwidthMbps, p.DataLimitGB, p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *PlansRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM service_plans WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *PlansRepositoryImpl) CountCustomers(ctx context.Context, tx *sqlx.Tx, planID int64) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, conn(r.db, tx), &n, `SELECT COUNT(*) FROM customers WHERE service_plan_id = ?`, planID)
	return n, err
}
