package repository

import (
	"context"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type CustomerFilter struct {
	Status model.CustomerStatus // empty = any
	PlanID int64                // 0 = any
	Page
}

type CustomersRepository interface {
	List(ctx context.Context, f CustomerFilter) ([]model.Customer, int64, error)
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	ListByPlan(ctx context.Context, tx *sqlx.Tx, planID int64) ([]model.Customer, error)
	LatestByPlan(ctx context.Context, planID int64, limit int) ([]model.Customer, error)
	Insert(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error
	Update(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerColumns = `id, name, email, phone, address, username, password, ip_address, service_plan_id,
	status, service_start_date, service_end_date, created_at, updated_at`

func (r *CustomersRepositoryImpl) List(ctx context.Context, f CustomerFilter) ([]model.Customer, int64, error) {
	pg := f.Page.Normalize()

	where := ` WHERE 1 = 1`
	args := []any{}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.PlanID > 0 {
		where += " AND service_plan_id = ?"
		args = append(args, f.PlanID)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers`+where, args...); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, pg.Limit, pg.Offset)

	var rows []model.Customer
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *CustomersRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, conn(r.db, tx), &c, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// GetForUpdate locks the customer row until tx ends, serializing concurrent
// edits of the same subscriber and their RADIUS rows.
func (r *CustomersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, conn(r.db, tx), &c, `SELECT `+customerColumns+` FROM customers WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) ListByPlan(ctx context.Context, tx *sqlx.Tx, planID int64) ([]model.Customer, error) {
	var rows []model.Customer
	err := sqlx.SelectContext(ctx, conn(r.db, tx), &rows,
		`SELECT `+customerColumns+` FROM customers WHERE service_plan_id = ? ORDER BY id`, planID)
	return rows, err
}

func (r *CustomersRepositoryImpl) LatestByPlan(ctx context.Context, planID int64, limit int) ([]model.Customer, error) {
	var rows []model.Customer
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+customerColumns+` FROM customers WHERE service_plan_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		planID, limit)
	return rows, err
}

// Insert stores c and sets its ID.
func (r *CustomersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO customers
		    (name, email, phone, address, username, password, ip_address, service_plan_id,
		     status, service_start_date, service_end_date, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Email, c.Phone, c.Address, c.Username, c.Password, c.IPAddress, c.ServicePlanID,
		c.Status.String(), c.ServiceStartDate, c.ServiceEndDate, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CustomersRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE customers
		   SET name = ?, email = ?, phone = ?, address = ?, username = ?, password = ?, ip_address = ?,
		       service_plan_id = ?, status = ?, service_start_date = ?, service_end_date = ?, updated_at = ?
		 WHERE id = ?
	`, c.Name, c.Email, c.Phone, c.Address, c.Username, c.Password, c.IPAddress,
		c.ServicePlanID, c.Status.String(), c.ServiceStartDate, c.ServiceEndDate, c.UpdatedAt, c.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *CustomersRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}
