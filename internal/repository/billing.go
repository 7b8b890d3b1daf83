package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type BillingFilter struct {
	Status     model.BillingStatus // empty = any
	CustomerID int64               // 0 = any
	Page
}

type BillingRepository interface {
	List(ctx context.Context, f BillingFilter) ([]model.BillingRecord, int64, error)
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.BillingRecord, error)
	Insert(ctx context.Context, tx *sqlx.Tx, b *model.BillingRecord) error
	Update(ctx context.Context, tx *sqlx.Tx, b *model.BillingRecord) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	CountCreatedBetween(ctx context.Context, tx *sqlx.Tx, from, to time.Time) (int64, error)
	HighestSequence(ctx context.Context, tx *sqlx.Tx, prefix string) (int64, error)
	CountByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error)
	LatestByCustomer(ctx context.Context, customerID int64, limit int) ([]model.BillingRecord, error)
	MarkOverdue(ctx context.Context, tx *sqlx.Tx, dueBefore, now time.Time) (int64, error)
}

type BillingRepositoryImpl struct {
	db *sqlx.DB
}

func NewBillingRepository(db *sqlx.DB) *BillingRepositoryImpl {
	return &BillingRepositoryImpl{db: db}
}

var _ BillingRepository = (*BillingRepositoryImpl)(nil)

const billingColumns = `id, customer_id, invoice_number, billing_period_start, billing_period_end, amount,
	due_date, status, paid_date, notes, created_at, updated_at`

func (r *BillingRepositoryImpl) List(ctx context.Context, f BillingFilter) ([]model.BillingRecord, int64, error) {
	pg := f.Page.Normalize()

	where := ` WHERE 1 = 1`
	args := []any{}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.CustomerID > 0 {
		where += " AND customer_id = ?"
		args = append(args, f.CustomerID)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM billing_records`+where, args...); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + billingColumns + ` FROM billing_records` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, pg.Limit, pg.Offset)

	var rows []model.BillingRecord
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *BillingRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.BillingRecord, error) {
	var b model.BillingRecord
	err := sqlx.GetContext(ctx, conn(r.db, tx), &b, `SELECT `+billingColumns+` FROM billing_records WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

// Insert stores b and sets its ID. A clash on invoice_number comes back as a *DuplicateError.
func (r *BillingRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, b *model.BillingRecord) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO billing_records
		    (customer_id, invoice_number, billing_period_start, billing_period_end, amount,
		     due_date, status, paid_date, notes, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.CustomerID, b.InvoiceNumber, b.BillingPeriodStart, b.BillingPeriodEnd, b.Amount,
		b.DueDate, b.Status.String(), b.PaidDate, b.Notes, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (r *BillingRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, b *model.BillingRecord) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE billing_records
		   SET customer_id = ?, billing_period_start = ?, billing_period_end = ?, amount = ?, due_date = ?,
		       status = ?, paid_date = ?, notes = ?, updated_at = ?
		 WHERE id = ?
	`, b.CustomerID, b.BillingPeriodStart, b.BillingPeriodEnd, b.Amount, b.DueDate,
		b.Status.String(), b.PaidDate, b.Notes, b.UpdatedAt, b.ID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *BillingRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM billing_records WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

// CountCreatedBetween counts records by creation time in [from, to).
func (r *BillingRepositoryImpl) CountCreatedBetween(ctx context.Context, tx *sqlx.Tx, from, to time.Time) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, conn(r.db, tx), &n,
		`SELECT COUNT(*) FROM billing_records WHERE created_at >= ? AND created_at < ?`, from, to)
	return n, err
}

// HighestSequence returns the largest numeric suffix among invoice numbers
// starting with prefix, or 0 when there are none.
func (r *BillingRepositoryImpl) HighestSequence(ctx context.Context, tx *sqlx.Tx, prefix string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, conn(r.db, tx), &n,
		`SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_number, ?) AS UNSIGNED)), 0) FROM billing_records WHERE invoice_number LIKE ?`,
		len(prefix)+1, prefix+"%")
	return n, err
}

func (r *BillingRepositoryImpl) CountByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, conn(r.db, tx), &n, `SELECT COUNT(*) FROM billing_records WHERE customer_id = ?`, customerID)
	return n, err
}

func (r *BillingRepositoryImpl) LatestByCustomer(ctx context.Context, customerID int64, limit int) ([]model.BillingRecord, error) {
	var rows []model.BillingRecord
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+billingColumns+` FROM billing_records WHERE customer_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		customerID, limit)
	return rows, err
}

// MarkOverdue flips pending records due strictly before dueBefore to overdue.
func (r *BillingRepositoryImpl) MarkOverdue(ctx context.Context, tx *sqlx.Tx, dueBefore, now time.Time) (int64, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE billing_records SET status = 'overdue', updated_at = ? WHERE status = 'pending' AND due_date < ?`,
		now, dueBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
