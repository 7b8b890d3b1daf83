package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// TxRunner runs fn inside one database transaction. Repositories accept the
// *sqlx.Tx it hands out; a nil tx means "use the pool directly".
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type sqlTxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) TxRunner { return &sqlTxRunner{db: db} }

func (r *sqlTxRunner) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()

	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// conn returns tx when inside a transaction, otherwise the pool.
func conn(db *sqlx.DB, tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return db
}

// Page is a limit/offset window shared by the list queries.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// requireAffected turns a zero-row UPDATE/DELETE into ErrNotFound.
// The MySQL connection sets clientFoundRows, so unchanged-but-matched rows count.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
