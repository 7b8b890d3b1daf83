package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(sql.ErrNoRows), ErrNotFound)

	dup := mapErr(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'INV-2024-03-0001' for key 'billing_records.uq_billing_invoice_number'"})
	assert.ErrorIs(t, dup, ErrDuplicate)
	key, ok := DuplicateKey(dup)
	require.True(t, ok)
	assert.Equal(t, "billing_records.uq_billing_invoice_number", key)

	fk := mapErr(&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	assert.ErrorIs(t, fk, ErrForeignKey)

	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
	_, ok = DuplicateKey(other)
	assert.False(t, ok)
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: 10}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: 10, Offset: 0}, Page{Limit: 500, Offset: -3}.Normalize())
	assert.Equal(t, Page{Limit: 25, Offset: 50}, Page{Limit: 25, Offset: 50}.Normalize())
}

func TestRadiusDeleteByCustomer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRadiusRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM radius_users WHERE customer_id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByCustomer(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRadiusDeleteByIDsEmptyIsNoop(t *testing.T) {
	db, mock := newMock(t)
	n, err := NewRadiusRepository(db).DeleteByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingInsertDuplicateInvoice(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBillingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO billing_records")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'INV-2024-03-0001' for key 'uq_billing_invoice_number'"})

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	err := repo.Insert(context.Background(), nil, &model.BillingRecord{
		CustomerID:    1,
		InvoiceNumber: "INV-2024-03-0001",
		Status:        model.BillingPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingCountCreatedBetween(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBillingRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM billing_records WHERE created_at >= ? AND created_at < ?")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(14))

	n, err := repo.CountCreatedBetween(context.Background(), nil, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingHighestSequence(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_number, ?) AS UNSIGNED)), 0) FROM billing_records WHERE invoice_number LIKE ?")).
		WithArgs(13, "INV-2024-03-%").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(12))

	n, err := NewBillingRepository(db).HighestSequence(context.Background(), nil, "INV-2024-03-")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerDeleteMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customers WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewCustomersRepository(db).Delete(context.Background(), nil, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxInsertOpensOwnTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	ev := &model.OutboxEvent{Aggregate: "customer", AggregateID: "3", Topic: "isp.events", Payload: []byte(`{}`)}
	require.NoError(t, repo.Insert(context.Background(), nil, ev))
	assert.Equal(t, int64(11), ev.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunnerRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewTxRunner(db).InTx(context.Background(), func(tx *sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
