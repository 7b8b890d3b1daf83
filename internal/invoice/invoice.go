// Package invoice generates INV-YYYY-MM-NNNN numbers for billing records.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/isp-billing/internal/logger"
	"github.com/jmehdipour/isp-billing/internal/metrics"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmehdipour/isp-billing/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNumberConflict means every attempt collided with an existing invoice number.
// The caller may retry the whole operation.
var ErrNumberConflict = errors.New("invoice number conflict")

const defaultAttempts = 5

// FormatNumber renders seq for the calendar month of t, e.g. INV-2024-03-0015.
func FormatNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("%s%04d", Prefix(t), seq)
}

// Prefix is the part of every invoice number shared by the month of t.
func Prefix(t time.Time) string {
	return fmt.Sprintf("INV-%04d-%02d-", t.Year(), int(t.Month()))
}

// Counter reports how far numbering has got in a month.
type Counter interface {
	CountCreatedBetween(ctx context.Context, tx *sqlx.Tx, from, to time.Time) (int64, error)
	HighestSequence(ctx context.Context, tx *sqlx.Tx, prefix string) (int64, error)
}

// Numberer hands out monthly invoice numbers and renumbers on collisions.
type Numberer struct {
	counter  Counter
	clock    util.Clock
	attempts int
}

func NewNumberer(counter Counter, clock util.Clock, attempts int) *Numberer {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Numberer{counter: counter, clock: clock, attempts: attempts}
}

// Next returns the candidate number for the given 0-based attempt. The first
// candidate is the month's record count plus one. Later ones also clear the
// highest number already issued this month, which outruns the count once
// records are deleted.
func (n *Numberer) Next(ctx context.Context, tx *sqlx.Tx, attempt int) (string, error) {
	now := n.clock.Now()
	from, to := util.MonthBounds(now)

	count, err := n.counter.CountCreatedBetween(ctx, tx, from, to)
	if err != nil {
		return "", fmt.Errorf("count invoices: %w", err)
	}
	seq := count + 1 + int64(attempt)
	if attempt == 0 {
		return FormatNumber(now, seq), nil
	}

	highest, err := n.counter.HighestSequence(ctx, tx, Prefix(now))
	if err != nil {
		return "", fmt.Errorf("highest invoice number: %w", err)
	}
	seq = max(seq, highest+int64(attempt))
	return FormatNumber(now, seq), nil
}

// Assign calls insert with successive candidates until one is accepted.
// Only duplicate-key errors on the invoice number trigger another attempt.
func (n *Numberer) Assign(ctx context.Context, tx *sqlx.Tx, insert func(number string) error) (string, error) {
	for attempt := 0; attempt < n.attempts; attempt++ {
		number, err := n.Next(ctx, tx, attempt)
		if err != nil {
			return "", err
		}

		err = insert(number)
		if err == nil {
			return number, nil
		}
		if !IsNumberCollision(err) {
			return "", err
		}

		metrics.InvoiceConflicts.Inc()
		logger.Log.Warn("invoice number taken, renumbering",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt+1),
		)
	}
	return "", ErrNumberConflict
}

// IsNumberCollision reports whether err is a uniqueness violation on invoice_number.
func IsNumberCollision(err error) bool {
	key, ok := repository.DuplicateKey(err)
	if !ok {
		return false
	}
	return key == "" || strings.Contains(key, "invoice_number")
}
