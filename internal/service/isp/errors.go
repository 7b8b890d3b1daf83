package isp

import (
	"errors"
	"sort"
	"strings"

	"github.com/jmehdipour/isp-billing/internal/invoice"
	"github.com/jmehdipour/isp-billing/internal/repository"
)

var (
	ErrNotFound                  = repository.ErrNotFound
	ErrPlanInUse                 = errors.New("service plan has customers")
	ErrCustomerHasBillingRecords = errors.New("customer has billing records")
	// ErrInvoiceNumberConflict is retryable: resubmitting the request allocates a new number.
	ErrInvoiceNumberConflict = invoice.ErrNumberConflict
)

// ValidationError carries one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// uniqueViolation turns a duplicate-key error on one of the given columns
// into a field error; anything else passes through.
func uniqueViolation(err error, columns ...string) error {
	key, ok := repository.DuplicateKey(err)
	if !ok {
		return err
	}
	for _, col := range columns {
		if strings.Contains(key, col) {
			return fieldError(col, "has already been taken")
		}
	}
	return err
}
