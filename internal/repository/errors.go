package repository

import (
	"database/sql"
	"errors"
	"regexp"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrForeignKey = errors.New("foreign key violation")
)

const (
	mysqlErrDupEntry        = 1062
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
)

// DuplicateError carries the index name MySQL reported for a 1062 error.
type DuplicateError struct {
	Key string
	Err error
}

func (e *DuplicateError) Error() string { return "duplicate key " + e.Key + ": " + e.Err.Error() }
func (e *DuplicateError) Unwrap() error { return e.Err }
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

var dupKeyRe = regexp.MustCompile(`for key '([^']+)'`)

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDupEntry:
			key := ""
			if m := dupKeyRe.FindStringSubmatch(me.Message); len(m) == 2 {
				key = m[1]
			}
			return &DuplicateError{Key: key, Err: err}
		case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
			return errors.Join(ErrForeignKey, err)
		}
	}
	return err
}

// DuplicateKey returns the violated index name when err is a duplicate-key error.
func DuplicateKey(err error) (string, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.Key, true
	}
	return "", false
}
