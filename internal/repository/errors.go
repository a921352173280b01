// Package repository is the MySQL implementation of store.Store. Driver
// failures are translated into apperr kinds at this boundary so services
// never see a *mysql.MySQLError: duplicate keys become conflicts, lock
// waits, deadlocks and dropped connections become transient errors and a
// missing row becomes not_found.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/field-operations/internal/apperr"
)

// MySQL server error numbers the repository branches on.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

// mapErr classifies err; what names the record for the reason string.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Transient(err, "%s: request timed out", what)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return apperr.Transient(err, "%s: database connection lost", what)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return &apperr.Error{Kind: apperr.KindConflict, Reason: what + " already exists", Err: err}
		case errLockWaitTimeout, errDeadlock:
			return apperr.Transient(err, "%s: concurrent update, retry", what)
		case errNoReferencedRow:
			return apperr.NotFound("%s references a missing record", what)
		case errRowIsReferenced:
			return &apperr.Error{Kind: apperr.KindConflict, Reason: what + " is still referenced", Err: err}
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// exec runs an UPDATE or DELETE and maps one that touched no row to
// not_found.
func (q *Queries) exec(ctx context.Context, what, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err, what)
	}
	if n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

// insert runs an INSERT and returns its AUTO_INCREMENT id.
func (q *Queries) insert(ctx context.Context, what, query string, args ...any) (uint64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err, what)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr(err, what)
	}
	return uint64(id), nil
}
