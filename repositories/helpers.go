package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx, so repository
// methods can take part in a caller-managed transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// pqConstraint returns the violated constraint name for the given error
// class, or "" when the error is something else.
func pqConstraint(err error, code string) string {
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == code {
		return pqErr.Constraint
	}
	return ""
}

// intArray adapts a Go slice for an = ANY($1) parameter.
func intArray(ids []int) interface{} {
	return pq.Array(ids)
}

func checkAffectedRows(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
