package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
)

// errDuplicateEntry is the MySQL server error number for a unique key
// violation.
const errDuplicateEntry = 1062

// execer is satisfied by both *sql.DB and *sql.Tx so statements can run
// inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewMySQLStores returns the MySQL implementation of every store.  The
// payment store also implements AtomicSettler.
func NewMySQLStores(db *sql.DB) Stores {
	return Stores{
		Users:    NewUserRepo(db),
		Classes:  NewClassRepo(db),
		Cart:     NewEnrolledRepo(db),
		Payments: NewPaymentRepo(db),
	}
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// classify maps driver errors onto apperr kinds.  notFound is the message
// used for sql.ErrNoRows.
func classify(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, notFound)
	}
	return apperr.Unavailable("store unavailable", err)
}

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.New(apperr.KindInvalidInput, "malformed id")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// placeholders returns "?,?,?" with n markers and the ids as driver args.
func placeholders(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
