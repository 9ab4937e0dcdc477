package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"resourcebooking/pkg/db"
	apperrors "resourcebooking/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	ForeignKeyViolation   = "23503"
	ExclusionViolation    = "23P01"
	SerializationFailure  = "40001"
	CheckConstraintFailed = "23514"
)

const serializationMessage = "The request conflicted with a concurrent change. Please try again."

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type postgresTransactionManager struct {
	db *sqlx.DB
}

func NewTransactionManager(conn *sqlx.DB) db.TransactionManager {
	return &postgresTransactionManager{db: conn}
}

// ExecuteTransaction runs fn in a SERIALIZABLE transaction. Nested calls
// reuse the outer transaction. A serialization failure from fn or from the
// commit is reported as a Conflict AppError.
func (m *postgresTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		if HasCode(err, SerializationFailure) {
			return SerializationConflict(err)
		}
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if HasCode(err, SerializationFailure) {
			return SerializationConflict(err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Conn returns the transaction bound to ctx, or the pool when there is none.
func Conn(ctx context.Context, pool *sqlx.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return pool
}

// HasCode reports whether err is a Postgres error with the given SQLSTATE.
func HasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// SerializationConflict reports a SERIALIZABLE abort as a retryable 409.
func SerializationConflict(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeConflict, serializationMessage, http.StatusConflict)
}
