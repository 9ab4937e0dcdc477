package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	"resourcebooking/pkg/db/postgres"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

const LockTableName = "booking_locks"

type postgresBookingLockRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPostgresBookingLockRepository(conn *sqlx.DB, timeout time.Duration) BookingLockRepository {
	return &postgresBookingLockRepository{db: conn, timeout: timeout}
}

// Acquire inserts the lock row, taking over a row whose lease has run out.
// The conditional upsert touches no row while a live lease exists.
func (r *postgresBookingLockRepository) Acquire(ctx context.Context, lockID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	query, args, err := dialect.Insert(LockTableName).Prepared(true).
		Rows(goqu.Record{
			"id":         lockID,
			"expires_at": now.Add(ttl),
			"created_at": now,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"expires_at": goqu.I("excluded.expires_at"),
			"created_at": goqu.I("excluded.created_at"),
		}).Where(goqu.I("booking_locks.expires_at").Lte(now))).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build lock insert: %w", err)
	}

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read lock result: %w", err)
	}
	if affected == 0 {
		return bookingserrors.ErrLockHeld
	}
	return nil
}

func (r *postgresBookingLockRepository) Release(ctx context.Context, lockID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query, args, err := dialect.Delete(LockTableName).Prepared(true).
		Where(goqu.C("id").Eq(lockID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build lock delete: %w", err)
	}

	if _, err := postgres.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release booking lock: %w", err)
	}
	return nil
}
