package repository

import (
	"context"
	"time"

	"resourcebooking/pkg/db"
	"resourcebooking/pkg/model"
)

const (
	CollectionName = "Bookings"
	TableName      = "bookings"
)

// BookingRepository persists bookings. Implementations return the sentinel
// errors of internal/bookings/errors and wrap driver failures.
type BookingRepository interface {
	// Create assigns ID, Version and CreatedAt.
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// Update writes booking only if the stored version still equals
	// booking.Version, then bumps booking.Version.
	Update(ctx context.Context, booking *model.Booking) error
	Delete(ctx context.Context, id string) error

	// FindOverlapping returns the resource's bookings intersecting [start, end).
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Booking, error)
	Find(ctx context.Context, query model.BookingQuery, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, query model.BookingQuery) (int64, error)
	FindByResource(ctx context.Context, resourceID string) ([]*model.Booking, error)
	CountByResource(ctx context.Context, resourceID string) (int64, error)

	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}

// BookingLockRepository stores the advisory per-resource locks.
type BookingLockRepository interface {
	// Acquire takes lockID until ttl elapses. A live lock held elsewhere
	// yields ErrLockHeld; an expired one is taken over.
	Acquire(ctx context.Context, lockID string, ttl time.Duration) error
	Release(ctx context.Context, lockID string) error
}
