package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	"resourcebooking/internal/bookings/repository"
	apperrors "resourcebooking/pkg/errors"
	"resourcebooking/pkg/logger"
)

const (
	lockAttempts   = 5
	lockRetryDelay = 40 * time.Millisecond
)

// ResourceLocker serializes booking writes per resource through the
// advisory lock store. Resource deletion takes the same lock.
type ResourceLocker struct {
	repo repository.BookingLockRepository
	ttl  time.Duration
	log  *logger.Logger
}

func NewResourceLocker(repo repository.BookingLockRepository, ttl time.Duration, log *logger.Logger) *ResourceLocker {
	return &ResourceLocker{repo: repo, ttl: ttl, log: log}
}

func LockID(resourceID string) string {
	return fmt.Sprintf("booking_lock_%s", resourceID)
}

// Lock takes the resource's lock, retrying briefly while another request
// holds it. The returned release func must be called once the write is done.
func (l *ResourceLocker) Lock(ctx context.Context, resourceID string) (func(), error) {
	lockID := LockID(resourceID)

	for attempt := 1; ; attempt++ {
		err := l.repo.Acquire(ctx, lockID, l.ttl)
		if err == nil {
			break
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, apperrors.Internal("Failed to acquire booking lock", err)
		}
		if attempt == lockAttempts {
			l.log.Warn("Booking lock contention", "lock_id", lockID, "attempts", attempt)
			return nil, apperrors.Conflict("This resource is currently being booked by another request. Please try again.")
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Timeout("Timed out waiting for the booking lock")
		case <-time.After(lockRetryDelay * time.Duration(attempt)):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()
		if err := l.repo.Release(releaseCtx, lockID); err != nil {
			l.log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
		}
	}
	return release, nil
}
