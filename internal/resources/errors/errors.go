package errors

import "errors"

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidID = errors.New("invalid resource ID format")

	ErrConcurrentModification = errors.New("resource was modified concurrently")

	ErrHasBookings = errors.New("resource still has bookings")
)
