package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrTimeConflict = errors.New("resource already booked for the selected time range")

	ErrInvalidTimeRange = errors.New("end time must be after start time")

	ErrConcurrentModification = errors.New("booking was modified concurrently")

	ErrLockHeld = errors.New("resource booking lock is held by another request")
)

var ErrResourceNotFound = errors.New("booked resource does not exist")
