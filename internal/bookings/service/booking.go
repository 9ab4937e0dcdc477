package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	"resourcebooking/internal/bookings/events"
	"resourcebooking/internal/bookings/repository"
	"resourcebooking/internal/bookings/validator"
	resourceserrors "resourcebooking/internal/resources/errors"
	"resourcebooking/pkg/config"
	apperrors "resourcebooking/pkg/errors"
	"resourcebooking/pkg/model"
	"resourcebooking/pkg/sanitizer"
)

const (
	conflictMessage        = "resource already booked for the selected time range"
	concurrentWriteMessage = "This resource was changed by a concurrent request. Please try again."
)

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Upcoming(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
}

// ResourceFinder is the read side of the resource store the booking
// service depends on.
type ResourceFinder interface {
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error)
	FindIDsByName(ctx context.Context, fragment string) ([]string, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	resources ResourceFinder
	locker    *ResourceLocker
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	resources ResourceFinder,
	locker *ResourceLocker,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		resources: resources,
		locker:    locker,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	booking.ID = ""
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, booking.ResourceID)
	if err != nil {
		return err
	}
	defer release()

	// Resource deletion holds the same lock, so the resource read here
	// cannot disappear before the insert.
	resource, err := s.loadResource(ctx, booking.ResourceID)
	if err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.verifyNoOverlap(txCtx, booking); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, booking); err != nil {
			return s.translateWriteError(booking, err, "Failed to create booking")
		}
		return nil
	})
	if errors.Is(err, bookingserrors.ErrConcurrentModification) {
		err = apperrors.Conflict(concurrentWriteMessage)
	}
	if err != nil {
		s.logFailure("Failed to create booking", err, "resource_id", booking.ResourceID)
		return err
	}

	booking.Resource = resource
	s.publisher.Publish(ctx, events.BookingCreated, booking)
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"resource_id", booking.ResourceID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachResources(ctx, []*model.Booking{booking}); err != nil {
		return nil, err
	}
	return booking, nil
}

// Update merges updates over the stored booking and re-runs both checks,
// excluding the booking itself from the overlap test. A write that loses
// the version race resolves to NotFound or Conflict without retrying.
func (s *bookingService) Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	if updates == nil {
		return nil, apperrors.InvalidInput("Update body cannot be empty")
	}
	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, validationError("Invalid update input", err, updates)
	}

	merged := mergeBookingUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	// Moving a booking between resources must not race either calendar.
	lockIDs := []string{merged.ResourceID}
	if existing.ResourceID != merged.ResourceID {
		lockIDs = orderedPair(existing.ResourceID, merged.ResourceID)
	}
	for _, resourceID := range lockIDs {
		release, err := s.locker.Lock(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	resource, err := s.loadResource(ctx, merged.ResourceID)
	if err != nil {
		return nil, err
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.verifyNoOverlap(txCtx, merged); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, merged); err != nil {
			return s.translateWriteError(merged, err, "Failed to update booking")
		}
		return nil
	})
	if errors.Is(err, bookingserrors.ErrConcurrentModification) {
		err = s.resolveConcurrentModification(ctx, id)
	}
	if err != nil {
		s.logFailure("Failed to update booking", err, "id", id)
		return nil, err
	}

	merged.Resource = resource
	s.publisher.Publish(ctx, events.BookingUpdated, merged)
	s.cfg.Log.Info("Booking updated successfully", "id", id, "version", merged.Version)
	return merged, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to delete booking", "id", id, "error", err)
		return apperrors.Internal("Failed to delete booking", err)
	}

	s.publisher.Publish(ctx, events.BookingDeleted, existing)
	s.cfg.Log.Info("Booking deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to retrieve booking", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// loadResource reports an unknown or malformed resource ID as not found:
// neither can name a bookable resource.
func (s *bookingService) loadResource(ctx context.Context, resourceID string) (*model.Resource, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) || errors.Is(err, resourceserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Resource", resourceID)
		}
		s.cfg.Log.Error("Failed to load resource", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Failed to load resource", err)
	}
	return resource, nil
}

func (s *bookingService) verifyNoOverlap(ctx context.Context, booking *model.Booking) error {
	existing, err := s.repo.FindOverlapping(ctx, booking.ResourceID, booking.StartTime, booking.EndTime)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	result := validator.CheckOverlap(booking, existing)
	if !result.Conflict {
		return nil
	}

	s.cfg.Log.Warn("Booking overlaps existing bookings",
		"resource_id", booking.ResourceID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"conflicts", len(result.Conflicting),
	)
	return overlapError(booking, result.Conflicting)
}

func (s *bookingService) translateWriteError(booking *model.Booking, err error, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrTimeConflict):
		return overlapError(booking, nil)
	case errors.Is(err, bookingserrors.ErrResourceNotFound):
		return apperrors.NotFoundWithID("Resource", booking.ResourceID)
	case errors.Is(err, bookingserrors.ErrInvalidTimeRange):
		return apperrors.Validation(bookingserrors.ErrInvalidTimeRange.Error(), map[string]any{
			"input": booking,
		})
	case errors.Is(err, bookingserrors.ErrConcurrentModification):
		return err
	}
	return apperrors.Internal(message, err)
}

func (s *bookingService) resolveConcurrentModification(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		return apperrors.Internal("Failed to re-read booking", err)
	}
	return apperrors.Conflict("booking was modified by another request")
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.ResourceID = sanitizer.TrimAndNormalize(b.ResourceID)
	b.BookedBy = sanitizer.NormalizeName(b.BookedBy)
	b.Purpose = sanitizer.NormalizeText(b.Purpose)
	b.StartTime = b.StartTime.UTC().Truncate(model.TimePrecision)
	b.EndTime = b.EndTime.UTC().Truncate(model.TimePrecision)
}

func (s *bookingService) validate(booking *model.Booking) error {
	err := s.validator.Validate(booking)
	if err == nil {
		return nil
	}

	s.cfg.Log.Warn("Booking validation failed", "error", err)
	if validator.HasInvalidTimeRange(err) {
		return validationError(bookingserrors.ErrInvalidTimeRange.Error(), err, booking)
	}
	return validationError("Booking validation failed", err, booking)
}

func (s *bookingService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInternal {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}

func mergeBookingUpdates(existing *model.Booking, updates *model.BookingUpdate) *model.Booking {
	merged := *existing
	merged.Resource = nil

	if updates.ResourceID != "" {
		merged.ResourceID = updates.ResourceID
	}
	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.EndTime = *updates.EndTime
	}
	if updates.BookedBy != "" {
		merged.BookedBy = updates.BookedBy
	}
	if updates.Purpose != "" {
		merged.Purpose = updates.Purpose
	}

	return &merged
}

func validationError(message string, err error, input any) *apperrors.AppError {
	details := map[string]any{"input": input}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details["fields"] = fieldErrs.Fields()
	} else {
		details["error"] = err.Error()
	}
	return apperrors.Validation(message, details)
}

// ConflictSummary is how a conflicting booking is reported to the caller.
type ConflictSummary struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	BookedBy  string    `json:"booked_by"`
}

func overlapError(candidate *model.Booking, conflicting []*model.Booking) *apperrors.AppError {
	conflicts := make([]ConflictSummary, 0, len(conflicting))
	for _, b := range conflicting {
		conflicts = append(conflicts, ConflictSummary{
			ID:        b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			BookedBy:  b.BookedBy,
		})
	}
	return apperrors.Validation(conflictMessage, map[string]any{
		"conflicts": conflicts,
		"input":     candidate,
	})
}

func orderedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}
