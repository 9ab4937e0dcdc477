package service

import (
	"context"
	"errors"
	"sync"

	resourceserrors "resourcebooking/internal/resources/errors"
	"resourcebooking/internal/resources/repository"
	"resourcebooking/internal/resources/validator"
	"resourcebooking/pkg/config"
	apperrors "resourcebooking/pkg/errors"
	"resourcebooking/pkg/model"
	"resourcebooking/pkg/sanitizer"
)

type ResourceService interface {
	Create(ctx context.Context, resource *model.Resource) error
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error)
	Update(ctx context.Context, id string, updates *model.ResourceUpdate) (*model.Resource, error)
	Delete(ctx context.Context, id string) error

	SeedDefaults(ctx context.Context) (int, error)
}

// BookingFinder is the read side of the booking store the resource service
// depends on.
type BookingFinder interface {
	FindByResource(ctx context.Context, resourceID string) ([]*model.Booking, error)
	CountByResource(ctx context.Context, resourceID string) (int64, error)
}

// Locker serializes writes that touch a resource's calendar.
type Locker interface {
	Lock(ctx context.Context, resourceID string) (func(), error)
}

type resourceService struct {
	repo      repository.ResourceRepository
	bookings  BookingFinder
	locker    Locker
	validator *validator.ResourceValidator
	cfg       *config.Config
}

func NewResourceService(
	repo repository.ResourceRepository,
	bookings BookingFinder,
	locker Locker,
	validator *validator.ResourceValidator,
	cfg *config.Config,
) ResourceService {
	return &resourceService{
		repo:      repo,
		bookings:  bookings,
		locker:    locker,
		validator: validator,
		cfg:       cfg,
	}
}

// DefaultResources is the catalog installed into an empty store.
func DefaultResources() []*model.Resource {
	return []*model.Resource{
		{
			Name:        "Meeting Room A",
			Description: "Large room with projector and whiteboard",
			Location:    "3rd Floor, West Wing",
			Capacity:    1,
			IsAvailable: true,
		},
		{
			Name:        "Company Car 1",
			Description: "Toyota Corolla",
			Location:    "Parking Bay 5",
			Capacity:    4,
			IsAvailable: true,
		},
		{
			Name:        "Company Car 2",
			Description: "Honda Civic",
			Location:    "Parking Bay 3",
			Capacity:    4,
			IsAvailable: true,
		},
	}
}

func (s *resourceService) Create(ctx context.Context, resource *model.Resource) error {
	resource.ID = ""
	resource.Bookings = nil
	s.sanitize(resource)

	if err := s.validator.Validate(resource); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "name", resource.Name, "error", err)
		return validationError("Resource validation failed", err, resource)
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		s.cfg.Log.Error("Failed to create resource", "name", resource.Name, "error", err)
		return apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created successfully",
		"id", resource.ID,
		"name", resource.Name,
		"capacity", resource.Capacity,
	)
	return nil
}

// GetByID returns the resource with its bookings in chronological order.
func (s *resourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	resource, err := s.findResource(ctx, id)
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookings.FindByResource(ctx, resource.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to load resource bookings", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource bookings", err)
	}
	resource.Bookings = bookings
	return resource, nil
}

func (s *resourceService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var resources []*model.Resource
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count resources", "error", err)
			errCount = apperrors.Internal("Failed to count resources", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		resources, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list resources", "limit", limit, "offset", offset, "error", err)
			errFind = apperrors.Internal("Failed to retrieve resources", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return resources, count, nil
}

func (s *resourceService) Update(ctx context.Context, id string, updates *model.ResourceUpdate) (*model.Resource, error) {
	if updates == nil {
		return nil, apperrors.InvalidInput("Update body cannot be empty")
	}
	existing, err := s.findResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Resource update validation failed", "id", id, "error", err)
		return nil, validationError("Invalid update input", err, updates)
	}

	merged := mergeResourceUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "id", id, "error", err)
		return nil, validationError("Resource validation failed", err, merged)
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		if errors.Is(err, resourceserrors.ErrConcurrentModification) {
			return nil, s.resolveConcurrentModification(ctx, id)
		}
		s.cfg.Log.Error("Failed to update resource", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update resource", err)
	}

	s.cfg.Log.Info("Resource updated successfully", "id", id, "version", merged.Version)
	return merged, nil
}

// Delete refuses to remove a resource that any booking still references.
// It holds the resource's booking lock so no booking can slip in between
// the check and the delete.
func (s *resourceService) Delete(ctx context.Context, id string) error {
	resource, err := s.findResource(ctx, id)
	if err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, resource.ID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		count, err := s.bookings.CountByResource(txCtx, resource.ID)
		if err != nil {
			return apperrors.Internal("Failed to check resource bookings", err)
		}
		if count > 0 {
			return hasBookingsError(count)
		}

		if err := s.repo.Delete(txCtx, resource.ID); err != nil {
			switch {
			case errors.Is(err, resourceserrors.ErrNotFound):
				return apperrors.NotFoundWithID("Resource", id)
			case errors.Is(err, resourceserrors.ErrHasBookings):
				return hasBookingsError(0)
			}
			return apperrors.Internal("Failed to delete resource", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.AsAppError(err).Code == apperrors.CodeInternal {
			s.cfg.Log.Error("Failed to delete resource", "id", id, "error", err)
		} else {
			s.cfg.Log.Warn("Resource deletion rejected", "id", id, "error", err)
		}
		return err
	}

	s.cfg.Log.Info("Resource deleted successfully", "id", id)
	return nil
}

// SeedDefaults installs DefaultResources when the store holds no resources
// and reports how many were inserted.
func (s *resourceService) SeedDefaults(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperrors.Internal("Failed to count resources", err)
	}
	if count > 0 {
		s.cfg.Log.Debug("Resource catalog already populated, skipping seed", "count", count)
		return 0, nil
	}

	inserted := 0
	for _, resource := range DefaultResources() {
		if err := s.repo.Create(ctx, resource); err != nil {
			return inserted, apperrors.Internal("Failed to seed resources", err)
		}
		inserted++
	}

	s.cfg.Log.Info("Seeded default resources", "count", inserted)
	return inserted, nil
}

func (s *resourceService) findResource(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		if errors.Is(err, resourceserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid resource ID format")
		}
		s.cfg.Log.Error("Failed to retrieve resource", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	return resource, nil
}

func (s *resourceService) resolveConcurrentModification(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Resource", id)
		}
		return apperrors.Internal("Failed to re-read resource", err)
	}
	return apperrors.Conflict("resource was modified by another request")
}

func (s *resourceService) sanitize(r *model.Resource) {
	r.Name = sanitizer.NormalizeName(r.Name)
	r.Description = sanitizer.NormalizeText(r.Description)
	r.Location = sanitizer.NormalizeLocation(r.Location)
}

func mergeResourceUpdates(existing *model.Resource, updates *model.ResourceUpdate) *model.Resource {
	merged := *existing
	merged.Bookings = nil

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.IsAvailable != nil {
		merged.IsAvailable = *updates.IsAvailable
	}

	return &merged
}

func hasBookingsError(count int64) *apperrors.AppError {
	err := apperrors.Conflict("resource has existing bookings and cannot be deleted")
	if count > 0 {
		err = err.WithDetails(map[string]any{"bookings": count})
	}
	return err
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
