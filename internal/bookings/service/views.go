package service

import (
	"context"
	"sync"

	apperrors "resourcebooking/pkg/errors"
	"resourcebooking/pkg/model"
	"resourcebooking/pkg/sanitizer"
)

// List returns bookings matching filter in chronological order together
// with the total number of matches. The unfiltered call is the full
// schedule overview.
func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	query := model.BookingQuery{}

	if name := sanitizer.TrimAndNormalize(filter.ResourceName); name != "" {
		ids, err := s.resources.FindIDsByName(ctx, name)
		if err != nil {
			s.cfg.Log.Error("Failed to match resources by name", "resource_name", name, "error", err)
			return nil, 0, apperrors.Internal("Failed to filter bookings by resource name", err)
		}
		if len(ids) == 0 {
			return []*model.Booking{}, 0, nil
		}
		query.ResourceIDs = ids
	}

	if filter.Date != nil {
		day := model.DayBounds(*filter.Date)
		query.StartFrom = &day.Start
		query.StartBefore = &day.End
	}

	bookings, count, err := s.findWithCount(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachResources(ctx, bookings); err != nil {
		return nil, 0, err
	}

	s.cfg.Log.Debug("Booking listing completed",
		"resource_name", filter.ResourceName,
		"count", len(bookings),
		"total_count", count,
	)
	return bookings, count, nil
}

// Upcoming returns bookings starting at or after the start of today (UTC),
// earliest first, with the total so every page of the dashboard is
// reachable.
func (s *bookingService) Upcoming(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	today := model.DayBounds(s.now()).Start

	bookings, count, err := s.findWithCount(ctx, model.BookingQuery{StartFrom: &today}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachResources(ctx, bookings); err != nil {
		return nil, 0, err
	}
	return bookings, count, nil
}

func (s *bookingService) findWithCount(ctx context.Context, query model.BookingQuery, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, query)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.Find(ctx, query, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "limit", limit, "offset", offset, "error", err)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

// attachResources fills Booking.Resource with one batched lookup.
func (s *bookingService) attachResources(ctx context.Context, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.ResourceID]; ok {
			continue
		}
		seen[b.ResourceID] = struct{}{}
		ids = append(ids, b.ResourceID)
	}

	resources, err := s.resources.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to load booked resources", "error", err)
		return apperrors.Internal("Failed to load booked resources", err)
	}

	byID := make(map[string]*model.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	for _, b := range bookings {
		b.Resource = byID[b.ResourceID]
	}
	return nil
}
