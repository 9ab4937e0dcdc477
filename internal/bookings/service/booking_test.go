package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	"resourcebooking/internal/bookings/events"
	"resourcebooking/internal/bookings/validator"
	"resourcebooking/pkg/config"
	apperrors "resourcebooking/pkg/errors"
	"resourcebooking/pkg/logger"
	"resourcebooking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	roomID = "room-a"
	carID  = "car-1"
)

type fixture struct {
	svc       BookingService
	repo      *fakeBookingRepo
	locks     *fakeLockRepo
	resources *fakeResources
	publisher *recordingPublisher
}

func newFixture(now time.Time) *fixture {
	log := logger.Discard()
	f := &fixture{
		repo:      newFakeBookingRepo(),
		locks:     newFakeLockRepo(),
		publisher: &recordingPublisher{},
	}
	f.resources = &fakeResources{resources: map[string]*model.Resource{
		roomID: {ID: roomID, Name: "Meeting Room A", Capacity: 1, IsAvailable: true},
		carID:  {ID: carID, Name: "Company Car 1", Capacity: 4, IsAvailable: true},
	}}

	svc := NewBookingService(
		f.repo,
		f.resources,
		NewResourceLocker(f.locks, time.Second, log),
		validator.NewBookingValidator(log),
		f.publisher,
		&config.Config{Log: log},
	)
	svc.(*bookingService).now = func() time.Time { return now }
	f.svc = svc
	return f
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func booking(resourceID string, start, end time.Time) *model.Booking {
	return &model.Booking{
		ResourceID: resourceID,
		StartTime:  start,
		EndTime:    end,
		BookedBy:   "Alice",
		Purpose:    "Planning",
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))

	require.NoError(t, f.svc.Create(context.Background(), b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, int64(1), b.Version)
	require.NotNil(t, b.Resource)
	assert.Equal(t, "Meeting Room A", b.Resource.Name)

	assert.Equal(t, []recordedEvent{{events.BookingCreated, b.ID}}, f.publisher.events)
	assert.Zero(t, f.locks.heldCount())
}

func TestCreate_OverlapRules(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		resource  string
		expectErr bool
	}{
		{"adjacent after", at(1, 11, 0), at(1, 12, 0), roomID, false},
		{"adjacent before", at(1, 9, 0), at(1, 10, 0), roomID, false},
		{"contained", at(1, 10, 30), at(1, 10, 45), roomID, true},
		{"straddles start", at(1, 9, 0), at(1, 10, 30), roomID, true},
		{"straddles end", at(1, 10, 59), at(1, 12, 0), roomID, true},
		{"identical", at(1, 10, 0), at(1, 11, 0), roomID, true},
		{"covers", at(1, 9, 0), at(1, 12, 0), roomID, true},
		{"other resource", at(1, 10, 0), at(1, 11, 0), carID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(at(1, 8, 0))
			existing := booking(roomID, at(1, 10, 0), at(1, 11, 0))
			require.NoError(t, f.svc.Create(context.Background(), existing))

			err := f.svc.Create(context.Background(), booking(tt.resource, tt.start, tt.end))
			if !tt.expectErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)
			assert.Equal(t, "resource already booked for the selected time range", appErr.Message)
			conflicts, ok := appErr.Details["conflicts"].([]ConflictSummary)
			require.True(t, ok)
			require.Len(t, conflicts, 1)
			assert.Equal(t, existing.ID, conflicts[0].ID)
			assert.NotNil(t, appErr.Details["input"])
			assert.Zero(t, f.locks.heldCount())
		})
	}
}

func TestCreate_InvalidRange(t *testing.T) {
	for name, end := range map[string]time.Time{
		"equal":    at(1, 10, 0),
		"inverted": at(1, 9, 0),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(at(1, 8, 0))

			err := f.svc.Create(context.Background(), booking(roomID, at(1, 10, 0), end))
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)
			assert.Equal(t, "end time must be after start time", appErr.Message)
			assert.Empty(t, f.repo.bookings)
		})
	}
}

func TestCreate_MissingFields(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	b.BookedBy = "  "

	err := f.svc.Create(context.Background(), b)
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details["fields"], "booked_by")
}

func TestCreate_UnknownResource(t *testing.T) {
	f := newFixture(at(1, 8, 0))

	err := f.svc.Create(context.Background(), booking("ghost", at(1, 10, 0), at(1, 11, 0)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCreate_ResourceDeletedBeforeLock(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	f.locks.onAcquire = func(lockID string) {
		if lockID == LockID(roomID) {
			f.resources.remove(roomID)
		}
	}

	err := f.svc.Create(context.Background(), booking(roomID, at(1, 10, 0), at(1, 11, 0)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Empty(t, f.repo.bookings)
	assert.Empty(t, f.publisher.events)
	assert.Zero(t, f.locks.heldCount())
}

func TestUpdate_TargetResourceDeletedBeforeLock(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	require.NoError(t, f.svc.Create(context.Background(), b))
	f.locks.onAcquire = func(lockID string) {
		if lockID == LockID(carID) {
			f.resources.remove(carID)
		}
	}

	_, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{ResourceID: carID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	stored, err := f.repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, roomID, stored.ResourceID)
	assert.Zero(t, f.locks.heldCount())
}

func TestCreate_TruncatesToStoragePrecision(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	first := booking(roomID, at(1, 10, 0), at(1, 11, 0).Add(400*time.Microsecond))
	require.NoError(t, f.svc.Create(context.Background(), first))
	assert.True(t, first.EndTime.Equal(at(1, 11, 0)))

	// Adjacent once both sides are at stored precision.
	next := booking(roomID, at(1, 11, 0).Add(200*time.Microsecond), at(1, 12, 0))
	require.NoError(t, f.svc.Create(context.Background(), next))
	assert.True(t, next.StartTime.Equal(at(1, 11, 0)))
}

func TestCreate_SerializationFailureIsConflict(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	f.repo.createErr = bookingserrors.ErrConcurrentModification

	err := f.svc.Create(context.Background(), booking(roomID, at(1, 10, 0), at(1, 11, 0)))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Empty(t, f.publisher.events)
	assert.Zero(t, f.locks.heldCount())
}

func TestCreate_LockContention(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	require.NoError(t, f.locks.Acquire(context.Background(), LockID(roomID), time.Minute))

	err := f.svc.Create(context.Background(), booking(roomID, at(1, 10, 0), at(1, 11, 0)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Empty(t, f.repo.bookings)
}

func TestCreate_ConcurrentRequestsNeverOverlap(t *testing.T) {
	f := newFixture(at(1, 8, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(1, 10, i*10)
			_ = f.svc.Create(context.Background(), booking(roomID, start, start.Add(30*time.Minute)))
		}(i)
	}
	wg.Wait()

	stored, err := f.repo.FindByResource(context.Background(), roomID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	for i := range stored {
		for j := i + 1; j < len(stored); j++ {
			assert.False(t, validator.Overlaps(stored[i].StartTime, stored[i].EndTime, stored[j].StartTime, stored[j].EndTime),
				fmt.Sprintf("%s overlaps %s", stored[i].ID, stored[j].ID))
		}
	}
}

func TestUpdate_SelfEdit(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	require.NoError(t, f.svc.Create(context.Background(), b))

	end := at(1, 11, 30)
	updated, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{EndTime: &end})
	require.NoError(t, err)
	assert.True(t, updated.EndTime.Equal(end))
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "Alice", updated.BookedBy)

	unchanged, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{Purpose: "Retro"})
	require.NoError(t, err)
	assert.Equal(t, "Retro", unchanged.Purpose)
	assert.Equal(t, int64(3), unchanged.Version)
}

func TestUpdate_OverlapWithAnother(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	first := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	second := booking(roomID, at(1, 12, 0), at(1, 13, 0))
	require.NoError(t, f.svc.Create(context.Background(), first))
	require.NoError(t, f.svc.Create(context.Background(), second))

	start := at(1, 10, 30)
	_, err := f.svc.Update(context.Background(), second.ID, &model.BookingUpdate{StartTime: &start})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	stored, _ := f.repo.FindByID(context.Background(), second.ID)
	assert.True(t, stored.StartTime.Equal(at(1, 12, 0)))
}

func TestUpdate_MoveToOtherResource(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	require.NoError(t, f.svc.Create(context.Background(), b))

	updated, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{ResourceID: carID})
	require.NoError(t, err)
	assert.Equal(t, carID, updated.ResourceID)
	assert.Equal(t, "Company Car 1", updated.Resource.Name)
	assert.Zero(t, f.locks.heldCount())
}

func TestUpdate_InvertedRange(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	require.NoError(t, f.svc.Create(context.Background(), b))

	end := at(1, 9, 0)
	_, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{EndTime: &end})
	require.Error(t, err)
	assert.Equal(t, "end time must be after start time", apperrors.AsAppError(err).Message)
}

func TestUpdate_LostVersionRace(t *testing.T) {
	t.Run("modified concurrently", func(t *testing.T) {
		f := newFixture(at(1, 8, 0))
		b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
		require.NoError(t, f.svc.Create(context.Background(), b))

		f.repo.onUpdate = func(r *fakeBookingRepo, _ *model.Booking) {
			r.mu.Lock()
			r.bookings[b.ID].Version++
			r.mu.Unlock()
		}

		_, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{Purpose: "Changed"})
		require.Error(t, err)
		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)
		assert.Equal(t, "booking was modified by another request", appErr.Message)
	})

	t.Run("deleted concurrently", func(t *testing.T) {
		f := newFixture(at(1, 8, 0))
		b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
		require.NoError(t, f.svc.Create(context.Background(), b))

		f.repo.onUpdate = func(r *fakeBookingRepo, booking *model.Booking) {
			r.mu.Lock()
			delete(r.bookings, booking.ID)
			r.mu.Unlock()
		}

		_, err := f.svc.Update(context.Background(), b.ID, &model.BookingUpdate{Purpose: "Changed"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(at(1, 8, 0))

	_, err := f.svc.Update(context.Background(), "b-999", &model.BookingUpdate{Purpose: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDelete(t *testing.T) {
	f := newFixture(at(1, 8, 0))
	b := booking(roomID, at(1, 10, 0), at(1, 11, 0))
	require.NoError(t, f.svc.Create(context.Background(), b))

	require.NoError(t, f.svc.Delete(context.Background(), b.ID))
	assert.Equal(t, events.BookingDeleted, f.publisher.events[len(f.publisher.events)-1].eventType)

	err := f.svc.Delete(context.Background(), b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func seedSchedule(t *testing.T, f *fixture) {
	t.Helper()
	slots := []*model.Booking{
		booking(roomID, at(1, 9, 0), at(1, 10, 0)),
		booking(carID, at(1, 23, 0), at(2, 1, 0)),
		booking(roomID, at(2, 0, 0), at(2, 1, 0)),
		booking(carID, at(2, 14, 0), at(2, 15, 0)),
		booking(roomID, at(3, 8, 0), at(3, 9, 0)),
	}
	for _, b := range slots {
		require.NoError(t, f.svc.Create(context.Background(), b))
	}
}

func TestList_DateFilter(t *testing.T) {
	f := newFixture(at(1, 0, 0))
	seedSchedule(t, f)

	date := at(2, 0, 0)
	bookings, total, err := f.svc.List(context.Background(), model.BookingFilter{Date: &date}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		assert.Equal(t, 2, b.StartTime.Day())
		assert.NotNil(t, b.Resource)
	}
	assert.True(t, bookings[0].StartTime.Before(bookings[1].StartTime))
}

func TestList_ResourceNameFilter(t *testing.T) {
	f := newFixture(at(1, 0, 0))
	seedSchedule(t, f)

	bookings, total, err := f.svc.List(context.Background(), model.BookingFilter{ResourceName: "CAR"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, b := range bookings {
		assert.Equal(t, carID, b.ResourceID)
	}

	date := at(2, 0, 0)
	bookings, total, err = f.svc.List(context.Background(), model.BookingFilter{ResourceName: "room", Date: &date}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, bookings, 1)
	assert.Equal(t, roomID, bookings[0].ResourceID)

	bookings, total, err = f.svc.List(context.Background(), model.BookingFilter{ResourceName: "boat"}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, bookings)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(at(1, 0, 0))
	seedSchedule(t, f)

	bookings, total, err := f.svc.List(context.Background(), model.BookingFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, bookings, 2)
	assert.True(t, bookings[0].StartTime.Equal(at(2, 0, 0)))
}

func TestUpcoming(t *testing.T) {
	f := newFixture(at(1, 0, 0))
	seedSchedule(t, f)
	f.svc.(*bookingService).now = func() time.Time { return at(2, 12, 0) }

	bookings, total, err := f.svc.Upcoming(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, bookings, 3)
	for i, b := range bookings {
		assert.False(t, b.StartTime.Before(at(2, 0, 0)))
		assert.NotNil(t, b.Resource)
		if i > 0 {
			assert.False(t, b.StartTime.Before(bookings[i-1].StartTime))
		}
	}

	limited, total, err := f.svc.Upcoming(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, limited, 1)
	assert.Equal(t, bookings[0].ID, limited[0].ID)
}

func TestUpcoming_PagesPastFirstPage(t *testing.T) {
	f := newFixture(at(1, 0, 0))
	for hour := 0; hour < 15; hour++ {
		require.NoError(t, f.svc.Create(context.Background(), booking(roomID, at(3, hour, 0), at(3, hour, 30))))
	}

	first, total, err := f.svc.Upcoming(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	require.Len(t, first, 10)

	rest, total, err := f.svc.Upcoming(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	require.Len(t, rest, 5)
	assert.True(t, rest[4].StartTime.Equal(at(3, 14, 0)))
}
