package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	bookingserrors "resourcebooking/internal/bookings/errors"
	resourceserrors "resourcebooking/internal/resources/errors"
	"resourcebooking/pkg/db"
	"resourcebooking/pkg/model"
)

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	nextID   int
	// onUpdate runs before Update applies its version check.
	onUpdate func(r *fakeBookingRepo, booking *model.Booking)
	// createErr, when set, is returned by Create instead of storing.
	createErr error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	booking.ID = fmt.Sprintf("b-%03d", r.nextID)
	booking.Version = 1
	booking.CreatedAt = time.Now().UTC()
	r.bookings[booking.ID] = clone(booking)
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *fakeBookingRepo) Update(_ context.Context, booking *model.Booking) error {
	if r.onUpdate != nil {
		r.onUpdate(r, booking)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[booking.ID]
	if !ok || stored.Version != booking.Version {
		return bookingserrors.ErrConcurrentModification
	}
	booking.Version++
	r.bookings[booking.ID] = clone(booking)
	return nil
}

func (r *fakeBookingRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *fakeBookingRepo) FindOverlapping(_ context.Context, resourceID string, start, end time.Time) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.ResourceID == resourceID && b.StartTime.Before(end) && b.EndTime.After(start)
	}), nil
}

func (r *fakeBookingRepo) Find(_ context.Context, query model.BookingQuery, limit int, offset int64) ([]*model.Booking, error) {
	matches := r.filter(func(b *model.Booking) bool { return matchesQuery(b, query) })
	if offset >= int64(len(matches)) {
		return []*model.Booking{}, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *fakeBookingRepo) Count(_ context.Context, query model.BookingQuery) (int64, error) {
	return int64(len(r.filter(func(b *model.Booking) bool { return matchesQuery(b, query) }))), nil
}

func (r *fakeBookingRepo) FindByResource(_ context.Context, resourceID string) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.ResourceID == resourceID }), nil
}

func (r *fakeBookingRepo) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	bookings, _ := r.FindByResource(ctx, resourceID)
	return int64(len(bookings)), nil
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return fn(ctx)
}

func (r *fakeBookingRepo) filter(keep func(*model.Booking) bool) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matchesQuery(b *model.Booking, query model.BookingQuery) bool {
	if query.ResourceIDs != nil {
		found := false
		for _, id := range query.ResourceIDs {
			if id == b.ResourceID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if query.StartFrom != nil && b.StartTime.Before(*query.StartFrom) {
		return false
	}
	if query.StartBefore != nil && !b.StartTime.Before(*query.StartBefore) {
		return false
	}
	return true
}

func clone(b *model.Booking) *model.Booking {
	copied := *b
	copied.Resource = nil
	return &copied
}

type fakeLockRepo struct {
	mu   sync.Mutex
	held map[string]bool
	// onAcquire runs after a lock is granted, while it is held.
	onAcquire func(lockID string)
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{held: make(map[string]bool)}
}

func (l *fakeLockRepo) Acquire(_ context.Context, lockID string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[lockID] {
		return bookingserrors.ErrLockHeld
	}
	l.held[lockID] = true
	if l.onAcquire != nil {
		l.onAcquire(lockID)
	}
	return nil
}

func (l *fakeLockRepo) Release(_ context.Context, lockID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, lockID)
	return nil
}

func (l *fakeLockRepo) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

type fakeResources struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
}

func (f *fakeResources) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resources, id)
}

func (f *fakeResources) FindByID(_ context.Context, id string) (*model.Resource, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if r, ok := f.resources[id]; ok {
		return r, nil
	}
	return nil, resourceserrors.ErrNotFound
}

func (f *fakeResources) FindByIDs(_ context.Context, ids []string) ([]*model.Resource, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := []*model.Resource{}
	for _, id := range ids {
		if r, ok := f.resources[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResources) FindIDsByName(_ context.Context, fragment string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := []string{}
	for id, r := range f.resources {
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(fragment)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type recordedEvent struct {
	eventType string
	bookingID string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, booking *model.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType: eventType, bookingID: booking.ID})
}
