package model

import (
	"time"
)

type Booking struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" db:"id"`
	ResourceID string    `json:"resource_id" bson:"resource_id" db:"resource_id" validate:"required"`
	StartTime  time.Time `json:"start_time" bson:"start_time" db:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" db:"end_time" validate:"required"`
	BookedBy   string    `json:"booked_by" bson:"booked_by" db:"booked_by" validate:"required,max=100"`
	Purpose    string    `json:"purpose" bson:"purpose" db:"purpose" validate:"required,max=500"`
	Version    int64     `json:"version" bson:"version" db:"version"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	Resource   *Resource `json:"resource,omitempty" bson:"-" db:"-"`
}

type BookingUpdate struct {
	ResourceID string     `json:"resource_id,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	BookedBy   string     `json:"booked_by,omitempty" validate:"omitempty,max=100"`
	Purpose    string     `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

// BookingFilter narrows the booking listing. Zero values mean "no filter".
type BookingFilter struct {
	ResourceName string
	Date         *time.Time
}

// BookingQuery is the storage-level form of a listing request. A nil
// ResourceIDs means every resource; StartFrom is inclusive and StartBefore
// exclusive.
type BookingQuery struct {
	ResourceIDs []string
	StartFrom   *time.Time
	StartBefore *time.Time
}

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}
