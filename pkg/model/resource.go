package model

import "time"

type Resource struct {
	ID          string     `json:"id,omitempty" bson:"_id,omitempty" db:"id"`
	Name        string     `json:"name" bson:"name" db:"name" validate:"required,min=1,max=100"`
	Description string     `json:"description" bson:"description" db:"description" validate:"max=500"`
	Location    string     `json:"location" bson:"location" db:"location" validate:"max=200"`
	Capacity    int        `json:"capacity" bson:"capacity" db:"capacity" validate:"min=1"`
	IsAvailable bool       `json:"is_available" bson:"is_available" db:"is_available"`
	Version     int64      `json:"version" bson:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	Bookings    []*Booking `json:"bookings,omitempty" bson:"-" db:"-"`
}

type ResourceUpdate struct {
	Name        string  `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=200"`
	Capacity    *int    `json:"capacity,omitempty" validate:"omitempty,min=1"`
	IsAvailable *bool   `json:"is_available,omitempty"`
}
