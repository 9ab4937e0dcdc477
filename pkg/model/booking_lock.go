package model

import "time"

// BookingLock is an advisory lock document serializing overlap checks for a
// single resource. Locks expire on their own so a crashed request cannot
// block the resource forever.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id" db:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at" db:"created_at"`
}
