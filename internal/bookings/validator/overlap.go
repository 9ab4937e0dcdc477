package validator

import (
	"time"

	"resourcebooking/pkg/model"
)

// OverlapResult lists the existing bookings a candidate collides with.
type OverlapResult struct {
	Conflict    bool
	Conflicting []*model.Booking
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}

// CheckOverlap tests candidate against existing bookings of the same
// resource. A booking sharing the candidate's ID is the candidate itself
// and is ignored, which lets an edit keep its own slot.
func CheckOverlap(candidate *model.Booking, existing []*model.Booking) OverlapResult {
	var result OverlapResult
	for _, b := range existing {
		if b == nil || b.ResourceID != candidate.ResourceID {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate.StartTime, candidate.EndTime, b.StartTime, b.EndTime) {
			result.Conflicting = append(result.Conflicting, b)
		}
	}
	result.Conflict = len(result.Conflicting) > 0
	return result
}
