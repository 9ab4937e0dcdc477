package validator

import (
	"testing"
	"time"

	"resourcebooking/pkg/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 1, hour, minute, 0, 0, time.UTC)
}

func booking(id, resourceID string, start, end time.Time) *model.Booking {
	return &model.Booking{ID: id, ResourceID: resourceID, StartTime: start, EndTime: end}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"adjacent after", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"adjacent before", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"contained", at(10, 30), at(10, 45), at(10, 0), at(11, 0), true},
		{"straddles start", at(9, 0), at(10, 30), at(10, 0), at(11, 0), true},
		{"straddles end", at(10, 59), at(12, 0), at(10, 0), at(11, 0), true},
		{"covers", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"disjoint", at(13, 0), at(14, 0), at(10, 0), at(11, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("Overlaps() is not symmetric: got %v reversed", got)
			}
		})
	}
}

func TestCheckOverlap(t *testing.T) {
	existing := []*model.Booking{
		booking("b1", "r1", at(10, 0), at(11, 0)),
		booking("b2", "r2", at(10, 0), at(11, 0)),
	}

	tests := []struct {
		name          string
		candidate     *model.Booking
		wantConflict  bool
		wantConflicts []string
	}{
		{
			name:      "adjacent slot accepted",
			candidate: booking("", "r1", at(11, 0), at(12, 0)),
		},
		{
			name:          "inside existing rejected",
			candidate:     booking("", "r1", at(10, 30), at(10, 45)),
			wantConflict:  true,
			wantConflicts: []string{"b1"},
		},
		{
			name:          "overlapping start rejected",
			candidate:     booking("", "r1", at(9, 0), at(10, 30)),
			wantConflict:  true,
			wantConflicts: []string{"b1"},
		},
		{
			name:      "other resource ignored",
			candidate: booking("", "r3", at(10, 0), at(11, 0)),
		},
		{
			name:      "self edit accepted",
			candidate: booking("b1", "r1", at(10, 15), at(11, 15)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckOverlap(tt.candidate, existing)
			if result.Conflict != tt.wantConflict {
				t.Fatalf("Conflict = %v, want %v", result.Conflict, tt.wantConflict)
			}
			if len(result.Conflicting) != len(tt.wantConflicts) {
				t.Fatalf("Conflicting = %d bookings, want %d", len(result.Conflicting), len(tt.wantConflicts))
			}
			for i, id := range tt.wantConflicts {
				if result.Conflicting[i].ID != id {
					t.Errorf("Conflicting[%d] = %s, want %s", i, result.Conflicting[i].ID, id)
				}
			}
		})
	}
}

func TestCheckOverlap_PairwiseNonOverlap(t *testing.T) {
	var accepted []*model.Booking
	candidates := [][2]time.Time{
		{at(8, 0), at(9, 0)},
		{at(8, 30), at(9, 30)},
		{at(9, 0), at(10, 0)},
		{at(9, 59), at(10, 1)},
		{at(10, 0), at(12, 0)},
		{at(11, 0), at(11, 30)},
		{at(12, 0), at(12, 1)},
	}

	for i, c := range candidates {
		candidate := booking("", "r1", c[0], c[1])
		if !CheckOverlap(candidate, accepted).Conflict {
			candidate.ID = string(rune('a' + i))
			accepted = append(accepted, candidate)
		}
	}

	if len(accepted) != 4 {
		t.Fatalf("accepted %d bookings, want 4", len(accepted))
	}
	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			a, b := accepted[i], accepted[j]
			if Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
				t.Errorf("accepted bookings %s and %s overlap", a.ID, b.ID)
			}
		}
	}
}
