package repository

import (
	"testing"
	"time"

	"resourcebooking/pkg/model"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildQueryFilter(t *testing.T) {
	day := model.DayBounds(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	tests := []struct {
		name  string
		query model.BookingQuery
		want  bson.M
	}{
		{
			name:  "no filters",
			query: model.BookingQuery{},
			want:  bson.M{},
		},
		{
			name:  "resource ids",
			query: model.BookingQuery{ResourceIDs: []string{"a", "b"}},
			want:  bson.M{"resource_id": bson.M{"$in": []string{"a", "b"}}},
		},
		{
			name:  "empty resource match keeps the restriction",
			query: model.BookingQuery{ResourceIDs: []string{}},
			want:  bson.M{"resource_id": bson.M{"$in": []string{}}},
		},
		{
			name:  "calendar day",
			query: model.BookingQuery{StartFrom: &day.Start, StartBefore: &day.End},
			want:  bson.M{"start_time": bson.M{"$gte": day.Start, "$lt": day.End}},
		},
		{
			name:  "upcoming",
			query: model.BookingQuery{StartFrom: &day.Start},
			want:  bson.M{"start_time": bson.M{"$gte": day.Start}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQueryFilter(tt.query))
		})
	}
}
