package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "resourcebooking/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectStatus  int
		expectCode    string
		expectDetails bool
	}{
		{
			name:          "validation keeps details",
			err:           apperrors.Validation("bad", map[string]any{"input": "x"}),
			expectStatus:  http.StatusUnprocessableEntity,
			expectCode:    apperrors.CodeValidation,
			expectDetails: true,
		},
		{
			name:         "not found",
			err:          apperrors.NotFound("Booking"),
			expectStatus: http.StatusNotFound,
			expectCode:   apperrors.CodeNotFound,
		},
		{
			name:         "plain error is internal",
			err:          errors.New("boom"),
			expectStatus: http.StatusInternalServerError,
			expectCode:   apperrors.CodeInternal,
		},
		{
			name:         "internal details hidden",
			err:          apperrors.Internal("failed", errors.New("db down")).WithDetails(map[string]any{"dsn": "secret"}),
			expectStatus: http.StatusInternalServerError,
			expectCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, WriteError(rec, tt.err))

			assert.Equal(t, tt.expectStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expectCode, resp.Code)
			assert.Equal(t, tt.expectDetails, resp.Details != nil)
		})
	}
}

func TestWritePaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WritePaginated(rec, []string{"a", "b"}, 7, 2, 4))

	var resp PaginatedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(7), resp.TotalCount)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, int64(4), resp.Offset)
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		query        string
		expectLimit  int
		expectOffset int64
		expectErr    bool
	}{
		{"", 10, 0, false},
		{"?limit=25&offset=50", 25, 50, false},
		{"?limit=0", 10, 0, false},
		{"?limit=500", 100, 0, false},
		{"?offset=-1", 10, 0, false},
		{"?limit=ten", 0, 0, true},
		{"?offset=x", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			limit, offset, err := ExtractLimitOffset(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			if tt.expectErr {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectLimit, limit)
			assert.Equal(t, tt.expectOffset, offset)
		})
	}
}
