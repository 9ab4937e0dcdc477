package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "resourcebooking/pkg/errors"
	httputil "resourcebooking/pkg/http"
	"resourcebooking/pkg/logger"
	"resourcebooking/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResourceService struct {
	createFunc func(ctx context.Context, resource *model.Resource) error
	getAllFunc func(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error)
	deleteFunc func(ctx context.Context, id string) error
}

func (m *mockResourceService) Create(ctx context.Context, resource *model.Resource) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, resource)
	}
	return nil
}

func (m *mockResourceService) GetByID(_ context.Context, id string) (*model.Resource, error) {
	return nil, apperrors.NotFoundWithID("Resource", id)
}

func (m *mockResourceService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx, limit, offset)
	}
	return []*model.Resource{}, 0, nil
}

func (m *mockResourceService) Update(context.Context, string, *model.ResourceUpdate) (*model.Resource, error) {
	return nil, nil
}

func (m *mockResourceService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockResourceService) SeedDefaults(context.Context) (int, error) {
	return 0, nil
}

func newRouter(svc *mockResourceService) *httprouter.Router {
	router := httprouter.New()
	NewResourceHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestGetAll_QueryParameters(t *testing.T) {
	var receivedLimit int
	var receivedOffset int64
	svc := &mockResourceService{
		getAllFunc: func(_ context.Context, limit int, offset int64) ([]*model.Resource, int64, error) {
			receivedLimit = limit
			receivedOffset = offset
			return []*model.Resource{}, 0, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name           string
		query          string
		expectHTTPCode int
		expectLimit    int
		expectOffset   int64
	}{
		{"defaults", "", http.StatusOK, 10, 0},
		{"explicit", "?limit=5&offset=20", http.StatusOK, 5, 20},
		{"limit capped", "?limit=1000", http.StatusOK, 100, 0},
		{"negative offset", "?offset=-4", http.StatusOK, 10, 0},
		{"invalid limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"invalid offset", "?offset=1.5", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receivedLimit, receivedOffset = 0, 0
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resources"+tt.query, nil))

			assert.Equal(t, tt.expectHTTPCode, rec.Code)
			if tt.expectHTTPCode == http.StatusOK {
				assert.Equal(t, tt.expectLimit, receivedLimit)
				assert.Equal(t, tt.expectOffset, receivedOffset)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	svc := &mockResourceService{
		createFunc: func(_ context.Context, resource *model.Resource) error {
			if resource.Capacity < 1 {
				return apperrors.Validation("Resource validation failed", map[string]any{"input": resource})
			}
			resource.ID = "res-1"
			return nil
		},
	}
	router := newRouter(svc)

	t.Run("created", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"name":"Projector","capacity":1,"is_available":true}`
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Data model.Resource `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "res-1", resp.Data.ID)
		assert.Equal(t, "Projector", resp.Data.Name)
	})

	t.Run("validation error echoes input", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"name":"Projector","capacity":0}`
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(body)))

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp httputil.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, apperrors.CodeValidation, resp.Code)
		assert.Contains(t, resp.Details, "input")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDelete(t *testing.T) {
	svc := &mockResourceService{
		deleteFunc: func(_ context.Context, id string) error {
			if id == "booked" {
				return apperrors.Conflict("resource has existing bookings and cannot be deleted")
			}
			return nil
		},
	}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/resources/id/free", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/resources/id/booked", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetByID_NotFound(t *testing.T) {
	router := newRouter(&mockResourceService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resources/id/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		pingErr    error
		expectCode int
		expectBody string
	}{
		{"liveness", "/health", nil, http.StatusOK, "ok"},
		{"ready", "/ready", nil, http.StatusOK, "ready"},
		{"store down", "/ready", errors.New("no reachable servers"), http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(fakePinger{err: tt.pingErr}, logger.Discard()).RegisterRoutes(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectCode, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expectBody, resp.Status)
		})
	}
}
