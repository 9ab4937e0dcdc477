package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"resourcebooking/internal/bookings/service"
	apperrors "resourcebooking/pkg/errors"
	httputil "resourcebooking/pkg/http"
	"resourcebooking/pkg/logger"
	"resourcebooking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// BookingRequest is the create payload. Times arrive as strings so that a
// malformed value can be reported against the caller's own input.
type BookingRequest struct {
	ResourceID string `json:"resource_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	BookedBy   string `json:"booked_by"`
	Purpose    string `json:"purpose"`
}

type BookingUpdateRequest struct {
	ResourceID string  `json:"resource_id,omitempty"`
	StartTime  *string `json:"start_time,omitempty"`
	EndTime    *string `json:"end_time,omitempty"`
	BookedBy   string  `json:"booked_by,omitempty"`
	Purpose    string  `json:"purpose,omitempty"`
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := req.toBooking()
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), booking); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// List serves the schedule overview. resourceName and date narrow it; both
// may be combined.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := model.BookingFilter{ResourceName: query.Get("resourceName")}
	if raw := strings.TrimSpace(query.Get("date")); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			h.writeError(w, "List", apperrors.InvalidInput(err.Error()))
			return
		}
		filter.Date = &date
	}

	bookings, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Upcoming(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Upcoming", err)
		return
	}

	bookings, total, err := h.service.Upcoming(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "Upcoming", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Upcoming", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req BookingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	updates, err := req.toUpdate()
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/upcoming", h.Upcoming)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
}

// toBooking leaves a missing time at its zero value so that validation
// reports it as a required field.
func (req BookingRequest) toBooking() (*model.Booking, error) {
	booking := &model.Booking{
		ResourceID: req.ResourceID,
		BookedBy:   req.BookedBy,
		Purpose:    req.Purpose,
	}

	var err error
	if strings.TrimSpace(req.StartTime) != "" {
		if booking.StartTime, err = model.ParseTime(req.StartTime); err != nil {
			return nil, invalidTime("start_time", err, req)
		}
	}
	if strings.TrimSpace(req.EndTime) != "" {
		if booking.EndTime, err = model.ParseTime(req.EndTime); err != nil {
			return nil, invalidTime("end_time", err, req)
		}
	}
	return booking, nil
}

func (req BookingUpdateRequest) toUpdate() (*model.BookingUpdate, error) {
	updates := &model.BookingUpdate{
		ResourceID: req.ResourceID,
		BookedBy:   req.BookedBy,
		Purpose:    req.Purpose,
	}

	if req.StartTime != nil {
		start, err := model.ParseTime(*req.StartTime)
		if err != nil {
			return nil, invalidTime("start_time", err, req)
		}
		updates.StartTime = &start
	}
	if req.EndTime != nil {
		end, err := model.ParseTime(*req.EndTime)
		if err != nil {
			return nil, invalidTime("end_time", err, req)
		}
		updates.EndTime = &end
	}
	return updates, nil
}

func invalidTime(field string, err error, input any) *apperrors.AppError {
	return apperrors.InvalidInput(err.Error()).WithDetails(map[string]any{
		"field": field,
		"input": input,
	})
}
