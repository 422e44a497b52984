package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/middleware"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/slot"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

// BookingHandler serves read-only calendar queries.
type BookingHandler struct {
	store    booking.Store
	resolver *slot.Resolver
	loc      *time.Location
	logger   *logger.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(store booking.Store, resolver *slot.Resolver, loc *time.Location, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		store:    store,
		resolver: resolver,
		loc:      loc,
		logger:   log,
	}
}

// List handles GET /api/v1/bookings?date=YYYY-MM-DD
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query().Get("date")

	day, err := middleware.ValidateDate(raw, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dayStart, dayEnd := h.resolver.DayBounds(day)
	records, err := h.store.Overlaps(ctx, model.Interval{Start: dayStart, End: dayEnd})
	if err != nil {
		h.logger.WithContext(middleware.GetCorrelationID(ctx), "").Error("failed to list bookings", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, unavailableMessage)
		return
	}
	if records == nil {
		records = []model.BookingRecord{}
	}

	writeJSON(w, http.StatusOK, model.ListBookingsResponse{
		Date:     raw,
		Bookings: records,
	})
}

// Availability handles GET /api/v1/availability?start=...&end=...[&duration=minutes]
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	duration := end.Sub(start)
	if raw := q.Get("duration"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
		duration = time.Duration(minutes) * time.Minute
	}

	busy, err := h.resolver.FindAvailability(ctx, start, end)
	if err != nil {
		h.logger.WithContext(middleware.GetCorrelationID(ctx), "").Error("availability query failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, unavailableMessage)
		return
	}

	resp := model.AvailabilityResponse{Free: len(busy) == 0, Busy: busy}
	if !resp.Free {
		suggestion, ok, err := h.resolver.SuggestNextFreeSlot(ctx, start, duration)
		if err != nil {
			h.logger.WithContext(middleware.GetCorrelationID(ctx), "").Error("slot suggestion failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, unavailableMessage)
			return
		}
		if ok {
			resp.Suggestion = &suggestion
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
