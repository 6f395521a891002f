package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calbook/internal/database"
	"calbook/internal/metrics"
	"calbook/internal/models"
)

// CreateBookingRequest is the request body for POST /api/bookings.
type CreateBookingRequest struct {
	TimeSlotID int64 `json:"time_slot_id"`
}

// BookingResponse is a booking with its slot joined.
type BookingResponse struct {
	ID       int64        `json:"id"`
	User     string       `json:"user"`
	BookedAt time.Time    `json:"booked_at"`
	TimeSlot SlotResponse `json:"time_slot"`
}

func bookingView(b models.Booking) BookingResponse {
	resp := BookingResponse{
		ID:       b.ID,
		User:     b.Username,
		BookedAt: b.BookedAt,
	}
	if b.Slot != nil {
		resp.TimeSlot = SlotResponse{
			ID:           b.Slot.ID,
			Category:     b.Slot.CategoryID,
			CategoryName: b.Slot.CategoryName,
			StartTime:    b.Slot.StartTime,
			EndTime:      b.Slot.EndTime,
		}
	}
	return resp
}

// handleCreateBooking books a slot for the caller.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TimeSlotID <= 0 {
		writeError(w, http.StatusBadRequest, "time_slot_id is required")
		return
	}

	p, _ := principalFrom(r)
	booking, err := s.bookings.Create(r.Context(), p.UserID, req.TimeSlotID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingView(*booking))
}

// handleCancelBooking cancels the caller's own booking.
// DELETE /api/bookings/{id}
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := idFromPath(r.URL.Path, "/api/bookings/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	p, _ := principalFrom(r)
	if err := s.bookings.Cancel(r.Context(), id, p.UserID, false); err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Booking cancelled successfully"})
}

// handleUserBookings lists the caller's bookings.
// GET /api/user/bookings?status=upcoming|past
func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("user_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", "upcoming", "past":
	default:
		writeError(w, http.StatusBadRequest, "status must be upcoming or past")
		return
	}

	p, _ := principalFrom(r)
	bookings, err := s.db.GetUserBookings(r.Context(), p.UserID, status, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("list user bookings")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

// handleAdminBookings lists bookings across all users.
// GET /api/admin/bookings?date=YYYY-MM-DD&user=name&category_id=N&limit=N
func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.db.ListBookings(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list bookings")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

// handleAdminCancelBooking cancels any booking unconditionally.
// DELETE /api/admin/bookings/{id}
func (s *HTTPServer) handleAdminCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_cancel_booking")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := idFromPath(r.URL.Path, "/api/admin/bookings/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	p, _ := principalFrom(r)
	if err := s.bookings.Cancel(r.Context(), id, p.UserID, true); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func bookingFilterFromQuery(r *http.Request) (database.BookingFilter, error) {
	var filter database.BookingFilter
	q := r.URL.Query()

	if v := q.Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errInvalidDate("date")
		}
		filter.Date = &d
	}
	filter.Username = q.Get("user")
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errBadQuery("invalid category_id")
		}
		filter.CategoryID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errBadQuery("invalid limit")
		}
		filter.Limit = n
	}

	return filter, nil
}

// idFromPath extracts the trailing numeric ID after the prefix.
func idFromPath(path, prefix string) (int64, bool) {
	if !strings.HasPrefix(path, prefix) {
		return 0, false
	}
	raw := strings.TrimSuffix(path[len(prefix):], "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
