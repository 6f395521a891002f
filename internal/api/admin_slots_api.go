package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"calbook/internal/database"
	"calbook/internal/metrics"
	"calbook/internal/models"
)

// SlotRequest is the request body for creating or updating a time slot.
type SlotRequest struct {
	Category  int64     `json:"category"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// AdminSlotResponse is a slot as seen by administrators, with the booking
// holder exposed when present.
type AdminSlotResponse struct {
	ID           int64            `json:"id"`
	Category     int64            `json:"category"`
	CategoryName string           `json:"category_name"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	CreatedBy    int64            `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	IsAvailable  bool             `json:"is_available"`
	Booking      *BookingResponse `json:"booking,omitempty"`
}

func adminSlotView(e database.SlotWithBooking) AdminSlotResponse {
	resp := AdminSlotResponse{
		ID:           e.Slot.ID,
		Category:     e.Slot.CategoryID,
		CategoryName: e.Slot.CategoryName,
		StartTime:    e.Slot.StartTime,
		EndTime:      e.Slot.EndTime,
		CreatedBy:    e.Slot.CreatedBy,
		CreatedAt:    e.Slot.CreatedAt,
		IsAvailable:  e.Booking == nil,
	}
	if e.Booking != nil {
		resp.Booking = &BookingResponse{
			ID:       e.Booking.ID,
			User:     e.Booking.Username,
			BookedAt: e.Booking.BookedAt,
		}
	}
	return resp
}

func adminSlotFromModel(slot *models.TimeSlot, booking *models.Booking) AdminSlotResponse {
	return adminSlotView(database.SlotWithBooking{Slot: *slot, Booking: booking})
}

// handleAdminSlots lists or creates time slots.
// GET  /api/admin/timeslots
// POST /api/admin/timeslots
func (s *HTTPServer) handleAdminSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_timeslots")
	switch r.Method {
	case http.MethodGet:
		s.listAdminSlots(w, r)
	case http.MethodPost:
		s.createAdminSlot(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listAdminSlots(w http.ResponseWriter, r *http.Request) {
	filter, err := slotFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.db.ListSlots(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list slots")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]AdminSlotResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, adminSlotView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeslots": out})
}

func (s *HTTPServer) createAdminSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Category <= 0 || req.StartTime.IsZero() || req.EndTime.IsZero() {
		writeError(w, http.StatusBadRequest, "category, start_time and end_time are required")
		return
	}

	p, _ := principalFrom(r)
	slot, err := s.slots.Create(r.Context(), p.UserID, req.Category, req.StartTime, req.EndTime)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, adminSlotFromModel(slot, nil))
}

// handleAdminSlotByID reads, rewrites or deletes one slot.
// GET    /api/admin/timeslots/{id}
// PUT    /api/admin/timeslots/{id}
// DELETE /api/admin/timeslots/{id}
func (s *HTTPServer) handleAdminSlotByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_timeslot")

	id, ok := idFromPath(r.URL.Path, "/api/admin/timeslots/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getAdminSlot(w, r, id)
	case http.MethodPut:
		s.updateAdminSlot(w, r, id)
	case http.MethodDelete:
		s.deleteAdminSlot(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getAdminSlot(w http.ResponseWriter, r *http.Request, id int64) {
	slot, err := s.db.GetSlotByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.log.Error().Err(err).Msg("load slot")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	booking, err := s.db.GetBookingForSlot(r.Context(), id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.log.Error().Err(err).Msg("load booking")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, adminSlotFromModel(slot, booking))
}

func (s *HTTPServer) updateAdminSlot(w http.ResponseWriter, r *http.Request, id int64) {
	var req SlotRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Category <= 0 || req.StartTime.IsZero() || req.EndTime.IsZero() {
		writeError(w, http.StatusBadRequest, "category, start_time and end_time are required")
		return
	}

	slot, err := s.slots.Update(r.Context(), id, req.Category, req.StartTime, req.EndTime)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// A no-op update of a booked slot succeeds; the response must still
	// show the booking.
	booking, err := s.db.GetBookingForSlot(r.Context(), id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.log.Error().Err(err).Msg("load booking")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, adminSlotFromModel(slot, booking))
}

func (s *HTTPServer) deleteAdminSlot(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.slots.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
