package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"calbook/internal/database"
	"calbook/internal/metrics"
	"calbook/internal/models"
)

// SlotResponse is a time slot as seen by a regular user. Availability is
// derived from booking presence; the holder is never exposed here.
type SlotResponse struct {
	ID           int64     `json:"id"`
	Category     int64     `json:"category"`
	CategoryName string    `json:"category_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsAvailable  bool      `json:"is_available"`
	IsMine       bool      `json:"is_mine"`
}

// handleCategories returns the fixed category set.
// GET /api/categories
func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("categories")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	categories, err := s.db.GetCategories(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list categories")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// handleListSlots returns the calendar view.
// GET /api/timeslots?date=YYYY-MM-DD&start_date=...&end_date=...&category_id=N&categories=Cat+1,Cat+2&available_only=true&status=booked|available
func (s *HTTPServer) handleListSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("timeslots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

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

	p, _ := principalFrom(r)
	slots := make([]SlotResponse, 0, len(entries))
	for _, e := range entries {
		slots = append(slots, slotView(e, p.UserID))
	}

	writeJSON(w, http.StatusOK, map[string]any{"timeslots": slots})
}

func slotView(e database.SlotWithBooking, viewerID int64) SlotResponse {
	resp := SlotResponse{
		ID:           e.Slot.ID,
		Category:     e.Slot.CategoryID,
		CategoryName: e.Slot.CategoryName,
		StartTime:    e.Slot.StartTime,
		EndTime:      e.Slot.EndTime,
		IsAvailable:  e.Booking == nil,
	}
	if e.Booking != nil && e.Booking.UserID == viewerID {
		resp.IsMine = true
	}
	return resp
}

func slotFilterFromQuery(r *http.Request) (database.SlotFilter, error) {
	var filter database.SlotFilter
	q := r.URL.Query()

	if v := q.Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errInvalidDate("date")
		}
		filter.Date = &d
	}

	start, end := q.Get("start_date"), q.Get("end_date")
	if (start == "") != (end == "") {
		return filter, errBadQuery("start_date and end_date must be used together")
	}
	if start != "" {
		sd, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, errInvalidDate("start_date")
		}
		ed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, errInvalidDate("end_date")
		}
		if sd.After(ed) {
			return filter, errBadQuery("start_date must be before or equal to end_date")
		}
		filter.StartDate = &sd
		filter.EndDate = &ed
	}

	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errBadQuery("invalid category_id")
		}
		filter.CategoryID = id
	}

	if v := q.Get("categories"); v != "" {
		known := make(map[string]struct{}, 3)
		for _, name := range models.CategoryNames() {
			known[name] = struct{}{}
		}
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if _, ok := known[name]; !ok {
				return filter, errBadQuery("unknown category: " + name)
			}
			filter.CategoryNames = append(filter.CategoryNames, name)
		}
	}

	filter.AvailableOnly = q.Get("available_only") == "true"

	switch q.Get("status") {
	case "":
	case "available":
		filter.AvailableOnly = true
	case "booked":
		filter.BookedOnly = true
	default:
		return filter, errBadQuery("status must be booked or available")
	}

	return filter, nil
}

type queryError string

func (e queryError) Error() string { return string(e) }

func errBadQuery(msg string) error { return queryError(msg) }

func errInvalidDate(field string) error {
	return queryError("invalid " + field + " format; expected YYYY-MM-DD")
}
