package api

import (
	"encoding/json"
	"net/http"

	"calbook/internal/metrics"
	"calbook/internal/models"
)

// PreferencesRequest is the request body for updating category preferences.
type PreferencesRequest struct {
	Cat1 bool `json:"cat_1"`
	Cat2 bool `json:"cat_2"`
	Cat3 bool `json:"cat_3"`
}

// handlePreferences reads or rewrites the caller's category selection.
// GET  /api/user/preferences
// POST /api/user/preferences
func (s *HTTPServer) handlePreferences(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("preferences")
	switch r.Method {
	case http.MethodGet:
		s.getPreferences(w, r)
	case http.MethodPost, http.MethodPut:
		s.updatePreferences(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r)
	prefs, err := s.db.GetPreferences(r.Context(), p.UserID)
	if err != nil {
		s.log.Error().Err(err).Msg("load preferences")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *HTTPServer) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, _ := principalFrom(r)
	prefs := &models.UserPreference{
		UserID: p.UserID,
		Cat1:   req.Cat1,
		Cat2:   req.Cat2,
		Cat3:   req.Cat3,
	}
	if err := s.db.UpdatePreferences(r.Context(), prefs); err != nil {
		s.log.Error().Err(err).Msg("update preferences")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}
