package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"calbook/internal/auth"
	"calbook/internal/config"
	"calbook/internal/database"
	"calbook/internal/service"
	"calbook/internal/ws"
)

// HTTPServer serves the calendar API and the websocket endpoint.
type HTTPServer struct {
	server   *http.Server
	db       *database.DB
	bookings *service.BookingService
	slots    *service.SlotService
	tokens   *auth.Manager
	hub      *ws.Hub
	limiter  *ipLimiter
	log      *zerolog.Logger
}

// NewHTTPServer wires the API surface. The rate limiter is active only when
// enabled in config.
func NewHTTPServer(
	cfg *config.Config,
	db *database.DB,
	bookings *service.BookingService,
	slots *service.SlotService,
	tokens *auth.Manager,
	hub *ws.Hub,
	logger *zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		db:       db,
		bookings: bookings,
		slots:    slots,
		tokens:   tokens,
		hub:      hub,
		log:      logger,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newIPLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	s.server = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	return s
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)

	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/timeslots", s.requireAuth(s.handleListSlots))

	mux.HandleFunc("/api/bookings", s.requireAuth(s.handleCreateBooking))
	mux.HandleFunc("/api/bookings/", s.requireAuth(s.handleCancelBooking))
	mux.HandleFunc("/api/user/bookings", s.requireAuth(s.handleUserBookings))
	mux.HandleFunc("/api/user/preferences", s.requireAuth(s.handlePreferences))

	mux.HandleFunc("/api/admin/timeslots", s.requireAdmin(s.handleAdminSlots))
	mux.HandleFunc("/api/admin/timeslots/", s.requireAdmin(s.handleAdminSlotByID))
	mux.HandleFunc("/api/admin/bookings", s.requireAdmin(s.handleAdminBookings))
	mux.HandleFunc("/api/admin/bookings/export", s.requireAdmin(s.handleExportBookings))
	mux.HandleFunc("/api/admin/bookings/", s.requireAdmin(s.handleAdminCancelBooking))

	mux.HandleFunc("/ws/calendar", s.handleCalendarWS)

	var handler http.Handler = mux
	handler = s.withRateLimit(handler)
	handler = s.withAccessLog(handler)
	handler = withRequestID(handler)
	return handler
}

// Handler exposes the composed handler chain, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service-layer errors onto HTTP responses. Domain
// denials come back as 400 with the reason verbatim.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if de, ok := service.AsDomainError(err); ok {
		writeError(w, http.StatusBadRequest, de.Reason)
		return
	}
	s.log.Error().Err(err).Msg("internal error")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
