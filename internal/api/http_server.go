package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"supperclub/internal/aggregate"
	"supperclub/internal/config"
	"supperclub/internal/metrics"
	"supperclub/internal/models"
	"supperclub/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WizardAPI is the wizard surface the HTTP handlers drive.
type WizardAPI interface {
	Start(ctx context.Context, clientKey string, seed models.Patch) (service.WizardView, error)
	Get(ctx context.Context, draftID string) (service.WizardView, error)
	Update(ctx context.Context, draftID string, patch models.Patch) (service.WizardView, error)
	Next(ctx context.Context, draftID string) (service.WizardView, error)
	Previous(ctx context.Context, draftID string) (service.WizardView, error)
	JumpTo(ctx context.Context, draftID string, step int) (service.WizardView, error)
	Submit(ctx context.Context, draftID string) (service.WizardView, error)
	Lookup(ctx context.Context, draftID, contact string) (service.WizardView, *models.Profile, error)
	Close(ctx context.Context, draftID string) error
}

// BookingAPI is the booking surface for list and dashboard views.
type BookingAPI interface {
	Get(ctx context.Context, id string) (*models.BookingRecord, error)
	Update(ctx context.Context, id string, version int64, patch models.Patch) (models.BookingRecord, error)
	Grouped(ctx context.Context, from, to time.Time, by service.GroupBy) (aggregate.Groups[string, models.BookingRecord], error)
	Summary(ctx context.Context, from, to time.Time) (aggregate.Summary, error)
}

// Pinger reports backend readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking wizard and booking views over JSON.
type HTTPServer struct {
	cfg      config.APIConfig
	wizards  WizardAPI
	bookings BookingAPI
	ready    Pinger
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, wizards WizardAPI, bookings BookingAPI, ready Pinger, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:      *cfg,
		wizards:  wizards,
		bookings: bookings,
		ready:    ready,
		auth:     NewHTTPAuth(*cfg),
		logger:   base,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)

	mux.HandleFunc("POST /api/v1/quote", srv.handleQuote)

	mux.HandleFunc("POST /api/v1/wizards", srv.handleWizardStart)
	mux.HandleFunc("GET /api/v1/wizards/{id}", srv.handleWizardGet)
	mux.HandleFunc("PATCH /api/v1/wizards/{id}", srv.handleWizardUpdate)
	mux.HandleFunc("DELETE /api/v1/wizards/{id}", srv.handleWizardClose)
	mux.HandleFunc("POST /api/v1/wizards/{id}/next", srv.handleWizardNext)
	mux.HandleFunc("POST /api/v1/wizards/{id}/previous", srv.handleWizardPrevious)
	mux.HandleFunc("POST /api/v1/wizards/{id}/jump", srv.handleWizardJump)
	mux.HandleFunc("POST /api/v1/wizards/{id}/submit", srv.handleWizardSubmit)
	mux.HandleFunc("POST /api/v1/wizards/{id}/lookup", srv.handleWizardLookup)

	mux.HandleFunc("GET /api/v1/bookings", srv.handleBookingsList)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleBookingGet)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", srv.handleBookingUpdate)
	mux.HandleFunc("GET /api/v1/dashboard", srv.handleDashboard)

	handler := srv.loggingMiddleware(corsMiddleware(srv.auth.Wrap(mux)))

	port := cfg.HTTP.Port
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.PingContext(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

const requestIDHeader = "X-Request-Id"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-API-Extra, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
