package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/submit"
)

// maxPhotoBytes caps an uploaded photo at 10 MiB.
const maxPhotoBytes = 10 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// FeedReader returns the current ordered feed view.
type FeedReader interface {
	Snapshot() []domain.Incident
}

// Submitter runs one incident submission.
type Submitter interface {
	Submit(ctx context.Context, input submit.Input) (submit.Receipt, error)
}

// Server exposes the incident API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	feed       FeedReader
	submitter  Submitter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the incident routes and the
// /healthz, /readyz, and /metrics operational routes.
func NewServer(addr string, feed FeedReader, submitter Submitter, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		feed:      feed,
		submitter: submitter,
		logger:    logger,
	}

	mux.HandleFunc("GET /api/v1/incidents", s.handleListIncidents)
	mux.HandleFunc("POST /api/v1/incidents", s.handleSubmitIncident)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleListIncidents serves the feed view, newest first.
func (s *Server) handleListIncidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": s.feed.Snapshot(),
	})
}

// submitResponse is the submission result payload. Location is present
// whenever one was assigned, including the persistence-failure case.
type submitResponse struct {
	Incident *domain.Incident `json:"incident,omitempty"`
	Location *domain.Location `json:"location,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// handleSubmitIncident accepts an SOS submission as multipart form data
// (disaster_type, message, photo) or as a JSON body without a photo.
func (s *Server) handleSubmitIncident(w http.ResponseWriter, r *http.Request) {
	input, err := parseSubmission(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: err.Error()})
		return
	}

	receipt, err := s.submitter.Submit(r.Context(), input)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, submitResponse{
			Incident: &receipt.Incident,
			Location: &receipt.Location,
		})
	case errors.Is(err, domain.ErrMissingDisasterType):
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: "disaster_type is required"})
	case errors.Is(err, submit.ErrLocationUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, submitResponse{Error: "location_unavailable"})
	case errors.Is(err, submit.ErrPersistenceFailed):
		// The record was not stored, but the captured location still goes
		// back so the client can show it.
		writeJSON(w, http.StatusBadGateway, submitResponse{
			Location: &receipt.Location,
			Error:    "persistence_failed",
		})
	default:
		s.logger.Error("submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, submitResponse{Error: "internal"})
	}
}

func parseSubmission(r *http.Request) (submit.Input, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			return submit.Input{}, errors.New("malformed multipart body")
		}
		input := submit.Input{
			DisasterType: r.FormValue("disaster_type"),
			Message:      r.FormValue("message"),
		}
		file, _, err := r.FormFile("photo")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxPhotoBytes))
			if readErr != nil {
				return submit.Input{}, errors.New("unreadable photo")
			}
			input.Image = data
		}
		return input, nil
	}

	var body struct {
		DisasterType string `json:"disaster_type"`
		Message      string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return submit.Input{}, errors.New("malformed JSON body")
	}
	return submit.Input{DisasterType: body.DisasterType, Message: body.Message}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
