package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

// maxConfigBody caps the size of a config handshake body
const maxConfigBody = 4096

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ConfigResponse is returned by the config handshake endpoint
type ConfigResponse struct {
	Accepted  bool   `json:"accepted"`
	EventsURL string `json:"eventsUrl"`
}

// StatusResponse represents the status API response
type StatusResponse struct {
	Relay   entities.RelayStatus      `json:"relay"`
	Tabs    int                       `json:"tabs"`
	Metrics *entities.MetricsSnapshot `json:"metrics,omitempty"`
}

// handleConfig accepts the relay configuration over plain HTTP. It answers
// 202 when the configuration was taken, 200 when the relay was already
// configured and 400 when the configuration is unusable.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody+1))
	if err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	if len(body) > maxConfigBody {
		s.handleError(w, errors.New("config body too large"), http.StatusRequestEntityTooLarge)
		return
	}

	var cfg entities.RelayConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}
	cfg.EventsURL = resolveEventsURL(cfg.EventsURL, requestBaseURL(r))

	accepted, err := s.sink.Configure(cfg)
	if err != nil {
		s.handleError(w, err, http.StatusBadRequest)
		return
	}

	if accepted {
		s.writeJSON(w, http.StatusAccepted, ConfigResponse{Accepted: true, EventsURL: cfg.EventsURL})
		return
	}

	current := s.status.Status()
	s.writeJSON(w, http.StatusOK, ConfigResponse{Accepted: false, EventsURL: current.EventsURL})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the relay status as JSON
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) statusResponse() StatusResponse {
	resp := StatusResponse{
		Relay: s.status.Status(),
		Tabs:  s.ClientCount(),
	}
	if s.stats != nil {
		snapshot := s.stats.Snapshot()
		resp.Metrics = &snapshot
	}
	return resp
}

// handleError writes a sanitized JSON error and logs the real cause
func (s *Server) handleError(w http.ResponseWriter, err error, status int) {
	var message string
	switch status {
	case http.StatusBadRequest:
		message = "Invalid request"
		if errors.Is(err, entities.ErrInvalidEventsURL) {
			message = "Invalid events URL"
		}
	case http.StatusNotFound:
		message = "Resource not found"
	case http.StatusMethodNotAllowed:
		message = "Method not allowed"
	case http.StatusRequestEntityTooLarge:
		message = "Request too large"
	case http.StatusTooManyRequests:
		message = "Too many requests"
	case http.StatusInternalServerError:
		message = "Internal server error"
	default:
		message = "An error occurred"
	}

	// Log the actual error server-side only
	if status >= http.StatusInternalServerError {
		s.logger.Error("HTTP error", slog.Int("status", status), slog.String("error", err.Error()))
	} else {
		s.logger.Warn("HTTP error", slog.Int("status", status), slog.String("error", err.Error()))
	}

	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Time:    time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.Error("Failed to encode error response", slog.String("error", encodeErr.Error()))
	}
}

// writeJSON writes a JSON response with the given status
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}
