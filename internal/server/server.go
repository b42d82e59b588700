// Package server provides the HTTP server for the speedwatch monitoring system.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/speedwatch/speedwatch/internal/app"
	"github.com/speedwatch/speedwatch/internal/server/api"
	"github.com/speedwatch/speedwatch/internal/store"
)

// Pipeline is the part of the processing loop the server reads from and
// configures. Satisfied by *app.App.
type Pipeline interface {
	IsRunning() bool
	SessionID() string
	Snapshot() app.Snapshot
	LatestFrame() []byte
	SetSpeedLimit(limit float64)
	SetCalibration(pixelsPerMeter float64)
	SpeedLimit() float64
	Calibration() float64
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
}

// Server represents the HTTP server for the speedwatch application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/stats", s.handleStats)
		s.mux.HandleFunc("/api/detections", s.handleDetections)
		s.mux.HandleFunc("/api/config", s.handleConfig)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline))
	}

	// Register the events API if a Store is configured
	if s.config.Store != nil {
		eventsHandler := api.NewEventsHandler(s.config.Store)
		s.mux.Handle("/api/events", eventsHandler)
		s.mux.Handle("/api/events.csv", eventsHandler)
		s.mux.Handle("/api/sessions", api.NewSessionsHandler(s.config.Store))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// RegisterEventStream mounts the WebSocket handler. Kept separate from
// setupRoutes so callers can wire the handler to the pipeline's event
// callback.
func (s *Server) RegisterEventStream(h *EventStreamHandler) {
	s.mux.Handle("/api/ws", h)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleStatus handles GET /api/status with the full pipeline snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Pipeline.Snapshot())
}

// handleStats handles GET /api/stats with just the session counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Pipeline.Snapshot().Stats)
}

// handleDetections handles GET /api/detections with the current frame's
// confirmed vehicles.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.config.Pipeline.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":  snap.Timestamp,
		"detections": snap.Objects,
	})
}

type configResponse struct {
	SpeedLimit     float64 `json:"speed_limit"`
	PixelsPerMeter float64 `json:"pixels_per_meter"`
}

type updateConfigRequest struct {
	SpeedLimit     *float64 `json:"speed_limit"`
	PixelsPerMeter *float64 `json:"pixels_per_meter"`
}

// handleConfig handles GET and POST /api/config for runtime calibration
// and speed limit changes.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, configResponse{
			SpeedLimit:     s.config.Pipeline.SpeedLimit(),
			PixelsPerMeter: s.config.Pipeline.Calibration(),
		})
	case http.MethodPost:
		var req updateConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.SpeedLimit != nil {
			if *req.SpeedLimit <= 0 {
				writeError(w, http.StatusBadRequest, "Speed limit must be positive")
				return
			}
			s.config.Pipeline.SetSpeedLimit(*req.SpeedLimit)
		}
		if req.PixelsPerMeter != nil {
			if *req.PixelsPerMeter <= 0 {
				writeError(w, http.StatusBadRequest, "Pixels per meter must be positive")
				return
			}
			s.config.Pipeline.SetCalibration(*req.PixelsPerMeter)
		}
		writeJSON(w, http.StatusOK, configResponse{
			SpeedLimit:     s.config.Pipeline.SpeedLimit(),
			PixelsPerMeter: s.config.Pipeline.Calibration(),
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
