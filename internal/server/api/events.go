// Package api provides HTTP API handlers for the speedwatch monitoring system.
package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/speedwatch/speedwatch/internal/store"
)

// EventsHandler handles HTTP requests for recorded speed events.
type EventsHandler struct {
	store *store.Store
}

// NewEventsHandler creates a new EventsHandler with the given store.
func NewEventsHandler(s *store.Store) *EventsHandler {
	return &EventsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if strings.HasSuffix(r.URL.Path, ".csv") {
		h.exportCSV(w, r)
		return
	}
	h.list(w, r)
}

type eventResponse struct {
	ID          int64   `json:"id"`
	SessionID   string  `json:"session_id"`
	TrackID     int     `json:"track_id"`
	VehicleType string  `json:"vehicle_type"`
	SpeedKMH    float64 `json:"speed_kmh"`
	SpeedLimit  float64 `json:"speed_limit"`
	IsOverspeed bool    `json:"is_overspeed"`
	Confidence  float64 `json:"confidence"`
	RecordedAt  string  `json:"recorded_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

// toResponse converts a store.SpeedEvent to an eventResponse.
func toResponse(ev *store.SpeedEvent) eventResponse {
	return eventResponse{
		ID:          ev.ID,
		SessionID:   ev.SessionID,
		TrackID:     ev.TrackID,
		VehicleType: ev.Label,
		SpeedKMH:    ev.SpeedKMH,
		SpeedLimit:  ev.SpeedLimit,
		IsOverspeed: ev.IsOverspeed,
		Confidence:  ev.Confidence,
		RecordedAt:  ev.RecordedAt.Format(time.RFC3339),
	}
}

// query reads the session and limit parameters and fetches the matching
// events. A session parameter selects that session oldest first;
// otherwise the most recent events across all sessions are returned.
func (h *EventsHandler) query(r *http.Request) ([]*store.SpeedEvent, error) {
	if session := r.URL.Query().Get("session"); session != "" {
		return h.store.Events().BySession(session)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit %q", raw)
		}
		limit = n
	}
	return h.store.Events().Recent(limit)
}

// list handles GET /api/events.
func (h *EventsHandler) list(w http.ResponseWriter, r *http.Request) {
	events, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
	}
	for _, ev := range events {
		response.Events = append(response.Events, toResponse(ev))
	}

	writeJSON(w, http.StatusOK, response)
}

// exportCSV handles GET /api/events.csv.
func (h *EventsHandler) exportCSV(w http.ResponseWriter, r *http.Request) {
	events, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="speed_events.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"id", "session_id", "track_id", "vehicle_type",
		"speed_kmh", "speed_limit", "is_overspeed", "confidence", "recorded_at",
	})
	for _, ev := range events {
		cw.Write([]string{
			strconv.FormatInt(ev.ID, 10),
			ev.SessionID,
			strconv.Itoa(ev.TrackID),
			ev.Label,
			strconv.FormatFloat(ev.SpeedKMH, 'f', 1, 64),
			strconv.FormatFloat(ev.SpeedLimit, 'f', 1, 64),
			strconv.FormatBool(ev.IsOverspeed),
			strconv.FormatFloat(ev.Confidence, 'f', 2, 64),
			ev.RecordedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
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
