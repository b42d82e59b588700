package api

import (
	"net/http"
	"time"

	"github.com/speedwatch/speedwatch/internal/store"
)

// SessionsHandler handles HTTP requests for monitoring sessions.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type sessionResponse struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	SpeedLimit float64 `json:"speed_limit"`
	StartedAt  string  `json:"started_at"`
	EndedAt    string  `json:"ended_at,omitempty"`
	Frames     int     `json:"frames"`
	Vehicles   int     `json:"vehicles"`
	Overspeed  int     `json:"overspeed"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func sessionToResponse(sess *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:         sess.ID,
		Source:     sess.Source,
		SpeedLimit: sess.SpeedLimit,
		StartedAt:  sess.StartedAt.Format(time.RFC3339),
		Frames:     sess.Frames,
		Vehicles:   sess.Vehicles,
		Overspeed:  sess.Overspeed,
	}
	if sess.EndedAt != nil {
		resp.EndedAt = sess.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// ServeHTTP handles GET /api/sessions.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, sess := range sessions {
		response.Sessions = append(response.Sessions, sessionToResponse(sess))
	}

	writeJSON(w, http.StatusOK, response)
}
