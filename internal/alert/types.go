// Package alert provides discovery and execution of external alert hooks
// for the speedwatch monitoring system.
package alert

import "encoding/json"

// Manifest describes an alert hook's metadata.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Events lists the event kinds the hook wants. An empty list means
	// overspeed only.
	Events []string `json:"events,omitempty"`
}

// Event is the payload delivered to a hook on its stdin.
type Event struct {
	Kind        string  `json:"kind"`
	SessionID   string  `json:"session_id"`
	TrackID     int     `json:"track_id"`
	VehicleType string  `json:"vehicle_type"`
	SpeedKMH    float64 `json:"speed_kmh"`
	SpeedLimit  float64 `json:"speed_limit"`
	RecordedAt  int64   `json:"recorded_at"`
}

// Response represents the response from a hook execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook represents a discovered alert hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Event kinds delivered to hooks.
const (
	KindOverspeed = "overspeed"
	KindSpeed     = "speed"
)

// wants reports whether the hook subscribed to the given event kind.
func (h *Hook) wants(kind string) bool {
	if len(h.Manifest.Events) == 0 {
		return kind == KindOverspeed
	}
	for _, ev := range h.Manifest.Events {
		if ev == kind {
			return true
		}
	}
	return false
}
