// Package server provides the HTTP server for the speedwatch monitoring system.
package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// StreamHandler serves the annotated video feed as MJPEG. Frames come
// from the pipeline's latest encoded frame rather than the camera, so
// the pipeline stays the only reader of the source.
type StreamHandler struct {
	pipeline Pipeline
}

// NewStreamHandler creates a new StreamHandler backed by the pipeline.
func NewStreamHandler(p Pipeline) *StreamHandler {
	return &StreamHandler{pipeline: p}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame := h.pipeline.LatestFrame()
		if frame == nil || bytes.Equal(frame, last) {
			time.Sleep(33 * time.Millisecond)
			continue
		}
		last = frame

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
		if _, err := w.Write(frame); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(33 * time.Millisecond) // ~30 FPS cap
	}
}
