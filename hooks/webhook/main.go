// Package main provides a webhook alert hook. It forwards the speed
// event it receives on stdin as a JSON POST to the URL in the
// SPEEDWATCH_WEBHOOK_URL environment variable.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("failed to read event: %v", err))
		return
	}

	url := os.Getenv("SPEEDWATCH_WEBHOOK_URL")
	if url == "" {
		writeErrorResponse("SPEEDWATCH_WEBHOOK_URL is not set")
		return
	}

	client := &http.Client{Timeout: 4 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		writeErrorResponse(fmt.Sprintf("webhook POST failed: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		writeErrorResponse(fmt.Sprintf("webhook returned status %d", resp.StatusCode))
		return
	}

	writeSuccessResponse()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
