// Package main provides a logfile alert hook. It appends every event it
// receives to an audit log, one JSON line per event. The log path comes
// from SPEEDWATCH_ALERT_LOG and defaults to speed_alerts.jsonl in the
// hook directory.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Response represents the output to the hook executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		writeResponse(Response{Success: false, Error: fmt.Sprintf("failed to read event: %v", err)})
		return
	}

	logPath := os.Getenv("SPEEDWATCH_ALERT_LOG")
	if logPath == "" {
		logPath = "speed_alerts.jsonl"
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		writeResponse(Response{Success: false, Error: fmt.Sprintf("failed to open log: %v", err)})
		return
	}
	defer f.Close()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		writeResponse(Response{Success: false, Error: fmt.Sprintf("failed to append: %v", err)})
		return
	}

	writeResponse(Response{Success: true})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
