// Package app wires detection, tracking and speed estimation into the
// per-frame processing pipeline.
package app

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/speedwatch/speedwatch/internal/capture"
	"github.com/speedwatch/speedwatch/internal/detector"
	"github.com/speedwatch/speedwatch/internal/overlay"
	"github.com/speedwatch/speedwatch/internal/speed"
	"github.com/speedwatch/speedwatch/internal/store"
	"github.com/speedwatch/speedwatch/internal/tracker"
)

// Config holds configuration options for the application.
type Config struct {
	// Store persists sessions and speed events. Optional.
	Store *store.Store
	// Source supplies video frames.
	Source capture.Source
	// Detector finds vehicles in frames.
	Detector detector.Detector
	// SourceName describes the video source for the session record.
	SourceName string
	// Tracker configures track association and lifecycle.
	Tracker tracker.Config
	// Speed configures calibration and the overspeed threshold.
	Speed speed.Config
	// Zone is the detection band; detections outside it are dropped.
	Zone detector.Zone
	// SnapshotDir receives JPEG crops of overspeed vehicles. Snapshots
	// are disabled when empty.
	SnapshotDir string
}

// Stats carries the running session counters.
type Stats struct {
	TotalVehicles   int     `json:"total_vehicles"`
	OverspeedCount  int     `json:"overspeed_count"`
	Frames          int     `json:"frames"`
	AverageSpeedKMH float64 `json:"average_speed"`
	MaxSpeedKMH     float64 `json:"max_speed"`
}

// BBoxFraction is a bounding box normalized to frame-fraction coordinates
// in [0, 1], so downstream consumers are independent of the pixel
// resolution.
type BBoxFraction struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TrackedObject is the per-frame output record for one confirmed vehicle.
type TrackedObject struct {
	ID          int          `json:"id"`
	Label       string       `json:"type"`
	SpeedKMH    float64      `json:"speed"`
	IsOverspeed bool         `json:"is_overspeed"`
	Confidence  float64      `json:"confidence"`
	BBox        BBoxFraction `json:"bbox"`
}

// Snapshot is a read-only copy of the pipeline state, safe to hand to
// concurrent readers such as the HTTP server. Track state mutates every
// frame, so readers never receive live references.
type Snapshot struct {
	Running     bool            `json:"is_running"`
	SessionID   string          `json:"session_id"`
	Timestamp   float64         `json:"timestamp"`
	SpeedLimit  float64         `json:"speed_limit"`
	Calibration float64         `json:"pixels_per_meter"`
	Stats       Stats           `json:"stats"`
	Objects     []TrackedObject `json:"detections"`
}

// App owns the frame processing loop and all per-run state. The loop is
// the single writer; everything exposed to other goroutines goes through
// Snapshot or LatestFrame.
type App struct {
	config    Config
	source    capture.Source
	detector  detector.Detector
	tracks    *tracker.Store
	estimator *speed.Estimator
	renderer  *overlay.Renderer

	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	sessionID string

	// State below is written by the pipeline under mu and read by
	// Snapshot/LatestFrame.
	fps        float64
	frameCount int
	frameW     int
	frameH     int
	objects    []TrackedObject
	lastJPEG   []byte
	stats      Stats
	speedSum   float64

	// reported holds track IDs whose speed has already been logged. It is
	// never pruned: identities are never reused, so a pruned entry could
	// only ever cause a duplicate report.
	reported map[int]struct{}

	// eventCb, when set, observes each logged speed event.
	eventCb func(*store.SpeedEvent)
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	return &App{
		config:    config,
		source:    config.Source,
		detector:  config.Detector,
		tracks:    tracker.NewStore(config.Tracker),
		estimator: speed.NewEstimator(config.Speed),
		renderer:  overlay.NewRenderer(config.Zone.Start, config.Zone.End),
		reported:  make(map[int]struct{}),
	}
}

// RegisterEventCallback sets a function invoked for every speed event,
// after it is persisted. Used by tests and live consumers.
func (a *App) RegisterEventCallback(cb func(*store.SpeedEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventCb = cb
}

// Start opens the video source and begins the processing loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.source.Open(); err != nil {
		return err
	}

	a.frameW, a.frameH = a.source.Size()
	a.fps = a.source.FPS()
	if a.fps <= 0 {
		a.fps = speed.DefaultFPS
	}
	a.sessionID = uuid.NewString()
	a.running = true

	if a.config.Store != nil {
		err := a.config.Store.Sessions().Create(&store.Session{
			ID:         a.sessionID,
			Source:     a.config.SourceName,
			SpeedLimit: a.estimator.SpeedLimit(),
		})
		if err != nil {
			log.Printf("Failed to record session: %v", err)
		}
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Printf("Processing pipeline started (session %s)", a.sessionID)
	return nil
}

// Stop halts the processing loop, releases resources and records the
// session summary.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.doneCh = nil
	a.mu.Unlock()

	close(stopCh)
	<-doneCh

	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = false

	if err := a.source.Close(); err != nil {
		log.Printf("Error closing video source: %v", err)
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	if a.config.Store != nil {
		err := a.config.Store.Sessions().Finish(a.sessionID,
			a.frameCount, a.stats.TotalVehicles, a.stats.OverspeedCount)
		if err != nil {
			log.Printf("Failed to finish session: %v", err)
		}
	}

	log.Printf("Session %s: %d frames, %d vehicles, %d overspeed",
		a.sessionID, a.frameCount, a.stats.TotalVehicles, a.stats.OverspeedCount)
}

// IsRunning reports whether the pipeline loop is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// SessionID returns the identifier of the current run.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// Snapshot returns a read-only copy of the current pipeline state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	objects := make([]TrackedObject, len(a.objects))
	copy(objects, a.objects)

	fps := a.fps
	if fps <= 0 {
		fps = speed.DefaultFPS
	}

	return Snapshot{
		Running:     a.running,
		SessionID:   a.sessionID,
		Timestamp:   float64(a.frameCount) / fps,
		SpeedLimit:  a.estimator.SpeedLimit(),
		Calibration: a.estimator.Calibration(),
		Stats:       a.stats,
		Objects:     objects,
	}
}

// LatestFrame returns the most recent annotated frame encoded as JPEG, or
// nil when no frame has been processed yet.
func (a *App) LatestFrame() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.lastJPEG == nil {
		return nil
	}
	frame := make([]byte, len(a.lastJPEG))
	copy(frame, a.lastJPEG)
	return frame
}

// SetSpeedLimit updates the overspeed threshold for subsequent frames.
func (a *App) SetSpeedLimit(limit float64) {
	a.estimator.UpdateSpeedLimit(limit)
}

// SetCalibration updates the pixels-per-meter factor for subsequent
// frames.
func (a *App) SetCalibration(pixelsPerMeter float64) {
	a.estimator.UpdateCalibration(pixelsPerMeter)
}

// SpeedLimit returns the current overspeed threshold in km/h.
func (a *App) SpeedLimit() float64 {
	return a.estimator.SpeedLimit()
}

// Calibration returns the current pixels-per-meter factor.
func (a *App) Calibration() float64 {
	return a.estimator.Calibration()
}
