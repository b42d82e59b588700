// Package speed converts tracked pixel trajectories into calibrated speed
// estimates.
package speed

import (
	"image"
	"math"
	"sync"
)

// Default estimator parameters.
const (
	// DefaultPixelsPerMeter is the placeholder camera calibration. Measure
	// a known distance in the camera view and divide pixels by meters to
	// calibrate a real deployment.
	DefaultPixelsPerMeter = 8.8
	// DefaultFPS is the nominal frame rate used when no timestamps are
	// available.
	DefaultFPS = 30
	// DefaultSpeedLimit is the overspeed threshold in km/h.
	DefaultSpeedLimit = 80
	// DefaultMinDistance is the minimum path length in pixels before a
	// speed is reported. It filters jitter from stationary objects.
	DefaultMinDistance = 20
	// maxWindow is the number of most recent positions used for smoothing.
	maxWindow = 10
	// kmhPerMS converts meters per second to kilometers per hour.
	kmhPerMS = 3.6
	// mphPerKMH converts kilometers per hour to miles per hour.
	mphPerKMH = 0.621371
)

// Result is a single speed estimate.
type Result struct {
	// SpeedKMH is the smoothed speed in km/h, rounded to one decimal.
	SpeedKMH float64
	// SpeedMPH is the same speed in mph, rounded to one decimal.
	SpeedMPH float64
	// IsOverspeed reports whether SpeedKMH exceeds the configured limit.
	IsOverspeed bool
	// DistancePixels is the raw path length within the window.
	DistancePixels float64
	// TimeSeconds is the elapsed time covered by the window.
	TimeSeconds float64
}

// Config holds configuration options for the estimator.
type Config struct {
	// PixelsPerMeter is the camera calibration factor.
	PixelsPerMeter float64
	// FPS is the nominal frame rate, used when timestamps are missing.
	FPS float64
	// SpeedLimit is the overspeed threshold in km/h.
	SpeedLimit float64
	// MinDistance is the minimum path length in pixels for an estimate.
	MinDistance float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		PixelsPerMeter: DefaultPixelsPerMeter,
		FPS:            DefaultFPS,
		SpeedLimit:     DefaultSpeedLimit,
		MinDistance:    DefaultMinDistance,
	}
}

// Estimator computes speeds from position histories. Calibration and the
// speed limit may be updated at runtime and take effect on the next call.
type Estimator struct {
	mu             sync.RWMutex
	pixelsPerMeter float64
	fps            float64
	speedLimit     float64
	minDistance    float64
}

// NewEstimator creates a new Estimator with the given configuration.
func NewEstimator(config Config) *Estimator {
	if config.PixelsPerMeter <= 0 {
		config.PixelsPerMeter = DefaultPixelsPerMeter
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	if config.SpeedLimit <= 0 {
		config.SpeedLimit = DefaultSpeedLimit
	}
	if config.MinDistance <= 0 {
		config.MinDistance = DefaultMinDistance
	}

	return &Estimator{
		pixelsPerMeter: config.PixelsPerMeter,
		fps:            config.FPS,
		speedLimit:     config.SpeedLimit,
		minDistance:    config.MinDistance,
	}
}

// Estimate computes a smoothed speed from a position history and its
// aligned timestamps. It returns nil when there is not enough data: fewer
// than two positions, a path shorter than the minimum distance threshold,
// or a non-positive elapsed time.
//
// Only the most recent positions (up to a window of ten) are considered,
// and the path length is the sum of the segment distances within the
// window, so curved trajectories are measured along the curve.
func (e *Estimator) Estimate(positions []image.Point, timestamps []float64) *Result {
	if len(positions) < 2 {
		return nil
	}

	e.mu.RLock()
	pixelsPerMeter := e.pixelsPerMeter
	fps := e.fps
	limit := e.speedLimit
	minDistance := e.minDistance
	e.mu.RUnlock()

	if pixelsPerMeter <= 0 {
		return nil
	}

	window := len(positions)
	if window > maxWindow {
		window = maxWindow
	}
	recent := positions[len(positions)-window:]

	total := 0.0
	for i := 1; i < len(recent); i++ {
		total += pointDistance(recent[i-1], recent[i])
	}

	if total < minDistance {
		return nil
	}

	var elapsed float64
	if len(timestamps) >= window {
		recentTs := timestamps[len(timestamps)-window:]
		elapsed = recentTs[len(recentTs)-1] - recentTs[0]
	} else {
		elapsed = float64(window-1) / fps
	}

	if elapsed <= 0 {
		return nil
	}

	meters := total / pixelsPerMeter
	kmh := meters / elapsed * kmhPerMS

	return &Result{
		SpeedKMH:       round1(kmh),
		SpeedMPH:       round1(kmh * mphPerKMH),
		IsOverspeed:    kmh > limit,
		DistancePixels: total,
		TimeSeconds:    elapsed,
	}
}

// Instantaneous computes the unsmoothed speed between two points in km/h,
// rounded to one decimal. It returns 0 when the time delta is not
// positive.
func (e *Estimator) Instantaneous(p1, p2 image.Point, dt float64) float64 {
	if dt <= 0 {
		return 0
	}

	e.mu.RLock()
	pixelsPerMeter := e.pixelsPerMeter
	e.mu.RUnlock()

	if pixelsPerMeter <= 0 {
		return 0
	}

	meters := pointDistance(p1, p2) / pixelsPerMeter
	return round1(meters / dt * kmhPerMS)
}

// UpdateCalibration sets a new pixels-per-meter factor. Non-positive
// values are ignored.
func (e *Estimator) UpdateCalibration(pixelsPerMeter float64) {
	if pixelsPerMeter <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pixelsPerMeter = pixelsPerMeter
}

// UpdateSpeedLimit sets a new overspeed threshold in km/h. Non-positive
// values are ignored.
func (e *Estimator) UpdateSpeedLimit(limit float64) {
	if limit <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.speedLimit = limit
}

// Calibration returns the current pixels-per-meter factor.
func (e *Estimator) Calibration() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pixelsPerMeter
}

// SpeedLimit returns the current overspeed threshold in km/h.
func (e *Estimator) SpeedLimit() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speedLimit
}

// pointDistance calculates the Euclidean distance between two points.
func pointDistance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
