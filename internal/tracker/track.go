// Package tracker implements centroid-based multi-object tracking.
// It assigns persistent integer identities to detections across frames by
// minimizing the distance between centroids.
package tracker

import "image"

// MaxHistory is the maximum number of positions kept per track. Older
// entries are dropped so that speed estimation stays bounded.
const MaxHistory = 30

// Observation is a single detection handed to the tracker for association.
type Observation struct {
	// Centroid is the center point of the detection's bounding box.
	Centroid image.Point
	// BBox is the bounding box in pixel coordinates.
	BBox image.Rectangle
	// Label is the object class name, e.g. "car".
	Label string
	// Confidence is the detection confidence in [0, 1].
	Confidence float64
}

// Track represents one physical object followed across frames.
type Track struct {
	// ID is the identity assigned at registration. IDs increase
	// monotonically and are never reused within a run.
	ID int
	// Centroid is the most recently matched center position.
	Centroid image.Point
	// BBox is the most recently matched bounding box. It goes stale while
	// the track coasts without a fresh match.
	BBox image.Rectangle
	// Label is the class name from the last matched detection.
	Label string
	// Confidence is the confidence from the last matched detection.
	Confidence float64
	// Positions holds the most recent MaxHistory centroids in order.
	Positions []image.Point
	// Timestamps holds the frame timestamps aligned with Positions.
	Timestamps []float64
	// Hits counts successful matches since registration.
	Hits int
	// Disappeared counts consecutive frames without a match. It resets to
	// zero on any match.
	Disappeared int
	// IsValid becomes true once Hits reaches the configured minimum and
	// never reverts while the track exists.
	IsValid bool
	// Speed is the last cached speed estimate in km/h, zero until the
	// first estimate is available.
	Speed float64
}

// Clone returns a deep copy of the track, safe to hand outside the
// processing loop.
func (t *Track) Clone() *Track {
	c := *t
	c.Positions = append([]image.Point(nil), t.Positions...)
	c.Timestamps = append([]float64(nil), t.Timestamps...)
	return &c
}

// appendPosition records a matched centroid and its timestamp, evicting the
// oldest entries beyond MaxHistory.
func (t *Track) appendPosition(p image.Point, timestamp float64) {
	t.Positions = append(t.Positions, p)
	t.Timestamps = append(t.Timestamps, timestamp)

	if len(t.Positions) > MaxHistory {
		t.Positions = t.Positions[len(t.Positions)-MaxHistory:]
		t.Timestamps = t.Timestamps[len(t.Timestamps)-MaxHistory:]
	}
}
