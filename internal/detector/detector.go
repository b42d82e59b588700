// Package detector provides vehicle detection for video frames.
package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// COCO class IDs for the vehicle classes the system cares about.
var vehicleClasses = map[int]string{
	2: "car",
	3: "motorcycle",
	5: "bus",
	7: "truck",
}

// Detection represents a single detected vehicle.
type Detection struct {
	// BBox is the bounding box in pixel coordinates.
	BBox image.Rectangle
	// Confidence is the detection confidence in [0, 1].
	Confidence float64
	// ClassID is the model's class index.
	ClassID int
	// Label is the class name, e.g. "car".
	Label string
}

// Centroid returns the center point of the detection's bounding box. It is
// the position proxy used for tracking.
func (d Detection) Centroid() image.Point {
	return image.Pt(
		(d.BBox.Min.X+d.BBox.Max.X)/2,
		(d.BBox.Min.Y+d.BBox.Max.Y)/2,
	)
}

// Detector defines the interface for vehicle detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected vehicles.
	// Returns an empty slice if no vehicles are found.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for vehicle detection.
type Config struct {
	// ModelPath is the path to the ONNX model weights.
	ModelPath string

	// ConfidenceThreshold is the minimum detection confidence (0.0-1.0).
	ConfidenceThreshold float64

	// NMSThreshold is the IoU threshold for non-maximum suppression.
	NMSThreshold float64

	// InputSize is the square input resolution the model expects.
	InputSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:           "models/yolov8n.onnx",
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
		InputSize:           640,
	}
}

// ClassLabel returns the display name for a vehicle class ID, falling back
// to "vehicle" for unknown classes.
func ClassLabel(classID int) string {
	if name, ok := vehicleClasses[classID]; ok {
		return name
	}
	return "vehicle"
}

// IsVehicleClass reports whether a class ID is one of the tracked vehicle
// classes.
func IsVehicleClass(classID int) bool {
	_, ok := vehicleClasses[classID]
	return ok
}
