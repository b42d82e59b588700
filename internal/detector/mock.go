package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a fixed set
// returned on every call or as a scripted per-frame sequence.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	script     [][]Detection
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by every Detect
// call, unless a script is queued.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// QueueFrames schedules per-frame detection results. Each Detect call pops
// the next entry; once the script is exhausted the fixed detections apply
// again.
func (m *MockDetector) QueueFrames(frames ...[]Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}

	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// CarAt returns a preset car detection centered at the given point, sized
// like a typical sedan seen from a roadside camera.
func CarAt(x, y int) Detection {
	return Detection{
		BBox:       image.Rect(x-40, y-25, x+40, y+25),
		Confidence: 0.92,
		ClassID:    2,
		Label:      "car",
	}
}

// TruckAt returns a preset truck detection centered at the given point.
func TruckAt(x, y int) Detection {
	return Detection{
		BBox:       image.Rect(x-60, y-40, x+60, y+40),
		Confidence: 0.88,
		ClassID:    7,
		Label:      "truck",
	}
}
