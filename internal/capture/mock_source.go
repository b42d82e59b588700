package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-loaded frames for testing. With loop enabled
// it rewinds at the end of the sequence, mirroring file playback.
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     float64
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a MockSource over the given frames.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.index = 0
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// ReadFrame returns a clone of the next frame so callers can close it
// without invalidating the sequence.
func (m *MockSource) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrSourceNotOpen
	}
	if len(m.frames) == 0 {
		return nil, ErrReadFailed
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return nil, ErrReadFailed
		}
		m.index = 0
	}

	frame := m.frames[m.index].Clone()
	m.index++
	return &frame, nil
}

// SetFPS overrides the reported frame rate.
func (m *MockSource) SetFPS(fps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fps > 0 {
		m.fps = fps
	}
}

func (m *MockSource) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

// Size reports the dimensions of the first frame, or the defaults when no
// frames are loaded.
func (m *MockSource) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.frames) == 0 || m.frames[0] == nil {
		return DefaultWidth, DefaultHeight
	}
	return m.frames[0].Cols(), m.frames[0].Rows()
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Reset rewinds playback to the first frame.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
