// Package capture provides video frame acquisition using GoCV (OpenCV).
package capture

import (
	"errors"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings.
const (
	DefaultFPS    = 30
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrSourceNotOpen is returned when trying to read from a source that is
// not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// ErrReadFailed is returned when a frame could not be read from the
// source.
var ErrReadFailed = errors.New("failed to read frame from source")

// Source defines the interface for video frame sources.
type Source interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	FPS() float64
	Size() (width, height int)
	IsOpen() bool
}

// videoSource reads frames from a camera device or a video file using
// GoCV. File sources loop back to the first frame at end of stream so that
// demo clips play continuously.
type videoSource struct {
	source  string
	isFile  bool
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     float64
	width   int
	height  int
}

// NewSource creates a Source for the given spec. A purely numeric spec is
// treated as a camera device index, anything else as a file path.
func NewSource(source string) Source {
	_, err := strconv.Atoi(source)
	return &videoSource{
		source: source,
		isFile: err != nil,
	}
}

// Open opens the underlying device or file and probes its frame rate and
// resolution.
func (v *videoSource) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.running {
		return nil
	}

	var capture *gocv.VideoCapture
	var err error

	if v.isFile {
		capture, err = gocv.VideoCaptureFile(v.source)
	} else {
		deviceID, _ := strconv.Atoi(v.source)
		capture, err = gocv.OpenVideoCapture(deviceID)
	}
	if err != nil {
		return err
	}

	v.fps = capture.Get(gocv.VideoCaptureFPS)
	if v.fps <= 0 {
		v.fps = DefaultFPS
	}

	v.width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	v.height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	if v.width <= 0 || v.height <= 0 {
		v.width = DefaultWidth
		v.height = DefaultHeight
	}

	v.capture = capture
	v.running = true

	return nil
}

// Close closes the source and releases resources.
func (v *videoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		v.running = false
		return nil
	}

	err := v.capture.Close()
	v.capture = nil
	v.running = false

	return err
}

// ReadFrame reads a single frame. The caller is responsible for closing
// the returned Mat. File sources rewind and retry once at end of stream.
func (v *videoSource) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if v.read(&mat) {
		return &mat, nil
	}

	// End of a file: rewind and try again so demo videos loop.
	if v.isFile {
		v.capture.Set(gocv.VideoCapturePosFrames, 0)
		if v.read(&mat) {
			return &mat, nil
		}
	}

	mat.Close()
	return nil, ErrReadFailed
}

// read pulls one frame into mat and reports whether it is usable.
func (v *videoSource) read(mat *gocv.Mat) bool {
	if ok := v.capture.Read(mat); !ok {
		return false
	}
	return !mat.Empty()
}

// FPS returns the source frame rate.
func (v *videoSource) FPS() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fps <= 0 {
		return DefaultFPS
	}
	return v.fps
}

// Size returns the frame dimensions probed at open time.
func (v *videoSource) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// IsOpen returns true if the source is currently open.
func (v *videoSource) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}
