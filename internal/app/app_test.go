package app

import (
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/speedwatch/speedwatch/internal/capture"
	"github.com/speedwatch/speedwatch/internal/detector"
	"github.com/speedwatch/speedwatch/internal/speed"
	"github.com/speedwatch/speedwatch/internal/store"
	"github.com/speedwatch/speedwatch/internal/tracker"
)

// stubSource is a test Source that produces blank frames.
type stubSource struct {
	open   bool
	frames int
}

func (s *stubSource) Open() error  { s.open = true; return nil }
func (s *stubSource) Close() error { s.open = false; return nil }
func (s *stubSource) ReadFrame() (*gocv.Mat, error) {
	if !s.open {
		return nil, capture.ErrSourceNotOpen
	}
	s.frames++
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	return &mat, nil
}
func (s *stubSource) FPS() float64     { return 30 }
func (s *stubSource) Size() (int, int) { return 640, 480 }
func (s *stubSource) IsOpen() bool     { return s.open }

// fullZone disables zone filtering for tests that place detections
// anywhere in the frame.
var fullZone = detector.Zone{Start: 0, End: 1}

func testApp(t *testing.T, mock *detector.MockDetector) *App {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a := New(Config{
		Store:      st,
		Source:     &stubSource{},
		Detector:   mock,
		SourceName: "test",
		Tracker:    tracker.DefaultConfig(),
		Speed:      speed.DefaultConfig(),
		Zone:       fullZone,
	})

	// Open the source and initialize frame geometry without starting the
	// loop; tests drive processFrame directly for determinism.
	if err := a.source.Open(); err != nil {
		t.Fatalf("source.Open() error = %v", err)
	}
	a.frameW, a.frameH = a.source.Size()
	a.fps = a.source.FPS()
	a.sessionID = "test-session"
	if err := st.Sessions().Create(&store.Session{
		ID: a.sessionID, Source: "test", SpeedLimit: 80,
	}); err != nil {
		t.Fatalf("session create error = %v", err)
	}

	return a
}

// driveFrames feeds n frames through the pipeline with the mock's
// currently configured detections.
func driveFrames(t *testing.T, a *App, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		frame, err := a.source.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		a.processFrame(frame)
		frame.Close()
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		name string
		fps  float64
		want time.Duration
	}{
		{"standard 30fps", 30, time.Second / 30},
		{"ntsc 29.97fps", 29.97, time.Duration(float64(time.Second) / 29.97)},
		{"slow timelapse file", 0.5, 2 * time.Second},
		{"zero falls back to default", 0, time.Second / speed.DefaultFPS},
		{"negative falls back to default", -1, time.Second / speed.DefaultFPS},
		{"absurd rate clamps", 1e7, minFrameInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frameInterval(tt.fps)
			if got != tt.want {
				t.Errorf("frameInterval(%v) = %v, want %v", tt.fps, got, tt.want)
			}
			if got <= 0 {
				t.Errorf("frameInterval(%v) = %v, must be positive", tt.fps, got)
			}
		})
	}
}

func TestProcessFrame_TracksAppearInSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	// A car moving 5px per frame: confirmed after MinHits frames.
	for i := 0; i < 5; i++ {
		mock.QueueFrames([]detector.Detection{detector.CarAt(100+i*5, 240)})
	}
	driveFrames(t, a, 5)

	snap := a.Snapshot()
	if len(snap.Objects) != 1 {
		t.Fatalf("expected 1 tracked object, got %d", len(snap.Objects))
	}
	if snap.Objects[0].Label != "car" {
		t.Errorf("unexpected label %s", snap.Objects[0].Label)
	}
	if snap.Stats.Frames != 5 {
		t.Errorf("expected 5 frames, got %d", snap.Stats.Frames)
	}
}

func TestProcessFrame_BBoxNormalizedToFractions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	// Box spans x [280, 360] and y [215, 265] in a 640x480 frame.
	for i := 0; i < 5; i++ {
		mock.QueueFrames([]detector.Detection{detector.CarAt(320+i*6, 240)})
	}
	driveFrames(t, a, 5)

	snap := a.Snapshot()
	if len(snap.Objects) != 1 {
		t.Fatalf("expected 1 tracked object, got %d", len(snap.Objects))
	}

	bbox := snap.Objects[0].BBox
	if bbox.X < 0 || bbox.X > 1 || bbox.Y < 0 || bbox.Y > 1 {
		t.Errorf("bbox origin not in [0,1]: %+v", bbox)
	}
	if bbox.Width <= 0 || bbox.Width > 1 || bbox.Height <= 0 || bbox.Height > 1 {
		t.Errorf("bbox size not in (0,1]: %+v", bbox)
	}

	// CarAt boxes are 80px wide and 50px tall.
	if bbox.Width != 80.0/640 {
		t.Errorf("expected width %f, got %f", 80.0/640, bbox.Width)
	}
	if bbox.Height != 50.0/480 {
		t.Errorf("expected height %f, got %f", 50.0/480, bbox.Height)
	}
}

func TestReportFirstSeen_ExactlyOncePerTrack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	var reported []int
	a.RegisterEventCallback(func(ev *store.SpeedEvent) {
		reported = append(reported, ev.TrackID)
	})

	// 30 frames of steady motion: plenty of chances to report twice.
	for i := 0; i < 30; i++ {
		mock.QueueFrames([]detector.Detection{detector.CarAt(50+i*5, 240)})
	}
	driveFrames(t, a, 30)

	if len(reported) != 1 {
		t.Fatalf("expected exactly one report, got %d (%v)", len(reported), reported)
	}

	events, err := a.config.Store.Events().BySession(a.sessionID)
	if err != nil {
		t.Fatalf("BySession() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected exactly one stored event, got %d", len(events))
	}
	if events[0].SpeedKMH <= 0 {
		t.Errorf("expected positive speed, got %f", events[0].SpeedKMH)
	}

	snap := a.Snapshot()
	if snap.Stats.TotalVehicles != 1 {
		t.Errorf("expected 1 vehicle counted, got %d", snap.Stats.TotalVehicles)
	}
}

func TestReportFirstSeen_OverspeedCounted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	// 12px/frame at 30fps and 8.8px/m is about 147 km/h.
	for i := 0; i < 15; i++ {
		mock.QueueFrames([]detector.Detection{detector.CarAt(50+i*12, 240)})
	}
	driveFrames(t, a, 15)

	snap := a.Snapshot()
	if snap.Stats.OverspeedCount != 1 {
		t.Errorf("expected 1 overspeed vehicle, got %d", snap.Stats.OverspeedCount)
	}

	events, err := a.config.Store.Events().BySession(a.sessionID)
	if err != nil {
		t.Fatalf("BySession() error = %v", err)
	}
	if len(events) != 1 || !events[0].IsOverspeed {
		t.Errorf("expected one overspeed event, got %+v", events)
	}
}

func TestProcessFrame_StationaryVehicleNotReported(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	mock.SetDetections([]detector.Detection{detector.CarAt(320, 240)})
	driveFrames(t, a, 20)

	snap := a.Snapshot()
	if snap.Stats.TotalVehicles != 0 {
		t.Errorf("stationary vehicle should not be reported, got %d",
			snap.Stats.TotalVehicles)
	}

	// The track itself is confirmed, just without a speed.
	if len(snap.Objects) != 1 {
		t.Fatalf("expected 1 tracked object, got %d", len(snap.Objects))
	}
	if snap.Objects[0].SpeedKMH != 0 {
		t.Errorf("expected no speed, got %f", snap.Objects[0].SpeedKMH)
	}
}

func TestProcessFrame_EmptyFramesDrainTracks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)
	a.tracks = tracker.NewStore(tracker.Config{
		MaxDisappeared: 5,
		MaxDistance:    100,
		MinHits:        3,
	})

	mock.SetDetections([]detector.Detection{detector.CarAt(320, 240)})
	driveFrames(t, a, 4)

	mock.SetDetections(nil)
	driveFrames(t, a, 6)

	if a.tracks.Len() != 0 {
		t.Errorf("expected all tracks removed, got %d", a.tracks.Len())
	}
	if len(a.Snapshot().Objects) != 0 {
		t.Error("snapshot should contain no objects after tracks drained")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	for i := 0; i < 5; i++ {
		mock.QueueFrames([]detector.Detection{detector.CarAt(100+i*5, 240)})
	}
	driveFrames(t, a, 5)

	snap := a.Snapshot()
	if len(snap.Objects) == 0 {
		t.Fatal("expected objects in snapshot")
	}
	snap.Objects[0].SpeedKMH = 999

	if a.Snapshot().Objects[0].SpeedKMH == 999 {
		t.Error("mutating a snapshot must not affect pipeline state")
	}
}

func TestLatestFrame_EncodedJPEG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	a := testApp(t, mock)

	if a.LatestFrame() != nil {
		t.Error("expected nil before any frame is processed")
	}

	driveFrames(t, a, 1)

	frame := a.LatestFrame()
	if len(frame) < 4 {
		t.Fatal("expected an encoded frame")
	}
	// JPEG SOI marker.
	if frame[0] != 0xFF || frame[1] != 0xD8 {
		t.Errorf("expected JPEG magic, got % x", frame[:2])
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{detector.CarAt(320, 240)})

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	src := &stubSource{}
	a := New(Config{
		Store:      st,
		Source:     src,
		Detector:   mock,
		SourceName: "test",
		Tracker:    tracker.DefaultConfig(),
		Speed:      speed.DefaultConfig(),
		Zone:       fullZone,
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.IsRunning() {
		t.Error("app should report running after Start")
	}

	a.Stop()
	if a.IsRunning() {
		t.Error("app should not report running after Stop")
	}
	if src.IsOpen() {
		t.Error("source should be closed after Stop")
	}

	sess, err := st.Sessions().GetByID(a.SessionID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("session should be finished after Stop")
	}
}
