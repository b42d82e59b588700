package detector

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestDetection_Centroid(t *testing.T) {
	tests := []struct {
		name string
		bbox image.Rectangle
		want image.Point
	}{
		{"square", image.Rect(0, 0, 100, 100), image.Pt(50, 50)},
		{"offset", image.Rect(10, 20, 110, 220), image.Pt(60, 120)},
		{"odd sizes truncate", image.Rect(0, 0, 5, 5), image.Pt(2, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detection{BBox: tt.bbox}
			if got := d.Centroid(); got != tt.want {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassLabel(t *testing.T) {
	if got := ClassLabel(2); got != "car" {
		t.Errorf("ClassLabel(2) = %s, want car", got)
	}
	if got := ClassLabel(7); got != "truck" {
		t.Errorf("ClassLabel(7) = %s, want truck", got)
	}
	if got := ClassLabel(0); got != "vehicle" {
		t.Errorf("ClassLabel(0) = %s, want vehicle fallback", got)
	}
}

func TestIsVehicleClass(t *testing.T) {
	for _, id := range []int{2, 3, 5, 7} {
		if !IsVehicleClass(id) {
			t.Errorf("class %d should be a vehicle class", id)
		}
	}
	// Person (0) and traffic light (9) are not vehicles.
	for _, id := range []int{0, 9} {
		if IsVehicleClass(id) {
			t.Errorf("class %d should not be a vehicle class", id)
		}
	}
}

func TestZone_Contains(t *testing.T) {
	z := Zone{Start: 0.2, End: 0.8}
	const frameHeight = 1000

	tests := []struct {
		name string
		y    int
		want bool
	}{
		{"above band", 100, false},
		{"top edge", 200, true},
		{"middle", 500, true},
		{"bottom edge", 800, true},
		{"below band", 900, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := z.Contains(image.Pt(320, tt.y), frameHeight)
			if got != tt.want {
				t.Errorf("Contains(y=%d) = %v, want %v", tt.y, got, tt.want)
			}
		})
	}
}

func TestZone_Filter(t *testing.T) {
	z := DefaultZone()
	const frameHeight = 480

	inside := CarAt(100, 240)
	above := CarAt(100, 10)
	below := CarAt(100, 470)

	kept := z.Filter([]Detection{above, inside, below}, frameHeight)

	if len(kept) != 1 {
		t.Fatalf("expected 1 detection inside the zone, got %d", len(kept))
	}
	if kept[0].Centroid() != inside.Centroid() {
		t.Errorf("wrong detection kept: %v", kept[0].Centroid())
	}
}

func TestMockDetector_FixedDetections(t *testing.T) {
	m := NewMockDetector()
	m.SetDetections([]Detection{CarAt(100, 200)})

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 3; i++ {
		dets, err := m.Detect(&frame)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(dets) != 1 || dets[0].Label != "car" {
			t.Fatalf("unexpected detections: %v", dets)
		}
	}

	if m.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", m.Calls())
	}
}

func TestMockDetector_ScriptedFrames(t *testing.T) {
	m := NewMockDetector()
	m.QueueFrames(
		[]Detection{CarAt(100, 200)},
		nil,
		[]Detection{CarAt(110, 200), TruckAt(400, 220)},
	)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	wantCounts := []int{1, 0, 2, 0}
	for i, want := range wantCounts {
		dets, err := m.Detect(&frame)
		if err != nil {
			t.Fatalf("frame %d: Detect() error = %v", i, err)
		}
		if len(dets) != want {
			t.Errorf("frame %d: expected %d detections, got %d", i, want, len(dets))
		}
	}
}

func TestMockDetector_Error(t *testing.T) {
	m := NewMockDetector()
	wantErr := errors.New("camera unplugged")
	m.SetError(wantErr)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if _, err := m.Detect(&frame); !errors.Is(err, wantErr) {
		t.Errorf("expected configured error, got %v", err)
	}
}
