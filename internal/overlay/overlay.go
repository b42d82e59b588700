// Package overlay renders tracking results onto video frames for the
// preview window and the MJPEG stream.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// Drawing constants.
const (
	boxThickness  = 2
	fontScale     = 0.7
	fontThickness = 2
	labelPad      = 5
)

// Overlay colors.
var (
	colorNormal    = color.RGBA{0, 255, 0, 0}
	colorOverspeed = color.RGBA{255, 0, 0, 0}
	colorWarning   = color.RGBA{255, 165, 0, 0}
	colorText      = color.RGBA{255, 255, 255, 0}
)

// Object is one tracked vehicle to draw.
type Object struct {
	ID        int
	Label     string
	SpeedKMH  float64
	Overspeed bool
	HasSpeed  bool
	BBox      image.Rectangle
}

// HUD carries the session statistics drawn in the corner of the frame.
type HUD struct {
	TotalVehicles  int
	OverspeedCount int
	FrameCount     int
	SpeedLimit     float64
}

// Renderer draws boxes, speed labels, the detection zone and a stats HUD
// onto frames.
type Renderer struct {
	// ZoneStart and ZoneEnd mark the detection band as fractions of the
	// frame height.
	ZoneStart float64
	ZoneEnd   float64
}

// NewRenderer creates a Renderer with the given detection band.
func NewRenderer(zoneStart, zoneEnd float64) *Renderer {
	return &Renderer{ZoneStart: zoneStart, ZoneEnd: zoneEnd}
}

// Draw annotates the frame in place with the tracked objects and HUD.
func (r *Renderer) Draw(frame *gocv.Mat, objects []Object, hud HUD) {
	if frame == nil || frame.Empty() {
		return
	}

	width := frame.Cols()
	height := frame.Rows()

	r.drawZone(frame, width, height)

	for _, obj := range objects {
		r.drawObject(frame, obj)
	}

	r.drawHUD(frame, hud, width, height)
}

// drawZone draws the top and bottom detection band markers.
func (r *Renderer) drawZone(frame *gocv.Mat, width, height int) {
	if r.ZoneEnd <= r.ZoneStart {
		return
	}

	top := int(float64(height) * r.ZoneStart)
	bottom := int(float64(height) * r.ZoneEnd)

	gocv.Line(frame, image.Pt(0, top), image.Pt(width, top), colorWarning, 1)
	gocv.Line(frame, image.Pt(0, bottom), image.Pt(width, bottom), colorWarning, 1)
}

// drawObject draws one vehicle's box, speed label and class label.
func (r *Renderer) drawObject(frame *gocv.Mat, obj Object) {
	clr := colorNormal
	if obj.Overspeed {
		clr = colorOverspeed
	}

	gocv.Rectangle(frame, obj.BBox, clr, boxThickness)

	label := fmt.Sprintf("%d km/h", int(obj.SpeedKMH))
	if !obj.HasSpeed {
		label = "..."
	}

	textSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, fontScale, fontThickness)

	// Filled background behind the speed label.
	bg := image.Rect(
		obj.BBox.Min.X,
		obj.BBox.Min.Y-textSize.Y-2*labelPad,
		obj.BBox.Min.X+textSize.X+2*labelPad,
		obj.BBox.Min.Y,
	)
	gocv.Rectangle(frame, bg, clr, -1)

	gocv.PutText(frame, label,
		image.Pt(obj.BBox.Min.X+labelPad, obj.BBox.Min.Y-labelPad),
		gocv.FontHersheySimplex, fontScale, colorText, fontThickness)

	gocv.PutText(frame, obj.Label,
		image.Pt(obj.BBox.Min.X, obj.BBox.Max.Y+20),
		gocv.FontHersheySimplex, 0.5, clr, 1)

	if obj.Overspeed {
		gocv.PutText(frame, "OVERSPEED",
			image.Pt(obj.BBox.Min.X, bg.Min.Y-labelPad),
			gocv.FontHersheySimplex, fontScale, colorOverspeed, fontThickness)
	}
}

// drawHUD draws the session stats, the speed limit badge and a timestamp.
func (r *Renderer) drawHUD(frame *gocv.Mat, hud HUD, width, height int) {
	stats := []string{
		fmt.Sprintf("Vehicles: %d", hud.TotalVehicles),
		fmt.Sprintf("Overspeed: %d", hud.OverspeedCount),
		fmt.Sprintf("Frame: %d", hud.FrameCount),
	}

	y := 30
	for _, line := range stats {
		gocv.PutText(frame, line, image.Pt(10, y),
			gocv.FontHersheySimplex, 0.6, colorText, 1)
		y += 25
	}

	// Speed limit badge in the top-right corner.
	gocv.Circle(frame, image.Pt(width-60, 60), 40, colorOverspeed, 3)
	gocv.PutText(frame, fmt.Sprintf("%d", int(hud.SpeedLimit)),
		image.Pt(width-80, 70),
		gocv.FontHersheySimplex, 1.0, colorText, 2)

	gocv.PutText(frame, time.Now().Format("2006-01-02 15:04:05"),
		image.Pt(width-200, height-15),
		gocv.FontHersheySimplex, 0.5, colorText, 1)
}
