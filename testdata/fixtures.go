// Package testdata builds synthetic road frames for tests, so the
// pipeline can be exercised without camera hardware or video files.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FrameWidth and FrameHeight are the dimensions of synthetic frames.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// RoadFrame returns a gray road scene with one filled rectangle per
// vehicle box. The caller owns the returned Mat.
func RoadFrame(vehicles ...image.Rectangle) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(80, 80, 80, 0),
		FrameHeight, FrameWidth, gocv.MatTypeCV8UC3,
	)

	for _, box := range vehicles {
		gocv.Rectangle(&mat, box, color.RGBA{R: 200, G: 200, B: 210}, -1)
	}

	return &mat
}

// VehicleBox returns a sedan-sized box centered at the given point,
// matching the geometry the mock detector reports.
func VehicleBox(x, y int) image.Rectangle {
	return image.Rect(x-40, y-25, x+40, y+25)
}
