package detector

import "image"

// Zone restricts tracking to a horizontal band of the frame, expressed as
// fractions of the frame height. Detections outside the band are dropped
// before they reach the tracker, which keeps distant and partially visible
// vehicles from polluting speed estimates.
type Zone struct {
	// Start is the top of the band as a fraction of frame height.
	Start float64
	// End is the bottom of the band as a fraction of frame height.
	End float64
}

// DefaultZone returns the default detection band covering the middle 60%
// of the frame.
func DefaultZone() Zone {
	return Zone{Start: 0.2, End: 0.8}
}

// Contains reports whether a centroid falls inside the band for the given
// frame height. A zero-value Zone contains nothing; use DefaultZone or an
// explicit full-frame zone instead.
func (z Zone) Contains(centroid image.Point, frameHeight int) bool {
	top := int(float64(frameHeight) * z.Start)
	bottom := int(float64(frameHeight) * z.End)
	return centroid.Y >= top && centroid.Y <= bottom
}

// Filter returns only the detections whose centroids fall inside the band.
func (z Zone) Filter(detections []Detection, frameHeight int) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if z.Contains(d.Centroid(), frameHeight) {
			out = append(out, d)
		}
	}
	return out
}
