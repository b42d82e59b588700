package app

import (
	"fmt"
	"image"
	"log"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/speedwatch/speedwatch/internal/overlay"
	"github.com/speedwatch/speedwatch/internal/speed"
	"github.com/speedwatch/speedwatch/internal/store"
	"github.com/speedwatch/speedwatch/internal/tracker"
)

// snapshotPad is the padding in pixels around an overspeed vehicle crop.
const snapshotPad = 20

// minFrameInterval caps the loop rate for absurdly high frame rates.
const minFrameInterval = time.Millisecond

// frameInterval converts a frame rate to a tick interval without the
// truncation of integer Duration division; fractional rates like 29.97
// and sub-1 rates stay exact instead of rounding to a whole second
// divisor (which would be zero for rates below one).
func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = speed.DefaultFPS
	}
	interval := time.Duration(float64(time.Second) / fps)
	if interval < minFrameInterval {
		return minFrameInterval
	}
	return interval
}

// runPipeline is the main processing loop. It pulls one frame per tick
// and runs the full detect -> associate -> estimate -> emit sequence for
// it before the next frame begins. Nothing suspends mid-frame; the stop
// channel is only checked at frame boundaries.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(frameInterval(a.fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, err := a.source.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			a.processFrame(frame)
			frame.Close()
		}
	}
}

// processFrame runs one full pipeline iteration for a frame.
func (a *App) processFrame(frame *gocv.Mat) {
	a.mu.Lock()
	a.frameCount++
	frameNum := a.frameCount
	a.mu.Unlock()

	// Frame timestamps derive from the frame counter, not the wall clock,
	// so replaying the same video produces identical trajectories.
	timestamp := float64(frameNum) / a.fps

	detections, err := a.detector.Detect(frame)
	if err != nil {
		log.Printf("Error detecting vehicles: %v", err)
		detections = nil
	}
	detections = a.config.Zone.Filter(detections, a.frameH)

	observations := make([]tracker.Observation, len(detections))
	for i, d := range detections {
		observations[i] = tracker.Observation{
			Centroid:   d.Centroid(),
			BBox:       d.BBox,
			Label:      d.Label,
			Confidence: d.Confidence,
		}
	}

	a.tracks.Update(observations, timestamp)

	objects, drawables := a.emitTracks(frame)
	annotated := a.renderFrame(frame, drawables)

	a.mu.Lock()
	a.objects = objects
	if annotated != nil {
		a.lastJPEG = annotated
	}
	a.stats.Frames = frameNum
	a.mu.Unlock()
}

// emitTracks estimates speeds for the confirmed tracks, reports
// first-seen speeds, and builds both the per-frame output records and the
// overlay drawables.
func (a *App) emitTracks(frame *gocv.Mat) ([]TrackedObject, []overlay.Object) {
	valid := a.tracks.ValidTracks()
	objects := make([]TrackedObject, 0, len(valid))
	drawables := make([]overlay.Object, 0, len(valid))

	for _, tr := range valid {
		result := a.estimator.Estimate(tr.Positions, tr.Timestamps)
		overspeed := false
		hasSpeed := result != nil

		if result != nil {
			tr.Speed = result.SpeedKMH
			overspeed = result.IsOverspeed
			a.reportFirstSeen(tr, result.SpeedKMH, result.IsOverspeed, frame)
		} else if tr.Speed > 0 {
			// No fresh estimate this frame: judge the cached speed
			// against the current limit.
			overspeed = tr.Speed > a.estimator.SpeedLimit()
		}

		if tr.BBox.Empty() {
			continue
		}

		objects = append(objects, TrackedObject{
			ID:          tr.ID,
			Label:       tr.Label,
			SpeedKMH:    tr.Speed,
			IsOverspeed: overspeed,
			Confidence:  tr.Confidence,
			BBox:        a.fractionBBox(tr.BBox),
		})
		drawables = append(drawables, overlay.Object{
			ID:        tr.ID,
			Label:     tr.Label,
			SpeedKMH:  tr.Speed,
			Overspeed: overspeed,
			HasSpeed:  hasSpeed || tr.Speed > 0,
			BBox:      tr.BBox,
		})
	}

	return objects, drawables
}

// reportFirstSeen logs a track's speed exactly once, the first time a
// valid estimate becomes available for it. Later estimates for the same
// identity are never reported again, even as the speed changes.
func (a *App) reportFirstSeen(tr *tracker.Track, speedKMH float64, overspeed bool, frame *gocv.Mat) {
	a.mu.Lock()
	if _, seen := a.reported[tr.ID]; seen {
		a.mu.Unlock()
		return
	}
	a.reported[tr.ID] = struct{}{}

	a.stats.TotalVehicles++
	a.speedSum += speedKMH
	a.stats.AverageSpeedKMH = a.speedSum / float64(a.stats.TotalVehicles)
	if speedKMH > a.stats.MaxSpeedKMH {
		a.stats.MaxSpeedKMH = speedKMH
	}
	if overspeed {
		a.stats.OverspeedCount++
	}
	cb := a.eventCb
	a.mu.Unlock()

	event := &store.SpeedEvent{
		SessionID:   a.sessionID,
		TrackID:     tr.ID,
		Label:       tr.Label,
		SpeedKMH:    speedKMH,
		SpeedLimit:  a.estimator.SpeedLimit(),
		IsOverspeed: overspeed,
		Confidence:  tr.Confidence,
		RecordedAt:  time.Now(),
	}

	if a.config.Store != nil {
		if err := a.config.Store.Events().Create(event); err != nil {
			log.Printf("Failed to log speed event: %v", err)
		}
	}

	if overspeed && a.config.SnapshotDir != "" && frame != nil && !tr.BBox.Empty() {
		a.saveSnapshot(frame, tr, speedKMH)
	}

	if cb != nil {
		cb(event)
	}
}

// saveSnapshot writes a padded crop of an overspeed vehicle to the
// snapshot directory.
func (a *App) saveSnapshot(frame *gocv.Mat, tr *tracker.Track, speedKMH float64) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	crop := tr.BBox.Inset(-snapshotPad).Intersect(bounds)
	if crop.Empty() {
		return
	}

	region := frame.Region(crop)
	defer region.Close()

	filename := fmt.Sprintf("overspeed_%d_%s_%dkmh.jpg",
		tr.ID, time.Now().Format("20060102_150405"), int(speedKMH))
	path := filepath.Join(a.config.SnapshotDir, filename)

	if ok := gocv.IMWrite(path, region); !ok {
		log.Printf("Failed to save snapshot %s", path)
	}
}

// renderFrame draws the overlay onto a copy of the frame and encodes it
// as JPEG for the preview stream.
func (a *App) renderFrame(frame *gocv.Mat, drawables []overlay.Object) []byte {
	if frame == nil || frame.Empty() {
		return nil
	}

	annotated := frame.Clone()
	defer annotated.Close()

	a.mu.RLock()
	hud := overlay.HUD{
		TotalVehicles:  a.stats.TotalVehicles,
		OverspeedCount: a.stats.OverspeedCount,
		FrameCount:     a.frameCount,
		SpeedLimit:     a.estimator.SpeedLimit(),
	}
	a.mu.RUnlock()

	a.renderer.Draw(&annotated, drawables, hud)

	buf, err := gocv.IMEncode(".jpg", annotated)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return nil
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out
}

// fractionBBox normalizes a pixel bounding box to frame fractions.
func (a *App) fractionBBox(bbox image.Rectangle) BBoxFraction {
	w := float64(a.frameW)
	h := float64(a.frameH)
	if w <= 0 || h <= 0 {
		return BBoxFraction{}
	}

	return BBoxFraction{
		X:      float64(bbox.Min.X) / w,
		Y:      float64(bbox.Min.Y) / h,
		Width:  float64(bbox.Dx()) / w,
		Height: float64(bbox.Dy()) / h,
	}
}
