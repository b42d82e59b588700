package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// yolo output layout: 4 box attributes followed by the per-class scores.
const yoloBoxAttrs = 4

// YOLODetector implements Detector using a YOLOv8 ONNX model through the
// OpenCV DNN module.
type YOLODetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
}

// NewYOLODetector loads the ONNX model and returns a ready detector.
func NewYOLODetector(config Config) (*YOLODetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	if config.NMSThreshold <= 0 {
		config.NMSThreshold = DefaultConfig().NMSThreshold
	}

	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", config.ModelPath)
	}

	return &YOLODetector{
		config: config,
		net:    net,
	}, nil
}

// Detect runs inference on a frame and returns vehicle detections after
// confidence filtering, class filtering and non-maximum suppression.
func (d *YOLODetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(*frame, 1.0/255.0,
		image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.parseOutput(&output, frame.Cols(), frame.Rows())
}

// parseOutput decodes the raw [1, 4+classes, anchors] tensor into pixel
// space detections for the original frame size.
func (d *YOLODetector) parseOutput(output *gocv.Mat, frameW, frameH int) ([]Detection, error) {
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	attrs := dims[1]
	anchors := dims[2]
	if attrs <= yoloBoxAttrs {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	flat := output.Reshape(1, attrs)
	defer flat.Close()

	scaleX := float64(frameW) / float64(d.config.InputSize)
	scaleY := float64(frameH) / float64(d.config.InputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for j := 0; j < anchors; j++ {
		bestClass := -1
		bestScore := float32(0)

		for c := yoloBoxAttrs; c < attrs; c++ {
			score := flat.GetFloatAt(c, j)
			if score > bestScore {
				bestScore = score
				bestClass = c - yoloBoxAttrs
			}
		}

		if float64(bestScore) < d.config.ConfidenceThreshold {
			continue
		}
		if !IsVehicleClass(bestClass) {
			continue
		}

		cx := float64(flat.GetFloatAt(0, j)) * scaleX
		cy := float64(flat.GetFloatAt(1, j)) * scaleY
		w := float64(flat.GetFloatAt(2, j)) * scaleX
		h := float64(flat.GetFloatAt(3, j)) * scaleY

		boxes = append(boxes, image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores,
		float32(d.config.ConfidenceThreshold), float32(d.config.NMSThreshold))

	detections := make([]Detection, 0, len(keep))
	for _, idx := range keep {
		detections = append(detections, Detection{
			BBox:       boxes[idx],
			Confidence: float64(scores[idx]),
			ClassID:    classIDs[idx],
			Label:      ClassLabel(classIDs[idx]),
		})
	}

	return detections, nil
}

// Close releases the DNN network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
