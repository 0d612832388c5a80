//go:build opencv

// Package yolo runs a Darknet YOLO model through the OpenCV DNN module and
// reports detections in the shelf monitor's format.
package yolo

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/shelf.report/internal/detection"
)

// Options configures the provider.
type Options struct {
	InputSize     int     // square network input, e.g. 416 or 640
	ScoreFloor    float32 // candidates below this are dropped before NMS
	NMSThreshold  float32
	ClassNamePath string
}

// DefaultOptions returns settings for a 416x416 Darknet model.
func DefaultOptions() Options {
	return Options{
		InputSize:    416,
		ScoreFloor:   0.1,
		NMSThreshold: 0.45,
	}
}

// Provider implements YOLO inference on the CPU backend. It is safe for
// concurrent use.
type Provider struct {
	net        gocv.Net
	classNames []string
	opts       Options
	mu         sync.Mutex
}

// New loads the network from weights and config files and the class names
// from namesPath, one per line.
func New(weightsPath, configPath, namesPath string, opts Options) (*Provider, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = DefaultOptions().InputSize
	}

	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO network from %s and %s", weightsPath, configPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set target: %w", err)
	}

	names, err := os.ReadFile(namesPath)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("could not read class names: %w", err)
	}

	return &Provider{net: net, classNames: parseNames(string(names)), opts: opts}, nil
}

func parseNames(s string) []string {
	var names []string
	for _, line := range strings.Split(s, "\n") {
		names = append(names, strings.TrimSpace(line))
	}
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	return names
}

// Detect runs one forward pass and returns boxes in frame pixel coordinates.
// Confidence and label filtering is left to the monitor.
func (p *Provider) Detect(frame gocv.Mat) ([]detection.Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	size := image.Pt(p.opts.InputSize, p.opts.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	p.net.SetInput(blob, "")
	output := p.net.Forward("")
	defer output.Close()

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())

	var (
		rects   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < output.Rows(); i++ {
		row := output.RowRange(i, i+1)
		classScores := row.ColRange(5, row.Cols())
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(classScores)
		classID := maxLoc.X

		if maxVal >= p.opts.ScoreFloor && classID < len(p.classNames) {
			cx := row.GetFloatAt(0, 0) * frameW
			cy := row.GetFloatAt(0, 1) * frameH
			w := row.GetFloatAt(0, 2) * frameW
			h := row.GetFloatAt(0, 3) * frameH
			left := int(cx - w/2)
			top := int(cy - h/2)
			rects = append(rects, image.Rect(left, top, left+int(w), top+int(h)))
			scores = append(scores, maxVal)
			classes = append(classes, classID)
		}

		classScores.Close()
		row.Close()
	}

	if len(rects) == 0 {
		return []detection.Detection{}, nil
	}

	keep := gocv.NMSBoxes(rects, scores, p.opts.ScoreFloor, p.opts.NMSThreshold)
	dets := make([]detection.Detection, 0, len(keep))
	for _, idx := range keep {
		r := rects[idx]
		dets = append(dets, detection.Detection{
			BBox:       detection.BBox{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)},
			Label:      p.classNames[classes[idx]],
			Confidence: float64(scores[idx]),
		})
	}
	return dets, nil
}

// Close releases the network.
func (p *Provider) Close() error {
	return p.net.Close()
}
