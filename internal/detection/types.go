package detection

import (
	"math"
	"sort"
)

// BBox is an axis-aligned bounding box in pixel coordinates (x1, y1, x2, y2).
type BBox [4]float64

// Width returns x2-x1.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns y2-y1.
func (b BBox) Height() float64 { return b[3] - b[1] }

// Area returns the box area, or 0 for a degenerate box.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Valid reports whether all coordinates are finite and the box has positive
// extent.
func (b BBox) Valid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Width() > 0 && b.Height() > 0
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
func (b BBox) IoU(o BBox) float64 {
	ix1 := math.Max(b[0], o[0])
	iy1 := math.Max(b[1], o[1])
	ix2 := math.Min(b[2], o[2])
	iy2 := math.Min(b[3], o[3])
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is one object reported by a detector for a single frame.
type Detection struct {
	BBox       BBox    `json:"bbox"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Object is a Detection that may carry a stable track identity assigned by an
// identity resolver. Tracked is false when no identity is available.
type Object struct {
	Detection
	TrackID int  `json:"track_id,omitempty"`
	Tracked bool `json:"tracked,omitempty"`
}

// Untracked wraps detections as objects without identities.
func Untracked(dets []Detection) []Object {
	objs := make([]Object, len(dets))
	for i, d := range dets {
		objs[i] = Object{Detection: d}
	}
	return objs
}

// LabelSet is an allow-list of detector labels. Labels match exactly and are
// case-sensitive. A nil LabelSet admits every label.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from labels. With no labels it returns nil,
// meaning "no allow-list".
func NewLabelSet(labels ...string) LabelSet {
	if len(labels) == 0 {
		return nil
	}
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Allows reports whether label passes the allow-list.
func (s LabelSet) Allows(label string) bool {
	if s == nil {
		return true
	}
	_, ok := s[label]
	return ok
}

// Labels returns the allowed labels in sorted order, or nil for no allow-list.
func (s LabelSet) Labels() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
