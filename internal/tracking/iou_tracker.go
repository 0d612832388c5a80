package tracking

import (
	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/monitoring"
)

// Config holds the tracker lifecycle parameters.
type Config struct {
	MaxAge       int     // frames a track may go unmatched before deletion
	MinHits      int     // consecutive matches before a track is reported
	IoUThreshold float64 // minimum IoU for a detection to match a track
}

// DefaultConfig returns the production tracker parameters.
func DefaultConfig() Config {
	return Config{
		MaxAge:       30,
		MinHits:      3,
		IoUThreshold: 0.2,
	}
}

// Track is one physical object followed across frames.
type Track struct {
	ID         int
	Box        detection.BBox
	Label      string
	Confidence float64
	Hits       int // total matches
	Streak     int // consecutive matches up to the current frame
	Misses     int // consecutive frames without a match
}

// Confirmed reports whether the track has met the reporting threshold.
func (t *Track) Confirmed(minHits int) bool {
	return t.Streak >= minHits
}

// IOUTracker assigns stable integer identities to detections. It is not safe
// for concurrent use; each monitored shelf owns its own tracker.
type IOUTracker struct {
	cfg    Config
	tracks []*Track
	nextID int
	frame  int
}

// NewIOUTracker creates a tracker. Non-positive fields fall back to
// DefaultConfig values.
func NewIOUTracker(cfg Config) *IOUTracker {
	def := DefaultConfig()
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MinHits <= 0 {
		cfg.MinHits = def.MinHits
	}
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	return &IOUTracker{cfg: cfg, nextID: 1}
}

// Resolve associates one frame's detections with tracks and returns the
// detections that belong to reportable tracks, each tagged with its track ID.
// Tracks are reportable once confirmed, and during the first MinHits frames of
// a session so that counting does not start at zero. Detections with an
// invalid bounding box are skipped.
func (t *IOUTracker) Resolve(dets []detection.Detection) []detection.Object {
	t.frame++

	valid := make([]detection.Detection, 0, len(dets))
	for _, d := range dets {
		if !d.BBox.Valid() {
			continue
		}
		valid = append(valid, d)
	}
	if skipped := len(dets) - len(valid); skipped > 0 {
		monitoring.Logf("[tracking] frame %d: skipped %d detections with invalid boxes", t.frame, skipped)
	}

	assigned := t.associate(valid)

	matched := make([]bool, len(t.tracks))
	owners := make([]*Track, len(valid))
	for i, d := range valid {
		if ti := assigned[i]; ti >= 0 {
			tr := t.tracks[ti]
			matched[ti] = true
			tr.Box = d.BBox
			tr.Label = d.Label
			tr.Confidence = d.Confidence
			tr.Hits++
			tr.Streak++
			tr.Misses = 0
			owners[i] = tr
		}
	}

	survivors := t.tracks[:0]
	for ti, tr := range t.tracks {
		if !matched[ti] {
			tr.Misses++
			tr.Streak = 0
			if tr.Misses > t.cfg.MaxAge {
				continue
			}
		}
		survivors = append(survivors, tr)
	}
	t.tracks = survivors

	for i, d := range valid {
		if owners[i] != nil {
			continue
		}
		tr := &Track{
			ID:         t.nextID,
			Box:        d.BBox,
			Label:      d.Label,
			Confidence: d.Confidence,
			Hits:       1,
			Streak:     1,
		}
		t.nextID++
		t.tracks = append(t.tracks, tr)
		owners[i] = tr
	}

	warmup := t.frame <= t.cfg.MinHits
	out := make([]detection.Object, 0, len(valid))
	for i, d := range valid {
		tr := owners[i]
		if !warmup && !tr.Confirmed(t.cfg.MinHits) {
			continue
		}
		out = append(out, detection.Object{Detection: d, TrackID: tr.ID, Tracked: true})
	}
	return out
}

// associate returns, for each detection, the index of its matched track or -1.
func (t *IOUTracker) associate(dets []detection.Detection) []int {
	assigned := make([]int, len(dets))
	if len(t.tracks) == 0 {
		for i := range assigned {
			assigned[i] = -1
		}
		return assigned
	}

	cost := make([][]float64, len(dets))
	for i, d := range dets {
		cost[i] = make([]float64, len(t.tracks))
		for j, tr := range t.tracks {
			iou := d.BBox.IoU(tr.Box)
			if iou < t.cfg.IoUThreshold {
				cost[i][j] = Forbidden
			} else {
				cost[i][j] = 1 - iou
			}
		}
	}
	if a := Assign(cost); a != nil {
		copy(assigned, a)
	}
	return assigned
}

// Tracks returns the live tracks, oldest first.
func (t *IOUTracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// Frame returns the number of frames resolved so far.
func (t *IOUTracker) Frame() int { return t.frame }
