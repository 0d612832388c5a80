package shelf

import "github.com/banshee-data/shelf.report/internal/detection"

// Counter turns one frame's admitted objects into the count fed to the
// smoother.
type Counter interface {
	Count(objs []detection.Object) int
	Name() string
}

// RawCounter counts every admitted object.
type RawCounter struct{}

// Count returns len(objs).
func (RawCounter) Count(objs []detection.Object) int { return len(objs) }

// Name returns "raw".
func (RawCounter) Name() string { return "raw" }

// DistinctIdentityCounter counts distinct track identities, so repeated
// detections of one physical object are counted once.
type DistinctIdentityCounter struct{}

// Count returns the number of distinct TrackIDs among objs.
func (DistinctIdentityCounter) Count(objs []detection.Object) int {
	seen := make(map[int]struct{}, len(objs))
	for _, o := range objs {
		seen[o.TrackID] = struct{}{}
	}
	return len(seen)
}

// Name returns "distinct_identity".
func (DistinctIdentityCounter) Name() string { return "distinct_identity" }

// SelectCounter picks the counting strategy for a frame. Identity counting is
// used only when every admitted object carries an identity; a frame with any
// untagged object, or with no objects, falls back to raw counting.
func SelectCounter(objs []detection.Object) Counter {
	if len(objs) == 0 {
		return RawCounter{}
	}
	for _, o := range objs {
		if !o.Tracked {
			return RawCounter{}
		}
	}
	return DistinctIdentityCounter{}
}
