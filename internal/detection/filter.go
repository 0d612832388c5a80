package detection

// Criteria are the admissibility rules applied to every detection.
type Criteria struct {
	ConfThreshold float64
	AllowedLabels LabelSet
}

// Admits reports whether d has Confidence >= ConfThreshold and an allowed label.
func (c Criteria) Admits(d Detection) bool {
	return d.Confidence >= c.ConfThreshold && c.AllowedLabels.Allows(d.Label)
}

// Filter returns the detections admitted by threshold and allowed, preserving
// input order. Empty input yields an empty, non-nil slice.
func Filter(dets []Detection, threshold float64, allowed LabelSet) []Detection {
	c := Criteria{ConfThreshold: threshold, AllowedLabels: allowed}
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if c.Admits(d) {
			out = append(out, d)
		}
	}
	return out
}

// FilterObjects applies the same rules as Filter to tracked objects.
func FilterObjects(objs []Object, threshold float64, allowed LabelSet) []Object {
	c := Criteria{ConfThreshold: threshold, AllowedLabels: allowed}
	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		if c.Admits(o.Detection) {
			out = append(out, o)
		}
	}
	return out
}
