// Package detection holds the per-frame detection model shared by the
// detector adapters, the identity resolver and the shelf monitor.
//
// Responsibilities: the Detection and Object value types, label allow-lists
// and the confidence/label admissibility filter.
// Key types: Detection, Object, LabelSet.
//
// Dependency rule: no I/O and no dependency on other internal packages.
package detection
