// Package shelf owns the per-session occupancy state of one monitored shelf.
//
// Responsibilities: turning each frame's admitted objects into a count,
// smoothing that count over a rolling window, and driving the dwell-time
// low-stock alert.
// Key types: Monitor, State, CountHistory, AlertState, Counter.
//
// A Monitor is single-goroutine state. Independent shelves use independent
// Monitor values; nothing in this package is global.
package shelf
