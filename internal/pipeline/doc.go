// Package pipeline drives one monitoring session: it reads frames from a
// source, runs the detector, optionally resolves identities, updates the shelf
// monitor and hands the state to the event logger, one frame at a time.
package pipeline
