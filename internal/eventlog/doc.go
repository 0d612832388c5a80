// Package eventlog persists shelf state snapshots as an append-only event log.
//
// The Logger decides per frame whether a snapshot is worth keeping: the first
// frame, every alert transition, and otherwise one heartbeat per interval.
// Records go to a Sink; CSVSink is the canonical persisted form and the one
// the offline evaluator reads back.
package eventlog
