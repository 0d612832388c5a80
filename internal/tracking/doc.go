// Package tracking resolves per-frame detections into stable identities.
//
// Responsibilities: IoU-gated, globally optimal (Hungarian) association of
// detections to live tracks, and the track lifecycle (creation, confirmation
// after MinHits consecutive matches, deletion after MaxAge missed frames).
// Key types: IOUTracker, Track, Config.
//
// The tracker is optional in the pipeline. When it is used, every object it
// returns carries a TrackID, which switches the shelf monitor to counting
// distinct identities.
package tracking
