// Package video provides frame sources for the shelf monitor pipeline.
//
// ReplaySource plays back recorded per-frame detections from a JSON-lines
// file, which drives headless runs and tests without a camera or model. Live
// camera capture lives in the camera subpackage.
package video
