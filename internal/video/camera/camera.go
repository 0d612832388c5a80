//go:build opencv

// Package camera reads live frames from a camera, video file or stream URL
// through OpenCV.
package camera

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Source wraps a gocv.VideoCapture. Read returns the same Mat on every call;
// callers must not retain it past the next Read.
type Source struct {
	cap   *gocv.VideoCapture
	frame gocv.Mat
	name  string
}

// Open opens a camera by numeric index ("0") or a file or stream URL. It
// fails fast when the device cannot be opened.
func Open(source string) (*Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(source); convErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.VideoCaptureFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %q: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video source %q is not available", source)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	return &Source{cap: vc, frame: gocv.NewMat(), name: source}, nil
}

// Read grabs the next frame. ok is false when the stream ends or a frame
// cannot be read.
func (s *Source) Read() (gocv.Mat, bool) {
	if ok := s.cap.Read(&s.frame); !ok || s.frame.Empty() {
		return s.frame, false
	}
	return s.frame, true
}

// Name returns the source as it was opened.
func (s *Source) Name() string { return s.name }

// Close releases the frame buffer and the capture device.
func (s *Source) Close() error {
	s.frame.Close()
	return s.cap.Close()
}
