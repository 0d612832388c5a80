package video

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/fsutil"
	"github.com/banshee-data/shelf.report/internal/monitoring"
	"github.com/banshee-data/shelf.report/internal/timeutil"
)

// maxLineSize bounds one JSON line.
const maxLineSize = 4 * 1024 * 1024

// Frame is one replayed frame: its index in the recording and the detections
// the model produced for it.
type Frame struct {
	Index      int                   `json:"frame"`
	Detections []detection.Detection `json:"detections"`
}

// ReplaySource reads frames from a JSON-lines recording, one object per line:
//
//	{"frame": 1, "detections": [{"bbox": [0,0,10,10], "label": "cup", "confidence": 0.9}]}
//
// A line that does not decode is replayed as an empty frame. Blank lines are
// skipped.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	clock   timeutil.Clock
	period  time.Duration
	read    int
	bad     int
	err     error
}

// NewReplaySource reads frames from r. If r is an io.Closer, Close closes it.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &ReplaySource{scanner: sc, clock: timeutil.RealClock{}}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenReplay opens a recording through fsys. A nil fsys means the OS
// filesystem.
func OpenReplay(path string, fsys fsutil.FileSystem) (*ReplaySource, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay %s: %w", path, err)
	}
	return NewReplaySource(f), nil
}

// WithFrameRate paces Read at fps frames per second using clock. fps <= 0
// replays as fast as possible.
func (s *ReplaySource) WithFrameRate(fps float64, clock timeutil.Clock) *ReplaySource {
	if clock != nil {
		s.clock = clock
	}
	s.period = 0
	if fps > 0 {
		s.period = time.Duration(float64(time.Second) / fps)
	}
	return s
}

// Read returns the next frame. ok is false once the recording is exhausted or
// unreadable; Err reports which.
func (s *ReplaySource) Read() (Frame, bool) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if s.read > 0 && s.period > 0 {
			s.clock.Sleep(s.period)
		}
		s.read++

		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			s.bad++
			monitoring.Logf("[replay] line %d malformed (%v); replaying as empty frame", s.read, err)
			return Frame{Index: s.read}, true
		}
		if f.Index == 0 {
			f.Index = s.read
		}
		return f, true
	}
	s.err = s.scanner.Err()
	return Frame{}, false
}

// Frames returns the number of frames read so far.
func (s *ReplaySource) Frames() int { return s.read }

// Malformed returns the number of lines replayed as empty frames.
func (s *ReplaySource) Malformed() int { return s.bad }

// Err returns the read error that ended the replay, if any.
func (s *ReplaySource) Err() error { return s.err }

// Close closes the underlying reader when it is closable.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReplayDetector returns the detections stored in each replayed frame.
type ReplayDetector struct{}

// Detect implements the pipeline detector for replayed frames.
func (ReplayDetector) Detect(f Frame) ([]detection.Detection, error) {
	return f.Detections, nil
}

// WriteFrame appends f to w as one JSON line.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
