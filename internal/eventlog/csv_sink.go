package eventlog

import (
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/shelf.report/internal/fsutil"
	"github.com/banshee-data/shelf.report/internal/monitoring"
)

// DefaultPath is where the monitor writes its log unless configured otherwise.
const DefaultPath = "logs/shelf_events.csv"

// CSVSink appends records to a CSV file. Each record is a separate
// open/append/close so a crash loses at most the record in flight.
type CSVSink struct {
	path string
	fs   fsutil.FileSystem
}

// NewCSVSink prepares path for appending: the parent directory is created if
// missing, and a missing file is created with the header row. An existing file
// is left untouched.
func NewCSVSink(path string, fsys fsutil.FileSystem) (*CSVSink, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if !fsys.Exists(path) {
		w, err := fsys.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create event log: %w", err)
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to write event log header: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to write event log header: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close event log: %w", err)
		}
		monitoring.Logf("[eventlog] created %s", path)
	}

	return &CSVSink{path: path, fs: fsys}, nil
}

// Path returns the log file path.
func (s *CSVSink) Path() string { return s.path }

// WriteRecord appends one row.
func (s *CSVSink) WriteRecord(r Record) error {
	w, err := s.fs.OpenAppend(s.path)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(r.Fields()); err != nil {
		w.Close()
		return fmt.Errorf("failed to write event record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		w.Close()
		return fmt.Errorf("failed to write event record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}
