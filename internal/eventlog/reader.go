package eventlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/shelf.report/internal/fsutil"
)

// ReadCSV decodes an event log. Columns are located by header name, so extra
// columns and reordering are tolerated. An empty input or a header-only log
// yields no records and no error.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range Header {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := decodeRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCSVFile opens path through fsys and decodes it.
func ReadCSVFile(path string, fsys fsutil.FileSystem) ([]Record, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func decodeRow(row []string, idx map[string]int) (Record, error) {
	get := func(name string) (string, error) {
		i := idx[name]
		if i >= len(row) {
			return "", fmt.Errorf("missing value for %s", name)
		}
		return row[i], nil
	}

	var rec Record
	var s string
	var err error

	if s, err = get("timestamp"); err != nil {
		return rec, err
	}
	if rec.Timestamp, err = ParseTimestamp(s); err != nil {
		return rec, err
	}

	if s, err = get("frame_id"); err != nil {
		return rec, err
	}
	if rec.FrameID, err = strconv.Atoi(s); err != nil {
		return rec, fmt.Errorf("failed to parse frame_id: %w", err)
	}

	if s, err = get("current_count"); err != nil {
		return rec, err
	}
	if rec.CurrentCount, err = strconv.Atoi(s); err != nil {
		return rec, fmt.Errorf("failed to parse current_count: %w", err)
	}

	if s, err = get("avg_count"); err != nil {
		return rec, err
	}
	if rec.AvgCount, err = strconv.ParseFloat(s, 64); err != nil {
		return rec, fmt.Errorf("failed to parse avg_count: %w", err)
	}

	if s, err = get("low_stock_alert"); err != nil {
		return rec, err
	}
	if rec.LowStockAlert, err = parseAlert(s); err != nil {
		return rec, err
	}

	if s, err = get("fps"); err != nil {
		return rec, err
	}
	if rec.FPS, err = strconv.ParseFloat(s, 64); err != nil {
		return rec, fmt.Errorf("failed to parse fps: %w", err)
	}

	if s, err = get("event_type"); err != nil {
		return rec, err
	}
	if rec.EventType, err = ParseEventType(s); err != nil {
		return rec, err
	}

	return rec, nil
}
