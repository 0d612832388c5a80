package eventlog

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/banshee-data/shelf.report/internal/shelf"
)

// EventType says why a record was written.
type EventType string

const (
	EventPeriodic    EventType = "periodic"
	EventAlertChange EventType = "alert_change"
)

// Header is the fixed column layout of the CSV log.
var Header = []string{
	"timestamp",
	"frame_id",
	"current_count",
	"avg_count",
	"low_stock_alert",
	"fps",
	"event_type",
}

// naiveTimestampLayout accepts ISO-8601 timestamps written without a zone,
// which are read as UTC.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

// Record is one persisted row of the event log.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	FrameID       int       `json:"frame_id"`
	CurrentCount  int       `json:"current_count"`
	AvgCount      float64   `json:"avg_count"`
	LowStockAlert bool      `json:"low_stock_alert"`
	FPS           float64   `json:"fps"`
	EventType     EventType `json:"event_type"`
}

// NewRecord builds a record from a shelf state.
func NewRecord(ts time.Time, frameID int, st shelf.State, fps float64, et EventType) Record {
	return Record{
		Timestamp:     ts.UTC(),
		FrameID:       frameID,
		CurrentCount:  st.CurrentCount,
		AvgCount:      st.AvgCount,
		LowStockAlert: st.LowStockAlert,
		FPS:           fps,
		EventType:     et,
	}
}

// Fields renders the record in Header order. avg_count and fps are rounded to
// two decimals here only.
func (r Record) Fields() []string {
	alert := "0"
	if r.LowStockAlert {
		alert = "1"
	}
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(r.FrameID),
		strconv.Itoa(r.CurrentCount),
		strconv.FormatFloat(r.AvgCount, 'f', 2, 64),
		alert,
		strconv.FormatFloat(r.FPS, 'f', 2, 64),
		string(r.EventType),
	}
}

// ParseTimestamp parses an RFC 3339 timestamp, or a zone-less ISO-8601 one
// which is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(naiveTimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseEventType validates an event_type value.
func ParseEventType(s string) (EventType, error) {
	switch et := EventType(s); et {
	case EventPeriodic, EventAlertChange:
		return et, nil
	default:
		return "", fmt.Errorf("unknown event_type %q", s)
	}
}

func parseAlert(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("low_stock_alert must be 0 or 1")
	}
	return b, nil
}
