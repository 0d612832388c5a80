package eventlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/timeutil"
)

// DefaultInterval is the heartbeat period used when none is configured.
const DefaultInterval = time.Second

// Logger applies the change-triggered logging policy for one session.
// It is not safe for concurrent use.
type Logger struct {
	sink     Sink
	clock    timeutil.Clock
	interval time.Duration

	// session state, updated only after a successful write
	logged      bool
	lastLogTime time.Time
	lastAlert   bool
	written     int
}

// NewLogger returns a Logger writing to sink with the given heartbeat
// interval. A nil clock uses the wall clock.
func NewLogger(sink Sink, interval time.Duration, clock timeutil.Clock) (*Logger, error) {
	if sink == nil {
		return nil, errors.New("eventlog: nil sink")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("eventlog: log interval must be > 0, got %v", interval)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Logger{sink: sink, clock: clock, interval: interval}, nil
}

// Interval returns the heartbeat interval.
func (l *Logger) Interval() time.Duration { return l.interval }

// Written returns the number of records successfully written this session.
func (l *Logger) Written() int { return l.written }

func (l *Logger) alertChanged(st shelf.State) bool {
	return !l.logged || st.LowStockAlert != l.lastAlert
}

// ShouldLog reports whether st must be persisted: nothing logged yet, the
// alert differs from the last logged record, or a full interval has passed
// since the last write.
func (l *Logger) ShouldLog(st shelf.State) bool {
	if l.alertChanged(st) {
		return true
	}
	return l.clock.Since(l.lastLogTime) >= l.interval
}

// Log writes one record for st. The event type is alert_change for the first
// record and whenever the alert differs from the last logged value, otherwise
// periodic.
func (l *Logger) Log(frameID int, st shelf.State, fps float64) error {
	now := l.clock.Now()
	et := EventPeriodic
	if l.alertChanged(st) {
		et = EventAlertChange
	}

	if err := l.sink.WriteRecord(NewRecord(now, frameID, st, fps, et)); err != nil {
		return fmt.Errorf("failed to log frame %d: %w", frameID, err)
	}

	l.logged = true
	l.lastLogTime = now
	l.lastAlert = st.LowStockAlert
	l.written++
	return nil
}

// Process logs st if ShouldLog holds and reports whether it did.
func (l *Logger) Process(frameID int, st shelf.State, fps float64) (bool, error) {
	if !l.ShouldLog(st) {
		return false, nil
	}
	if err := l.Log(frameID, st, fps); err != nil {
		return false, err
	}
	return true, nil
}
