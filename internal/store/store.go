package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/shelf"
)

// ErrUnknownSession is returned when a session id has no row.
var ErrUnknownSession = errors.New("unknown session")

// Store is a SQLite-backed event store.
type Store struct {
	db *sql.DB
}

var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Session describes one monitoring run.
type Session struct {
	ID        string
	StartedAt time.Time
	Config    shelf.Config
	Events    int
}

// Open opens (creating if needed) the database at path and migrates it to the
// latest schema. ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSession records the start of a monitoring run and returns its id.
func (s *Store) NewSession(startedAt time.Time, cfg shelf.Config) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, started_at, min_stock, window_size, alert_delay, conf_threshold, allowed_labels)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		cfg.MinStock,
		cfg.WindowSize,
		cfg.AlertDelay,
		cfg.ConfThreshold,
		strings.Join(cfg.AllowedLabels.Labels(), ","),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// WriteRecord appends r to the session's events.
func (s *Store) WriteRecord(sessionID string, r eventlog.Record) error {
	alert := 0
	if r.LowStockAlert {
		alert = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO events (session_id, timestamp, frame_id, current_count, avg_count, low_stock_alert, fps, event_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.FrameID,
		r.CurrentCount,
		r.AvgCount,
		alert,
		r.FPS,
		string(r.EventType),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Sink binds the store to one session so it can sit behind an
// eventlog.Logger.
func (s *Store) Sink(sessionID string) eventlog.Sink {
	return eventlog.SinkFunc(func(r eventlog.Record) error {
		return s.WriteRecord(sessionID, r)
	})
}

// Records returns the session's events in write order.
func (s *Store) Records(sessionID string) ([]eventlog.Record, error) {
	if _, err := s.Session(sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT timestamp, frame_id, current_count, avg_count, low_stock_alert, fps, event_type
		FROM events
		WHERE session_id = ?
		ORDER BY event_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []eventlog.Record
	for rows.Next() {
		var (
			ts, et string
			alert  int
			r      eventlog.Record
		)
		if err := rows.Scan(&ts, &r.FrameID, &r.CurrentCount, &r.AvgCount, &alert, &r.FPS, &et); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if r.Timestamp, err = eventlog.ParseTimestamp(ts); err != nil {
			return nil, err
		}
		if r.EventType, err = eventlog.ParseEventType(et); err != nil {
			return nil, err
		}
		r.LowStockAlert = alert != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// Session returns one session with its event count.
func (s *Store) Session(sessionID string) (Session, error) {
	row := s.db.QueryRow(sessionQuery+` WHERE s.session_id = ? GROUP BY s.session_id`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return sess, err
}

// Sessions lists all sessions, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(sessionQuery + ` GROUP BY s.session_id ORDER BY s.started_at, s.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

const sessionQuery = `
	SELECT s.session_id, s.started_at, s.min_stock, s.window_size, s.alert_delay,
	       s.conf_threshold, s.allowed_labels, COUNT(e.event_id)
	FROM sessions s
	LEFT JOIN events e ON e.session_id = s.session_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess          Session
		startedAt     string
		allowedLabels string
	)
	err := sc.Scan(&sess.ID, &startedAt, &sess.Config.MinStock, &sess.Config.WindowSize,
		&sess.Config.AlertDelay, &sess.Config.ConfThreshold, &allowedLabels, &sess.Events)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("failed to scan session: %w", err)
	}
	if sess.StartedAt, err = eventlog.ParseTimestamp(startedAt); err != nil {
		return Session{}, err
	}
	if allowedLabels != "" {
		sess.Config.AllowedLabels = detection.NewLabelSet(strings.Split(allowedLabels, ",")...)
	}
	return sess, nil
}
