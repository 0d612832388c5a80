package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/shelf.report/internal/config"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/notify"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/store"
	"github.com/banshee-data/shelf.report/internal/timeutil"
)

// sessionSinks is every destination a session's records go to.
type sessionSinks struct {
	sink      eventlog.Sink
	sessionID string
	store     *store.Store
	publisher *notify.Publisher
}

// openSinks opens the CSV log and, when configured, the SQLite store and the
// Redis publisher. The CSV log is always written.
func openSinks(ctx context.Context, cfg *config.MonitorConfig, shelfCfg shelf.Config, clock timeutil.Clock) (*sessionSinks, error) {
	csv, err := eventlog.NewCSVSink(cfg.GetLogPath(), nil)
	if err != nil {
		return nil, err
	}
	s := &sessionSinks{}
	multi := eventlog.MultiSink{csv}

	if path := cfg.GetSQLitePath(); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		s.store = st
		if s.sessionID, err = st.NewSession(clock.Now(), shelfCfg); err != nil {
			s.Close()
			return nil, err
		}
		multi = append(multi, st.Sink(s.sessionID))
	}

	if addr := cfg.GetRedisAddr(); addr != "" {
		pub, err := notify.Dial(ctx, notify.Options{
			Addr:    addr,
			DB:      cfg.GetRedisDB(),
			Channel: cfg.GetRedisChannel(),
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.publisher = pub.WithSession(s.sessionID)
		multi = append(multi, s.publisher)
	}

	s.sink = multi
	return s, nil
}

// Close closes the store and publisher.
func (s *sessionSinks) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
