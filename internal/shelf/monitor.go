package shelf

import (
	"errors"
	"fmt"

	"github.com/banshee-data/shelf.report/internal/detection"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid shelf config")

// Config holds the constructor-time parameters of a Monitor. It is not
// modified after NewMonitor.
type Config struct {
	MinStock      int                // average below this counts as low stock; > 0
	WindowSize    int                // rolling window length in frames; >= 1
	AlertDelay    int                // consecutive low frames before alerting; >= 1
	ConfThreshold float64            // minimum detection confidence in [0, 1]
	AllowedLabels detection.LabelSet // nil admits every label
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinStock:      3,
		WindowSize:    10,
		AlertDelay:    5,
		ConfThreshold: 0.4,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.MinStock <= 0 {
		return fmt.Errorf("%w: min_stock must be > 0, got %d", ErrInvalidConfig, c.MinStock)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be >= 1, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.AlertDelay < 1 {
		return fmt.Errorf("%w: alert_delay must be >= 1, got %d", ErrInvalidConfig, c.AlertDelay)
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("%w: conf_threshold must be between 0 and 1, got %f", ErrInvalidConfig, c.ConfThreshold)
	}
	return nil
}

// State is the per-frame shelf snapshot.
type State struct {
	CurrentCount    int
	AvgCount        float64
	LowStockAlert   bool
	LowStockCounter int
}

// Monitor combines the occupancy smoother and the alert state machine for one
// shelf.
type Monitor struct {
	cfg     Config
	history *CountHistory
	alert   *AlertState
	counter Counter
}

// NewMonitor validates cfg and returns a Monitor with an empty history.
func NewMonitor(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:     cfg,
		history: NewCountHistory(cfg.WindowSize),
		alert:   NewAlertState(cfg.AlertDelay),
		counter: RawCounter{},
	}, nil
}

// Config returns the monitor's configuration.
func (m *Monitor) Config() Config { return m.cfg }

// Admit returns the detections that pass the confidence and label criteria.
func (m *Monitor) Admit(dets []detection.Detection) []detection.Detection {
	return detection.Filter(dets, m.cfg.ConfThreshold, m.cfg.AllowedLabels)
}

// Observe processes one frame of detections without identities.
func (m *Monitor) Observe(dets []detection.Detection) State {
	return m.Update(detection.Untracked(dets))
}

// Update processes one frame of objects: it filters them, counts them with the
// strategy selected for this frame and advances the smoother and alert.
func (m *Monitor) Update(objs []detection.Object) State {
	valid := detection.FilterObjects(objs, m.cfg.ConfThreshold, m.cfg.AllowedLabels)
	m.counter = SelectCounter(valid)
	return m.UpdateCount(m.counter.Count(valid))
}

// UpdateCount advances the smoother and alert with an already computed count.
func (m *Monitor) UpdateCount(count int) State {
	m.history.Add(count)
	avg := m.history.Mean()
	alert := m.alert.Observe(avg, m.cfg.MinStock)

	return State{
		CurrentCount:    count,
		AvgCount:        avg,
		LowStockAlert:   alert,
		LowStockCounter: m.alert.Counter(),
	}
}

// History returns the retained window, oldest first.
func (m *Monitor) History() []int { return m.history.Values() }

// Phase returns the alert phase after the last update.
func (m *Monitor) Phase() Phase { return m.alert.Phase() }

// CountingMode names the strategy used for the last Update.
func (m *Monitor) CountingMode() string { return m.counter.Name() }
