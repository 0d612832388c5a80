// Package metrics exposes shelf monitor counters and gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/shelf"
)

// Metrics holds the monitor's live counters.
type Metrics struct {
	FramesProcessed atomic.Uint64
	DetectorErrors  atomic.Uint64
	PeriodicRecords atomic.Uint64
	AlertRecords    atomic.Uint64
	SinkErrors      atomic.Uint64

	currentCount atomic.Int64
	avgCountBits atomic.Uint64 // math.Float64bits
	fpsBits      atomic.Uint64
	lowStock     atomic.Bool

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shelf_frames_processed_total",
			Help: "Total frames run through the monitor",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shelf_detector_errors_total",
			Help: "Total frames whose detection failed and counted as empty",
		},
		func() float64 { return float64(m.DetectorErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "shelf_records_logged_total",
			Help:        "Total event-log records written",
			ConstLabels: prometheus.Labels{"event_type": string(eventlog.EventPeriodic)},
		},
		func() float64 { return float64(m.PeriodicRecords.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "shelf_records_logged_total",
			Help:        "Total event-log records written",
			ConstLabels: prometheus.Labels{"event_type": string(eventlog.EventAlertChange)},
		},
		func() float64 { return float64(m.AlertRecords.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shelf_sink_errors_total",
			Help: "Total failed event-log writes",
		},
		func() float64 { return float64(m.SinkErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shelf_current_count",
			Help: "Item count in the most recent frame",
		},
		func() float64 { return float64(m.currentCount.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shelf_avg_count",
			Help: "Moving average of the item count",
		},
		func() float64 { return math.Float64frombits(m.avgCountBits.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shelf_fps",
			Help: "Instantaneous frames per second",
		},
		func() float64 { return math.Float64frombits(m.fpsBits.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shelf_low_stock_alert",
			Help: "1 while the low-stock alert is active",
		},
		func() float64 {
			if m.lowStock.Load() {
				return 1
			}
			return 0
		},
	))
}

// ObserveFrame records the state produced by one frame.
func (m *Metrics) ObserveFrame(st shelf.State, fps float64) {
	m.FramesProcessed.Add(1)
	m.currentCount.Store(int64(st.CurrentCount))
	m.avgCountBits.Store(math.Float64bits(st.AvgCount))
	m.fpsBits.Store(math.Float64bits(fps))
	m.lowStock.Store(st.LowStockAlert)
}

// ObserveRecord counts a written event-log record by type.
func (m *Metrics) ObserveRecord(et eventlog.EventType) {
	switch et {
	case eventlog.EventAlertChange:
		m.AlertRecords.Add(1)
	default:
		m.PeriodicRecords.Add(1)
	}
}

// Sink wraps next so every successful write is counted and every failure is
// counted as a sink error.
func (m *Metrics) Sink(next eventlog.Sink) eventlog.Sink {
	return eventlog.SinkFunc(func(r eventlog.Record) error {
		if err := next.WriteRecord(r); err != nil {
			m.SinkErrors.Add(1)
			return err
		}
		m.ObserveRecord(r.EventType)
		return nil
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
