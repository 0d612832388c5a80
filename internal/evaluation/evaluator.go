// Package evaluation summarises a persisted shelf event log.
//
// It is a read-only pass: records are loaded once and never modified.
// Degenerate inputs never fail. With zero rows every mean, min, max and ratio
// is NaN and every count is 0. Standard deviations are sample (n-1) values and
// need at least two rows; stability metrics need at least two rows. Anything
// below those minimums is NaN.
package evaluation

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/fsutil"
)

// BasicStats describes the logged current_count distribution.
type BasicStats struct {
	FramesLogged int     `json:"frames_logged"`
	AvgCount     float64 `json:"avg_count"`
	StdCount     float64 `json:"std_count"`
	MinCount     float64 `json:"min_count"`
	MaxCount     float64 `json:"max_count"`
}

// FPSStats describes the logged frame rate.
type FPSStats struct {
	AvgFPS float64 `json:"avg_fps"`
	StdFPS float64 `json:"std_fps"`
	MinFPS float64 `json:"min_fps"`
	MaxFPS float64 `json:"max_fps"`
}

// AlertStats counts alert edges between consecutive rows.
type AlertStats struct {
	Activations      int     `json:"alert_activations"`
	Resolutions      int     `json:"alert_resolutions"`
	TotalAlertFrames int     `json:"total_alert_frames"`
	AlertRatio       float64 `json:"alert_ratio"`
}

// StabilityStats describes row-to-row changes in current_count.
type StabilityStats struct {
	AvgCountChange float64 `json:"avg_count_change"`
	MaxCountJump   float64 `json:"max_count_jump"`
}

// Report groups every section.
type Report struct {
	Basic     BasicStats     `json:"basic"`
	FPS       FPSStats       `json:"fps"`
	Alerts    AlertStats     `json:"alerts"`
	Stability StabilityStats `json:"stability"`
}

// Evaluator computes statistics over a fixed set of records.
type Evaluator struct {
	records []eventlog.Record
	counts  []float64
	fps     []float64
}

// NewEvaluator copies the columns it needs out of records.
func NewEvaluator(records []eventlog.Record) *Evaluator {
	e := &Evaluator{
		records: records,
		counts:  make([]float64, len(records)),
		fps:     make([]float64, len(records)),
	}
	for i, r := range records {
		e.counts[i] = float64(r.CurrentCount)
		e.fps[i] = r.FPS
	}
	return e
}

// FromCSV loads the log at path and evaluates it.
func FromCSV(path string, fsys fsutil.FileSystem) (Report, error) {
	records, err := eventlog.ReadCSVFile(path, fsys)
	if err != nil {
		return Report{}, err
	}
	return Evaluate(records), nil
}

// Evaluate builds the full report for records.
func Evaluate(records []eventlog.Record) Report {
	return NewEvaluator(records).Report()
}

// Report returns all sections.
func (e *Evaluator) Report() Report {
	return Report{
		Basic:     e.BasicStats(),
		FPS:       e.FPSStats(),
		Alerts:    e.AlertStats(),
		Stability: e.StabilityStats(),
	}
}

// BasicStats summarises current_count.
func (e *Evaluator) BasicStats() BasicStats {
	return BasicStats{
		FramesLogged: len(e.records),
		AvgCount:     mean(e.counts),
		StdCount:     stdDev(e.counts),
		MinCount:     minOf(e.counts),
		MaxCount:     maxOf(e.counts),
	}
}

// FPSStats summarises fps.
func (e *Evaluator) FPSStats() FPSStats {
	return FPSStats{
		AvgFPS: mean(e.fps),
		StdFPS: stdDev(e.fps),
		MinFPS: minOf(e.fps),
		MaxFPS: maxOf(e.fps),
	}
}

// AlertStats counts 0→1 and 1→0 edges; the first row contributes no edge.
func (e *Evaluator) AlertStats() AlertStats {
	var s AlertStats
	for i, r := range e.records {
		if r.LowStockAlert {
			s.TotalAlertFrames++
		}
		if i == 0 {
			continue
		}
		prev := e.records[i-1].LowStockAlert
		switch {
		case !prev && r.LowStockAlert:
			s.Activations++
		case prev && !r.LowStockAlert:
			s.Resolutions++
		}
	}
	if len(e.records) == 0 {
		s.AlertRatio = math.NaN()
	} else {
		s.AlertRatio = float64(s.TotalAlertFrames) / float64(len(e.records))
	}
	return s
}

// StabilityStats measures |Δcurrent_count| between consecutive rows.
func (e *Evaluator) StabilityStats() StabilityStats {
	if len(e.counts) < 2 {
		return StabilityStats{AvgCountChange: math.NaN(), MaxCountJump: math.NaN()}
	}
	diffs := make([]float64, len(e.counts)-1)
	for i := 1; i < len(e.counts); i++ {
		diffs[i-1] = math.Abs(e.counts[i] - e.counts[i-1])
	}
	return StabilityStats{
		AvgCountChange: stat.Mean(diffs, nil),
		MaxCountJump:   floats.Max(diffs),
	}
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

func minOf(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Min(x)
}

func maxOf(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Max(x)
}

// Write prints the report as labelled sections.
func (r Report) Write(w io.Writer) error {
	sections := []struct {
		name string
		rows [][2]string
	}{
		{"BASIC", [][2]string{
			{"frames_logged", fmt.Sprint(r.Basic.FramesLogged)},
			{"avg_count", formatFloat(r.Basic.AvgCount)},
			{"std_count", formatFloat(r.Basic.StdCount)},
			{"min_count", formatFloat(r.Basic.MinCount)},
			{"max_count", formatFloat(r.Basic.MaxCount)},
		}},
		{"FPS", [][2]string{
			{"avg_fps", formatFloat(r.FPS.AvgFPS)},
			{"std_fps", formatFloat(r.FPS.StdFPS)},
			{"min_fps", formatFloat(r.FPS.MinFPS)},
			{"max_fps", formatFloat(r.FPS.MaxFPS)},
		}},
		{"ALERTS", [][2]string{
			{"alert_activations", fmt.Sprint(r.Alerts.Activations)},
			{"alert_resolutions", fmt.Sprint(r.Alerts.Resolutions)},
			{"total_alert_frames", fmt.Sprint(r.Alerts.TotalAlertFrames)},
			{"alert_ratio", formatFloat(r.Alerts.AlertRatio)},
		}},
		{"STABILITY", [][2]string{
			{"avg_count_change", formatFloat(r.Stability.AvgCountChange)},
			{"max_count_jump", formatFloat(r.Stability.MaxCountJump)},
		}},
	}

	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "[%s]\n", s.name); err != nil {
			return err
		}
		for _, row := range s.rows {
			if _, err := fmt.Fprintf(w, "%-25s: %s\n", row[0], row[1]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", v)
}
