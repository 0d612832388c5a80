package pipeline

import (
	"context"
	"errors"

	"go.uber.org/atomic"

	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/monitoring"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/timeutil"
)

// Source yields frames until ok is false.
type Source[F any] interface {
	Read() (frame F, ok bool)
	Close() error
}

// Detector turns a frame into raw detections.
type Detector[F any] interface {
	Detect(frame F) ([]detection.Detection, error)
}

// Resolver assigns stable identities to one frame's detections.
type Resolver interface {
	Resolve(dets []detection.Detection) []detection.Object
}

// FrameResult is what the runner produced for one frame.
type FrameResult struct {
	FrameID    int
	Detections []detection.Detection // raw detector output
	Objects    []detection.Object    // admitted objects that were counted
	State      shelf.State
	FPS        float64
	Logged     bool
	DetectErr  error
}

// Summary describes a finished Run.
type Summary struct {
	Frames         int
	Logged         int
	DetectorErrors int
	Final          shelf.State
	Stopped        bool // ended by Stop or context cancellation
}

// Runner owns the frame loop of one session. Fields other than the four
// passed to NewRunner are optional and must be set before Run.
type Runner[F any] struct {
	Resolver Resolver
	Metrics  *metrics.Metrics
	Clock    timeutil.Clock
	OnFrame  func(FrameResult)

	source   Source[F]
	detector Detector[F]
	monitor  *shelf.Monitor
	logger   *eventlog.Logger
	stopping *atomic.Bool
}

// NewRunner creates a runner. It does not take ownership of src.
func NewRunner[F any](src Source[F], det Detector[F], mon *shelf.Monitor, logger *eventlog.Logger) *Runner[F] {
	return &Runner[F]{
		Clock:    timeutil.RealClock{},
		source:   src,
		detector: det,
		monitor:  mon,
		logger:   logger,
		stopping: atomic.NewBool(false),
	}
}

// Stop asks Run to return after the frame in progress. Safe to call from any
// goroutine and more than once.
func (r *Runner[F]) Stop() {
	if r.stopping.CAS(false, true) {
		monitoring.Logf("[pipeline] stop requested")
	}
}

// Run processes frames until the source is exhausted, Stop is called or ctx
// is done. A detector error counts the frame as empty. A log write error ends
// the run and is returned with the summary so far.
func (r *Runner[F]) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.source == nil || r.detector == nil || r.monitor == nil || r.logger == nil {
		return sum, errors.New("pipeline: source, detector, monitor and logger are required")
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	frameID := 0
	prev := clock.Now()
	for {
		if r.stopping.Load() || ctx.Err() != nil {
			sum.Stopped = true
			return sum, nil
		}

		frame, ok := r.source.Read()
		if !ok {
			return sum, nil
		}
		frameID++

		res := FrameResult{FrameID: frameID}
		dets, err := r.detector.Detect(frame)
		if err != nil {
			monitoring.Logf("[pipeline] frame %d: detection failed: %v", frameID, err)
			res.DetectErr = err
			sum.DetectorErrors++
			if r.Metrics != nil {
				r.Metrics.DetectorErrors.Add(1)
			}
			dets = nil
		}
		res.Detections = dets

		admitted := r.monitor.Admit(dets)
		if r.Resolver != nil {
			res.Objects = r.Resolver.Resolve(admitted)
		} else {
			res.Objects = detection.Untracked(admitted)
		}
		res.State = r.monitor.Update(res.Objects)

		now := clock.Now()
		if dt := now.Sub(prev).Seconds(); dt > 0 {
			res.FPS = 1 / dt
		}
		prev = now

		logged, err := r.logger.Process(frameID, res.State, res.FPS)
		sum.Frames = frameID
		sum.Final = res.State
		if err != nil {
			return sum, err
		}
		res.Logged = logged
		if logged {
			sum.Logged++
		}

		if r.Metrics != nil {
			r.Metrics.ObserveFrame(res.State, res.FPS)
		}
		if r.OnFrame != nil {
			r.OnFrame(res)
		}
	}
}
