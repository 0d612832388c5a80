package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/evaluation"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/fsutil"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/testutil"
	"github.com/banshee-data/shelf.report/internal/timeutil"
	"github.com/banshee-data/shelf.report/internal/video"
)

type sliceSource struct {
	frames [][]detection.Detection
	next   int
}

func (s *sliceSource) Read() ([]detection.Detection, bool) {
	if s.next >= len(s.frames) {
		return nil, false
	}
	f := s.frames[s.next]
	s.next++
	return f, true
}

func (s *sliceSource) Close() error { return nil }

// steppingDetector returns the frame as its detections and advances the clock
// by step to simulate inference time.
type steppingDetector struct {
	clock  *timeutil.MockClock
	step   time.Duration
	failOn map[int]bool
	calls  int
}

func (d *steppingDetector) Detect(f []detection.Detection) ([]detection.Detection, error) {
	d.calls++
	d.clock.Advance(d.step)
	if d.failOn[d.calls] {
		return nil, errors.New("inference failed")
	}
	return f, nil
}

func cups(n int) []detection.Detection {
	dets := make([]detection.Detection, n)
	for i := range dets {
		x := float64(i * 20)
		dets[i] = detection.Detection{BBox: detection.BBox{x, 0, x + 10, 10}, Label: "cup", Confidence: 0.9}
	}
	return dets
}

func framesOf(counts ...int) [][]detection.Detection {
	frames := make([][]detection.Detection, len(counts))
	for i, n := range counts {
		frames[i] = cups(n)
	}
	return frames
}

type fixture struct {
	clock    *timeutil.MockClock
	detector *steppingDetector
	monitor  *shelf.Monitor
	logger   *eventlog.Logger
	records  []eventlog.Record
	runner   *Runner[[]detection.Detection]
}

func newFixture(t *testing.T, cfg shelf.Config, frames [][]detection.Detection) *fixture {
	t.Helper()
	f := &fixture{clock: timeutil.NewMockClock(testutil.Epoch)}
	f.detector = &steppingDetector{clock: f.clock, step: 100 * time.Millisecond}

	var err error
	f.monitor, err = shelf.NewMonitor(cfg)
	require.NoError(t, err)
	sink := eventlog.SinkFunc(func(r eventlog.Record) error {
		f.records = append(f.records, r)
		return nil
	})
	f.logger, err = eventlog.NewLogger(sink, time.Second, f.clock)
	require.NoError(t, err)

	f.runner = NewRunner[[]detection.Detection](&sliceSource{frames: frames}, f.detector, f.monitor, f.logger)
	f.runner.Clock = f.clock
	return f
}

func exampleConfig() shelf.Config {
	return shelf.Config{MinStock: 3, WindowSize: 2, AlertDelay: 2, ConfThreshold: 0.4}
}

func TestRun_AlertSequence(t *testing.T) {
	f := newFixture(t, exampleConfig(), framesOf(5, 1, 1, 1, 5))

	var states []shelf.State
	f.runner.OnFrame = func(res FrameResult) { states = append(states, res.State) }

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Frames)
	assert.False(t, sum.Stopped)
	assert.Equal(t, 3, sum.Logged)
	assert.Equal(t, shelf.State{CurrentCount: 5, AvgCount: 3, LowStockAlert: false, LowStockCounter: 0}, sum.Final)

	alerts := make([]bool, len(states))
	avgs := make([]float64, len(states))
	for i, st := range states {
		alerts[i] = st.LowStockAlert
		avgs[i] = st.AvgCount
	}
	assert.Equal(t, []bool{false, false, false, true, false}, alerts)
	assert.Equal(t, []float64{5, 3, 1, 1, 3}, avgs)

	require.Len(t, f.records, 3)
	assert.Equal(t, 1, f.records[0].FrameID)
	assert.Equal(t, eventlog.EventAlertChange, f.records[0].EventType)
	assert.Equal(t, 4, f.records[1].FrameID)
	assert.True(t, f.records[1].LowStockAlert)
	assert.Equal(t, 5, f.records[2].FrameID)
	assert.False(t, f.records[2].LowStockAlert)
	assert.InDelta(t, 10, f.records[2].FPS, 1e-9)
	assert.True(t, f.records[0].Timestamp.Equal(testutil.Epoch.Add(100*time.Millisecond)))
}

func TestRun_PeriodicLogging(t *testing.T) {
	f := newFixture(t, shelf.DefaultConfig(), framesOf(5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5))
	f.detector.step = 250 * time.Millisecond

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	// Frames land every 250ms: the first record, then one per full second.
	require.Equal(t, 23, sum.Frames)
	frames := make([]int, len(f.records))
	for i, r := range f.records {
		frames[i] = r.FrameID
	}
	assert.Equal(t, []int{1, 5, 9, 13, 17, 21}, frames)
	for _, r := range f.records[1:] {
		assert.Equal(t, eventlog.EventPeriodic, r.EventType)
	}
}

func TestRun_DetectorErrorCountsAsEmpty(t *testing.T) {
	f := newFixture(t, shelf.Config{MinStock: 3, WindowSize: 1, AlertDelay: 1, ConfThreshold: 0.4}, framesOf(4, 4, 4))
	f.detector.failOn = map[int]bool{2: true}
	m := metrics.New()
	f.runner.Metrics = m

	var results []FrameResult
	f.runner.OnFrame = func(res FrameResult) { results = append(results, res) }

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 1, sum.DetectorErrors)
	require.Len(t, results, 3)
	assert.Error(t, results[1].DetectErr)
	assert.Equal(t, 0, results[1].State.CurrentCount)
	assert.True(t, results[1].State.LowStockAlert)
	assert.Equal(t, 4, results[2].State.CurrentCount)
	assert.Equal(t, uint64(1), m.DetectorErrors.Load())
	assert.Equal(t, uint64(3), m.FramesProcessed.Load())
}

func TestRun_StopAfterCurrentFrame(t *testing.T) {
	f := newFixture(t, shelf.DefaultConfig(), framesOf(5, 5, 5, 5))
	f.runner.OnFrame = func(res FrameResult) {
		if res.FrameID == 2 {
			f.runner.Stop()
			f.runner.Stop()
		}
	}

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Stopped)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, 2, f.detector.calls)
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, shelf.DefaultConfig(), framesOf(5, 5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.runner.Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Stopped)
	assert.Equal(t, 0, sum.Frames)
	assert.Empty(t, f.records)
}

func TestRun_LogFailureIsFatal(t *testing.T) {
	clock := timeutil.NewMockClock(testutil.Epoch)
	mon, err := shelf.NewMonitor(shelf.DefaultConfig())
	require.NoError(t, err)
	sinkErr := errors.New("read-only filesystem")
	logger, err := eventlog.NewLogger(eventlog.SinkFunc(func(eventlog.Record) error { return sinkErr }), time.Second, clock)
	require.NoError(t, err)

	det := &steppingDetector{clock: clock, step: time.Millisecond}
	r := NewRunner[[]detection.Detection](&sliceSource{frames: framesOf(5, 5)}, det, mon, logger)
	r.Clock = clock

	sum, err := r.Run(context.Background())
	require.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, 1, det.calls)
}

func TestRun_MissingDependencies(t *testing.T) {
	r := NewRunner[[]detection.Detection](nil, nil, nil, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

// sameTrack reports every detection as the same physical object.
type sameTrack struct{}

func (sameTrack) Resolve(dets []detection.Detection) []detection.Object {
	objs := make([]detection.Object, len(dets))
	for i, d := range dets {
		objs[i] = detection.Object{Detection: d, TrackID: 7, Tracked: true}
	}
	return objs
}

func TestRun_ResolverCountsDistinctIdentities(t *testing.T) {
	f := newFixture(t, shelf.DefaultConfig(), framesOf(3))
	f.runner.Resolver = sameTrack{}

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Final.CurrentCount)
	assert.Equal(t, "distinct_identity", f.monitor.CountingMode())
}

func TestRun_FilteredBeforeResolve(t *testing.T) {
	frame := append(cups(2), detection.Detection{BBox: detection.BBox{100, 0, 110, 10}, Label: "cup", Confidence: 0.1})
	f := newFixture(t, shelf.DefaultConfig(), [][]detection.Detection{frame})

	var seen int
	f.runner.Resolver = resolverFunc(func(dets []detection.Detection) []detection.Object {
		seen = len(dets)
		return detection.Untracked(dets)
	})

	sum, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Equal(t, 2, sum.Final.CurrentCount)
}

type resolverFunc func([]detection.Detection) []detection.Object

func (f resolverFunc) Resolve(dets []detection.Detection) []detection.Object { return f(dets) }

func TestRun_ReplayToCSVAndEvaluate(t *testing.T) {
	const recording = `{"frame":1,"detections":[{"bbox":[0,0,10,10],"label":"cup","confidence":0.9},{"bbox":[20,0,30,10],"label":"cup","confidence":0.9},{"bbox":[40,0,50,10],"label":"cup","confidence":0.9}]}
{"frame":2,"detections":[{"bbox":[0,0,10,10],"label":"cup","confidence":0.9}]}
garbage
{"frame":4,"detections":[{"bbox":[0,0,10,10],"label":"bottle","confidence":0.9}]}
`
	clock := timeutil.NewMockClock(testutil.Epoch)
	fsys := fsutil.NewMemoryFileSystem()

	sink, err := eventlog.NewCSVSink("logs/events.csv", fsys)
	require.NoError(t, err)
	mon, err := shelf.NewMonitor(shelf.Config{MinStock: 2, WindowSize: 1, AlertDelay: 1, ConfThreshold: 0.4, AllowedLabels: detection.NewLabelSet("cup")})
	require.NoError(t, err)
	logger, err := eventlog.NewLogger(sink, time.Second, clock)
	require.NoError(t, err)

	src := video.NewReplaySource(strings.NewReader(recording)).WithFrameRate(2, clock)
	r := NewRunner[video.Frame](src, video.ReplayDetector{}, mon, logger)
	r.Clock = clock

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, src.Close())
	assert.Equal(t, 4, sum.Frames)
	assert.Equal(t, 1, src.Malformed())

	report, err := evaluation.FromCSV("logs/events.csv", fsys)
	require.NoError(t, err)

	// Frame 1 opens the log and frame 2 raises the alert. Frame 3 falls
	// inside the interval; frame 4 is a periodic record.
	assert.Equal(t, []int{3, 1, 0}, countsOf(t, fsys))
	assert.Equal(t, 3, report.Basic.FramesLogged)
	assert.Equal(t, 1, report.Alerts.Activations)
	assert.Equal(t, 0, report.Alerts.Resolutions)
	assert.Equal(t, 2, report.Alerts.TotalAlertFrames)
}

func countsOf(t *testing.T, fsys fsutil.FileSystem) []int {
	t.Helper()
	records, err := eventlog.ReadCSVFile("logs/events.csv", fsys)
	require.NoError(t, err)
	counts := make([]int, len(records))
	for i, r := range records {
		counts[i] = r.CurrentCount
	}
	return counts
}
