package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shelf.report/internal/config"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/pipeline"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/store"
	"github.com/banshee-data/shelf.report/internal/testutil"
	"github.com/banshee-data/shelf.report/internal/timeutil"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "0", *source)
	assert.Equal(t, "", *replayPath)
	assert.False(t, *track)
	assert.False(t, *showVersion)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.EmptyMonitorConfig()
	path := "events.csv"
	cfg.LogPath = &path

	applyFlagOverrides(cfg, map[string]bool{})
	assert.Equal(t, "events.csv", cfg.GetLogPath())
	assert.False(t, cfg.GetTrackerEnabled())

	oldLog, oldTrack := *logPath, *track
	t.Cleanup(func() { *logPath, *track = oldLog, oldTrack })
	*logPath = "override.csv"
	*track = true

	applyFlagOverrides(cfg, map[string]bool{"log": true, "track": true})
	assert.Equal(t, "override.csv", cfg.GetLogPath())
	assert.True(t, cfg.GetTrackerEnabled())
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := testutil.WriteTempFile(t, "monitor.json", `{"min_stock": 6, "log_interval_sec": 2}`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.GetMinStock())
	assert.Equal(t, 2*time.Second, cfg.GetLogInterval())
}

func TestLoadConfig_FallsBackToEnv(t *testing.T) {
	// The package directory has no config/ subdirectory.
	t.Setenv("SHELF_MIN_STOCK", "9")
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.GetMinStock())
}

func TestAnnounceAlerts(t *testing.T) {
	var lines []string
	restore := captureLogs(&lines)
	defer restore()

	hook := announceAlerts()
	hook(pipeline.FrameResult{FrameID: 1, State: shelf.State{CurrentCount: 5, AvgCount: 5}})
	hook(pipeline.FrameResult{FrameID: 2, State: shelf.State{CurrentCount: 1, AvgCount: 2, LowStockAlert: true}})
	hook(pipeline.FrameResult{FrameID: 3, State: shelf.State{CurrentCount: 1, AvgCount: 1, LowStockAlert: true}})
	hook(pipeline.FrameResult{FrameID: 4, State: shelf.State{CurrentCount: 6, AvgCount: 4}})

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "frame 2: LOW STOCK")
	assert.Contains(t, lines[1], "frame 4: stock recovered")
}

func TestOpenSinks_CSVAndSQLite(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "events.csv")
	dbFile := filepath.Join(dir, "events.db")
	cfg := config.EmptyMonitorConfig()
	cfg.LogPath = &logFile
	cfg.SQLitePath = &dbFile

	clock := timeutil.NewMockClock(testutil.Epoch)
	sinks, err := openSinks(context.Background(), cfg, shelf.DefaultConfig(), clock)
	require.NoError(t, err)
	require.NotEmpty(t, sinks.sessionID)

	rec := eventlog.Record{Timestamp: testutil.Epoch, FrameID: 1, CurrentCount: 4, AvgCount: 4, EventType: eventlog.EventAlertChange}
	require.NoError(t, sinks.sink.WriteRecord(rec))
	require.NoError(t, sinks.Close())

	records, err := eventlog.ReadCSVFile(logFile, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].CurrentCount)

	st, err := store.Open(dbFile)
	require.NoError(t, err)
	defer st.Close()
	stored, err := st.Records(sinks.sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].FrameID)
}

func TestRunReplay(t *testing.T) {
	dir := t.TempDir()
	replay := filepath.Join(dir, "frames.jsonl")
	require.NoError(t, os.WriteFile(replay, []byte(
		`{"frame":1,"detections":[{"bbox":[0,0,10,10],"label":"cup","confidence":0.9}]}`+"\n"+
			`{"frame":2,"detections":[]}`+"\n"), 0o644))

	mon, err := shelf.NewMonitor(shelf.Config{MinStock: 3, WindowSize: 1, AlertDelay: 1, ConfThreshold: 0.4})
	require.NoError(t, err)
	var records []eventlog.Record
	logger, err := eventlog.NewLogger(eventlog.SinkFunc(func(r eventlog.Record) error {
		records = append(records, r)
		return nil
	}), time.Hour, nil)
	require.NoError(t, err)
	m := metrics.New()

	sum, err := runReplay(context.Background(), replay, 0, mon, logger, nil, m)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, uint64(2), m.FramesProcessed.Load())
	require.Len(t, records, 1)
	assert.True(t, records[0].LowStockAlert)

	_, err = runReplay(context.Background(), filepath.Join(dir, "missing.jsonl"), 0, mon, logger, nil, nil)
	assert.Error(t, err)
}
