package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/shelf.report/internal/config"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/monitoring"
	"github.com/banshee-data/shelf.report/internal/pipeline"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/timeutil"
	"github.com/banshee-data/shelf.report/internal/tracking"
	"github.com/banshee-data/shelf.report/internal/version"
	"github.com/banshee-data/shelf.report/internal/video"
)

var (
	configPath    = flag.String("config", "", "Monitor config file (JSON or YAML). Defaults to "+config.DefaultConfigPath+" when present")
	source        = flag.String("source", "0", "Camera index, video file or stream URL")
	replayPath    = flag.String("replay", "", "Replay recorded detections from a JSON-lines file instead of a camera")
	replayFPS     = flag.Float64("replay-fps", 0, "Pace replay at this frame rate (0 = as fast as possible)")
	modelPath     = flag.String("model", "models/yolov4-tiny.weights", "YOLO weights")
	modelConfig   = flag.String("model-config", "models/yolov4-tiny.cfg", "YOLO network config")
	namesPath     = flag.String("names", "models/coco.names", "Class names, one per line")
	logPath       = flag.String("log", "", "CSV event log path (overrides config)")
	sqlitePath    = flag.String("sqlite", "", "Also store events in this SQLite database")
	redisAddr     = flag.String("redis-addr", "", "Publish alert changes to Redis at this address")
	redisChannel  = flag.String("redis-channel", "", "Redis channel for alert changes")
	metricsListen = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9090")
	track         = flag.Bool("track", false, "Count distinct identities with the IoU tracker")
	logLevel      = flag.String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("shelf-monitor", version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlagOverrides(cfg, setFlags())
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zl, err := monitoring.NewZapLogger(cfg.GetLogLevel())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()
	monitoring.SetLogger(monitoring.ZapLogf(zl))

	if err := run(cfg); err != nil {
		zl.Sync()
		log.Fatalf("shelf-monitor: %v", err)
	}
}

// loadConfig reads path, or the defaults file when path is empty and the file
// exists, or environment variables alone.
func loadConfig(path string) (*config.MonitorConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.LoadFromEnv()
		}
		path = config.DefaultConfigPath
	}
	return config.LoadMonitorConfig(path)
}

func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyFlagOverrides copies explicitly set flags over the file values.
func applyFlagOverrides(cfg *config.MonitorConfig, set map[string]bool) {
	if set["log"] {
		cfg.LogPath = logPath
	}
	if set["sqlite"] {
		cfg.SQLitePath = sqlitePath
	}
	if set["redis-addr"] {
		cfg.RedisAddr = redisAddr
	}
	if set["redis-channel"] {
		cfg.RedisChannel = redisChannel
	}
	if set["metrics-listen"] {
		cfg.MetricsListen = metricsListen
	}
	if set["track"] {
		cfg.TrackerEnabled = track
	}
	if set["log-level"] {
		cfg.LogLevel = logLevel
	}
}

func run(cfg *config.MonitorConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon, err := shelf.NewMonitor(cfg.ShelfConfig())
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if addr := cfg.GetMetricsListen(); addr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, addr); err != nil {
				monitoring.Logf("[shelf-monitor] metrics server failed: %v", err)
			}
		}()
		monitoring.Logf("[shelf-monitor] serving metrics on %s/metrics", addr)
	}

	clock := timeutil.RealClock{}
	sinks, err := openSinks(ctx, cfg, mon.Config(), clock)
	if err != nil {
		return err
	}
	defer sinks.Close()

	var sink eventlog.Sink = sinks.sink
	if m != nil {
		sink = m.Sink(sink)
	}
	logger, err := eventlog.NewLogger(sink, cfg.GetLogInterval(), clock)
	if err != nil {
		return err
	}

	var resolver pipeline.Resolver
	if cfg.GetTrackerEnabled() {
		resolver = tracking.NewIOUTracker(cfg.TrackerConfig())
	}

	monitoring.Logf("[shelf-monitor] session %s started: min_stock=%d window=%d delay=%d conf=%.2f",
		sinks.sessionID, cfg.GetMinStock(), cfg.GetWindowSize(), cfg.GetAlertDelay(), cfg.GetConfThreshold())

	var sum pipeline.Summary
	if *replayPath != "" {
		sum, err = runReplay(ctx, *replayPath, *replayFPS, mon, logger, resolver, m)
	} else {
		sum, err = runLive(ctx, *source, mon, logger, resolver, m)
	}
	monitoring.Logf("[shelf-monitor] processed %d frames, logged %d records, %d detector errors (stopped=%t)",
		sum.Frames, sum.Logged, sum.DetectorErrors, sum.Stopped)
	return err
}

func runReplay(ctx context.Context, path string, fps float64, mon *shelf.Monitor, logger *eventlog.Logger, resolver pipeline.Resolver, m *metrics.Metrics) (pipeline.Summary, error) {
	src, err := video.OpenReplay(path, nil)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer src.Close()
	src.WithFrameRate(fps, nil)

	r := pipeline.NewRunner[video.Frame](src, video.ReplayDetector{}, mon, logger)
	configure(r, resolver, m)
	sum, err := r.Run(ctx)
	if err == nil {
		err = src.Err()
	}
	return sum, err
}

// configure attaches the optional stages shared by every source type.
func configure[F any](r *pipeline.Runner[F], resolver pipeline.Resolver, m *metrics.Metrics) {
	r.Resolver = resolver
	r.Metrics = m
	r.OnFrame = announceAlerts()
}

// announceAlerts logs every alert transition as it happens.
func announceAlerts() func(pipeline.FrameResult) {
	alerting := false
	return func(res pipeline.FrameResult) {
		if res.State.LowStockAlert == alerting {
			return
		}
		alerting = res.State.LowStockAlert
		if alerting {
			monitoring.Logf("[shelf-monitor] frame %d: LOW STOCK (count=%d avg=%.2f)", res.FrameID, res.State.CurrentCount, res.State.AvgCount)
		} else {
			monitoring.Logf("[shelf-monitor] frame %d: stock recovered (count=%d avg=%.2f)", res.FrameID, res.State.CurrentCount, res.State.AvgCount)
		}
	}
}
