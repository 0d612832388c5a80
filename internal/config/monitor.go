package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/shelf.report/internal/detection"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/tracking"
)

// DefaultConfigPath is the path to the canonical monitor defaults file.
const DefaultConfigPath = "config/monitor.defaults.json"

// EnvPrefix prefixes environment overrides, e.g. SHELF_MIN_STOCK=4.
const EnvPrefix = "SHELF"

// MonitorConfig is the root configuration of a monitoring session. Fields left
// unset fall back to the defaults returned by the Get* methods, so partial
// files are safe.
type MonitorConfig struct {
	// Shelf params
	MinStock       *int     `json:"min_stock,omitempty" mapstructure:"min_stock"`
	WindowSize     *int     `json:"window_size,omitempty" mapstructure:"window_size"`
	AlertDelay     *int     `json:"alert_delay,omitempty" mapstructure:"alert_delay"`
	ConfThreshold  *float64 `json:"conf_threshold,omitempty" mapstructure:"conf_threshold"`
	AllowedLabels  []string `json:"allowed_labels,omitempty" mapstructure:"allowed_labels"` // empty: every label
	LogIntervalSec *float64 `json:"log_interval_sec,omitempty" mapstructure:"log_interval_sec"`

	// Event log sinks
	LogPath      *string `json:"log_path,omitempty" mapstructure:"log_path"`
	SQLitePath   *string `json:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
	RedisAddr    *string `json:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisDB      *int    `json:"redis_db,omitempty" mapstructure:"redis_db"`
	RedisChannel *string `json:"redis_channel,omitempty" mapstructure:"redis_channel"`

	// Identity resolver
	TrackerEnabled      *bool    `json:"tracker_enabled,omitempty" mapstructure:"tracker_enabled"`
	TrackerMaxAge       *int     `json:"tracker_max_age,omitempty" mapstructure:"tracker_max_age"`
	TrackerMinHits      *int     `json:"tracker_min_hits,omitempty" mapstructure:"tracker_min_hits"`
	TrackerIoUThreshold *float64 `json:"tracker_iou_threshold,omitempty" mapstructure:"tracker_iou_threshold"`

	// Process
	MetricsListen *string `json:"metrics_listen,omitempty" mapstructure:"metrics_listen"`
	LogLevel      *string `json:"log_level,omitempty" mapstructure:"log_level"`
}

// configKeys are bound to SHELF_* environment variables.
var configKeys = []string{
	"min_stock", "window_size", "alert_delay", "conf_threshold", "allowed_labels",
	"log_interval_sec", "log_path", "sqlite_path", "redis_addr", "redis_db",
	"redis_channel", "tracker_enabled", "tracker_max_age", "tracker_min_hits",
	"tracker_iou_threshold", "metrics_listen", "log_level",
}

// EmptyMonitorConfig returns a MonitorConfig with all fields unset.
func EmptyMonitorConfig() *MonitorConfig {
	return &MonitorConfig{}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key)
	}
	return v
}

// LoadMonitorConfig loads a MonitorConfig from a JSON or YAML file and
// applies SHELF_* environment overrides. The result is validated.
func LoadMonitorConfig(path string) (*MonitorConfig, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	v := newViper()
	v.SetConfigFile(cleanPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// LoadFromEnv builds a MonitorConfig from SHELF_* environment variables only.
func LoadFromEnv() (*MonitorConfig, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*MonitorConfig, error) {
	cfg := EmptyMonitorConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *MonitorConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadMonitorConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are in range.
func (c *MonitorConfig) Validate() error {
	if c.MinStock != nil && *c.MinStock <= 0 {
		return fmt.Errorf("min_stock must be > 0, got %d", *c.MinStock)
	}
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be >= 1, got %d", *c.WindowSize)
	}
	if c.AlertDelay != nil && *c.AlertDelay < 1 {
		return fmt.Errorf("alert_delay must be >= 1, got %d", *c.AlertDelay)
	}
	if c.ConfThreshold != nil && (*c.ConfThreshold < 0 || *c.ConfThreshold > 1) {
		return fmt.Errorf("conf_threshold must be between 0 and 1, got %f", *c.ConfThreshold)
	}
	if c.LogIntervalSec != nil && (!(*c.LogIntervalSec > 0) || math.IsInf(*c.LogIntervalSec, 0)) {
		return fmt.Errorf("log_interval_sec must be a positive number, got %v", *c.LogIntervalSec)
	}
	if c.TrackerMaxAge != nil && *c.TrackerMaxAge < 1 {
		return fmt.Errorf("tracker_max_age must be >= 1, got %d", *c.TrackerMaxAge)
	}
	if c.TrackerMinHits != nil && *c.TrackerMinHits < 1 {
		return fmt.Errorf("tracker_min_hits must be >= 1, got %d", *c.TrackerMinHits)
	}
	if c.TrackerIoUThreshold != nil && (*c.TrackerIoUThreshold <= 0 || *c.TrackerIoUThreshold > 1) {
		return fmt.Errorf("tracker_iou_threshold must be in (0, 1], got %f", *c.TrackerIoUThreshold)
	}
	return nil
}

// GetMinStock returns the min_stock value or the default.
func (c *MonitorConfig) GetMinStock() int {
	if c.MinStock == nil {
		return 3
	}
	return *c.MinStock
}

// GetWindowSize returns the window_size value or the default.
func (c *MonitorConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetAlertDelay returns the alert_delay value or the default.
func (c *MonitorConfig) GetAlertDelay() int {
	if c.AlertDelay == nil {
		return 5
	}
	return *c.AlertDelay
}

// GetConfThreshold returns the conf_threshold value or the default.
func (c *MonitorConfig) GetConfThreshold() float64 {
	if c.ConfThreshold == nil {
		return 0.4
	}
	return *c.ConfThreshold
}

// GetLogInterval returns log_interval_sec as a duration, defaulting to 1s.
func (c *MonitorConfig) GetLogInterval() time.Duration {
	if c.LogIntervalSec == nil {
		return time.Second
	}
	return time.Duration(*c.LogIntervalSec * float64(time.Second))
}

// GetLogPath returns the CSV event log path.
func (c *MonitorConfig) GetLogPath() string {
	if c.LogPath == nil || *c.LogPath == "" {
		return "logs/shelf_events.csv"
	}
	return *c.LogPath
}

// GetSQLitePath returns the SQLite event store path; empty disables the store.
func (c *MonitorConfig) GetSQLitePath() string {
	if c.SQLitePath == nil {
		return ""
	}
	return *c.SQLitePath
}

// GetRedisAddr returns the Redis address; empty disables alert publishing.
func (c *MonitorConfig) GetRedisAddr() string {
	if c.RedisAddr == nil {
		return ""
	}
	return *c.RedisAddr
}

// GetRedisDB returns the Redis database index.
func (c *MonitorConfig) GetRedisDB() int {
	if c.RedisDB == nil {
		return 0
	}
	return *c.RedisDB
}

// GetRedisChannel returns the channel alert changes are published to.
func (c *MonitorConfig) GetRedisChannel() string {
	if c.RedisChannel == nil || *c.RedisChannel == "" {
		return "shelf_alerts"
	}
	return *c.RedisChannel
}

// GetTrackerEnabled reports whether the identity resolver runs.
func (c *MonitorConfig) GetTrackerEnabled() bool {
	if c.TrackerEnabled == nil {
		return false
	}
	return *c.TrackerEnabled
}

// GetMetricsListen returns the metrics listen address; empty disables it.
func (c *MonitorConfig) GetMetricsListen() string {
	if c.MetricsListen == nil {
		return ""
	}
	return *c.MetricsListen
}

// GetLogLevel returns the diagnostic log level.
func (c *MonitorConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// ShelfConfig derives the immutable monitor parameters.
func (c *MonitorConfig) ShelfConfig() shelf.Config {
	return shelf.Config{
		MinStock:      c.GetMinStock(),
		WindowSize:    c.GetWindowSize(),
		AlertDelay:    c.GetAlertDelay(),
		ConfThreshold: c.GetConfThreshold(),
		AllowedLabels: detection.NewLabelSet(c.AllowedLabels...),
	}
}

// TrackerConfig derives the identity resolver parameters. Unset fields take
// tracking.DefaultConfig values.
func (c *MonitorConfig) TrackerConfig() tracking.Config {
	cfg := tracking.DefaultConfig()
	if c.TrackerMaxAge != nil {
		cfg.MaxAge = *c.TrackerMaxAge
	}
	if c.TrackerMinHits != nil {
		cfg.MinHits = *c.TrackerMinHits
	}
	if c.TrackerIoUThreshold != nil {
		cfg.IoUThreshold = *c.TrackerIoUThreshold
	}
	return cfg
}
