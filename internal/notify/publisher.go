package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/monitoring"
)

// DefaultChannel is the channel alert changes go to when none is configured.
const DefaultChannel = "shelf_alerts"

// DefaultTimeout bounds a single publish.
const DefaultTimeout = 2 * time.Second

// Client is the subset of *redis.Client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Message is the JSON payload sent for every alert transition.
type Message struct {
	SessionID string `json:"session_id,omitempty"`
	eventlog.Record
}

// Publisher is an eventlog.Sink that forwards alert_change records.
// Periodic records are dropped. Publish failures are logged and counted but
// never returned, so the event log keeps running while the broker is down.
type Publisher struct {
	client    Client
	channel   string
	sessionID string
	timeout   time.Duration
	published atomic.Int64
	failures  atomic.Int64
}

// Dial connects to Redis and checks the connection with PING.
func Dial(ctx context.Context, opts Options) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return New(rdb, opts.Channel), nil
}

// New wraps an existing client. An empty channel means DefaultChannel.
func New(client Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel, timeout: DefaultTimeout}
}

// WithSession tags subsequent messages with a session id.
func (p *Publisher) WithSession(id string) *Publisher {
	p.sessionID = id
	return p
}

// Channel returns the target channel.
func (p *Publisher) Channel() string { return p.channel }

// Published returns the number of messages accepted by Redis.
func (p *Publisher) Published() int64 { return p.published.Load() }

// Failures returns the number of publish attempts that failed.
func (p *Publisher) Failures() int64 { return p.failures.Load() }

// WriteRecord implements eventlog.Sink.
func (p *Publisher) WriteRecord(r eventlog.Record) error {
	if r.EventType != eventlog.EventAlertChange {
		return nil
	}

	payload, err := json.Marshal(Message{SessionID: p.sessionID, Record: r})
	if err != nil {
		return fmt.Errorf("failed to encode alert message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.failures.Add(1)
		monitoring.Logf("[notify] publish frame %d to %s failed: %v", r.FrameID, p.channel, err)
		return nil
	}
	p.published.Add(1)
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
