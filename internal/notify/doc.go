// Package notify publishes low-stock alert transitions to a Redis Pub/Sub
// channel.
package notify
