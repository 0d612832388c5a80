// Package store persists event-log records to SQLite, grouped by monitoring
// session. The schema is managed with embedded golang-migrate migrations.
package store
