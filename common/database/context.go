package database

import (
	"context"
	"time"
)

// Standard timeout durations for store operations
const (
	// DefaultWriteTimeout bounds a single-row insert, including waiting for
	// a pooled connection.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultPingTimeout bounds readiness probes.
	DefaultPingTimeout = 2 * time.Second

	// DefaultMigrationTimeout bounds schema migrations at startup.
	DefaultMigrationTimeout = 60 * time.Second
)

// WriteContext creates a context with DefaultWriteTimeout.
// The parent's cancellation still wins, so a cancelled processing attempt
// aborts the insert before it commits.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}

// PingContext creates a context with DefaultPingTimeout.
func PingContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}

// MigrationContext creates a context with DefaultMigrationTimeout.
func MigrationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultMigrationTimeout)
}
