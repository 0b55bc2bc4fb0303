// Package database holds Postgres helpers shared by the event services:
// pool construction, per-operation timeouts and statement chunking.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds read queries.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds single-statement writes.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultBulkTimeout bounds statements touching an unbounded number of rows,
	// such as range acknowledgement over a large time span.
	DefaultBulkTimeout = 2 * time.Minute
)

// QueryContext derives a context with DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context with DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}

// BulkContext derives a context with DefaultBulkTimeout.
func BulkContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultBulkTimeout)
}
