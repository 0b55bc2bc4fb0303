// Package messaging defines the publisher abstraction used to fan out
// event-service notifications without tying callers to a broker.
package messaging

import "context"

// Publisher publishes fire-and-forget messages to subjects.
type Publisher interface {
	// Publish sends data to subject. Delivery is not confirmed.
	Publish(ctx context.Context, subject string, data []byte) error

	// IsConnected reports whether the broker connection is usable.
	IsConnected() bool

	// Close releases the connection.
	Close() error
}

// Subjects follow {domain}.{resource}.{action}.
const (
	SubjectAuditRecorded       = "events.audit.recorded"
	SubjectEventsAcknowledged  = "events.acknowledgement.changed"
	SubjectFindingsTransitions = "events.findings.transitioned"
)

// NopPublisher discards everything. Used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) IsConnected() bool                            { return false }
func (NopPublisher) Close() error                                 { return nil }
