// Package eventsource gives one view over a monitored system's events
// regardless of where they are physically stored.
//
// Two implementations exist: PgEventSource reads and mutates the local events
// table, EsEventSource reads an external search cluster and keeps mutable
// acknowledgement state in local shadow metadata. Callers resolve the right
// implementation once per request through Resolver and depend only on the
// EventSource interface.
package eventsource

import (
	"context"
	"errors"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

var (
	// ErrUnsupported is returned for operations a backend cannot serve.
	ErrUnsupported = errors.New("operation not supported by this event source")

	// ErrBackendUnavailable is returned when a system needs a backend that is
	// not configured in this process.
	ErrBackendUnavailable = errors.New("event source backend unavailable")
)

// EventSource is the acknowledgement contract shared by both backends.
//
// Acknowledge and unacknowledge operations only ever touch events in the
// opposite state, so replays converge and report zero.
type EventSource interface {
	// Kind identifies the backend.
	Kind() models.EventSourceKind

	// SearchEvents runs a substring search with field filters and pagination.
	SearchEvents(ctx context.Context, filter *models.EventFilter) (*models.EventPage, error)

	// GetFacets returns distinct severity, host and program values seen in the
	// last days days. An empty systemID covers every system of the backend.
	GetFacets(ctx context.Context, systemID string, days int) (*models.Facets, error)

	// TraceEvents correlates events across systems sharing a field value.
	TraceEvents(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error)

	// AcknowledgeEvents flips every active event in r to acknowledged.
	AcknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error)

	// UnacknowledgeEvents flips every acknowledged event in r back to active
	// and clears its scores so the scoring pipeline picks it up again.
	UnacknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error)

	// AcknowledgeGroup flips the active events of a template group and reports
	// the exact set of changed ids.
	AcknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error)

	// UnacknowledgeGroup is the inverse of AcknowledgeGroup.
	UnacknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error)

	// GetSystemEvents fetches events by id, or the most recent ones when no
	// ids are given.
	GetSystemEvents(ctx context.Context, systemID string, opts models.SystemEventsOptions) ([]*models.Event, error)
}

// DefaultMessageSample bounds the message texts returned with a flip.
const DefaultMessageSample = 100

// appendDistinct appends msg to dst unless already present or dst is full.
func appendDistinct(dst []string, seen map[string]struct{}, msg string, limit int) []string {
	if msg == "" || len(dst) >= limit {
		return dst
	}
	if _, ok := seen[msg]; ok {
		return dst
	}
	seen[msg] = struct{}{}
	return append(dst, msg)
}
