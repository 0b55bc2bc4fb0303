// Package models defines the domain types of the event acknowledgement engine.
package models

import (
	"encoding/json"
	"time"
)

// EventSourceKind names the physical store backing a monitored system.
type EventSourceKind string

const (
	// EventSourceNative stores events in the local Postgres events table.
	EventSourceNative EventSourceKind = "postgresql"
	// EventSourceExternal stores events in an external search cluster; only
	// shadow metadata lives locally.
	EventSourceExternal EventSourceKind = "elasticsearch"
)

// Valid reports whether k is a known backend.
func (k EventSourceKind) Valid() bool {
	return k == EventSourceNative || k == EventSourceExternal
}

// MonitoredSystem is a log-producing system. Owned by the admin CRUD layer.
type MonitoredSystem struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	EventSource    EventSourceKind `json:"event_source"`
	ConnectionRef  string          `json:"connection_ref,omitempty"`
	ExternalConfig *ExternalConfig `json:"external_config,omitempty"`
}

// ExternalConfig maps an external-search-backed system onto its index.
type ExternalConfig struct {
	IndexPattern   string          `json:"index_pattern"`
	TimestampField string          `json:"timestamp_field,omitempty"`
	MessageField   string          `json:"message_field,omitempty"`
	SeverityField  string          `json:"severity_field,omitempty"`
	HostField      string          `json:"host_field,omitempty"`
	ProgramField   string          `json:"program_field,omitempty"`
	QueryFilter    json.RawMessage `json:"query_filter,omitempty"`
}

// WithDefaults fills unset field names with ECS-style defaults.
func (c ExternalConfig) WithDefaults() ExternalConfig {
	if c.TimestampField == "" {
		c.TimestampField = "@timestamp"
	}
	if c.MessageField == "" {
		c.MessageField = "message"
	}
	if c.SeverityField == "" {
		c.SeverityField = "log.level"
	}
	if c.HostField == "" {
		c.HostField = "host.name"
	}
	if c.ProgramField == "" {
		c.ProgramField = "process.name"
	}
	return c
}

// Event is a single log event as seen through an EventSource.
type Event struct {
	ID             string     `json:"id"`
	SystemID       string     `json:"system_id"`
	Timestamp      time.Time  `json:"timestamp"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity,omitempty"`
	Host           string     `json:"host,omitempty"`
	Program        string     `json:"program,omitempty"`
	TemplateID     *string    `json:"template_id,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	Source         string     `json:"source,omitempty"`
}

// Acknowledged reports whether the event is currently acknowledged.
func (e *Event) Acknowledged() bool {
	return e.AcknowledgedAt != nil
}

// ExternalEventMetadata is the local shadow row for an externally stored event.
type ExternalEventMetadata struct {
	ExternalEventID string     `json:"external_event_id"`
	SystemID        string     `json:"system_id"`
	TemplateID      *string    `json:"template_id,omitempty"`
	EventTimestamp  time.Time  `json:"event_timestamp"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at"`
	ScoredAt        *time.Time `json:"scored_at"`
}

// EventScore is one criterion score for one event.
type EventScore struct {
	EventID     string  `json:"event_id"`
	CriterionID int     `json:"criterion_id"`
	Score       float64 `json:"score"`
}

// Window is a scoring interval for one system.
type Window struct {
	ID       string    `json:"id"`
	SystemID string    `json:"system_id"`
	FromTs   time.Time `json:"from_ts"`
	ToTs     time.Time `json:"to_ts"`
}

// EffectiveScore is the blended per-window, per-criterion score.
// EffectiveValue is derived; use Blend to compute it.
type EffectiveScore struct {
	WindowID       string    `json:"window_id"`
	SystemID       string    `json:"system_id"`
	CriterionID    int       `json:"criterion_id"`
	MetaScore      float64   `json:"meta_score"`
	MaxEventScore  float64   `json:"max_event_score"`
	EffectiveValue float64   `json:"effective_value"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultMetaWeight is the share of the meta score in the effective value.
// The meta-analysis job producing meta_score must use the same weight.
const DefaultMetaWeight = 0.7

// Blend returns w*meta + (1-w)*maxEvent.
func Blend(w, meta, maxEvent float64) float64 {
	return w*meta + (1-w)*maxEvent
}

// FindingStatus is the lifecycle state of a finding.
type FindingStatus string

const (
	FindingOpen         FindingStatus = "open"
	FindingAcknowledged FindingStatus = "acknowledged"
	FindingResolved     FindingStatus = "resolved"
)

// Finding is a persisted textual conclusion about a system.
type Finding struct {
	ID        string        `json:"id"`
	SystemID  string        `json:"system_id"`
	Text      string        `json:"text"`
	Status    FindingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
