package models

import "time"

// Audit actions written for acknowledgement mutations.
const (
	ActionAcknowledge        = "events.acknowledge"
	ActionUnacknowledge      = "events.unacknowledge"
	ActionAcknowledgeGroup   = "events.acknowledge_group"
	ActionUnacknowledgeGroup = "events.unacknowledge_group"
)

// AuditRecord is one entry of the audit log.
type AuditRecord struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	IP        string         `json:"ip,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
