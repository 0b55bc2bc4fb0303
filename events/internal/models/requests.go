package models

import "time"

// AckRange selects events by optional system and inclusive time range.
// An empty SystemID means every system.
type AckRange struct {
	SystemID string
	From     time.Time
	To       time.Time
}

// GroupSelector selects events of one system whose template id or own id
// equals Key.
type GroupSelector struct {
	SystemID string
	Key      string
}

// FlipResult reports an acknowledge or unacknowledge flip.
// Count is the number of events whose state changed. EventIDs holds every
// changed id for group flips and is empty for range flips. Messages is a
// bounded sample of distinct message texts, best effort.
type FlipResult struct {
	Count         int64    `json:"count"`
	EventIDs      []string `json:"-"`
	Messages      []string `json:"-"`
	ScoresCleared int64    `json:"scores_cleared"`
}

// Merge adds other into r.
func (r *FlipResult) Merge(other *FlipResult, sampleLimit int) {
	if other == nil {
		return
	}
	r.Count += other.Count
	r.ScoresCleared += other.ScoresCleared
	r.EventIDs = append(r.EventIDs, other.EventIDs...)
	for _, m := range other.Messages {
		if sampleLimit > 0 && len(r.Messages) >= sampleLimit {
			break
		}
		r.Messages = append(r.Messages, m)
	}
}

// AckRequest is the body of POST /acknowledge and /unacknowledge.
type AckRequest struct {
	SystemID string `json:"system_id,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// GroupAckRequest is the body of POST /acknowledge-group and /unacknowledge-group.
type GroupAckRequest struct {
	SystemID string `json:"system_id"`
	GroupKey string `json:"group_key"`
}

// ByIDsRequest is the body of POST /by-ids.
type ByIDsRequest struct {
	IDs []string `json:"ids"`
}

// AckResponse is returned by the acknowledge endpoints.
type AckResponse struct {
	Acknowledged         int64  `json:"acknowledged"`
	UpdatedWindows       int    `json:"updated_windows"`
	TransitionedFindings int    `json:"transitioned_findings"`
	Message              string `json:"message"`
}

// UnackResponse is returned by the unacknowledge endpoints.
type UnackResponse struct {
	Unacknowledged int64  `json:"unacknowledged"`
	UpdatedWindows int    `json:"updated_windows"`
	Message        string `json:"message"`
}

// EventFilter drives SearchEvents.
type EventFilter struct {
	SystemID     string
	Query        string
	Severity     string
	Host         string
	Program      string
	From         *time.Time
	To           *time.Time
	Acknowledged *bool
	SortDesc     bool
	Page         int
	Limit        int
}

// Offset returns the row offset for the current page.
func (f *EventFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// EventPage is one page of search results.
type EventPage struct {
	Events []*Event `json:"events"`
	Total  int64    `json:"total"`
	Page   int      `json:"page"`
	Limit  int      `json:"limit"`
}

// Facets holds distinct values per filterable field.
type Facets struct {
	Severities []string `json:"severities"`
	Hosts      []string `json:"hosts"`
	Programs   []string `json:"programs"`
}

// TraceRequest correlates events across systems by a shared field value.
type TraceRequest struct {
	Value  string
	Field  string
	FromTs time.Time
	ToTs   time.Time
	Limit  int
}

// SystemEventsOptions bounds GetSystemEvents.
type SystemEventsOptions struct {
	Limit    int
	EventIDs []string
}
