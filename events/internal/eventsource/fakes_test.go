package eventsource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// memoryMetadata is an in-memory MetadataStore with the same state rules as
// PgMetadataStore.
type memoryMetadata struct {
	mu     sync.Mutex
	rows   map[string]*models.ExternalEventMetadata
	scores map[string]int // event id -> score rows
	err    error
}

func newMemoryMetadata() *memoryMetadata {
	return &memoryMetadata{
		rows:   make(map[string]*models.ExternalEventMetadata),
		scores: make(map[string]int),
	}
}

func (m *memoryMetadata) put(row models.ExternalEventMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := row
	m.rows[row.ExternalEventID] = &r
}

func (m *memoryMetadata) UpsertAcknowledged(_ context.Context, systemID string, refs []EventRef, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	changed := []string{}
	for _, ref := range refs {
		row, ok := m.rows[ref.ID]
		if !ok {
			row = &models.ExternalEventMetadata{ExternalEventID: ref.ID, SystemID: systemID, EventTimestamp: ref.Timestamp}
			m.rows[ref.ID] = row
		}
		if row.AcknowledgedAt == nil {
			t := at
			row.AcknowledgedAt = &t
			changed = append(changed, ref.ID)
		}
	}
	return changed, nil
}

func (m *memoryMetadata) ClearRange(_ context.Context, r models.AckRange) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	var flipped, cleared int64
	for id, row := range m.rows {
		if row.SystemID != r.SystemID || row.AcknowledgedAt == nil {
			continue
		}
		if row.EventTimestamp.Before(r.From) || row.EventTimestamp.After(r.To) {
			continue
		}
		row.AcknowledgedAt = nil
		row.ScoredAt = nil
		flipped++
		cleared += int64(m.scores[id])
		delete(m.scores, id)
	}
	return flipped, cleared, nil
}

func (m *memoryMetadata) FindGroup(_ context.Context, sel models.GroupSelector, acknowledged bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for id, row := range m.rows {
		if row.SystemID != sel.SystemID || (row.AcknowledgedAt != nil) != acknowledged {
			continue
		}
		if id == sel.Key || (row.TemplateID != nil && *row.TemplateID == sel.Key) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryMetadata) SetAcknowledged(_ context.Context, systemID string, ids []string, at *time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	changed := []string{}
	for _, id := range ids {
		row, ok := m.rows[id]
		if !ok || row.SystemID != systemID {
			continue
		}
		if at != nil && row.AcknowledgedAt == nil {
			t := *at
			row.AcknowledgedAt = &t
			changed = append(changed, id)
		} else if at == nil && row.AcknowledgedAt != nil {
			row.AcknowledgedAt = nil
			row.ScoredAt = nil
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func (m *memoryMetadata) AcknowledgedAt(_ context.Context, systemID string, ids []string) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]time.Time{}
	for _, id := range ids {
		if row, ok := m.rows[id]; ok && row.SystemID == systemID && row.AcknowledgedAt != nil {
			out[id] = *row.AcknowledgedAt
		}
	}
	return out, nil
}

func (m *memoryMetadata) AcknowledgedIDs(_ context.Context, systemID string, _, _ *time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, row := range m.rows {
		if row.SystemID == systemID && row.AcknowledgedAt != nil && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryMetadata) acknowledged(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return ok && row.AcknowledgedAt != nil
}
