package service

import (
	"context"
	"sync"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/eventsource"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// mockSource is an EventSource whose behavior is set per test.
type mockSource struct {
	kind models.EventSourceKind

	searchFunc       func(ctx context.Context, f *models.EventFilter) (*models.EventPage, error)
	facetsFunc       func(ctx context.Context, systemID string, days int) (*models.Facets, error)
	traceFunc        func(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error)
	ackFunc          func(ctx context.Context, r models.AckRange) (*models.FlipResult, error)
	unackFunc        func(ctx context.Context, r models.AckRange) (*models.FlipResult, error)
	ackGroupFunc     func(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error)
	unackGroupFunc   func(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error)
	systemEventsFunc func(ctx context.Context, systemID string, opts models.SystemEventsOptions) ([]*models.Event, error)
}

func (m *mockSource) Kind() models.EventSourceKind {
	if m.kind == "" {
		return models.EventSourceNative
	}
	return m.kind
}

func (m *mockSource) SearchEvents(ctx context.Context, f *models.EventFilter) (*models.EventPage, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, f)
	}
	return &models.EventPage{Events: []*models.Event{}, Page: f.Page, Limit: f.Limit}, nil
}

func (m *mockSource) GetFacets(ctx context.Context, systemID string, days int) (*models.Facets, error) {
	if m.facetsFunc != nil {
		return m.facetsFunc(ctx, systemID, days)
	}
	return &models.Facets{}, nil
}

func (m *mockSource) TraceEvents(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error) {
	if m.traceFunc != nil {
		return m.traceFunc(ctx, req)
	}
	return []*models.Event{}, nil
}

func (m *mockSource) AcknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	if m.ackFunc != nil {
		return m.ackFunc(ctx, r)
	}
	return &models.FlipResult{}, nil
}

func (m *mockSource) UnacknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	if m.unackFunc != nil {
		return m.unackFunc(ctx, r)
	}
	return &models.FlipResult{}, nil
}

func (m *mockSource) AcknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	if m.ackGroupFunc != nil {
		return m.ackGroupFunc(ctx, sel)
	}
	return &models.FlipResult{EventIDs: []string{}}, nil
}

func (m *mockSource) UnacknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	if m.unackGroupFunc != nil {
		return m.unackGroupFunc(ctx, sel)
	}
	return &models.FlipResult{EventIDs: []string{}}, nil
}

func (m *mockSource) GetSystemEvents(ctx context.Context, systemID string, opts models.SystemEventsOptions) ([]*models.Event, error) {
	if m.systemEventsFunc != nil {
		return m.systemEventsFunc(ctx, systemID, opts)
	}
	return []*models.Event{}, nil
}

// mockResolver serves fixed bindings.
type mockResolver struct {
	native      eventsource.EventSource
	systems     map[string]eventsource.Bound
	external    []eventsource.Bound
	externalErr error
}

func (m *mockResolver) Native() eventsource.EventSource { return m.native }

func (m *mockResolver) ForSystem(_ context.Context, id string) (eventsource.Bound, error) {
	b, ok := m.systems[id]
	if !ok {
		return eventsource.Bound{}, ErrSystemNotFound
	}
	return b, nil
}

func (m *mockResolver) External(context.Context) ([]eventsource.Bound, error) {
	return m.external, m.externalErr
}

type mockScores struct {
	mu     sync.Mutex
	chunks [][]string
	err    error
}

func (m *mockScores) DeleteEventScores(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.chunks = append(m.chunks, ids)
	return int64(len(ids)), nil
}

type mockRecalculator struct {
	calls   []string
	updated int
	err     error
}

func (m *mockRecalculator) Recalculate(_ context.Context, systemID string) (int, error) {
	m.calls = append(m.calls, systemID)
	return m.updated, m.err
}

type mockTransitioner struct {
	calls        int
	lastMessages []string
	transitioned int
	err          error
}

func (m *mockTransitioner) Transition(_ context.Context, _ string, messages []string) (int, error) {
	m.calls++
	m.lastMessages = messages
	return m.transitioned, m.err
}

type mockAudit struct {
	actions []string
	details []map[string]any
}

func (m *mockAudit) Record(_ context.Context, action string, details map[string]any) *models.AuditRecord {
	m.actions = append(m.actions, action)
	m.details = append(m.details, details)
	return &models.AuditRecord{Action: action, Details: details}
}

type mockPublisher struct {
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	m.subjects = append(m.subjects, subject)
	return nil
}
func (m *mockPublisher) IsConnected() bool { return true }
func (m *mockPublisher) Close() error      { return nil }
