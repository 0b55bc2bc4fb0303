package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

type memoryFindings struct {
	findings []*models.Finding
	listErr  error
	ackErr   map[string]error
	acked    []string
}

func (m *memoryFindings) ListOpenFindings(_ context.Context, systemID string) ([]*models.Finding, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Finding
	for _, f := range m.findings {
		if f.Status == models.FindingOpen && (systemID == "" || f.SystemID == systemID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFindings) AcknowledgeFinding(_ context.Context, id string, at time.Time) (bool, error) {
	if err := m.ackErr[id]; err != nil {
		return false, err
	}
	for _, f := range m.findings {
		if f.ID == id && f.Status == models.FindingOpen {
			f.Status = models.FindingAcknowledged
			f.UpdatedAt = at
			m.acked = append(m.acked, id)
			return true, nil
		}
	}
	return false, nil
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"disk", "usage", "exceeded"}, SignificantWords("Disk usage  EXCEEDED on X", 4))
	assert.Equal(t, []string{"fail", "fail"}, SignificantWords("fail fail ok", 4))
	assert.Equal(t, []string{"größe"}, SignificantWords("größe ab", 4), "length counts runes")
	assert.Empty(t, SignificantWords("a bc def", 4))
}

func TestMatcher_Threshold(t *testing.T) {
	finding := "disk usage exceeded on host X"
	m := DefaultMatcher()

	// disk, usage, exceeded, host of disk/usage/exceeded/warning/host/service: 4/6.
	assert.True(t, m.Matches(finding, "disk usage exceeded warning host X service"))

	// 2 of 5 significant words occur: 40%.
	assert.False(t, m.Matches(finding, "disk usage quota warning notice"))

	// Exactly half matches.
	assert.True(t, m.Matches(finding, "disk usage quota notice"))

	assert.False(t, m.Matches(finding, "ok on X"), "no significant words")
}

func TestMatcher_CustomThreshold(t *testing.T) {
	strict := Matcher{Threshold: 0.9, MinWordLength: 4}
	assert.False(t, strict.Matches("disk usage exceeded on host X", "disk usage exceeded warning host X service"))
}

func TestTransition(t *testing.T) {
	store := &memoryFindings{findings: []*models.Finding{
		{ID: "f1", SystemID: "S", Text: "Disk usage exceeded on host X", Status: models.FindingOpen},
		{ID: "f2", SystemID: "S", Text: "Authentication failures from 10.0.0.8", Status: models.FindingOpen},
		{ID: "f3", SystemID: "S", Text: "Disk usage exceeded on db", Status: models.FindingResolved},
		{ID: "f4", SystemID: "T", Text: "Disk usage exceeded on host Y", Status: models.FindingOpen},
	}}
	tr := NewTransitioner(store, Matcher{})
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	n, err := tr.Transition(context.Background(), "S", []string{
		"disk usage exceeded warning host X service",
		"DISK USAGE EXCEEDED warning host X service",
		"kernel: eth0 link up",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"f1"}, store.acked, "each finding is visited once")
	assert.Equal(t, fixed, store.findings[0].UpdatedAt)
	assert.Equal(t, models.FindingOpen, store.findings[3].Status)

	n, err = tr.Transition(context.Background(), "S", []string{"disk usage exceeded warning host X service"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransition_AllSystems(t *testing.T) {
	store := &memoryFindings{findings: []*models.Finding{
		{ID: "a", SystemID: "S", Text: "queue backlog growing", Status: models.FindingOpen},
		{ID: "b", SystemID: "T", Text: "queue backlog growing fast", Status: models.FindingOpen},
	}}
	n, err := NewTransitioner(store, DefaultMatcher()).Transition(context.Background(), "", []string{"queue backlog growing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransition_EmptyMessagesSkipsStore(t *testing.T) {
	store := &memoryFindings{listErr: errors.New("must not be called")}
	tr := NewTransitioner(store, DefaultMatcher())

	n, err := tr.Transition(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tr.Transition(context.Background(), "S", []string{"ok", "a b c"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransition_Errors(t *testing.T) {
	store := &memoryFindings{listErr: errors.New("db down")}
	_, err := NewTransitioner(store, DefaultMatcher()).Transition(context.Background(), "S", []string{"disk usage"})
	assert.Error(t, err)

	store = &memoryFindings{
		findings: []*models.Finding{
			{ID: "x", SystemID: "S", Text: "disk usage", Status: models.FindingOpen},
			{ID: "y", SystemID: "S", Text: "disk usage high", Status: models.FindingOpen},
		},
		ackErr: map[string]error{"x": errors.New("lock timeout")},
	}
	n, err := NewTransitioner(store, DefaultMatcher()).Transition(context.Background(), "S", []string{"disk usage"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransition_UnrelatedNoiseNeverMatches(t *testing.T) {
	gofakeit.Seed(42)
	store := &memoryFindings{findings: []*models.Finding{
		{ID: "f", SystemID: "S", Text: "zzzzqx yyyyqx", Status: models.FindingOpen},
	}}
	messages := make([]string, 50)
	for i := range messages {
		messages[i] = gofakeit.HackerPhrase()
	}
	n, err := NewTransitioner(store, DefaultMatcher()).Transition(context.Background(), "S", messages)
	require.NoError(t, err)
	assert.Zero(t, n)
}
