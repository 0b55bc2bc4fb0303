package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// mockCluster is a minimal OpenSearch stand-in that records search bodies.
type mockCluster struct {
	mu       sync.Mutex
	bodies   []map[string]any
	respond  func(body map[string]any) (int, any)
	requests int
}

func (c *mockCluster) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		_, _ = w.Write([]byte(`{"name":"test-node","cluster_name":"test","version":{"number":"2.11.0"}}`))
		return
	}

	if !strings.HasSuffix(r.URL.Path, "/_search") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	c.mu.Lock()
	c.bodies = append(c.bodies, body)
	c.requests++
	respond := c.respond
	c.mu.Unlock()

	status, resp := respond(body)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (c *mockCluster) searches() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.bodies...)
}

func hitsResponse(hits ...map[string]any) map[string]any {
	return map[string]any{
		"took": 1,
		"hits": map[string]any{
			"total": map[string]any{"value": len(hits)},
			"hits":  hits,
		},
	}
}

func hit(id, ts, message string) map[string]any {
	return map[string]any{
		"_id":     id,
		"_source": map[string]any{"@timestamp": ts, "message": message, "host": map[string]any{"name": "web-01"}},
		"sort":    []any{ts, id},
	}
}

func newTestSource(t *testing.T, cluster *mockCluster, meta MetadataStore, opts EsOptions) *EsEventSource {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(cluster.handler))
	t.Cleanup(srv.Close)

	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	sys := &models.MonitoredSystem{
		ID:             "sys-es",
		Name:           "edge proxies",
		EventSource:    models.EventSourceExternal,
		ExternalConfig: &models.ExternalConfig{IndexPattern: "logs-edge-*"},
	}
	src, err := NewEsEventSource(client, sys, meta, opts)
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return src
}

func TestNewEsEventSource_Validation(t *testing.T) {
	_, err := NewEsEventSource(nil, &models.MonitoredSystem{ID: "x"}, newMemoryMetadata(), EsOptions{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{"http://127.0.0.1:1"}})
	require.NoError(t, err)
	_, err = NewEsEventSource(client, &models.MonitoredSystem{ID: "x"}, newMemoryMetadata(), EsOptions{})
	assert.Error(t, err)
}

func TestEsEventSource_AcknowledgeEvents_PagesAndIsIdempotent(t *testing.T) {
	cluster := &mockCluster{}
	cluster.respond = func(body map[string]any) (int, any) {
		if _, ok := body["search_after"]; ok {
			return http.StatusOK, hitsResponse(hit("e3", "2026-03-01T10:02:00Z", "disk full on /var"))
		}
		return http.StatusOK, hitsResponse(
			hit("e1", "2026-03-01T10:00:00Z", "disk full on /var"),
			hit("e2", "2026-03-01T10:01:00Z", "link down eth0"),
		)
	}
	meta := newMemoryMetadata()
	src := newTestSource(t, cluster, meta, EsOptions{PageSize: 2})

	r := models.AckRange{
		SystemID: "sys-es",
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
	}

	res, err := src.AcknowledgeEvents(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)
	assert.ElementsMatch(t, []string{"disk full on /var", "link down eth0"}, res.Messages)
	assert.True(t, meta.acknowledged("e1"))
	assert.True(t, meta.acknowledged("e3"))

	searches := cluster.searches()
	require.Len(t, searches, 2)
	assert.Equal(t, []any{"2026-03-01T10:01:00Z", "e2"}, searches[1]["search_after"])

	again, err := src.AcknowledgeEvents(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Count)
}

func TestEsEventSource_AcknowledgeEvents_SamplesOnlyFlippedEvents(t *testing.T) {
	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(
			hit("old", "2026-03-01T09:00:00Z", "previously acknowledged disk failure"),
			hit("new", "2026-03-01T10:00:00Z", "kernel link up"),
		)
	}}
	earlier := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	meta := newMemoryMetadata()
	meta.put(models.ExternalEventMetadata{ExternalEventID: "old", SystemID: "sys-es",
		EventTimestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), AcknowledgedAt: &earlier})
	src := newTestSource(t, cluster, meta, EsOptions{})

	res, err := src.AcknowledgeEvents(context.Background(), models.AckRange{
		SystemID: "sys-es",
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, []string{"kernel link up"}, res.Messages)
	assert.True(t, meta.rows["old"].AcknowledgedAt.Equal(earlier))

	again, err := src.AcknowledgeEvents(context.Background(), models.AckRange{
		SystemID: "sys-es",
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Zero(t, again.Count)
	assert.Empty(t, again.Messages)
}

func TestEsEventSource_AcknowledgeEvents_ClusterDown(t *testing.T) {
	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "cluster_block_exception"}
	}}
	src := newTestSource(t, cluster, newMemoryMetadata(), EsOptions{})

	_, err := src.AcknowledgeEvents(context.Background(), models.AckRange{SystemID: "sys-es", To: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEsEventSource_UnacknowledgeEvents(t *testing.T) {
	meta := newMemoryMetadata()
	acked := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	scored := acked
	meta.put(models.ExternalEventMetadata{ExternalEventID: "e1", SystemID: "sys-es",
		EventTimestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), AcknowledgedAt: &acked, ScoredAt: &scored})
	meta.put(models.ExternalEventMetadata{ExternalEventID: "e2", SystemID: "sys-es",
		EventTimestamp: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), AcknowledgedAt: &acked})
	meta.scores["e1"] = 6

	src := newTestSource(t, &mockCluster{}, meta, EsOptions{})
	res, err := src.UnacknowledgeEvents(context.Background(), models.AckRange{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, int64(6), res.ScoresCleared)
	assert.False(t, meta.acknowledged("e1"))
	assert.True(t, meta.acknowledged("e2"))
	assert.Nil(t, meta.rows["e1"].ScoredAt)
}

func TestEsEventSource_AcknowledgeGroup(t *testing.T) {
	template := "tpl-42"
	meta := newMemoryMetadata()
	for i := 1; i <= 3; i++ {
		meta.put(models.ExternalEventMetadata{ExternalEventID: fmt.Sprintf("g%d", i), SystemID: "sys-es", TemplateID: &template})
	}
	meta.put(models.ExternalEventMetadata{ExternalEventID: "other", SystemID: "sys-es"})

	cluster := &mockCluster{respond: func(body map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(
			hit("g1", "2026-03-01T10:00:00Z", "sshd: Failed password for root"),
			hit("g2", "2026-03-01T10:00:01Z", "sshd: Failed password for root"),
		)
	}}
	src := newTestSource(t, cluster, meta, EsOptions{})

	res, err := src.AcknowledgeGroup(context.Background(), models.GroupSelector{SystemID: "sys-es", Key: template})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)
	assert.Equal(t, []string{"g1", "g2", "g3"}, res.EventIDs)
	assert.Equal(t, []string{"sshd: Failed password for root"}, res.Messages)
	assert.False(t, meta.acknowledged("other"))

	searches := cluster.searches()
	require.Len(t, searches, 1)
	boolQuery := searches[0]["query"].(map[string]any)["bool"].(map[string]any)
	must := boolQuery["must"].([]any)
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "ids")

	again, err := src.AcknowledgeGroup(context.Background(), models.GroupSelector{SystemID: "sys-es", Key: template})
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Count)
	assert.Empty(t, again.EventIDs)
}

func TestEsEventSource_AcknowledgeGroup_SingletonByOwnID(t *testing.T) {
	meta := newMemoryMetadata()
	meta.put(models.ExternalEventMetadata{ExternalEventID: "lonely", SystemID: "sys-es"})
	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(hit("lonely", "2026-03-01T10:00:00Z", "kernel panic"))
	}}
	src := newTestSource(t, cluster, meta, EsOptions{})

	res, err := src.AcknowledgeGroup(context.Background(), models.GroupSelector{Key: "lonely"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.True(t, meta.acknowledged("lonely"))
}

func TestEsEventSource_AcknowledgeGroup_TextLookupIsBestEffort(t *testing.T) {
	template := "tpl-1"
	meta := newMemoryMetadata()
	meta.put(models.ExternalEventMetadata{ExternalEventID: "a", SystemID: "sys-es", TemplateID: &template})

	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "boom"}
	}}
	src := newTestSource(t, cluster, meta, EsOptions{})

	res, err := src.AcknowledgeGroup(context.Background(), models.GroupSelector{Key: template})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Empty(t, res.Messages)
	assert.True(t, meta.acknowledged("a"))
}

func TestEsEventSource_UnacknowledgeGroup(t *testing.T) {
	template := "tpl-9"
	acked := time.Now()
	meta := newMemoryMetadata()
	meta.put(models.ExternalEventMetadata{ExternalEventID: "a", SystemID: "sys-es", TemplateID: &template, AcknowledgedAt: &acked, ScoredAt: &acked})
	meta.put(models.ExternalEventMetadata{ExternalEventID: "b", SystemID: "sys-es", TemplateID: &template})

	cluster := &mockCluster{respond: func(map[string]any) (int, any) { return http.StatusOK, hitsResponse() }}
	src := newTestSource(t, cluster, meta, EsOptions{})

	res, err := src.UnacknowledgeGroup(context.Background(), models.GroupSelector{Key: template})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, []string{"a"}, res.EventIDs)
	assert.Nil(t, meta.rows["a"].ScoredAt)
	assert.Empty(t, cluster.searches(), "unacknowledge needs no message text")
}

func TestEsEventSource_SearchEvents_OverlaysAcknowledgement(t *testing.T) {
	acked := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	meta := newMemoryMetadata()
	meta.put(models.ExternalEventMetadata{ExternalEventID: "e1", SystemID: "sys-es", AcknowledgedAt: &acked})

	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(
			hit("e1", "2026-03-01T10:00:00Z", "disk full"),
			hit("e2", "2026-03-01T10:01:00Z", "disk almost full"),
		)
	}}
	src := newTestSource(t, cluster, meta, EsOptions{})

	notAcked := false
	page, err := src.SearchEvents(context.Background(), &models.EventFilter{Query: "disk", Host: "web-01", Page: 1, Limit: 50, Acknowledged: &notAcked})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.True(t, page.Events[0].Acknowledged())
	assert.False(t, page.Events[1].Acknowledged())
	assert.Equal(t, "web-01", page.Events[0].Host)
	assert.Equal(t, "sys-es", page.Events[0].SystemID)

	body := cluster.searches()[0]
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotEmpty(t, boolQuery["must"])
	assert.NotEmpty(t, boolQuery["must_not"])
}

func TestEsEventSource_GetFacets(t *testing.T) {
	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": 0}, "hits": []any{}},
			"aggregations": map[string]any{
				"severities": map[string]any{"buckets": []any{map[string]any{"key": "error"}, map[string]any{"key": "info"}}},
				"hosts":      map[string]any{"buckets": []any{map[string]any{"key": "web-01"}}},
				"programs":   map[string]any{"buckets": []any{}},
			},
		}
	}}
	src := newTestSource(t, cluster, newMemoryMetadata(), EsOptions{})

	facets, err := src.GetFacets(context.Background(), "", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"error", "info"}, facets.Severities)
	assert.Equal(t, []string{"web-01"}, facets.Hosts)
	assert.Empty(t, facets.Programs)
	assert.EqualValues(t, 0, cluster.searches()[0]["size"])
}

func TestEsEventSource_TraceUnsupported(t *testing.T) {
	src := newTestSource(t, &mockCluster{}, newMemoryMetadata(), EsOptions{})
	_, err := src.TraceEvents(context.Background(), &models.TraceRequest{Value: "x", Field: "host"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEsEventSource_GetSystemEvents(t *testing.T) {
	cluster := &mockCluster{respond: func(body map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(hit("e1", "2026-03-01T10:00:00Z", "hello"))
	}}
	src := newTestSource(t, cluster, newMemoryMetadata(), EsOptions{})

	events, err := src.GetSystemEvents(context.Background(), "sys-es", models.SystemEventsOptions{EventIDs: []string{"e1"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Message)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), events[0].Timestamp)

	recent, err := src.GetSystemEvents(context.Background(), "sys-es", models.SystemEventsOptions{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	assert.EqualValues(t, 5, cluster.searches()[1]["size"])
}

func TestEsEventSource_FetchByIDs_ScopedToSystem(t *testing.T) {
	cluster := &mockCluster{respond: func(map[string]any) (int, any) {
		return http.StatusOK, hitsResponse(hit("x1", "2026-03-01T10:00:00Z", "tenant a event"))
	}}
	src := newTestSource(t, cluster, newMemoryMetadata(), EsOptions{})
	src.fields.QueryFilter = json.RawMessage(`{"term":{"tenant":"a"}}`)

	events, err := src.GetSystemEvents(context.Background(), "sys-es", models.SystemEventsOptions{EventIDs: []string{"x1"}})
	require.NoError(t, err)
	require.Len(t, events, 1)

	boolQuery := cluster.searches()[0]["query"].(map[string]any)["bool"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"term": map[string]any{"tenant": "a"}}}, boolQuery["filter"])
	assert.Equal(t, []any{map[string]any{"ids": map[string]any{"values": []any{"x1"}}}}, boolQuery["must"])
}

func TestLookupAndParseTimestamp(t *testing.T) {
	source := map[string]any{
		"host.name": "flat",
		"process":   map[string]any{"name": "nginx"},
		"count":     3.0,
	}
	assert.Equal(t, "flat", lookupString(source, "host.name"))
	assert.Equal(t, "nginx", lookupString(source, "process.name"))
	assert.Equal(t, "3", lookupString(source, "count"))
	assert.Equal(t, "", lookupString(source, "missing.field"))

	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), parseTimestamp(float64(1700000000000)))
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), parseTimestamp("1700000000000"))
	assert.Equal(t, 2026, parseTimestamp("2026-03-01T10:00:00.123Z").Year())
	assert.True(t, parseTimestamp("not a date").IsZero())
}
