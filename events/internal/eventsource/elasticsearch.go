package eventsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// EsOptions tunes an EsEventSource.
type EsOptions struct {
	// PageSize is the number of hits read per search_after page.
	PageSize int
	// MaxScan caps the events scanned by one range acknowledgement.
	MaxScan int
	// SampleLimit caps the message texts returned with a flip.
	SampleLimit int
	// MaxAckFilterIDs caps the acknowledged ids pushed into a search filter.
	MaxAckFilterIDs int
}

// DefaultEsOptions returns the defaults used by the service.
func DefaultEsOptions() EsOptions {
	return EsOptions{
		PageSize:        5000,
		MaxScan:         1_000_000,
		SampleLimit:     DefaultMessageSample,
		MaxAckFilterIDs: 10000,
	}
}

// EsEventSource serves one system whose events live in an external search
// cluster. Event content is read-only; acknowledgement state lives in the
// MetadataStore.
type EsEventSource struct {
	client *opensearch.Client
	system *models.MonitoredSystem
	fields models.ExternalConfig
	meta   MetadataStore
	opts   EsOptions
	now    func() time.Time
	logger *slog.Logger
}

// NewEsEventSource binds an external source to system.
func NewEsEventSource(client *opensearch.Client, system *models.MonitoredSystem, meta MetadataStore, opts EsOptions) (*EsEventSource, error) {
	if client == nil {
		return nil, ErrBackendUnavailable
	}
	if system.ExternalConfig == nil || system.ExternalConfig.IndexPattern == "" {
		return nil, fmt.Errorf("system %s has no external index configured", system.ID)
	}

	defaults := DefaultEsOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.MaxScan <= 0 {
		opts.MaxScan = defaults.MaxScan
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = defaults.SampleLimit
	}
	if opts.MaxAckFilterIDs <= 0 {
		opts.MaxAckFilterIDs = defaults.MaxAckFilterIDs
	}

	return &EsEventSource{
		client: client,
		system: system,
		fields: system.ExternalConfig.WithDefaults(),
		meta:   meta,
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With(logging.Backend(string(models.EventSourceExternal)), logging.SystemID(system.ID)),
	}, nil
}

func (s *EsEventSource) Kind() models.EventSourceKind { return models.EventSourceExternal }

type esHit struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
	Sort   []any          `json:"sort"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key any `json:"key"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func (s *EsEventSource) search(ctx context.Context, body map[string]any) (*esSearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.fields.IndexPattern),
		s.client.Search.WithBody(bytes.NewReader(payload)),
		s.client.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("search error: %s - %s", res.Status(), strings.TrimSpace(string(msg)))
	}

	var out esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// baseFilters returns the clauses every query for this system carries.
func (s *EsEventSource) baseFilters() []any {
	filters := []any{}
	if len(s.fields.QueryFilter) > 0 {
		filters = append(filters, s.fields.QueryFilter)
	}
	return filters
}

func (s *EsEventSource) rangeFilter(from, to *time.Time) map[string]any {
	bounds := map[string]any{}
	if from != nil {
		bounds["gte"] = from.UTC().Format(time.RFC3339Nano)
	}
	if to != nil {
		bounds["lte"] = to.UTC().Format(time.RFC3339Nano)
	}
	return map[string]any{"range": map[string]any{s.fields.TimestampField: bounds}}
}

// lookup resolves a field from a hit source, accepting both flattened
// ("host.name") and nested ({"host":{"name":...}}) layouts.
func lookup(source map[string]any, path string) any {
	if v, ok := source[path]; ok {
		return v
	}
	var cur any = source
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

func lookupString(source map[string]any, path string) string {
	switch v := lookup(source, path).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}

func (s *EsEventSource) toEvent(hit esHit) *models.Event {
	return &models.Event{
		ID:        hit.ID,
		SystemID:  s.system.ID,
		Timestamp: parseTimestamp(lookup(hit.Source, s.fields.TimestampField)),
		Message:   lookupString(hit.Source, s.fields.MessageField),
		Severity:  lookupString(hit.Source, s.fields.SeverityField),
		Host:      lookupString(hit.Source, s.fields.HostField),
		Program:   lookupString(hit.Source, s.fields.ProgramField),
		Source:    string(models.EventSourceExternal),
	}
}

// overlayAcknowledgement copies shadow acknowledgement state onto events.
func (s *EsEventSource) overlayAcknowledgement(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	acked, err := s.meta.AcknowledgedAt(ctx, s.system.ID, ids)
	if err != nil {
		return err
	}
	for _, e := range events {
		if at, ok := acked[e.ID]; ok {
			e.AcknowledgedAt = &at
		}
	}
	return nil
}

// SearchEvents implements EventSource.
func (s *EsEventSource) SearchEvents(ctx context.Context, f *models.EventFilter) (*models.EventPage, error) {
	filters := s.baseFilters()
	must := []any{}
	mustNot := []any{}

	if f.Query != "" {
		must = append(must, map[string]any{
			"simple_query_string": map[string]any{
				"query":            f.Query,
				"fields":           []string{s.fields.MessageField},
				"default_operator": "and",
			},
		})
	}
	for field, value := range map[string]string{
		s.fields.SeverityField: f.Severity,
		s.fields.HostField:     f.Host,
		s.fields.ProgramField:  f.Program,
	} {
		if value != "" {
			filters = append(filters, map[string]any{"match_phrase": map[string]any{field: value}})
		}
	}
	if f.From != nil || f.To != nil {
		filters = append(filters, s.rangeFilter(f.From, f.To))
	}
	if f.Acknowledged != nil {
		ackedIDs, err := s.meta.AcknowledgedIDs(ctx, s.system.ID, f.From, f.To, s.opts.MaxAckFilterIDs)
		if err != nil {
			return nil, err
		}
		idsClause := map[string]any{"ids": map[string]any{"values": ackedIDs}}
		if *f.Acknowledged {
			filters = append(filters, idsClause)
		} else if len(ackedIDs) > 0 {
			mustNot = append(mustNot, idsClause)
		}
	}

	order := "asc"
	if f.SortDesc {
		order = "desc"
	}
	body := map[string]any{
		"from":             f.Offset(),
		"size":             f.Limit,
		"track_total_hits": true,
		"sort":             []any{map[string]any{s.fields.TimestampField: map[string]any{"order": order}}},
		"query": map[string]any{"bool": map[string]any{
			"must":     must,
			"filter":   filters,
			"must_not": mustNot,
		}},
	}

	res, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		events = append(events, s.toEvent(hit))
	}
	if err := s.overlayAcknowledgement(ctx, events); err != nil {
		return nil, err
	}

	return &models.EventPage{Events: events, Total: res.Hits.Total.Value, Page: f.Page, Limit: f.Limit}, nil
}

// GetFacets implements EventSource. systemID is implied by the binding.
func (s *EsEventSource) GetFacets(ctx context.Context, _ string, days int) (*models.Facets, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	terms := func(field string) map[string]any {
		return map[string]any{"terms": map[string]any{"field": field, "size": 200}}
	}

	body := map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{
			"filter": append(s.baseFilters(), s.rangeFilter(&since, nil)),
		}},
		"aggs": map[string]any{
			"severities": terms(s.fields.SeverityField),
			"hosts":      terms(s.fields.HostField),
			"programs":   terms(s.fields.ProgramField),
		},
	}

	res, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}

	keys := func(name string) []string {
		out := []string{}
		for _, b := range res.Aggregations[name].Buckets {
			out = append(out, fmt.Sprint(b.Key))
		}
		return out
	}
	return &models.Facets{Severities: keys("severities"), Hosts: keys("hosts"), Programs: keys("programs")}, nil
}

// TraceEvents is only served by the native backend.
func (s *EsEventSource) TraceEvents(context.Context, *models.TraceRequest) ([]*models.Event, error) {
	return nil, ErrUnsupported
}

// AcknowledgeEvents implements EventSource. It pages through the range with
// search_after and upserts shadow rows page by page, so a failure part way
// leaves earlier pages acknowledged; a replay picks up the rest.
func (s *EsEventSource) AcknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	at := s.now()
	res := &models.FlipResult{}
	seen := make(map[string]struct{})

	var after []any
	scanned := 0
	for scanned < s.opts.MaxScan {
		body := map[string]any{
			"size":    s.opts.PageSize,
			"_source": []string{s.fields.TimestampField, s.fields.MessageField},
			"sort": []any{
				map[string]any{s.fields.TimestampField: map[string]any{"order": "asc"}},
				map[string]any{"_id": map[string]any{"order": "asc"}},
			},
			"query": map[string]any{"bool": map[string]any{
				"filter": append(s.baseFilters(), s.rangeFilter(&r.From, &r.To)),
			}},
		}
		if after != nil {
			body["search_after"] = after
		}

		page, err := s.search(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("failed to scan external events: %w", err)
		}
		hits := page.Hits.Hits
		if len(hits) == 0 {
			break
		}

		refs := make([]EventRef, 0, len(hits))
		for _, hit := range hits {
			refs = append(refs, EventRef{ID: hit.ID, Timestamp: parseTimestamp(lookup(hit.Source, s.fields.TimestampField))})
		}

		changed, err := s.meta.UpsertAcknowledged(ctx, s.system.ID, refs, at)
		res.Count += int64(len(changed))
		if err != nil {
			return nil, err
		}

		// Rows acknowledged before this call keep their text out of the sample.
		flipped := make(map[string]struct{}, len(changed))
		for _, id := range changed {
			flipped[id] = struct{}{}
		}
		for _, hit := range hits {
			if _, ok := flipped[hit.ID]; ok {
				res.Messages = appendDistinct(res.Messages, seen, lookupString(hit.Source, s.fields.MessageField), s.opts.SampleLimit)
			}
		}

		scanned += len(hits)
		if len(hits) < s.opts.PageSize {
			break
		}
		after = hits[len(hits)-1].Sort
	}

	if scanned >= s.opts.MaxScan {
		s.logger.WarnContext(ctx, "range acknowledgement truncated",
			slog.Int("max_scan", s.opts.MaxScan), logging.Count(res.Count))
	}
	return res, nil
}

// UnacknowledgeEvents implements EventSource. Only events that have shadow
// rows can be acknowledged, so the external store is not consulted.
func (s *EsEventSource) UnacknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	r.SystemID = s.system.ID
	flipped, cleared, err := s.meta.ClearRange(ctx, r)
	if err != nil {
		return nil, err
	}
	return &models.FlipResult{Count: flipped, ScoresCleared: cleared}, nil
}

// AcknowledgeGroup implements EventSource in two phases: read matching shadow
// rows, then flip them in chunks. Message text is fetched afterwards for a
// bounded sample and only on a best-effort basis.
func (s *EsEventSource) AcknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	sel.SystemID = s.system.ID
	ids, err := s.meta.FindGroup(ctx, sel, false)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &models.FlipResult{EventIDs: []string{}}, nil
	}

	at := s.now()
	changed, err := s.meta.SetAcknowledged(ctx, s.system.ID, ids, &at)
	if err != nil {
		return nil, err
	}

	res := &models.FlipResult{Count: int64(len(changed)), EventIDs: changed}
	res.Messages = s.sampleMessages(ctx, changed)
	return res, nil
}

// UnacknowledgeGroup implements EventSource.
func (s *EsEventSource) UnacknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	sel.SystemID = s.system.ID
	ids, err := s.meta.FindGroup(ctx, sel, true)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &models.FlipResult{EventIDs: []string{}}, nil
	}

	changed, err := s.meta.SetAcknowledged(ctx, s.system.ID, ids, nil)
	if err != nil {
		return nil, err
	}
	return &models.FlipResult{Count: int64(len(changed)), EventIDs: changed}, nil
}

// sampleMessages fetches message text for up to SampleLimit ids. Failures are
// logged and yield no messages.
func (s *EsEventSource) sampleMessages(ctx context.Context, ids []string) []string {
	if len(ids) > s.opts.SampleLimit {
		ids = ids[:s.opts.SampleLimit]
	}
	events, err := s.fetchByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch message text for acknowledged events",
			logging.Count(int64(len(ids))), logging.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var messages []string
	for _, e := range events {
		messages = appendDistinct(messages, seen, e.Message, s.opts.SampleLimit)
	}
	return messages
}

func (s *EsEventSource) fetchByIDs(ctx context.Context, ids []string) ([]*models.Event, error) {
	if len(ids) == 0 {
		return []*models.Event{}, nil
	}
	body := map[string]any{
		"size": len(ids),
		"query": map[string]any{"bool": map[string]any{
			"filter": s.baseFilters(),
			"must":   []any{map[string]any{"ids": map[string]any{"values": ids}}},
		}},
	}
	res, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}
	events := make([]*models.Event, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		events = append(events, s.toEvent(hit))
	}
	return events, nil
}

// GetSystemEvents implements EventSource.
func (s *EsEventSource) GetSystemEvents(ctx context.Context, _ string, opts models.SystemEventsOptions) ([]*models.Event, error) {
	var (
		events []*models.Event
		err    error
	)
	if len(opts.EventIDs) > 0 {
		events, err = s.fetchByIDs(ctx, opts.EventIDs)
	} else {
		limit := opts.Limit
		if limit <= 0 {
			limit = 100
		}
		var res *esSearchResponse
		res, err = s.search(ctx, map[string]any{
			"size":  limit,
			"sort":  []any{map[string]any{s.fields.TimestampField: map[string]any{"order": "desc"}}},
			"query": map[string]any{"bool": map[string]any{"filter": s.baseFilters()}},
		})
		if res != nil {
			events = make([]*models.Event, 0, len(res.Hits.Hits))
			for _, hit := range res.Hits.Hits {
				events = append(events, s.toEvent(hit))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if err := s.overlayAcknowledgement(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}
