package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/eventsource"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

var eventIDPattern = regexp.MustCompile(`^[0-9a-zA-Z_-]{1,128}$`)

const (
	defaultFacetDays = 7
	maxFacetDays     = 90
	maxPageSize      = 500
	maxTraceLimit    = 1000
)

// EventsByIDs fetches events by id from every backend. Native events come
// first; an external backend that fails is skipped. The result is
// de-duplicated by id and sorted by timestamp.
func (c *Coordinator) EventsByIDs(ctx context.Context, req *models.ByIDsRequest) ([]*models.Event, error) {
	if len(req.IDs) == 0 {
		return nil, invalid("ids", "at least one id is required")
	}
	if len(req.IDs) > c.opts.ByIDsMax {
		return nil, invalid("ids", "at most %d ids are allowed", c.opts.ByIDsMax)
	}
	ids := make([]string, 0, len(req.IDs))
	requested := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if !eventIDPattern.MatchString(id) {
			return nil, invalid("ids", "invalid event id %q", id)
		}
		if _, dup := requested[id]; !dup {
			requested[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	native, err := c.resolver.Native().GetSystemEvents(ctx, "", models.SystemEventsOptions{EventIDs: ids, Limit: len(ids)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	events := make([]*models.Event, 0, len(ids))
	add := func(list []*models.Event) {
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			events = append(events, e)
		}
	}
	add(native)

	if len(seen) < len(ids) {
		external, err := c.resolver.External(ctx)
		if err != nil && !errors.Is(err, eventsource.ErrBackendUnavailable) {
			c.logger.WarnContext(ctx, "failed to resolve external event sources", logging.Error(err))
		}
		for _, b := range external {
			found, err := b.Source.GetSystemEvents(ctx, b.SystemID(), models.SystemEventsOptions{EventIDs: ids})
			if err != nil {
				c.logger.WarnContext(ctx, "external event lookup failed",
					logging.SystemID(b.SystemID()), logging.Error(err))
				continue
			}
			add(found)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// sourceFor returns the source serving systemID, or the native source when
// no system is named.
func (c *Coordinator) sourceFor(ctx context.Context, systemID string) (eventsource.EventSource, error) {
	if systemID == "" {
		return c.resolver.Native(), nil
	}
	b, err := c.resolve(ctx, systemID)
	if err != nil {
		return nil, err
	}
	return b.Source, nil
}

// SearchEvents runs a paged search.
func (c *Coordinator) SearchEvents(ctx context.Context, f *models.EventFilter) (*models.EventPage, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > maxPageSize {
		return nil, invalid("limit", "must be at most %d", maxPageSize)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, invalid("from", "must not be after to")
	}

	src, err := c.sourceFor(ctx, f.SystemID)
	if err != nil {
		return nil, err
	}
	page, err := src.SearchEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return page, nil
}

// Facets returns distinct field values seen in the last days.
func (c *Coordinator) Facets(ctx context.Context, systemID string, days int) (*models.Facets, error) {
	if days <= 0 {
		days = defaultFacetDays
	}
	if days > maxFacetDays {
		days = maxFacetDays
	}
	src, err := c.sourceFor(ctx, systemID)
	if err != nil {
		return nil, err
	}
	facets, err := src.GetFacets(ctx, systemID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load facets: %w", err)
	}
	return facets, nil
}

// Trace correlates events across native systems by a shared field value.
func (c *Coordinator) Trace(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error) {
	if req.Value == "" {
		return nil, invalid("value", "is required")
	}
	if req.Field == "" {
		req.Field = "message"
	}
	if req.ToTs.IsZero() {
		req.ToTs = c.now().UTC()
	}
	if req.FromTs.IsZero() {
		req.FromTs = req.ToTs.Add(-24 * time.Hour)
	}
	if req.FromTs.After(req.ToTs) {
		return nil, invalid("from", "must not be after to")
	}
	if req.Limit <= 0 || req.Limit > maxTraceLimit {
		req.Limit = 200
	}

	events, err := c.resolver.Native().TraceEvents(ctx, req)
	if err != nil {
		if errors.Is(err, eventsource.ErrUnsupported) {
			return nil, invalid("field", "%v", err)
		}
		return nil, fmt.Errorf("failed to trace events: %w", err)
	}
	return events, nil
}
