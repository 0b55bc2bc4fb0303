package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/eventsource"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

const maxGroupKeyLength = 512

// ParseRange validates a range request. A missing from means the epoch and
// a missing to means now.
func (c *Coordinator) ParseRange(req *models.AckRequest) (models.AckRange, error) {
	r := models.AckRange{
		SystemID: strings.TrimSpace(req.SystemID),
		From:     time.Unix(0, 0).UTC(),
		To:       c.now().UTC(),
	}
	if req.From != "" {
		from, ok := ParseTimestamp(req.From)
		if !ok {
			return r, invalid("from", "invalid timestamp %q", req.From)
		}
		r.From = from
	}
	if req.To != "" {
		to, ok := ParseTimestamp(req.To)
		if !ok {
			return r, invalid("to", "invalid timestamp %q", req.To)
		}
		r.To = to
	}
	if r.From.After(r.To) {
		return r, invalid("from", "must not be after to")
	}
	return r, nil
}

func parseGroup(req *models.GroupAckRequest) (models.GroupSelector, error) {
	sel := models.GroupSelector{SystemID: strings.TrimSpace(req.SystemID), Key: strings.TrimSpace(req.GroupKey)}
	if sel.SystemID == "" {
		return sel, invalid("system_id", "is required")
	}
	if sel.Key == "" {
		return sel, invalid("group_key", "is required")
	}
	if len(sel.Key) > maxGroupKeyLength {
		return sel, invalid("group_key", "must be at most %d characters", maxGroupKeyLength)
	}
	return sel, nil
}

// flipRange applies flip to every target of r and sums the results. The
// first failure aborts; targets already flipped stay flipped.
func (c *Coordinator) flipRange(ctx context.Context, op string, r models.AckRange,
	flip func(eventsource.EventSource, context.Context, models.AckRange) (*models.FlipResult, error),
) (*models.FlipResult, error) {
	targets, err := c.rangeTargets(ctx, r.SystemID)
	if err != nil {
		return nil, err
	}

	total := &models.FlipResult{}
	for _, t := range targets {
		scoped := r
		scoped.SystemID = t.SystemID()
		res, err := flip(t.Source, ctx, scoped)
		if err != nil {
			return nil, fmt.Errorf("failed to %s events of %s: %w", op, describe(t), err)
		}
		countFlipped(op, t, res.Count)
		total.Merge(res, c.opts.MessageSampleSize)
	}
	return total, nil
}

func describe(b eventsource.Bound) string {
	if b.System == nil {
		return "all native systems"
	}
	return "system " + b.System.ID
}

// AcknowledgeRange acknowledges every active event of the system (or of all
// systems) in the range.
func (c *Coordinator) AcknowledgeRange(ctx context.Context, req *models.AckRequest) (resp *models.AckResponse, err error) {
	const op = "acknowledge"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	r, err := c.ParseRange(req)
	if err != nil {
		return nil, err
	}

	res, err := c.flipRange(ctx, op, r, eventsource.EventSource.AcknowledgeEvents)
	if err != nil {
		return nil, err
	}

	c.record(ctx, models.ActionAcknowledge, map[string]any{
		"system_id": r.SystemID, "from": r.From, "to": r.To, "count": res.Count,
	})

	if res.Count == 0 {
		return &models.AckResponse{Message: "No events to acknowledge"}, nil
	}

	windows := c.recalculate(ctx, r.SystemID)
	findings := c.transitionFindings(ctx, r.SystemID, res.Messages)

	c.logger.InfoContext(ctx, "events acknowledged",
		logging.Operation(op), logging.SystemID(r.SystemID), logging.Count(res.Count))
	c.notify(ctx, notification{Action: models.ActionAcknowledge, SystemID: r.SystemID, Count: res.Count,
		UpdatedWindows: windows.Count, TransitionedFindings: findings.Count})

	return &models.AckResponse{
		Acknowledged:         res.Count,
		UpdatedWindows:       windows.Count,
		TransitionedFindings: findings.Count,
		Message:              fmt.Sprintf("Acknowledged %d events", res.Count),
	}, nil
}

// UnacknowledgeRange returns every acknowledged event of the range to the
// active state. Their scores are deleted by the source so they get re-scored.
func (c *Coordinator) UnacknowledgeRange(ctx context.Context, req *models.AckRequest) (resp *models.UnackResponse, err error) {
	const op = "unacknowledge"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	r, err := c.ParseRange(req)
	if err != nil {
		return nil, err
	}

	res, err := c.flipRange(ctx, op, r, eventsource.EventSource.UnacknowledgeEvents)
	if err != nil {
		return nil, err
	}

	c.record(ctx, models.ActionUnacknowledge, map[string]any{
		"system_id": r.SystemID, "from": r.From, "to": r.To, "count": res.Count,
		"scores_cleared": res.ScoresCleared,
	})

	if res.Count == 0 {
		return &models.UnackResponse{Message: "No events to unacknowledge"}, nil
	}

	windows := c.recalculate(ctx, r.SystemID)

	c.logger.InfoContext(ctx, "events unacknowledged",
		logging.Operation(op), logging.SystemID(r.SystemID), logging.Count(res.Count),
		"scores_cleared", res.ScoresCleared)
	c.notify(ctx, notification{Action: models.ActionUnacknowledge, SystemID: r.SystemID, Count: res.Count,
		UpdatedWindows: windows.Count})

	return &models.UnackResponse{
		Unacknowledged: res.Count,
		UpdatedWindows: windows.Count,
		Message:        fmt.Sprintf("Unacknowledged %d events", res.Count),
	}, nil
}

// AcknowledgeGroup acknowledges every active event of one system sharing a
// template id, or the single event with that id, and deletes their scores.
func (c *Coordinator) AcknowledgeGroup(ctx context.Context, req *models.GroupAckRequest) (resp *models.AckResponse, err error) {
	const op = "acknowledge_group"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	sel, err := parseGroup(req)
	if err != nil {
		return nil, err
	}
	b, err := c.resolve(ctx, sel.SystemID)
	if err != nil {
		return nil, err
	}

	res, err := b.Source.AcknowledgeGroup(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge group: %w", err)
	}
	countFlipped(op, b, res.Count)

	deleted, err := c.deleteScores(ctx, res.EventIDs)
	c.record(ctx, models.ActionAcknowledgeGroup, map[string]any{
		"system_id": sel.SystemID, "group_key": sel.Key, "count": res.Count, "scores_deleted": deleted,
	})
	if err != nil {
		return nil, err
	}

	if res.Count == 0 {
		return &models.AckResponse{Message: "No events to acknowledge"}, nil
	}

	windows := c.recalculate(ctx, sel.SystemID)
	findings := c.transitionFindings(ctx, sel.SystemID, res.Messages)

	c.logger.InfoContext(ctx, "event group acknowledged",
		logging.Operation(op), logging.SystemID(sel.SystemID), logging.Count(res.Count),
		"group_key", sel.Key, "scores_deleted", deleted)
	c.notify(ctx, notification{Action: models.ActionAcknowledgeGroup, SystemID: sel.SystemID, GroupKey: sel.Key,
		Count: res.Count, UpdatedWindows: windows.Count, TransitionedFindings: findings.Count})

	return &models.AckResponse{
		Acknowledged:         res.Count,
		UpdatedWindows:       windows.Count,
		TransitionedFindings: findings.Count,
		Message:              fmt.Sprintf("Acknowledged %d events in group", res.Count),
	}, nil
}

// UnacknowledgeGroup is the inverse of AcknowledgeGroup.
func (c *Coordinator) UnacknowledgeGroup(ctx context.Context, req *models.GroupAckRequest) (resp *models.UnackResponse, err error) {
	const op = "unacknowledge_group"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	sel, err := parseGroup(req)
	if err != nil {
		return nil, err
	}
	b, err := c.resolve(ctx, sel.SystemID)
	if err != nil {
		return nil, err
	}

	res, err := b.Source.UnacknowledgeGroup(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to unacknowledge group: %w", err)
	}
	countFlipped(op, b, res.Count)

	deleted, err := c.deleteScores(ctx, res.EventIDs)
	c.record(ctx, models.ActionUnacknowledgeGroup, map[string]any{
		"system_id": sel.SystemID, "group_key": sel.Key, "count": res.Count, "scores_deleted": deleted,
	})
	if err != nil {
		return nil, err
	}

	if res.Count == 0 {
		return &models.UnackResponse{Message: "No events to unacknowledge"}, nil
	}

	windows := c.recalculate(ctx, sel.SystemID)

	c.logger.InfoContext(ctx, "event group unacknowledged",
		logging.Operation(op), logging.SystemID(sel.SystemID), logging.Count(res.Count),
		"group_key", sel.Key, "scores_deleted", deleted)
	c.notify(ctx, notification{Action: models.ActionUnacknowledgeGroup, SystemID: sel.SystemID, GroupKey: sel.Key,
		Count: res.Count, UpdatedWindows: windows.Count})

	return &models.UnackResponse{
		Unacknowledged: res.Count,
		UpdatedWindows: windows.Count,
		Message:        fmt.Sprintf("Unacknowledged %d events in group", res.Count),
	}, nil
}
