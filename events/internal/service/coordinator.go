// Package service implements the acknowledgement coordinator: it flips event
// state through the right EventSource and then keeps event scores, effective
// scores and findings consistent with the new state.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/messaging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/eventsource"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/metrics"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// SourceResolver maps systems to event sources.
type SourceResolver interface {
	Native() eventsource.EventSource
	ForSystem(ctx context.Context, systemID string) (eventsource.Bound, error)
	External(ctx context.Context) ([]eventsource.Bound, error)
}

// ScoreDeleter removes per-event scores. One call binds all ids.
type ScoreDeleter interface {
	DeleteEventScores(ctx context.Context, eventIDs []string) (int64, error)
}

// Recalculator refreshes effective scores.
type Recalculator interface {
	Recalculate(ctx context.Context, systemID string) (int, error)
}

// Transitioner advances findings matched by acknowledged messages.
type Transitioner interface {
	Transition(ctx context.Context, systemID string, messages []string) (int, error)
}

// AuditRecorder records mutations without blocking.
type AuditRecorder interface {
	Record(ctx context.Context, action string, details map[string]any) *models.AuditRecord
}

// Options tunes the coordinator.
type Options struct {
	// DeleteChunkSize bounds the ids bound into one score deletion.
	DeleteChunkSize int
	// MessageSampleSize bounds the messages passed to the transitioner.
	MessageSampleSize int
	// ByIDsMax bounds EventsByIDs requests.
	ByIDsMax int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		DeleteChunkSize:   database.DefaultChunkSize,
		MessageSampleSize: eventsource.DefaultMessageSample,
		ByIDsMax:          50,
	}
}

// Coordinator orchestrates acknowledge and unacknowledge requests. The flip
// is the primary mutation and its errors are returned; recalculation,
// finding transitions, audit and notifications are best-effort.
type Coordinator struct {
	resolver   SourceResolver
	scores     ScoreDeleter
	recalc     Recalculator
	transition Transitioner
	audit      AuditRecorder
	publisher  messaging.Publisher
	opts       Options
	now        func() time.Time
	logger     *slog.Logger
}

// NewCoordinator creates a Coordinator. recalc and transition may be nil to
// disable those steps.
func NewCoordinator(resolver SourceResolver, scores ScoreDeleter, recalc Recalculator, transition Transitioner, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.DeleteChunkSize <= 0 {
		opts.DeleteChunkSize = def.DeleteChunkSize
	}
	if opts.MessageSampleSize <= 0 {
		opts.MessageSampleSize = def.MessageSampleSize
	}
	if opts.ByIDsMax <= 0 {
		opts.ByIDsMax = def.ByIDsMax
	}
	return &Coordinator{
		resolver:   resolver,
		scores:     scores,
		recalc:     recalc,
		transition: transition,
		opts:       opts,
		now:        time.Now,
		logger:     slog.Default().With(logging.Service("events")),
	}
}

// WithAudit attaches an audit recorder.
func (c *Coordinator) WithAudit(a AuditRecorder) *Coordinator {
	c.audit = a
	return c
}

// WithPublisher attaches a publisher for change notifications.
func (c *Coordinator) WithPublisher(p messaging.Publisher) *Coordinator {
	c.publisher = p
	return c
}

// resolve returns the source bound to systemID.
func (c *Coordinator) resolve(ctx context.Context, systemID string) (eventsource.Bound, error) {
	b, err := c.resolver.ForSystem(ctx, systemID)
	if err != nil {
		if errors.Is(err, ErrSystemNotFound) {
			return eventsource.Bound{}, fmt.Errorf("%w: %s", ErrSystemNotFound, systemID)
		}
		return eventsource.Bound{}, fmt.Errorf("failed to resolve event source: %w", err)
	}
	return b, nil
}

// rangeTargets returns the sources a range operation applies to: the bound
// source of one system, or the native source for all native systems plus
// every external system.
func (c *Coordinator) rangeTargets(ctx context.Context, systemID string) ([]eventsource.Bound, error) {
	if systemID != "" {
		b, err := c.resolve(ctx, systemID)
		if err != nil {
			return nil, err
		}
		return []eventsource.Bound{b}, nil
	}

	targets := []eventsource.Bound{{Source: c.resolver.Native()}}
	external, err := c.resolver.External(ctx)
	switch {
	case errors.Is(err, eventsource.ErrBackendUnavailable):
		c.logger.WarnContext(ctx, "external event store not configured, range applies to native events only",
			logging.Error(err))
	case err != nil:
		return nil, fmt.Errorf("failed to resolve event sources: %w", err)
	default:
		targets = append(targets, external...)
	}
	return targets, nil
}

// deleteScores removes scores of ids in chunks of DeleteChunkSize.
func (c *Coordinator) deleteScores(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for _, chunk := range database.Chunk(ids, c.opts.DeleteChunkSize) {
		n, err := c.scores.DeleteEventScores(ctx, chunk)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to delete event scores: %w", err)
		}
	}
	metrics.ScoresDeletedTotal.Add(float64(total))
	return total, nil
}

func (c *Coordinator) recalculate(ctx context.Context, systemID string) StepResult {
	if c.recalc == nil {
		return StepResult{}
	}
	n, err := c.recalc.Recalculate(ctx, systemID)
	if err != nil {
		c.logger.WarnContext(ctx, "effective score recalculation failed",
			logging.SystemID(systemID), logging.Error(err))
		metrics.SoftFailures.WithLabelValues("recalculate").Inc()
		return StepResult{Err: err}
	}
	metrics.WindowsRecalculatedTotal.Add(float64(n))
	return StepResult{Count: n}
}

func (c *Coordinator) transitionFindings(ctx context.Context, systemID string, messages []string) StepResult {
	if c.transition == nil || len(messages) == 0 {
		return StepResult{}
	}
	if len(messages) > c.opts.MessageSampleSize {
		messages = messages[:c.opts.MessageSampleSize]
	}
	n, err := c.transition.Transition(ctx, systemID, messages)
	if err != nil {
		c.logger.WarnContext(ctx, "finding transition failed",
			logging.SystemID(systemID), logging.Error(err))
		metrics.SoftFailures.WithLabelValues("transition").Inc()
		return StepResult{Err: err}
	}
	metrics.FindingsTransitionedTotal.Add(float64(n))
	return StepResult{Count: n}
}

func (c *Coordinator) record(ctx context.Context, action string, details map[string]any) {
	if c.audit == nil {
		return
	}
	c.audit.Record(ctx, action, details)
}

// notification is published after each mutation.
type notification struct {
	Action               string    `json:"action"`
	SystemID             string    `json:"system_id,omitempty"`
	GroupKey             string    `json:"group_key,omitempty"`
	Count                int64     `json:"count"`
	UpdatedWindows       int       `json:"updated_windows"`
	TransitionedFindings int       `json:"transitioned_findings"`
	At                   time.Time `json:"at"`
}

func (c *Coordinator) notify(ctx context.Context, n notification) {
	if c.publisher == nil || !c.publisher.IsConnected() {
		return
	}
	n.At = c.now().UTC()
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := c.publisher.Publish(ctx, messaging.SubjectEventsAcknowledged, data); err != nil {
		c.logger.WarnContext(ctx, "failed to publish acknowledgement notification", logging.Error(err))
		metrics.SoftFailures.WithLabelValues("notify").Inc()
	}
	if n.TransitionedFindings > 0 {
		if err := c.publisher.Publish(ctx, messaging.SubjectFindingsTransitions, data); err != nil {
			c.logger.WarnContext(ctx, "failed to publish finding transitions", logging.Error(err))
			metrics.SoftFailures.WithLabelValues("notify").Inc()
		}
	}
}

// observe records the outcome of a primary mutation.
func observe(op string, start time.Time, err error) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrValidation) && !errors.Is(err, ErrSystemNotFound) {
		metrics.OperationErrors.WithLabelValues(op).Inc()
	}
}

func countFlipped(op string, b eventsource.Bound, n int64) {
	if n > 0 {
		metrics.FlippedEventsTotal.WithLabelValues(op, string(b.Source.Kind())).Add(float64(n))
	}
}
