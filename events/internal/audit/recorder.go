// Package audit records acknowledgement mutations without blocking the
// request that caused them.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/httputil"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/messaging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// Repository persists audit records.
type Repository interface {
	InsertAudit(ctx context.Context, rec *models.AuditRecord) error
}

// Recorder fans each record out to the audit table and, when configured, a
// message bus subject. Writes run in the background with their own timeout.
type Recorder struct {
	repo      Repository
	publisher messaging.Publisher
	subject   string
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewRecorder creates a Recorder. publisher may be nil.
func NewRecorder(repo Repository, publisher messaging.Publisher, subject string) *Recorder {
	if subject == "" {
		subject = messaging.SubjectAuditRecorded
	}
	return &Recorder{
		repo:      repo,
		publisher: publisher,
		subject:   subject,
		timeout:   10 * time.Second,
		now:       time.Now,
	}
}

// Record builds a record for action from the request context and writes it
// asynchronously. It returns the record as queued.
func (r *Recorder) Record(ctx context.Context, action string, details map[string]any) *models.AuditRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	rec := &models.AuditRecord{
		ID:        id.String(),
		Actor:     httputil.ActorFromContext(ctx),
		Action:    action,
		Details:   details,
		IP:        httputil.GetRequestContext(ctx).IPString(),
		CreatedAt: r.now().UTC(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the request so a disconnecting client cannot drop the record.
		wctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.write(wctx, rec)
	}()
	return rec
}

func (r *Recorder) write(ctx context.Context, rec *models.AuditRecord) {
	if r.repo != nil {
		if err := r.repo.InsertAudit(ctx, rec); err != nil {
			slog.Warn("failed to persist audit record",
				slog.String("action", rec.Action), logging.Actor(rec.Actor), logging.Error(err))
		}
	}

	if r.publisher == nil || !r.publisher.IsConnected() {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("failed to encode audit record", logging.Error(err))
		return
	}
	if err := r.publisher.Publish(ctx, r.subject, data); err != nil {
		slog.Warn("failed to publish audit record",
			slog.String("subject", r.subject), slog.String("action", rec.Action), logging.Error(err))
	}
}

// Wait blocks until every queued record has been written.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
