package eventsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// DB is the subset of pgxpool.Pool used by the Postgres-backed stores.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgEventSource serves systems whose events live in the local events table.
// It is not bound to one system: an empty system id addresses all of them.
type PgEventSource struct {
	db          DB
	sampleLimit int
	now         func() time.Time
}

// NewPgEventSource creates the native event source.
func NewPgEventSource(db DB, sampleLimit int) *PgEventSource {
	if sampleLimit <= 0 {
		sampleLimit = DefaultMessageSample
	}
	return &PgEventSource{db: db, sampleLimit: sampleLimit, now: time.Now}
}

func (s *PgEventSource) Kind() models.EventSourceKind { return models.EventSourceNative }

const eventColumns = `id, system_id, timestamp, message, COALESCE(severity, ''), COALESCE(host, ''),
	COALESCE(program, ''), template_id, acknowledged_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	e := &models.Event{Source: string(models.EventSourceNative)}
	if err := row.Scan(&e.ID, &e.SystemID, &e.Timestamp, &e.Message, &e.Severity,
		&e.Host, &e.Program, &e.TemplateID, &e.AcknowledgedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]*models.Event, error) {
	defer rows.Close()
	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// escapeLike escapes LIKE wildcards in a user-supplied substring.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchEvents implements EventSource.
func (s *PgEventSource) SearchEvents(ctx context.Context, f *models.EventFilter) (*models.EventPage, error) {
	where := []string{"1=1"}
	args := []any{}
	argPos := 1

	add := func(clause string, arg any) {
		where = append(where, fmt.Sprintf(clause, argPos))
		args = append(args, arg)
		argPos++
	}

	if f.SystemID != "" {
		add("system_id = $%d", f.SystemID)
	}
	if f.Query != "" {
		add("message ILIKE '%%' || $%d || '%%'", escapeLike(f.Query))
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Host != "" {
		add("host = $%d", f.Host)
	}
	if f.Program != "" {
		add("program = $%d", f.Program)
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}
	if f.Acknowledged != nil {
		if *f.Acknowledged {
			where = append(where, "acknowledged_at IS NOT NULL")
		} else {
			where = append(where, "acknowledged_at IS NULL")
		}
	}
	whereClause := strings.Join(where, " AND ")

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM events WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}
	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY timestamp %s, id LIMIT $%d OFFSET $%d`,
		eventColumns, whereClause, order, argPos, argPos+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}

	return &models.EventPage{Events: events, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// GetFacets implements EventSource.
func (s *PgEventSource) GetFacets(ctx context.Context, systemID string, days int) (*models.Facets, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	facets := &models.Facets{}
	for column, dst := range map[string]*[]string{
		"severity": &facets.Severities,
		"host":     &facets.Hosts,
		"program":  &facets.Programs,
	} {
		query := fmt.Sprintf(`
			SELECT DISTINCT %[1]s FROM events
			WHERE timestamp >= $1 AND ($2::text = '' OR system_id = $2) AND %[1]s IS NOT NULL AND %[1]s <> ''
			ORDER BY %[1]s
			LIMIT 500`, column)

		rows, err := s.db.Query(ctx, query, since, systemID)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s facet: %w", column, err)
		}
		values, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s facet: %w", column, err)
		}
		*dst = values
	}

	return facets, nil
}

// traceColumns whitelists the fields TraceEvents may correlate on.
var traceColumns = map[string]string{
	"message": "message",
	"host":    "host",
	"program": "program",
}

// TraceEvents implements EventSource. It spans every native system.
func (s *PgEventSource) TraceEvents(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error) {
	column, ok := traceColumns[req.Field]
	if !ok {
		return nil, fmt.Errorf("%w: trace field %q", ErrUnsupported, req.Field)
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM events
		WHERE %s ILIKE '%%' || $1 || '%%' AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
		LIMIT $4`, eventColumns, column)

	rows, err := s.db.Query(ctx, query, escapeLike(req.Value), req.FromTs, req.ToTs, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to trace events: %w", err)
	}
	return collectEvents(rows)
}

// AcknowledgeEvents implements EventSource with a single UPDATE that also
// reports a sample of the flipped messages.
func (s *PgEventSource) AcknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	query := `
		WITH flipped AS (
			UPDATE events SET acknowledged_at = $1
			WHERE acknowledged_at IS NULL
			  AND timestamp >= $2 AND timestamp <= $3
			  AND ($4::text = '' OR system_id = $4)
			RETURNING message
		)
		SELECT
			(SELECT COUNT(*) FROM flipped),
			COALESCE((SELECT array_agg(message) FROM (SELECT DISTINCT message FROM flipped LIMIT $5) m), '{}')`

	res := &models.FlipResult{}
	if err := s.db.QueryRow(ctx, query, s.now(), r.From, r.To, r.SystemID, s.sampleLimit).
		Scan(&res.Count, &res.Messages); err != nil {
		return nil, fmt.Errorf("failed to acknowledge events: %w", err)
	}
	return res, nil
}

// UnacknowledgeEvents implements EventSource. The flip and the score deletion
// run in one statement.
func (s *PgEventSource) UnacknowledgeEvents(ctx context.Context, r models.AckRange) (*models.FlipResult, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	query := `
		WITH flipped AS (
			UPDATE events SET acknowledged_at = NULL
			WHERE acknowledged_at IS NOT NULL
			  AND timestamp >= $1 AND timestamp <= $2
			  AND ($3::text = '' OR system_id = $3)
			RETURNING id
		), cleared AS (
			DELETE FROM event_scores sc USING flipped f
			WHERE sc.event_id = f.id
			RETURNING 1
		)
		SELECT (SELECT COUNT(*) FROM flipped), (SELECT COUNT(*) FROM cleared)`

	res := &models.FlipResult{}
	if err := s.db.QueryRow(ctx, query, r.From, r.To, r.SystemID).Scan(&res.Count, &res.ScoresCleared); err != nil {
		return nil, fmt.Errorf("failed to unacknowledge events: %w", err)
	}
	return res, nil
}

// AcknowledgeGroup implements EventSource with UPDATE ... RETURNING so the
// affected rows need no second read.
func (s *PgEventSource) AcknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	query := `
		UPDATE events SET acknowledged_at = $1
		WHERE system_id = $2 AND (template_id = $3 OR id = $3) AND acknowledged_at IS NULL
		RETURNING id, message`
	return s.flipGroup(ctx, "acknowledge", query, s.now(), sel.SystemID, sel.Key)
}

// UnacknowledgeGroup implements EventSource.
func (s *PgEventSource) UnacknowledgeGroup(ctx context.Context, sel models.GroupSelector) (*models.FlipResult, error) {
	query := `
		UPDATE events SET acknowledged_at = NULL
		WHERE system_id = $1 AND (template_id = $2 OR id = $2) AND acknowledged_at IS NOT NULL
		RETURNING id, message`
	return s.flipGroup(ctx, "unacknowledge", query, sel.SystemID, sel.Key)
}

func (s *PgEventSource) flipGroup(ctx context.Context, op, query string, args ...any) (*models.FlipResult, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s group: %w", op, err)
	}
	defer rows.Close()

	res := &models.FlipResult{EventIDs: []string{}}
	seen := make(map[string]struct{})
	for rows.Next() {
		var id, message string
		if err := rows.Scan(&id, &message); err != nil {
			return nil, fmt.Errorf("failed to scan flipped event: %w", err)
		}
		res.EventIDs = append(res.EventIDs, id)
		res.Messages = appendDistinct(res.Messages, seen, message, s.sampleLimit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s group: %w", op, err)
	}
	res.Count = int64(len(res.EventIDs))
	return res, nil
}

// GetSystemEvents implements EventSource. An empty systemID searches every
// native system, which is how ids of unknown origin are resolved.
func (s *PgEventSource) GetSystemEvents(ctx context.Context, systemID string, opts models.SystemEventsOptions) ([]*models.Event, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var ids []string
	if len(opts.EventIDs) > 0 {
		ids = opts.EventIDs
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = max(len(ids), 100)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM events
		WHERE ($1::text = '' OR system_id = $1) AND ($2::text[] IS NULL OR id = ANY($2))
		ORDER BY timestamp DESC
		LIMIT $3`, eventColumns)

	rows, err := s.db.Query(ctx, query, systemID, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get system events: %w", err)
	}
	return collectEvents(rows)
}
