package eventsource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// MetadataStore persists the shadow acknowledgement state of externally
// stored events. It is the only mutable state kept for those events.
type MetadataStore interface {
	// UpsertAcknowledged marks the given events acknowledged at `at`, creating
	// shadow rows as needed. Rows already acknowledged are left untouched; only
	// the ids that changed state are returned.
	UpsertAcknowledged(ctx context.Context, systemID string, refs []EventRef, at time.Time) ([]string, error)

	// ClearRange unacknowledges every acknowledged row in r, resets scored_at
	// and deletes the rows' event scores. It returns the flipped and cleared counts.
	ClearRange(ctx context.Context, r models.AckRange) (flipped int64, cleared int64, err error)

	// FindGroup returns ids of rows matching sel in the requested state.
	FindGroup(ctx context.Context, sel models.GroupSelector, acknowledged bool) ([]string, error)

	// SetAcknowledged flips ids to acknowledged (at != nil) or active
	// (at == nil, also clearing scored_at). Only rows in the opposite state
	// change; their ids are returned.
	SetAcknowledged(ctx context.Context, systemID string, ids []string, at *time.Time) ([]string, error)

	// AcknowledgedAt returns acknowledgement times for the given ids.
	AcknowledgedAt(ctx context.Context, systemID string, ids []string) (map[string]time.Time, error)

	// AcknowledgedIDs lists up to limit acknowledged ids in the time range.
	AcknowledgedIDs(ctx context.Context, systemID string, from, to *time.Time, limit int) ([]string, error)
}

// EventRef identifies an external event and its timestamp.
type EventRef struct {
	ID        string
	Timestamp time.Time
}

// PgMetadataStore implements MetadataStore on the es_event_metadata table.
type PgMetadataStore struct {
	db        DB
	chunkSize int
}

// NewPgMetadataStore creates a metadata store. Bulk statements bind at most
// chunkSize ids each.
func NewPgMetadataStore(db DB, chunkSize int) *PgMetadataStore {
	if chunkSize <= 0 {
		chunkSize = database.DefaultChunkSize
	}
	return &PgMetadataStore{db: db, chunkSize: chunkSize}
}

// UpsertAcknowledged implements MetadataStore.
func (m *PgMetadataStore) UpsertAcknowledged(ctx context.Context, systemID string, refs []EventRef, at time.Time) ([]string, error) {
	query := `
		INSERT INTO es_event_metadata (system_id, external_event_id, event_timestamp, acknowledged_at)
		SELECT $1, u.id, u.ts, $4
		FROM unnest($2::text[], $3::timestamptz[]) AS u(id, ts)
		ON CONFLICT (system_id, external_event_id) DO UPDATE
			SET acknowledged_at = EXCLUDED.acknowledged_at
			WHERE es_event_metadata.acknowledged_at IS NULL
		RETURNING external_event_id`

	changed := make([]string, 0, len(refs))
	for _, chunk := range database.Chunk(refs, m.chunkSize) {
		ids := make([]string, len(chunk))
		stamps := make([]time.Time, len(chunk))
		for i, ref := range chunk {
			ids[i] = ref.ID
			stamps[i] = ref.Timestamp
		}

		wctx, cancel := database.WriteContext(ctx)
		rows, err := m.db.Query(wctx, query, systemID, ids, stamps, at)
		if err != nil {
			cancel()
			return changed, fmt.Errorf("failed to upsert event metadata: %w", err)
		}
		flipped, err := pgx.CollectRows(rows, pgx.RowTo[string])
		cancel()
		if err != nil {
			return changed, fmt.Errorf("failed to upsert event metadata: %w", err)
		}
		changed = append(changed, flipped...)
	}
	return changed, nil
}

// ClearRange implements MetadataStore.
func (m *PgMetadataStore) ClearRange(ctx context.Context, r models.AckRange) (int64, int64, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	query := `
		WITH flipped AS (
			UPDATE es_event_metadata SET acknowledged_at = NULL, scored_at = NULL
			WHERE acknowledged_at IS NOT NULL
			  AND event_timestamp >= $1 AND event_timestamp <= $2
			  AND system_id = $3
			RETURNING external_event_id
		), cleared AS (
			DELETE FROM event_scores sc USING flipped f
			WHERE sc.event_id = f.external_event_id
			RETURNING 1
		)
		SELECT (SELECT COUNT(*) FROM flipped), (SELECT COUNT(*) FROM cleared)`

	var flipped, cleared int64
	if err := m.db.QueryRow(ctx, query, r.From, r.To, r.SystemID).Scan(&flipped, &cleared); err != nil {
		return 0, 0, fmt.Errorf("failed to clear event metadata: %w", err)
	}
	return flipped, cleared, nil
}

// FindGroup implements MetadataStore.
func (m *PgMetadataStore) FindGroup(ctx context.Context, sel models.GroupSelector, acknowledged bool) ([]string, error) {
	ctx, cancel := database.BulkContext(ctx)
	defer cancel()

	state := "acknowledged_at IS NULL"
	if acknowledged {
		state = "acknowledged_at IS NOT NULL"
	}
	query := `
		SELECT external_event_id FROM es_event_metadata
		WHERE system_id = $1 AND (template_id = $2 OR external_event_id = $2) AND ` + state

	rows, err := m.db.Query(ctx, query, sel.SystemID, sel.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to find group metadata: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan group metadata: %w", err)
	}
	return ids, nil
}

// SetAcknowledged implements MetadataStore.
func (m *PgMetadataStore) SetAcknowledged(ctx context.Context, systemID string, ids []string, at *time.Time) ([]string, error) {
	query := `
		UPDATE es_event_metadata SET acknowledged_at = $1
		WHERE system_id = $2 AND external_event_id = ANY($3) AND acknowledged_at IS NULL
		RETURNING external_event_id`
	args := func(chunk []string) []any { return []any{*at, systemID, chunk} }
	if at == nil {
		query = `
			UPDATE es_event_metadata SET acknowledged_at = NULL, scored_at = NULL
			WHERE system_id = $1 AND external_event_id = ANY($2) AND acknowledged_at IS NOT NULL
			RETURNING external_event_id`
		args = func(chunk []string) []any { return []any{systemID, chunk} }
	}

	changed := make([]string, 0, len(ids))
	for _, chunk := range database.Chunk(ids, m.chunkSize) {
		wctx, cancel := database.WriteContext(ctx)
		rows, err := m.db.Query(wctx, query, args(chunk)...)
		if err != nil {
			cancel()
			return changed, fmt.Errorf("failed to update event metadata: %w", err)
		}
		flipped, err := pgx.CollectRows(rows, pgx.RowTo[string])
		cancel()
		if err != nil {
			return changed, fmt.Errorf("failed to update event metadata: %w", err)
		}
		changed = append(changed, flipped...)
	}
	return changed, nil
}

// AcknowledgedAt implements MetadataStore.
func (m *PgMetadataStore) AcknowledgedAt(ctx context.Context, systemID string, ids []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := m.db.Query(ctx, `
		SELECT external_event_id, acknowledged_at FROM es_event_metadata
		WHERE system_id = $1 AND external_event_id = ANY($2) AND acknowledged_at IS NOT NULL`,
		systemID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load acknowledgement state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgement state: %w", err)
		}
		result[id] = at
	}
	return result, rows.Err()
}

// AcknowledgedIDs implements MetadataStore.
func (m *PgMetadataStore) AcknowledgedIDs(ctx context.Context, systemID string, from, to *time.Time, limit int) ([]string, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := m.db.Query(ctx, `
		SELECT external_event_id FROM es_event_metadata
		WHERE system_id = $1 AND acknowledged_at IS NOT NULL
		  AND ($2::timestamptz IS NULL OR event_timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR event_timestamp <= $3)
		ORDER BY event_timestamp DESC
		LIMIT $4`, systemID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list acknowledged ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan acknowledged ids: %w", err)
	}
	return ids, nil
}
