package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// ListWindowsSince returns windows ending at or after since, optionally for
// one system.
func (r *PostgresRepository) ListWindowsSince(ctx context.Context, systemID string, since time.Time) ([]*models.Window, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, system_id, from_ts, to_ts FROM windows
		WHERE to_ts >= $1 AND ($2::text = '' OR system_id = $2)
		ORDER BY to_ts`, since, systemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	defer rows.Close()

	windows := []*models.Window{}
	for rows.Next() {
		w := &models.Window{}
		if err := rows.Scan(&w.ID, &w.SystemID, &w.FromTs, &w.ToTs); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return windows, nil
}

// ListEffectiveScores returns the effective score rows of one window.
func (r *PostgresRepository) ListEffectiveScores(ctx context.Context, windowID string) ([]*models.EffectiveScore, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT window_id, system_id, criterion_id, meta_score, max_event_score, effective_value, updated_at
		FROM effective_scores WHERE window_id = $1
		ORDER BY criterion_id`, windowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list effective scores: %w", err)
	}
	defer rows.Close()

	scores := []*models.EffectiveScore{}
	for rows.Next() {
		s := &models.EffectiveScore{}
		if err := rows.Scan(&s.WindowID, &s.SystemID, &s.CriterionID, &s.MetaScore,
			&s.MaxEventScore, &s.EffectiveValue, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan effective score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return scores, nil
}

// MaxUnacknowledgedScores returns, per criterion, the highest event score
// among the window's currently unacknowledged events from both the events
// table and the external shadow metadata. Criteria without any surviving
// score are absent from the map.
func (r *PostgresRepository) MaxUnacknowledgedScores(ctx context.Context, w *models.Window) (map[int]float64, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT sc.criterion_id, MAX(sc.score)
		FROM event_scores sc
		JOIN (
			SELECT e.id AS event_id FROM events e
			WHERE e.system_id = $1 AND e.timestamp >= $2 AND e.timestamp <= $3
			  AND e.acknowledged_at IS NULL
			UNION ALL
			SELECT m.external_event_id FROM es_event_metadata m
			WHERE m.system_id = $1 AND m.event_timestamp >= $2 AND m.event_timestamp <= $3
			  AND m.acknowledged_at IS NULL
		) live ON live.event_id = sc.event_id
		GROUP BY sc.criterion_id`, w.SystemID, w.FromTs, w.ToTs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute max event scores: %w", err)
	}
	defer rows.Close()

	result := make(map[int]float64)
	for rows.Next() {
		var criterion int
		var score float64
		if err := rows.Scan(&criterion, &score); err != nil {
			return nil, fmt.Errorf("failed to scan max event score: %w", err)
		}
		result[criterion] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// UpdateEffectiveScore persists the recomputed fields of an existing row.
// It never inserts.
func (r *PostgresRepository) UpdateEffectiveScore(ctx context.Context, s *models.EffectiveScore) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE effective_scores
		SET meta_score = $1, max_event_score = $2, effective_value = $3, updated_at = $4
		WHERE window_id = $5 AND system_id = $6 AND criterion_id = $7`,
		s.MetaScore, s.MaxEventScore, s.EffectiveValue, s.UpdatedAt, s.WindowID, s.SystemID, s.CriterionID)
	if err != nil {
		return fmt.Errorf("failed to update effective score: %w", err)
	}
	return nil
}

// DeleteEventScores removes every score row of the given events in one
// statement. Callers bound len(eventIDs).
func (r *PostgresRepository) DeleteEventScores(ctx context.Context, eventIDs []string) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM event_scores WHERE event_id = ANY($1)`, eventIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete event scores: %w", err)
	}
	return tag.RowsAffected(), nil
}
