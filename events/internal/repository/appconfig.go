package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
)

// ScoreDisplayWindowDays reads dashboard_config.score_display_window_days.
// It returns ErrConfigNotSet when the key or the field is missing or is not
// a number. Fractional values are rounded; range checking beyond the int32
// bounds is left to the caller.
func (r *PostgresRepository) ScoreDisplayWindowDays(ctx context.Context) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var days *float64
	err := r.db.QueryRow(ctx, `
		SELECT CASE WHEN jsonb_typeof(value->'score_display_window_days') = 'number'
		            THEN (value->>'score_display_window_days')::double precision END
		FROM app_config WHERE key = 'dashboard_config'`).Scan(&days)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConfigNotSet
		}
		return 0, fmt.Errorf("failed to read dashboard config: %w", err)
	}
	if days == nil {
		return 0, ErrConfigNotSet
	}
	return wholeDays(*days), nil
}

// wholeDays rounds d to the nearest day and saturates it to the int32 range
// so the conversion is always defined.
func wholeDays(d float64) int {
	d = math.Round(d)
	switch {
	case d >= math.MaxInt32:
		return math.MaxInt32
	case d <= math.MinInt32:
		return math.MinInt32
	default:
		return int(d)
	}
}
