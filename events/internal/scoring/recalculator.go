// Package scoring keeps effective scores consistent with the set of
// unacknowledged events.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/repository"
)

// Store is the persistence the Recalculator needs.
type Store interface {
	ListWindowsSince(ctx context.Context, systemID string, since time.Time) ([]*models.Window, error)
	ListEffectiveScores(ctx context.Context, windowID string) ([]*models.EffectiveScore, error)
	MaxUnacknowledgedScores(ctx context.Context, w *models.Window) (map[int]float64, error)
	UpdateEffectiveScore(ctx context.Context, s *models.EffectiveScore) error
}

// WindowDaysSource supplies dashboard_config.score_display_window_days.
type WindowDaysSource interface {
	ScoreDisplayWindowDays(ctx context.Context) (int, error)
}

// Options configures the Recalculator.
type Options struct {
	// MetaWeight is W in W*meta + (1-W)*max. It must equal the weight used
	// by the meta-analysis job that writes meta_score.
	MetaWeight        float64
	DefaultWindowDays int
	MaxWindowDays     int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{MetaWeight: models.DefaultMetaWeight, DefaultWindowDays: 7, MaxWindowDays: 90}
}

// Recalculator recomputes max_event_score and effective_value of existing
// effective score rows.
type Recalculator struct {
	store  Store
	days   WindowDaysSource
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// NewRecalculator creates a Recalculator. Zero option fields take defaults.
func NewRecalculator(store Store, days WindowDaysSource, opts Options) *Recalculator {
	def := DefaultOptions()
	if opts.MetaWeight <= 0 || opts.MetaWeight > 1 {
		opts.MetaWeight = def.MetaWeight
	}
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = def.DefaultWindowDays
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = def.MaxWindowDays
	}
	return &Recalculator{
		store:  store,
		days:   days,
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With(logging.Operation("recalculate")),
	}
}

// WindowDays resolves the lookback in days. Missing or out of range values
// fall back to the default; values above the maximum are capped.
func (r *Recalculator) WindowDays(ctx context.Context) int {
	if r.days == nil {
		return r.opts.DefaultWindowDays
	}
	days, err := r.days.ScoreDisplayWindowDays(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrConfigNotSet) {
			r.logger.WarnContext(ctx, "failed to read score window setting, using default", logging.Error(err))
		}
		return r.opts.DefaultWindowDays
	}
	return r.clamp(days)
}

func (r *Recalculator) clamp(days int) int {
	switch {
	case days <= 0:
		return r.opts.DefaultWindowDays
	case days > r.opts.MaxWindowDays:
		return r.opts.MaxWindowDays
	default:
		return days
	}
}

// Recalculate refreshes every window ending within the lookback, for one
// system or all systems when systemID is empty. It returns the number of
// windows with at least one updated criterion. Failures on one window are
// logged and skipped.
func (r *Recalculator) Recalculate(ctx context.Context, systemID string) (int, error) {
	days := r.WindowDays(ctx)
	since := r.now().Add(-time.Duration(days) * 24 * time.Hour)

	windows, err := r.store.ListWindowsSince(ctx, systemID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list windows: %w", err)
	}

	updated := 0
	for _, w := range windows {
		n, err := r.recalculateWindow(ctx, w)
		if err != nil {
			r.logger.WarnContext(ctx, "window recalculation failed",
				logging.WindowID(w.ID), logging.SystemID(w.SystemID), logging.Error(err))
		}
		if n > 0 {
			updated++
		}
	}

	r.logger.DebugContext(ctx, "effective scores recalculated",
		logging.SystemID(systemID), slog.Int("windows", len(windows)), slog.Int("updated_windows", updated))
	return updated, nil
}

// recalculateWindow returns the number of criteria rows it updated.
func (r *Recalculator) recalculateWindow(ctx context.Context, w *models.Window) (int, error) {
	rows, err := r.store.ListEffectiveScores(ctx, w.ID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	maxes, err := r.store.MaxUnacknowledgedScores(ctx, w)
	if err != nil {
		return 0, err
	}

	known := make(map[int]bool, len(models.Criteria))
	for _, id := range models.CriterionIDs() {
		known[id] = true
	}

	at := r.now()
	updated := 0
	var firstErr error
	for _, row := range rows {
		if !known[row.CriterionID] || row.SystemID != w.SystemID {
			continue
		}
		Apply(row, maxes[row.CriterionID], r.opts.MetaWeight)
		row.UpdatedAt = at
		if err := r.store.UpdateEffectiveScore(ctx, row); err != nil {
			r.logger.WarnContext(ctx, "effective score update failed",
				logging.WindowID(w.ID), slog.Int("criterion_id", row.CriterionID), logging.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated++
	}
	return updated, firstErr
}

// Apply sets max_event_score and re-derives effective_value. A zero max
// also zeroes the meta score so a clean window carries no stale meta part.
func Apply(s *models.EffectiveScore, maxEvent, weight float64) {
	s.MaxEventScore = maxEvent
	if maxEvent == 0 {
		s.MetaScore = 0
	}
	s.EffectiveValue = models.Blend(weight, s.MetaScore, s.MaxEventScore)
}
