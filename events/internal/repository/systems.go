package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

const systemColumns = `id, name, event_source, COALESCE(connection_ref, ''), external_config`

func scanSystem(row pgx.Row) (*models.MonitoredSystem, error) {
	var (
		sys    models.MonitoredSystem
		source string
		raw    []byte
	)
	if err := row.Scan(&sys.ID, &sys.Name, &source, &sys.ConnectionRef, &raw); err != nil {
		return nil, err
	}
	sys.EventSource = models.EventSourceKind(source)
	if len(raw) > 0 {
		var cfg models.ExternalConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("invalid external_config for system %s: %w", sys.ID, err)
		}
		sys.ExternalConfig = &cfg
	}
	return &sys, nil
}

// GetSystem returns the system with the given id or ErrSystemNotFound.
func (r *PostgresRepository) GetSystem(ctx context.Context, id string) (*models.MonitoredSystem, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	sys, err := scanSystem(r.db.QueryRow(ctx, `SELECT `+systemColumns+` FROM monitored_systems WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSystemNotFound
		}
		return nil, fmt.Errorf("failed to get system: %w", err)
	}
	return sys, nil
}

// ListSystems returns every monitored system ordered by name.
func (r *PostgresRepository) ListSystems(ctx context.Context) ([]*models.MonitoredSystem, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+systemColumns+` FROM monitored_systems ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list systems: %w", err)
	}
	defer rows.Close()

	systems := []*models.MonitoredSystem{}
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan system: %w", err)
		}
		systems = append(systems, sys)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return systems, nil
}
