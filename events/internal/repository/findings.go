package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// ListOpenFindings returns open findings, optionally for one system.
func (r *PostgresRepository) ListOpenFindings(ctx context.Context, systemID string) ([]*models.Finding, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, system_id, text, status, created_at, updated_at FROM findings
		WHERE status = 'open' AND ($1::text = '' OR system_id = $1)
		ORDER BY created_at, id`, systemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open findings: %w", err)
	}
	defer rows.Close()

	findings := []*models.Finding{}
	for rows.Next() {
		f := &models.Finding{}
		var status string
		if err := rows.Scan(&f.ID, &f.SystemID, &f.Text, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Status = models.FindingStatus(status)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return findings, nil
}

// AcknowledgeFinding moves an open finding to acknowledged. It reports false
// when the finding was no longer open.
func (r *PostgresRepository) AcknowledgeFinding(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE findings SET status = 'acknowledged', updated_at = $2
		WHERE id = $1 AND status = 'open'`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge finding: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
