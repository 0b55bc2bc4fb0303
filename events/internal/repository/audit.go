package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/database"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// InsertAudit appends one audit record.
func (r *PostgresRepository) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	if rec.Details == nil {
		rec.Details = map[string]any{}
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_log (id, actor, action, details, ip, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		rec.ID, rec.Actor, rec.Action, details, rec.IP, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}
