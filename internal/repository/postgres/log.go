package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
)

// LogRepo implements outreach.LogRepository against PostgreSQL.
type LogRepo struct{ db *sql.DB }

// NewLogRepo creates a Postgres-backed campaign log repository.
func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{db: db} }

func (r *LogRepo) Insert(ctx context.Context, entry *domain.CampaignLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_logs (id, campaign_id, level, step, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, entry.ID, entry.CampaignID, entry.Level, entry.Step, entry.Message, entry.Payload)
	if err != nil {
		return fmt.Errorf("insert campaign log: %w", err)
	}
	return nil
}

func (r *LogRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, level, step, message, COALESCE(payload,''), created_at
		FROM campaign_logs
		WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list campaign logs: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignLogEntry
	for rows.Next() {
		var entry domain.CampaignLogEntry
		if err := rows.Scan(&entry.ID, &entry.CampaignID, &entry.Level, &entry.Step,
			&entry.Message, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign log: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
