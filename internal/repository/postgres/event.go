package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
)

// EventRepo implements outreach.EventRepository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed email event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, ev *domain.EmailEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_events (id, email_id, campaign_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, ev.ID, ev.EmailID, ev.CampaignID, ev.EventType, ev.Detail)
	if err != nil {
		return fmt.Errorf("append email event: %w", err)
	}
	return nil
}

// AppendBatch inserts a slice of events in one multi-row statement.
func (r *EventRepo) AppendBatch(ctx context.Context, evs []domain.EmailEvent) error {
	if len(evs) == 0 {
		return nil
	}
	placeholders := make([]string, len(evs))
	args := make([]interface{}, 0, len(evs)*5)
	for i, ev := range evs {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		base := i * 5
		placeholders[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, NOW())",
			base+1, base+2, base+3, base+4, base+5)
		args = append(args, ev.ID, ev.EmailID, ev.CampaignID, ev.EventType, ev.Detail)
	}
	q := `INSERT INTO email_events (id, email_id, campaign_id, event_type, detail, created_at) VALUES ` +
		strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("append email events: %w", err)
	}
	return nil
}

func (r *EventRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email_id, campaign_id, event_type, COALESCE(detail,''), created_at
		FROM email_events
		WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailEvent
	for rows.Next() {
		var ev domain.EmailEvent
		if err := rows.Scan(&ev.ID, &ev.EmailID, &ev.CampaignID, &ev.EventType, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
