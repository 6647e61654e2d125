package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// AutomationRepo implements automation.Repository against PostgreSQL.
type AutomationRepo struct{ db *sql.DB }

// NewAutomationRepo creates a Postgres-backed order automation repository.
func NewAutomationRepo(db *sql.DB) *AutomationRepo { return &AutomationRepo{db: db} }

const automationColumns = `id, tenant_id, order_id, order_number, type, status,
	       COALESCE(completed_reason,''), customer_email, COALESCE(customer_name,''),
	       anchor_date, reminder_count, next_action_date, last_campaign_id,
	       COALESCE(metadata,'{}'), created_at, updated_at`

func scanAutomation(row interface{ Scan(...interface{}) error }) (*domain.OrderAutomation, error) {
	a := &domain.OrderAutomation{}
	var metadata []byte
	err := row.Scan(
		&a.ID, &a.TenantID, &a.OrderID, &a.OrderNumber, &a.Type, &a.Status,
		&a.CompletedReason, &a.CustomerEmail, &a.CustomerName,
		&a.AnchorDate, &a.ReminderCount, &a.NextActionDate, &a.LastCampaignID,
		&metadata, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode automation metadata: %w", err)
		}
	}
	return a, nil
}

func (r *AutomationRepo) GetActiveByOrder(ctx context.Context, tenantID, orderID string, t domain.AutomationType) (*domain.OrderAutomation, error) {
	a, err := scanAutomation(r.db.QueryRowContext(ctx,
		`SELECT `+automationColumns+` FROM order_automations
		 WHERE tenant_id = $1 AND order_id = $2 AND type = $3 AND status = $4`,
		tenantID, orderID, t, domain.AutomationActive))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active automation: %w", err)
	}
	return a, nil
}

func (r *AutomationRepo) ListActive(ctx context.Context, tenantID string) ([]domain.OrderAutomation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+automationColumns+` FROM order_automations
		 WHERE tenant_id = $1 AND status = $2 ORDER BY created_at`,
		tenantID, domain.AutomationActive)
	if err != nil {
		return nil, fmt.Errorf("list active automations: %w", err)
	}
	return collectAutomations(rows)
}

func (r *AutomationRepo) ListDue(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]domain.OrderAutomation, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+automationColumns+` FROM order_automations
		 WHERE tenant_id = $1 AND status = $2 AND next_action_date <= $3
		 ORDER BY next_action_date ASC LIMIT $4`,
		tenantID, domain.AutomationActive, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due automations: %w", err)
	}
	return collectAutomations(rows)
}

func collectAutomations(rows *sql.Rows) ([]domain.OrderAutomation, error) {
	defer rows.Close()
	var out []domain.OrderAutomation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AutomationRepo) Create(ctx context.Context, a *domain.OrderAutomation) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode automation metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO order_automations
			(id, tenant_id, order_id, order_number, type, status,
			 customer_email, customer_name, anchor_date, reminder_count,
			 next_action_date, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, a.ID, a.TenantID, a.OrderID, a.OrderNumber, a.Type, a.Status,
		a.CustomerEmail, a.CustomerName, a.AnchorDate, a.ReminderCount,
		a.NextActionDate, metadata)
	if err != nil {
		return "", fmt.Errorf("create automation: %w", err)
	}
	return a.ID, nil
}

func (r *AutomationRepo) Advance(ctx context.Context, id string, reminderCount int, nextActionDate *time.Time, lastCampaignID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_automations
		SET reminder_count = $1, next_action_date = $2, last_campaign_id = $3, updated_at = NOW()
		WHERE id = $4
	`, reminderCount, nextActionDate, lastCampaignID, id)
	if err != nil {
		return fmt.Errorf("advance automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

func (r *AutomationRepo) Retire(ctx context.Context, id string, status domain.AutomationStatus, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE order_automations
		SET status = $1, completed_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, status, reason, id, domain.AutomationActive)
	if err != nil {
		return fmt.Errorf("retire automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

func (r *AutomationRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.OrderAutomation, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_automations WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count automations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+automationColumns+` FROM order_automations
		 WHERE tenant_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list automations: %w", err)
	}
	out, err := collectAutomations(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
