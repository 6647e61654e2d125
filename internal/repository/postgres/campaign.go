package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// CampaignRepo implements outreach.CampaignRepository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, tenant_id, template_id, name, from_name, from_email, status,
	       send_delay_ms, dry_run, COALESCE(signature,''), source,
	       sent_count, delivered_count, open_count, click_count, bounce_count, reply_count,
	       completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.TenantID, &c.TemplateID, &c.Name, &c.FromName, &c.FromEmail, &c.Status,
		&c.SendDelayMS, &c.DryRun, &c.Signature, &c.Source,
		&c.SentCount, &c.DeliveredCount, &c.OpenCount, &c.ClickCount, &c.BounceCount, &c.ReplyCount,
		&c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Campaign, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, tenant_id, template_id, name, from_name, from_email, status,
			 send_delay_ms, dry_run, signature, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, c.ID, c.TenantID, c.TemplateID, c.Name, c.FromName, c.FromEmail, c.Status,
		c.SendDelayMS, c.DryRun, c.Signature, c.Source)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) MarkCompleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.CampaignCompleted, id, domain.CampaignSending)
	if err != nil {
		return fmt.Errorf("mark campaign completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already terminal or missing; completion is idempotent.
		return nil
	}
	return nil
}

// counterColumns whitelists the columns IncrementCounter may touch.
var counterColumns = map[string]bool{
	"sent_count":      true,
	"delivered_count": true,
	"open_count":      true,
	"click_count":     true,
	"bounce_count":    true,
	"reply_count":     true,
}

// IncrementCounter bumps a campaign counter. It first tries the
// increment_campaign_counter() stored function and falls back to a
// read-modify-write UPDATE when the function is absent. The fallback is not
// atomic under concurrent writers; counters are advisory dashboard numbers.
func (r *CampaignRepo) IncrementCounter(ctx context.Context, id, counter string, delta int) error {
	if !counterColumns[counter] {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}

	_, err := r.db.ExecContext(ctx,
		`SELECT increment_campaign_counter($1, $2, $3)`, id, counter, delta)
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); !ok || pqErr.Code != "42883" { // undefined_function
		return fmt.Errorf("increment %s: %w", counter, err)
	}

	var current int
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1`, counter), id).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return outreach.ErrNotFound
		}
		return fmt.Errorf("read %s: %w", counter, err)
	}
	if _, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s = $1, updated_at = NOW() WHERE id = $2`, counter),
		current+delta, id); err != nil {
		return fmt.Errorf("write %s: %w", counter, err)
	}
	return nil
}

func (r *CampaignRepo) LastSentAt(ctx context.Context, id string) (*time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(sent_at) FROM outreach_emails WHERE campaign_id = $1`, id).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last sent at: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}
