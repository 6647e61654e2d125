package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mact/ops-server/internal/domain"
)

// StatsRepo aggregates dashboard counts across campaigns and automations.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed stats repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// DashboardStats returns tenant-wide aggregate counts in two queries.
func (r *StatsRepo) DashboardStats(ctx context.Context, tenantID string) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(sent_count), 0),
		       COALESCE(SUM(delivered_count), 0),
		       COALESCE(SUM(open_count), 0),
		       COALESCE(SUM(click_count), 0),
		       COALESCE(SUM(reply_count), 0),
		       COALESCE(SUM(bounce_count), 0)
		FROM campaigns WHERE tenant_id = $1
	`, tenantID).Scan(&stats.Campaigns, &stats.EmailsSent, &stats.Delivered,
		&stats.Opened, &stats.Clicked, &stats.Replied, &stats.Bounced)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM order_automations WHERE tenant_id = $1 AND status = $2
	`, tenantID, domain.AutomationActive).Scan(&stats.ActiveAutomations)
	if err != nil {
		return nil, fmt.Errorf("automation stats: %w", err)
	}
	return stats, nil
}
