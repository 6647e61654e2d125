package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// SettingsRepo implements outreach.SettingsRepository against PostgreSQL.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

func (r *SettingsRepo) Get(ctx context.Context, tenantID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE tenant_id = $1 AND key = $2`,
		tenantID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", outreach.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *SettingsRepo) Set(ctx context.Context, tenantID, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (tenant_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, tenantID, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *SettingsRepo) List(ctx context.Context, tenantID string) ([]domain.Setting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id, key, value, updated_at FROM settings WHERE tenant_id = $1 ORDER BY key`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []domain.Setting
	for rows.Next() {
		var s domain.Setting
		if err := rows.Scan(&s.TenantID, &s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
