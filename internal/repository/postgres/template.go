package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// TemplateRepo implements outreach.TemplateRepository against PostgreSQL.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `id, tenant_id, name, subject, body, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*domain.Template, error) {
	t := &domain.Template{}
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TemplateRepo) Get(ctx context.Context, id string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE tenant_id = $1 AND name = $2`,
		tenantID, name))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template by name: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, tenantID string) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE tenant_id = $1 ORDER BY name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates (id, tenant_id, name, subject, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, t.ID, t.TenantID, t.Name, t.Subject, t.Body)
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}
	return t.ID, nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.Template) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE templates SET name = $1, subject = $2, body = $3, updated_at = NOW()
		WHERE id = $4 AND tenant_id = $5
	`, t.Name, t.Subject, t.Body, t.ID, t.TenantID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}
