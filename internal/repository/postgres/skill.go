package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// SkillRepo implements chat.SkillRepository against PostgreSQL.
type SkillRepo struct{ db *sql.DB }

// NewSkillRepo creates a Postgres-backed skill repository.
func NewSkillRepo(db *sql.DB) *SkillRepo { return &SkillRepo{db: db} }

const skillColumns = `id, tenant_id, name, COALESCE(description,''), prompt, enabled, created_at, updated_at`

func scanSkill(row interface{ Scan(...interface{}) error }) (*domain.Skill, error) {
	s := &domain.Skill{}
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Description, &s.Prompt, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SkillRepo) Get(ctx context.Context, id string) (*domain.Skill, error) {
	s, err := scanSkill(r.db.QueryRowContext(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get skill: %w", err)
	}
	return s, nil
}

func (r *SkillRepo) List(ctx context.Context, tenantID string, enabledOnly bool) ([]domain.Skill, error) {
	q := `SELECT ` + skillColumns + ` FROM skills WHERE tenant_id = $1`
	if enabledOnly {
		q += ` AND enabled`
	}
	q += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []domain.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SkillRepo) Create(ctx context.Context, s *domain.Skill) (string, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skills (id, tenant_id, name, description, prompt, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, s.ID, s.TenantID, s.Name, s.Description, s.Prompt, s.Enabled)
	if err != nil {
		return "", fmt.Errorf("create skill: %w", err)
	}
	return s.ID, nil
}

func (r *SkillRepo) Update(ctx context.Context, s *domain.Skill) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE skills SET name = $1, description = $2, prompt = $3, enabled = $4, updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6
	`, s.Name, s.Description, s.Prompt, s.Enabled, s.ID, s.TenantID)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

func (r *SkillRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM skills WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}
