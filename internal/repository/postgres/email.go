package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

// EmailRepo implements outreach.EmailRepository against PostgreSQL.
type EmailRepo struct{ db *sql.DB }

// NewEmailRepo creates a Postgres-backed outreach email repository.
func NewEmailRepo(db *sql.DB) *EmailRepo { return &EmailRepo{db: db} }

const emailColumns = `id, campaign_id, recipient_email, COALESCE(recipient_name,''),
	       COALESCE(personalization,'{}'), status, COALESCE(provider_message_id,''),
	       COALESCE(error_message,''), sent_at, created_at`

func scanEmail(row interface{ Scan(...interface{}) error }) (*domain.OutreachEmail, error) {
	e := &domain.OutreachEmail{}
	var personalization []byte
	err := row.Scan(
		&e.ID, &e.CampaignID, &e.RecipientEmail, &e.RecipientName,
		&personalization, &e.Status, &e.ProviderMsgID,
		&e.ErrorMessage, &e.SentAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(personalization) > 0 {
		if err := json.Unmarshal(personalization, &e.Personalization); err != nil {
			return nil, fmt.Errorf("decode personalization: %w", err)
		}
	}
	return e, nil
}

func (r *EmailRepo) Get(ctx context.Context, id string) (*domain.OutreachEmail, error) {
	e, err := scanEmail(r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM outreach_emails WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email: %w", err)
	}
	return e, nil
}

func (r *EmailRepo) Create(ctx context.Context, e *domain.OutreachEmail) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = domain.EmailPending
	}
	personalization, err := json.Marshal(e.Personalization)
	if err != nil {
		return "", fmt.Errorf("encode personalization: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO outreach_emails
			(id, campaign_id, recipient_email, recipient_name, personalization, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, e.ID, e.CampaignID, e.RecipientEmail, e.RecipientName, personalization, e.Status)
	if err != nil {
		return "", fmt.Errorf("create email: %w", err)
	}
	return e.ID, nil
}

func (r *EmailRepo) ListPending(ctx context.Context, campaignID string, limit int) ([]domain.OutreachEmail, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM outreach_emails
		 WHERE campaign_id = $1 AND status = $2
		 ORDER BY created_at ASC LIMIT $3`,
		campaignID, domain.EmailPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}
	defer rows.Close()

	var out []domain.OutreachEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EmailRepo) CountPending(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outreach_emails WHERE campaign_id = $1 AND status = $2`,
		campaignID, domain.EmailPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending emails: %w", err)
	}
	return n, nil
}

func (r *EmailRepo) MarkSent(ctx context.Context, id, providerMsgID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_emails
		SET status = $1, provider_message_id = $2, sent_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.EmailSent, providerMsgID, id, domain.EmailPending)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

func (r *EmailRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_emails
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4
	`, domain.EmailFailed, errMsg, id, domain.EmailPending)
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outreach.ErrNotFound
	}
	return nil
}

// MarkSentBulk flips a whole set of pending rows to sent in one statement,
// deriving the synthetic dry-run message id from each row's own id.
func (r *EmailRepo) MarkSentBulk(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_emails
		SET status = $1, provider_message_id = 'dry-run-' || id, sent_at = NOW()
		WHERE id = ANY($2) AND status = $3
	`, domain.EmailSent, pq.Array(ids), domain.EmailPending)
	if err != nil {
		return fmt.Errorf("bulk mark sent: %w", err)
	}
	return nil
}

func (r *EmailRepo) AdvanceStatusByProviderMsgID(ctx context.Context, providerMsgID string, status domain.EmailStatus) (*domain.OutreachEmail, error) {
	e, err := scanEmail(r.db.QueryRowContext(ctx, `
		UPDATE outreach_emails SET status = $1
		WHERE provider_message_id = $2
		RETURNING `+emailColumns,
		status, providerMsgID))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("advance email status: %w", err)
	}
	return e, nil
}

func (r *EmailRepo) FindRecentSentByRecipient(ctx context.Context, recipient string) (*domain.OutreachEmail, error) {
	e, err := scanEmail(r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM outreach_emails
		 WHERE recipient_email = $1 AND sent_at IS NOT NULL
		 ORDER BY sent_at DESC LIMIT 1`, recipient))
	if err == sql.ErrNoRows {
		return nil, outreach.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find sent email by recipient: %w", err)
	}
	return e, nil
}
