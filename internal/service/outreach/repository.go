package outreach

import (
	"context"
	"time"

	"github.com/mact/ops-server/internal/domain"
)

// CampaignRepository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type CampaignRepository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns for a tenant, newest first.
	List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// UpdateStatus transitions a campaign's status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// MarkCompleted is the sole terminal transition out of "sending".
	MarkCompleted(ctx context.Context, id string) error

	// IncrementCounter bumps one counter column. Implementations prefer an
	// atomic server-side increment and fall back to read-modify-write.
	IncrementCounter(ctx context.Context, id, counter string, delta int) error

	// LastSentAt returns the most recent sent_at across the campaign's
	// emails, or nil if nothing has been sent yet.
	LastSentAt(ctx context.Context, id string) (*time.Time, error)
}

// EmailRepository defines the data access contract for queued emails.
type EmailRepository interface {
	// Get returns one email. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.OutreachEmail, error)

	// Create enqueues a new pending email.
	Create(ctx context.Context, e *domain.OutreachEmail) (string, error)

	// ListPending returns up to limit pending emails in creation order.
	ListPending(ctx context.Context, campaignID string, limit int) ([]domain.OutreachEmail, error)

	// CountPending returns a fresh count of pending emails.
	CountPending(ctx context.Context, campaignID string) (int, error)

	// MarkSent transitions pending → sent, recording the provider message
	// id. It must not touch rows already out of pending.
	MarkSent(ctx context.Context, id, providerMsgID string) error

	// MarkFailed transitions pending → failed with the error message.
	MarkFailed(ctx context.Context, id, errMsg string) error

	// MarkSentBulk transitions a set of pending emails to sent in one
	// write, assigning synthetic dry-run message ids.
	MarkSentBulk(ctx context.Context, ids []string) error

	// AdvanceStatusByProviderMsgID applies a webhook-driven transition
	// (delivered/opened/clicked/bounced) and returns the affected email.
	AdvanceStatusByProviderMsgID(ctx context.Context, providerMsgID string, status domain.EmailStatus) (*domain.OutreachEmail, error)

	// FindRecentSentByRecipient returns the most recent sent email to the
	// given address (for reply matching), or ErrNotFound.
	FindRecentSentByRecipient(ctx context.Context, recipient string) (*domain.OutreachEmail, error)
}

// TemplateRepository defines the data access contract for templates.
type TemplateRepository interface {
	Get(ctx context.Context, id string) (*domain.Template, error)
	GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error)
	List(ctx context.Context, tenantID string) ([]domain.Template, error)
	Create(ctx context.Context, t *domain.Template) (string, error)
	Update(ctx context.Context, t *domain.Template) error
}

// SettingsRepository provides tenant-scoped key/value settings.
type SettingsRepository interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, tenantID, key string) (string, error)
	Set(ctx context.Context, tenantID, key, value string) error
	List(ctx context.Context, tenantID string) ([]domain.Setting, error)
}

// EventRepository appends audit events for email lifecycle transitions.
type EventRepository interface {
	Append(ctx context.Context, ev *domain.EmailEvent) error
	AppendBatch(ctx context.Context, evs []domain.EmailEvent) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailEvent, error)
}

// LogRepository persists campaign-scoped step logs. Failures here must never
// block delivery; callers treat errors as advisory.
type LogRepository interface {
	Insert(ctx context.Context, entry *domain.CampaignLogEntry) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignLogEntry, error)
}

// Provider is the transactional email delivery abstraction. Send returns the
// provider's message id on success.
type Provider interface {
	Send(ctx context.Context, msg *Message) (string, error)
	Name() string
}

// Message is one outbound email handed to a delivery provider.
type Message struct {
	FromName string
	From     string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Headers  map[string]string
}
