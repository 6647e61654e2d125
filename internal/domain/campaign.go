package domain

import "time"

// CampaignStatus enumerates the lifecycle states of an outreach campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign is a named batch of outbound emails tied to one template.
// The sending loop makes bounded forward progress per invocation; the row
// in Postgres is the single source of truth for where a campaign stands.
type Campaign struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	TemplateID *string        `json:"template_id" db:"template_id"`
	Name       string         `json:"name" db:"name"`
	FromName   string         `json:"from_name" db:"from_name"`
	FromEmail  string         `json:"from_email" db:"from_email"`
	Status     CampaignStatus `json:"status" db:"status"`

	// SendDelayMS is the minimum gap between two consecutive live sends.
	SendDelayMS int `json:"send_delay_ms" db:"send_delay_ms"`

	// DryRun campaigns simulate delivery without calling the provider.
	DryRun bool `json:"dry_run" db:"dry_run"`

	// Signature overrides the tenant-level signatures when set.
	Signature string `json:"signature" db:"signature"`

	// Source marks how the campaign came to exist ("segment", "automation").
	Source string `json:"source" db:"source"`

	// Counters (advanced by the sender and by webhook events)
	SentCount      int `json:"sent_count" db:"sent_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`
	OpenCount      int `json:"open_count" db:"open_count"`
	ClickCount     int `json:"click_count" db:"click_count"`
	BounceCount    int `json:"bounce_count" db:"bounce_count"`
	ReplyCount     int `json:"reply_count" db:"reply_count"`

	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// EmailStatus enumerates the lifecycle of a single queued email.
// pending → sent|failed by the sender; sent is later advanced to
// delivered/opened/clicked/bounced/replied by webhook events.
type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSent      EmailStatus = "sent"
	EmailFailed    EmailStatus = "failed"
	EmailDelivered EmailStatus = "delivered"
	EmailOpened    EmailStatus = "opened"
	EmailClicked   EmailStatus = "clicked"
	EmailBounced   EmailStatus = "bounced"
	EmailReplied   EmailStatus = "replied"
)

// OutreachEmail is one queued message belonging to exactly one campaign.
// Invariant: at most one delivery attempt transitions an email out of pending.
type OutreachEmail struct {
	ID              string            `json:"id" db:"id"`
	CampaignID      string            `json:"campaign_id" db:"campaign_id"`
	RecipientEmail  string            `json:"recipient_email" db:"recipient_email"`
	RecipientName   string            `json:"recipient_name" db:"recipient_name"`
	Personalization map[string]string `json:"personalization" db:"personalization"`
	Status          EmailStatus       `json:"status" db:"status"`
	ProviderMsgID   string            `json:"provider_message_id" db:"provider_message_id"`
	ErrorMessage    string            `json:"error_message" db:"error_message"`
	SentAt          *time.Time        `json:"sent_at" db:"sent_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// Template holds subject/body strings with {{key}} placeholders.
type Template struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EmailEvent is an audit record for one email lifecycle transition.
type EmailEvent struct {
	ID         string    `json:"id" db:"id"`
	EmailID    string    `json:"email_id" db:"email_id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	EventType  string    `json:"event_type" db:"event_type"`
	Detail     string    `json:"detail" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CampaignLogEntry is one structured step log line scoped to a campaign,
// persisted for real-time operator visibility.
type CampaignLogEntry struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Level      string    `json:"level" db:"level"`
	Step       string    `json:"step" db:"step"`
	Message    string    `json:"message" db:"message"`
	Payload    string    `json:"payload" db:"payload"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DashboardStats aggregates tenant-wide outreach and automation counts for
// the dashboard endpoint.
type DashboardStats struct {
	Campaigns         int `json:"campaigns"`
	EmailsSent        int `json:"emails_sent"`
	Delivered         int `json:"delivered"`
	Opened            int `json:"opened"`
	Clicked           int `json:"clicked"`
	Replied           int `json:"replied"`
	Bounced           int `json:"bounced"`
	ActiveAutomations int `json:"active_automations"`
}

// BatchResult reports one invocation of the campaign batch processor.
// Remaining is always a fresh count, never derived from Processed.
type BatchResult struct {
	Processed int  `json:"processed"`
	Remaining int  `json:"remaining"`
	Completed bool `json:"completed"`
	Failed    int  `json:"failed"`
}
