package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
)

// SenderConfig holds the tunables for the single-email sender.
type SenderConfig struct {
	// DryRunLatency emulates provider latency when simulating a send.
	DryRunLatency time.Duration

	// DefaultFromName/DefaultFromEmail are used when a campaign omits them.
	DefaultFromName  string
	DefaultFromEmail string
}

// Sender renders and delivers one queued email at a time.
type Sender struct {
	campaigns CampaignRepository
	emails    EmailRepository
	templates TemplateRepository
	settings  SettingsRepository
	events    EventRepository
	provider  Provider
	steps     *StepLogger
	cfg       SenderConfig

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewSender wires a sender from its repositories and delivery provider.
func NewSender(campaigns CampaignRepository, emails EmailRepository, templates TemplateRepository,
	settings SettingsRepository, events EventRepository, provider Provider, steps *StepLogger, cfg SenderConfig) *Sender {
	if cfg.DryRunLatency == 0 {
		cfg.DryRunLatency = 150 * time.Millisecond
	}
	return &Sender{
		campaigns: campaigns,
		emails:    emails,
		templates: templates,
		settings:  settings,
		events:    events,
		provider:  provider,
		steps:     steps,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// SendEmail loads, renders, and delivers a single queued email. It marks the
// row sent or failed, appends an audit event, and bumps the campaign's sent
// counter. An email already out of pending is skipped without a second
// delivery attempt.
func (s *Sender) SendEmail(ctx context.Context, emailID string) error {
	email, err := s.emails.Get(ctx, emailID)
	if err != nil {
		return fmt.Errorf("load email %s: %w", emailID, err)
	}
	if email.Status != domain.EmailPending {
		s.steps.Warn(ctx, email.CampaignID, "load", "email already processed, skipping",
			map[string]any{"email_id": emailID, "status": string(email.Status)})
		return nil
	}

	campaign, err := s.campaigns.Get(ctx, email.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", email.CampaignID, err)
	}
	if campaign.TemplateID == nil {
		return fmt.Errorf("campaign %s has no template: %w", campaign.ID, ErrNotFound)
	}
	tmpl, err := s.templates.Get(ctx, *campaign.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", *campaign.TemplateID, err)
	}

	s.steps.Info(ctx, campaign.ID, "render", "rendering template",
		map[string]any{"email_id": email.ID, "template_id": tmpl.ID, "recipient": email.RecipientEmail})

	data := personalizationFor(email)
	rendered := Render(tmpl, data)

	body := DecodeDoubleEncoded(rendered.Body)
	body = RewriteLinks(body, campaign.Name, campaign.Source == "automation")

	signature, err := resolveSignature(ctx, s.settings, campaign)
	if err != nil {
		s.steps.Warn(ctx, campaign.ID, "signature", "signature lookup failed, sending unsigned",
			map[string]any{"error": err.Error()})
		signature = ""
	}

	htmlBody := Envelope(body, signature)
	textBody := PlainText(body)
	if sigText := PlainText(signature); sigText != "" {
		textBody += "\n\n" + sigText
	}

	if campaign.DryRun {
		return s.simulateSend(ctx, campaign, email)
	}
	return s.deliver(ctx, campaign, email, rendered.Subject, htmlBody, textBody)
}

// simulateSend marks the email sent with a synthetic identifier after a short
// pause that stands in for provider latency. No external call is made.
func (s *Sender) simulateSend(ctx context.Context, campaign *domain.Campaign, email *domain.OutreachEmail) error {
	s.sleep(ctx, s.cfg.DryRunLatency)

	syntheticID := "dry-run-" + uuid.NewString()
	if err := s.emails.MarkSent(ctx, email.ID, syntheticID); err != nil {
		return fmt.Errorf("mark dry-run email sent: %w", err)
	}
	s.appendEvent(ctx, campaign.ID, email.ID, "sent", "dry run")
	if err := s.campaigns.IncrementCounter(ctx, campaign.ID, "sent_count", 1); err != nil {
		s.steps.Warn(ctx, campaign.ID, "counter", "sent counter increment failed",
			map[string]any{"error": err.Error()})
	}
	s.steps.Info(ctx, campaign.ID, "send", "dry run: simulated delivery",
		map[string]any{"email_id": email.ID, "message_id": syntheticID})
	return nil
}

// deliver performs the single live delivery attempt for an email.
func (s *Sender) deliver(ctx context.Context, campaign *domain.Campaign, email *domain.OutreachEmail,
	subject, htmlBody, textBody string) error {

	fromName := campaign.FromName
	if fromName == "" {
		fromName = s.cfg.DefaultFromName
	}
	fromEmail := campaign.FromEmail
	if fromEmail == "" {
		fromEmail = s.cfg.DefaultFromEmail
	}

	msg := &Message{
		FromName: fromName,
		From:     fromEmail,
		To:       email.RecipientEmail,
		ToName:   email.RecipientName,
		Subject:  subject,
		HTML:     htmlBody,
		Text:     textBody,
		Headers:  map[string]string{"X-Campaign-ID": campaign.ID, "X-Email-ID": email.ID},
	}

	s.steps.Info(ctx, campaign.ID, "send", "calling delivery provider",
		map[string]any{"email_id": email.ID, "provider": s.provider.Name(), "recipient": email.RecipientEmail})

	msgID, err := s.provider.Send(ctx, msg)
	if err != nil {
		if markErr := s.emails.MarkFailed(ctx, email.ID, err.Error()); markErr != nil {
			s.steps.Error(ctx, campaign.ID, "send", "failed to record send failure",
				map[string]any{"email_id": email.ID, "error": markErr.Error()})
		}
		s.steps.Error(ctx, campaign.ID, "send", "provider rejected email",
			map[string]any{"email_id": email.ID, "error": err.Error()})
		return fmt.Errorf("send email %s: %w: %v", email.ID, ErrProvider, err)
	}

	if err := s.emails.MarkSent(ctx, email.ID, msgID); err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	s.appendEvent(ctx, campaign.ID, email.ID, "sent", msgID)
	if err := s.campaigns.IncrementCounter(ctx, campaign.ID, "sent_count", 1); err != nil {
		s.steps.Warn(ctx, campaign.ID, "counter", "sent counter increment failed",
			map[string]any{"error": err.Error()})
	}

	s.steps.Info(ctx, campaign.ID, "send", "email accepted by provider",
		map[string]any{"email_id": email.ID, "message_id": msgID})
	return nil
}

func (s *Sender) appendEvent(ctx context.Context, campaignID, emailID, eventType, detail string) {
	ev := &domain.EmailEvent{
		ID:         uuid.NewString(),
		EmailID:    emailID,
		CampaignID: campaignID,
		EventType:  eventType,
		Detail:     detail,
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.steps.Warn(ctx, campaignID, "audit", "audit event insert failed",
			map[string]any{"email_id": emailID, "error": err.Error()})
	}
}

// personalizationFor merges the email's stored personalization with derived
// recipient keys so templates can always address the customer by name.
func personalizationFor(email *domain.OutreachEmail) map[string]string {
	data := make(map[string]string, len(email.Personalization)+2)
	for k, v := range email.Personalization {
		data[k] = v
	}
	if _, ok := data["customer_name"]; !ok && email.RecipientName != "" {
		data["customer_name"] = email.RecipientName
	}
	if _, ok := data["first_name"]; !ok && email.RecipientName != "" {
		data["first_name"] = firstWord(email.RecipientName)
	}
	return data
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}
