package automation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/service/outreach"
)

// Config tunes a single engine run.
type Config struct {
	// MaxPerRun bounds how many due automations one ProcessDue call sends.
	MaxPerRun int
	// QuoteMaxReminders caps the quote sequence including weekly recurrences.
	QuoteMaxReminders int
	// SendDelayMS is copied onto the one-off campaigns the engine creates.
	SendDelayMS int
}

// ScanResult reports one reconciliation pass against ERP order state.
type ScanResult struct {
	OrdersSeen int         `json:"orders_seen"`
	Created    int         `json:"created"`
	Retired    int         `json:"retired"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// ProcessResult reports one due-reminder pass.
type ProcessResult struct {
	Due       int          `json:"due"`
	Sent      int          `json:"sent"`
	Retired   int          `json:"retired"`
	Reminders []SentReminder `json:"reminders,omitempty"`
	Errors    []ItemError    `json:"errors,omitempty"`
}

// SentReminder records one reminder that went out during a process pass.
type SentReminder struct {
	AutomationID string `json:"automation_id"`
	OrderNumber  string `json:"order_number"`
	Template     string `json:"template"`
	CampaignID   string `json:"campaign_id"`
}

// ItemError records a per-item failure that did not abort the pass.
type ItemError struct {
	OrderID string `json:"order_id,omitempty"`
	ID      string `json:"automation_id,omitempty"`
	Message string `json:"message"`
}

// BatchRunner drives one bounded send pass for a campaign. Satisfied by
// outreach.BatchProcessor.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, campaignID string, batchSize int) (*domain.BatchResult, error)
}

// Engine reconciles automations against order state and sends due reminders.
type Engine struct {
	repo      Repository
	templates outreach.TemplateRepository
	campaigns outreach.CampaignRepository
	emails    outreach.EmailRepository
	batch     BatchRunner
	source    OrderSource
	cfg       Config

	now func() time.Time
}

func NewEngine(repo Repository, templates outreach.TemplateRepository, campaigns outreach.CampaignRepository,
	emails outreach.EmailRepository, batch BatchRunner, source OrderSource, cfg Config) *Engine {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = 25
	}
	if cfg.QuoteMaxReminders <= 0 {
		cfg.QuoteMaxReminders = 10
	}
	return &Engine{
		repo:      repo,
		templates: templates,
		campaigns: campaigns,
		emails:    emails,
		batch:     batch,
		source:    source,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Scan reconciles automations with current order state: creates automations
// for newly qualifying orders and retires automations whose order moved on.
// Per-order failures are collected, not fatal.
func (e *Engine) Scan(ctx context.Context, tenantID string) (*ScanResult, error) {
	orders, err := e.source.ListRecentOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}

	result := &ScanResult{OrdersSeen: len(orders)}
	byID := make(map[string]Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	for _, o := range orders {
		if o.qualifiesForQuote() {
			if err := e.ensureAutomation(ctx, tenantID, o, domain.AutomationQuoteFollowup, &result.Created); err != nil {
				result.Errors = append(result.Errors, ItemError{OrderID: o.ID, Message: err.Error()})
			}
		}
		if o.qualifiesForCOD() {
			if err := e.ensureAutomation(ctx, tenantID, o, domain.AutomationCODFollowup, &result.Created); err != nil {
				result.Errors = append(result.Errors, ItemError{OrderID: o.ID, Message: err.Error()})
			}
		}
	}

	active, err := e.repo.ListActive(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("list active automations: %w", err)
	}
	for _, a := range active {
		order, seen := byID[a.OrderID]
		if !seen {
			// Order fell out of the recent window; leave the automation alone.
			continue
		}
		if reason := retirementReason(a.Type, order); reason != "" {
			if err := e.repo.Retire(ctx, a.ID, retiredStatus(reason), reason); err != nil {
				result.Errors = append(result.Errors, ItemError{ID: a.ID, Message: err.Error()})
				continue
			}
			result.Retired++
			logger.Info("automation retired",
				"automation_id", a.ID, "order_number", a.OrderNumber, "reason", reason)
		}
	}
	return result, nil
}

func (e *Engine) ensureAutomation(ctx context.Context, tenantID string, o Order, t domain.AutomationType, created *int) error {
	_, err := e.repo.GetActiveByOrder(ctx, tenantID, o.ID, t)
	if err == nil {
		return nil
	}
	if !errors.Is(err, outreach.ErrNotFound) {
		return err
	}

	anchor := o.OrderDate
	if t == domain.AutomationCODFollowup {
		anchor = *o.InvoiceDate
	}
	next := FirstActionAt(t, anchor)
	a := &domain.OrderAutomation{
		TenantID:       tenantID,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Type:           t,
		Status:         domain.AutomationActive,
		CustomerEmail:  o.CustomerEmail,
		CustomerName:   o.CustomerName,
		AnchorDate:     anchor,
		NextActionDate: &next,
		Metadata:       metadataFor(t, o),
	}
	id, err := e.repo.Create(ctx, a)
	if err != nil {
		return fmt.Errorf("create %s automation: %w", t, err)
	}
	*created++
	logger.Info("automation created",
		"automation_id", id, "type", string(t), "order_number", o.OrderNumber,
		"next_action", next.Format("2006-01-02"))
	return nil
}

// metadataFor snapshots the order fields reminders personalize with.
func metadataFor(t domain.AutomationType, o Order) map[string]string {
	m := map[string]string{
		"customer_name": o.CustomerName,
		"order_number":  o.OrderNumber,
		"order_date":    o.OrderDate.Format("2006-01-02"),
	}
	if o.Company != "" {
		m["company_name"] = o.Company
	}
	switch t {
	case domain.AutomationQuoteFollowup:
		m["quote_number"] = o.OrderNumber
		m["quote_total"] = strconv.FormatFloat(o.Total, 'f', 2, 64)
	case domain.AutomationCODFollowup:
		m["invoice_number"] = o.InvoiceNumber
		m["amount_due"] = strconv.FormatFloat(o.outstanding(), 'f', 2, 64)
		if o.InvoiceDate != nil {
			m["invoice_date"] = o.InvoiceDate.Format("2006-01-02")
		}
	}
	return m
}

// retirementReason returns why an automation should stop, or "" to keep it.
func retirementReason(t domain.AutomationType, o Order) string {
	if o.isCancelled() {
		return domain.ReasonOrderCancelled
	}
	switch t {
	case domain.AutomationQuoteFollowup:
		if !o.isQuote() {
			return domain.ReasonOrderConfirmed
		}
	case domain.AutomationCODFollowup:
		if o.outstanding() <= 0 {
			return domain.ReasonPaymentReceived
		}
	}
	return ""
}

// retiredStatus maps a reason code to the terminal status it implies.
// Cancellation is the only reason that marks the automation cancelled.
func retiredStatus(reason string) domain.AutomationStatus {
	if reason == domain.ReasonOrderCancelled {
		return domain.AutomationCancelled
	}
	return domain.AutomationCompleted
}

// ProcessDue sends every due reminder, bounded by MaxPerRun. Each reminder is
// carried by a dedicated one-off campaign with a single queued email, driven
// through the regular batch processor so counters, events and step logs flow
// the same way segment sends do. A failed item keeps its next_action_date.
func (e *Engine) ProcessDue(ctx context.Context, tenantID string) (*ProcessResult, error) {
	now := e.now()
	due, err := e.repo.ListDue(ctx, tenantID, now, e.cfg.MaxPerRun)
	if err != nil {
		return nil, fmt.Errorf("list due automations: %w", err)
	}

	result := &ProcessResult{Due: len(due)}
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reminder, err := e.processOne(ctx, tenantID, a, now, result)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{ID: a.ID, OrderID: a.OrderID, Message: err.Error()})
			logger.Error("reminder failed",
				"automation_id", a.ID, "order_number", a.OrderNumber, "error", err.Error())
			continue
		}
		if reminder != nil {
			result.Sent++
			result.Reminders = append(result.Reminders, *reminder)
		}
	}
	return result, nil
}

func (e *Engine) processOne(ctx context.Context, tenantID string, a domain.OrderAutomation, now time.Time, result *ProcessResult) (*SentReminder, error) {
	templateName := TemplateNameFor(a.Type, a.ReminderCount, e.cfg.QuoteMaxReminders)
	if templateName == "" {
		if err := e.repo.Retire(ctx, a.ID, domain.AutomationCompleted, domain.ReasonMaxReminders); err != nil {
			return nil, fmt.Errorf("retire exhausted automation: %w", err)
		}
		result.Retired++
		return nil, nil
	}

	tmpl, err := e.templates.GetByName(ctx, tenantID, templateName)
	if err != nil {
		return nil, fmt.Errorf("resolve template %q: %w", templateName, err)
	}

	campaign := &domain.Campaign{
		TenantID:    tenantID,
		TemplateID:  &tmpl.ID,
		Name:        fmt.Sprintf("%s %s", templateName, a.OrderNumber),
		Status:      domain.CampaignSending,
		SendDelayMS: e.cfg.SendDelayMS,
		Source:      "automation",
	}
	campaignID, err := e.campaigns.Create(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("create reminder campaign: %w", err)
	}

	personalization := make(map[string]string, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		personalization[k] = v
	}
	personalization["reminder_count"] = strconv.Itoa(a.ReminderCount + 1)

	if _, err := e.emails.Create(ctx, &domain.OutreachEmail{
		CampaignID:      campaignID,
		RecipientEmail:  a.CustomerEmail,
		RecipientName:   a.CustomerName,
		Personalization: personalization,
		Status:          domain.EmailPending,
	}); err != nil {
		return nil, fmt.Errorf("enqueue reminder email: %w", err)
	}

	batch, err := e.batch.ProcessBatch(ctx, campaignID, 1)
	if err != nil {
		return nil, fmt.Errorf("send reminder: %w", err)
	}
	if batch.Failed > 0 {
		return nil, fmt.Errorf("send reminder: delivery failed")
	}

	newCount := a.ReminderCount + 1
	next := NextActionAt(a.Type, a.AnchorDate, newCount, e.cfg.QuoteMaxReminders, now)
	if err := e.repo.Advance(ctx, a.ID, newCount, next, campaignID); err != nil {
		return nil, fmt.Errorf("advance automation: %w", err)
	}
	if next == nil {
		if err := e.repo.Retire(ctx, a.ID, domain.AutomationCompleted, domain.ReasonMaxReminders); err != nil {
			return nil, fmt.Errorf("retire completed sequence: %w", err)
		}
		result.Retired++
	}

	logger.Info("reminder sent",
		"automation_id", a.ID, "order_number", a.OrderNumber,
		"template", templateName, "reminder_count", newCount)
	return &SentReminder{
		AutomationID: a.ID,
		OrderNumber:  a.OrderNumber,
		Template:     templateName,
		CampaignID:   campaignID,
	}, nil
}
