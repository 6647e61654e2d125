// Package api exposes the REST surface: campaigns, templates, settings,
// skills, automations, dashboard aggregates, the dormant-sync SSE stream,
// the inbound email webhook, and the chat widget endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/mact/ops-server/internal/chat"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/automation"
	"github.com/mact/ops-server/internal/service/dormant"
	"github.com/mact/ops-server/internal/service/outreach"

	"github.com/mact/ops-server/internal/pkg/httputil"
)

// AutomationEngine runs the order-automation scan and process passes.
type AutomationEngine interface {
	Scan(ctx context.Context, tenantID string) (*automation.ScanResult, error)
	ProcessDue(ctx context.Context, tenantID string) (*automation.ProcessResult, error)
}

// DormantSyncer runs one dormant-customer sync, reporting progress through
// the emit callback.
type DormantSyncer interface {
	Run(ctx context.Context, emit dormant.EmitFunc) (*dormant.Summary, error)
}

// ChatService answers chat-widget messages.
type ChatService interface {
	Chat(ctx context.Context, tenantID string, req chat.Request) (*chat.Reply, error)
}

// EmailSender delivers one queued email.
type EmailSender interface {
	SendEmail(ctx context.Context, emailID string) error
}

// SpendSource reports ad spend for the dashboard.
type SpendSource interface {
	SpendLastDays(ctx context.Context, days int) (float64, error)
}

// RevenueSource reports store revenue for the dashboard.
type RevenueSource interface {
	RevenueLastDays(ctx context.Context, days int) (float64, error)
}

// StatsSource aggregates tenant-wide outreach counts.
type StatsSource interface {
	DashboardStats(ctx context.Context, tenantID string) (*domain.DashboardStats, error)
}

// Deps collects everything the handlers touch. Optional integrations
// (Spend, Revenue, Provider, Cache) may be nil.
type Deps struct {
	Campaigns outreach.CampaignRepository
	Emails    outreach.EmailRepository
	Templates outreach.TemplateRepository
	Settings  outreach.SettingsRepository
	Events    outreach.EventRepository
	Logs      outreach.LogRepository

	Automations automation.Repository
	Skills      chat.SkillRepository

	Sender EmailSender
	Batch  automation.BatchRunner
	Engine AutomationEngine

	Dormant DormantSyncer
	Chat    ChatService

	Stats    StatsSource
	Spend    SpendSource
	Revenue  RevenueSource
	Provider outreach.Provider

	Cache *redis.Client
}

// Config tunes handler behavior.
type Config struct {
	DefaultBatchSize int
	WebhookSecret    string
	CacheTTL         time.Duration
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	deps     Deps
	cfg      Config
	validate *validator.Validate
}

// NewHandlers creates the handler set.
func NewHandlers(deps Deps, cfg Config) *Handlers {
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	return &Handlers{
		deps:     deps,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// tenantID resolves the tenant from the X-Tenant-ID header.
func tenantID(r *http.Request) string {
	if t := r.Header.Get("X-Tenant-ID"); t != "" {
		return t
	}
	return "default"
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Unrecognized errors become a logged generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outreach.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, outreach.ErrNotFound):
		httputil.NotFound(w, "not found")
	case errors.Is(err, outreach.ErrNotConnected):
		httputil.Error(w, http.StatusServiceUnavailable, "integration not connected")
	case errors.Is(err, outreach.ErrProvider):
		httputil.Error(w, http.StatusBadGateway, "delivery provider error")
	default:
		httputil.InternalError(w, err)
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
