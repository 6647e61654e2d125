package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/httputil"
	"github.com/mact/ops-server/internal/pkg/logger"
)

type recipientRequest struct {
	Email           string            `json:"email" validate:"required,email"`
	Name            string            `json:"name"`
	Personalization map[string]string `json:"personalization"`
}

type createCampaignRequest struct {
	Name        string             `json:"name" validate:"required"`
	TemplateID  string             `json:"template_id" validate:"required"`
	FromName    string             `json:"from_name"`
	FromEmail   string             `json:"from_email" validate:"omitempty,email"`
	DryRun      bool               `json:"dry_run"`
	SendDelayMS int                `json:"send_delay_ms" validate:"gte=0"`
	Signature   string             `json:"signature"`
	Recipients  []recipientRequest `json:"recipients" validate:"required,min=1,dive"`
}

// ListCampaigns returns a page of campaigns, newest first.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)
	campaigns, total, err := h.deps.Campaigns.List(r.Context(), tenantID(r), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns, "total": total})
}

// GetCampaign returns one campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := h.deps.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, campaign)
}

// CreateCampaign creates a draft campaign and enqueues its recipients.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := h.deps.Templates.Get(ctx, req.TemplateID); err != nil {
		writeServiceError(w, err)
		return
	}

	campaign := &domain.Campaign{
		TenantID:    tenantID(r),
		TemplateID:  &req.TemplateID,
		Name:        req.Name,
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		Status:      domain.CampaignDraft,
		SendDelayMS: req.SendDelayMS,
		DryRun:      req.DryRun,
		Signature:   req.Signature,
		Source:      "segment",
	}
	id, err := h.deps.Campaigns.Create(ctx, campaign)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	for _, rec := range req.Recipients {
		_, err := h.deps.Emails.Create(ctx, &domain.OutreachEmail{
			CampaignID:      id,
			RecipientEmail:  rec.Email,
			RecipientName:   rec.Name,
			Personalization: rec.Personalization,
			Status:          domain.EmailPending,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	logger.Info("campaign created", "campaign_id", id, "recipients", len(req.Recipients), "dry_run", req.DryRun)
	campaign.ID = id
	httputil.Created(w, campaign)
}

// SendBatch moves the campaign into sending if needed and processes one
// bounded batch. Clients poll it until completed.
func (h *Handlers) SendBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	campaign, err := h.deps.Campaigns.Get(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if campaign.IsTerminal() {
		httputil.BadRequest(w, "campaign is "+string(campaign.Status))
		return
	}
	if campaign.Status == domain.CampaignPaused {
		httputil.BadRequest(w, "campaign is paused")
		return
	}
	if campaign.Status == domain.CampaignDraft {
		if err := h.deps.Campaigns.UpdateStatus(ctx, id, domain.CampaignSending); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	batchSize := h.cfg.DefaultBatchSize
	if v := r.URL.Query().Get("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "batch_size must be a positive integer")
			return
		}
		batchSize = n
	}

	result, err := h.deps.Batch.ProcessBatch(ctx, id, batchSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// PauseCampaign stops further sends. The batch processor observes the new
// status before each individual email.
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, domain.CampaignPaused, domain.CampaignSending)
}

// ResumeCampaign puts a paused campaign back into sending.
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, domain.CampaignSending, domain.CampaignPaused)
}

// CancelCampaign terminates a non-terminal campaign.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, domain.CampaignCancelled,
		domain.CampaignDraft, domain.CampaignSending, domain.CampaignPaused)
}

func (h *Handlers) transitionCampaign(w http.ResponseWriter, r *http.Request,
	to domain.CampaignStatus, allowedFrom ...domain.CampaignStatus) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	campaign, err := h.deps.Campaigns.Get(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	allowed := false
	for _, from := range allowedFrom {
		if campaign.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		httputil.BadRequest(w, "cannot move campaign from "+string(campaign.Status)+" to "+string(to))
		return
	}
	if err := h.deps.Campaigns.UpdateStatus(ctx, id, to); err != nil {
		writeServiceError(w, err)
		return
	}
	logger.Info("campaign status changed", "campaign_id", id, "status", string(to))
	campaign.Status = to
	httputil.OK(w, campaign)
}

// SendEmail delivers a single queued email immediately.
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Sender.SendEmail(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	email, err := h.deps.Emails.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, email)
}

// CampaignLogs returns recent step logs for a campaign.
func (h *Handlers) CampaignLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Logs.ListByCampaign(r.Context(), chi.URLParam(r, "id"), 200)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"logs": entries})
}

// CampaignEvents returns recent lifecycle events for a campaign.
func (h *Handlers) CampaignEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.Events.ListByCampaign(r.Context(), chi.URLParam(r, "id"), 200)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": events})
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
