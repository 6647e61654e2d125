package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/httputil"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/resend"
	"github.com/mact/ops-server/internal/service/outreach"
)

// settings key holding the optional address replies are forwarded to.
const replyForwardKey = "reply_forward_address"

// ResendWebhook ingests provider events: delivery-state transitions advance
// the matching email and bump campaign counters; inbound messages are
// matched to a prior send and recorded as replies. Events we can't match
// are acknowledged anyway so the provider stops retrying.
func (h *Handlers) ResendWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}
	if err := resend.VerifySignature(h.cfg.WebhookSecret, r.Header, body); err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := resend.ParseWebhook(body)
	if err != nil {
		httputil.BadRequest(w, "invalid payload")
		return
	}

	ctx := r.Context()
	switch {
	case event.Type == "email.received":
		h.handleInboundReply(w, r, event)
		return
	default:
		status, ok := event.EmailStatus()
		if !ok {
			logger.Debug("ignoring webhook event", "event_type", event.Type)
			httputil.OK(w, map[string]bool{"received": true})
			return
		}

		email, err := h.deps.Emails.AdvanceStatusByProviderMsgID(ctx, event.Data.EmailID, status)
		if errors.Is(err, outreach.ErrNotFound) {
			// Not one of ours (or already past this state); ack and move on.
			httputil.OK(w, map[string]bool{"received": true})
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if counter := event.CounterName(); counter != "" {
			if err := h.deps.Campaigns.IncrementCounter(ctx, email.CampaignID, counter, 1); err != nil {
				logger.Warn("webhook counter bump failed", "campaign_id", email.CampaignID, "counter", counter, "error", err.Error())
			}
		}
		h.appendWebhookEvent(r, email, event.Type, "")
		httputil.OK(w, map[string]bool{"received": true})
	}
}

// handleInboundReply matches an inbound message to the most recent email we
// sent to that address and records the reply.
func (h *Handlers) handleInboundReply(w http.ResponseWriter, r *http.Request, event *resend.WebhookEvent) {
	ctx := r.Context()

	email, err := h.deps.Emails.FindRecentSentByRecipient(ctx, event.Data.From)
	if errors.Is(err, outreach.ErrNotFound) {
		httputil.OK(w, map[string]bool{"received": true})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if _, err := h.deps.Emails.AdvanceStatusByProviderMsgID(ctx, email.ProviderMsgID, domain.EmailReplied); err != nil && !errors.Is(err, outreach.ErrNotFound) {
		writeServiceError(w, err)
		return
	}
	if err := h.deps.Campaigns.IncrementCounter(ctx, email.CampaignID, "reply_count", 1); err != nil {
		logger.Warn("reply counter bump failed", "campaign_id", email.CampaignID, "error", err.Error())
	}
	h.appendWebhookEvent(r, email, "replied", event.Data.Subject)
	h.forwardReply(r, event)

	httputil.OK(w, map[string]bool{"received": true})
}

// forwardReply notifies the configured forward address, when one is set and
// a provider is wired. Best effort.
func (h *Handlers) forwardReply(r *http.Request, event *resend.WebhookEvent) {
	if h.deps.Provider == nil {
		return
	}
	ctx := r.Context()
	forward, err := h.deps.Settings.Get(ctx, tenantID(r), replyForwardKey)
	if err != nil || forward == "" {
		return
	}

	_, err = h.deps.Provider.Send(ctx, &outreach.Message{
		From:    event.FirstRecipient(),
		To:      forward,
		Subject: "Fwd: " + event.Data.Subject,
		Text:    fmt.Sprintf("Reply received from %s.\nSubject: %s\n\nView the conversation in the dashboard.", event.Data.From, event.Data.Subject),
		HTML:    fmt.Sprintf("<p>Reply received from %s.</p><p>Subject: %s</p><p>View the conversation in the dashboard.</p>", event.Data.From, event.Data.Subject),
	})
	if err != nil {
		logger.Warn("reply forward failed", "error", err.Error())
	}
}

func (h *Handlers) appendWebhookEvent(r *http.Request, email *domain.OutreachEmail, eventType, detail string) {
	err := h.deps.Events.Append(r.Context(), &domain.EmailEvent{
		EmailID:    email.ID,
		CampaignID: email.CampaignID,
		EventType:  eventType,
		Detail:     detail,
	})
	if err != nil {
		logger.Warn("webhook event append failed", "email_id", email.ID, "error", err.Error())
	}
}
