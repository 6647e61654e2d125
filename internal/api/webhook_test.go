package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mact/ops-server/internal/domain"
)

func seedSentEmail(env *testEnv, recipient, providerMsgID string) string {
	sentAt := time.Now().Add(-time.Hour)
	id, _ := emailView{env.store}.Create(nil, &domain.OutreachEmail{
		CampaignID:     "camp-1",
		RecipientEmail: recipient,
		Status:         domain.EmailSent,
		ProviderMsgID:  providerMsgID,
		SentAt:         &sentAt,
	})
	env.store.campaigns["camp-1"] = &domain.Campaign{ID: "camp-1", TenantID: "default", Status: domain.CampaignSending}
	return id
}

func TestWebhookDeliveredEvent(t *testing.T) {
	env := newTestEnv(t)
	id := seedSentEmail(env, "cust@example.com", "msg-1")

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.delivered",
		"data": map[string]string{"email_id": "msg-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.EmailDelivered, env.store.emails[id].Status)
	assert.Equal(t, 1, env.store.counters["camp-1/delivered_count"])
	require.Len(t, env.store.events, 1)
	assert.Equal(t, "email.delivered", env.store.events[0].EventType)
}

func TestWebhookUnknownMessageAcked(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.opened",
		"data": map[string]string{"email_id": "not-ours"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.events)
}

func TestWebhookIgnoredEventType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.sent",
		"data": map[string]string{"email_id": "msg-1"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookInboundReply(t *testing.T) {
	env := newTestEnv(t)
	id := seedSentEmail(env, "cust@example.com", "msg-1")
	require.NoError(t, settingsView{env.store}.Set(nil, "default", replyForwardKey, "ops@mact.au"))

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.received",
		"data": map[string]any{
			"from":    "cust@example.com",
			"to":      []string{"hello@mact.au", "sales@mact.au"},
			"subject": "Re: Your quote",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.EmailReplied, env.store.emails[id].Status)
	assert.Equal(t, 1, env.store.counters["camp-1/reply_count"])

	require.Len(t, env.provider.sent, 1)
	fwd := env.provider.sent[0]
	assert.Equal(t, "hello@mact.au", fwd.From)
	assert.Equal(t, "ops@mact.au", fwd.To)
	assert.Equal(t, "Fwd: Re: Your quote", fwd.Subject)
	assert.Contains(t, fwd.Text, "cust@example.com")
}

func TestWebhookInboundReplyNoMatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.received",
		"data": map[string]string{"from": "stranger@example.com"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.provider.sent)
}

func TestWebhookInboundReplyNoForwardConfigured(t *testing.T) {
	env := newTestEnv(t)
	seedSentEmail(env, "cust@example.com", "msg-1")

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.received",
		"data": map[string]string{"from": "cust@example.com", "subject": "Re: hi"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.store.counters["camp-1/reply_count"])
	assert.Empty(t, env.provider.sent)
}

func TestWebhookSignatureRequired(t *testing.T) {
	env := newTestEnv(t)
	env.handlers.cfg.WebhookSecret = "whsec_dGVzdC1rZXk="

	rec := env.do(t, http.MethodPost, "/webhooks/resend", map[string]any{
		"type": "email.delivered",
		"data": map[string]string{"email_id": "msg-1"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/webhooks/resend", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
