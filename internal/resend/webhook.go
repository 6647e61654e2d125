package resend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mact/ops-server/internal/domain"
)

// WebhookEvent is one decoded Resend delivery notification.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string   `json:"email_id"`
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	} `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseWebhook decodes a webhook payload body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decoding webhook payload: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("webhook payload missing type")
	}
	return &ev, nil
}

// FirstRecipient returns the first "to" address on the event, or "" when
// the payload carried none.
func (ev *WebhookEvent) FirstRecipient() string {
	if len(ev.Data.To) == 0 {
		return ""
	}
	return ev.Data.To[0]
}

// EmailStatus maps a Resend event type onto the email lifecycle, with ok
// false for event types that carry no status transition.
func (ev *WebhookEvent) EmailStatus() (domain.EmailStatus, bool) {
	switch ev.Type {
	case "email.delivered":
		return domain.EmailDelivered, true
	case "email.opened":
		return domain.EmailOpened, true
	case "email.clicked":
		return domain.EmailClicked, true
	case "email.bounced", "email.complained":
		return domain.EmailBounced, true
	default:
		return "", false
	}
}

// CounterName returns the campaign counter the event advances, or "".
func (ev *WebhookEvent) CounterName() string {
	switch ev.Type {
	case "email.delivered":
		return "delivered_count"
	case "email.opened":
		return "open_count"
	case "email.clicked":
		return "click_count"
	case "email.bounced", "email.complained":
		return "bounce_count"
	default:
		return ""
	}
}

// VerifySignature checks the svix-style webhook signature Resend sends.
// The signed content is "<id>.<timestamp>.<body>" and the secret is the
// base64 payload after the "whsec_" prefix. An empty configured secret
// disables verification.
func VerifySignature(secret string, headers http.Header, body []byte) error {
	if secret == "" {
		return nil
	}

	msgID := headers.Get("svix-id")
	timestamp := headers.Get("svix-timestamp")
	signatures := headers.Get("svix-signature")
	if msgID == "" || timestamp == "" || signatures == "" {
		return fmt.Errorf("missing webhook signature headers")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("decoding webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.%s", msgID, timestamp, body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// The header may carry several space-separated "v1,<sig>" entries.
	for _, part := range strings.Fields(signatures) {
		sig := strings.TrimPrefix(part, "v1,")
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("webhook signature mismatch")
}
