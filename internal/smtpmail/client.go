// Package smtpmail implements a delivery provider over a plain SMTP relay,
// for self-hosted deployments without a transactional-email account.
package smtpmail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	mail "gopkg.in/gomail.v2"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/service/outreach"
)

// dialSender matches gomail's Dialer so tests can stub the connection.
type dialSender interface {
	DialAndSend(m ...*mail.Message) error
}

// Client delivers messages through an SMTP relay.
type Client struct {
	dialer dialSender
	host   string
}

// NewClient creates an SMTP delivery provider.
func NewClient(cfg config.SMTPConfig) *Client {
	return &Client{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		host:   cfg.Host,
	}
}

// Name identifies the provider in logs and step records.
func (c *Client) Name() string { return "smtp" }

// Send delivers one message. SMTP has no provider-assigned id, so a local
// message id is generated for tracking.
func (c *Client) Send(ctx context.Context, msg *outreach.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := mail.NewMessage()
	if msg.FromName != "" {
		m.SetAddressHeader("From", msg.From, msg.FromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	for name, value := range msg.Headers {
		m.SetHeader(name, value)
	}
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	msgID := "smtp-" + uuid.NewString()
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", msgID, c.host))

	if err := c.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("%w: smtp send: %v", outreach.ErrProvider, err)
	}
	return msgID, nil
}
