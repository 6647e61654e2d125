// Package sesmail implements the AWS SES fallback delivery provider.
package sesmail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/service/outreach"
)

// sesAPI is the slice of the SES v2 client Send uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Client is an AWS SES v2 delivery provider.
type Client struct {
	client sesAPI
	region string
}

// NewClient creates a new SES delivery provider.
func NewClient(ctx context.Context, cfg appconfig.SESConfig) (*Client, error) {
	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKey,
		cfg.SecretKey,
		"", // session token (empty for static creds)
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		client: sesv2.NewFromConfig(awsCfg),
		region: cfg.Region,
	}, nil
}

// Name identifies the provider in logs and step records.
func (c *Client) Name() string { return "ses" }

// Send delivers one message and returns the SES message id.
func (c *Client) Send(ctx context.Context, msg *outreach.Message) (string, error) {
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	headers := make([]types.MessageHeader, 0, len(msg.Headers))
	for name, value := range msg.Headers {
		headers = append(headers, types.MessageHeader{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML)},
					Text: &types.Content{Data: aws.String(msg.Text)},
				},
				Headers: headers,
			},
		},
	}

	out, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: ses send: %v", outreach.ErrProvider, err)
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return "", fmt.Errorf("%w: ses returned no message id", outreach.ErrProvider)
	}
	return *out.MessageId, nil
}
