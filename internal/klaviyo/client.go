// Package klaviyo implements the marketing-platform client the dormant
// customer sync pushes win-back profiles into.
package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/pkg/httpretry"
	"github.com/mact/ops-server/internal/service/outreach"
)

const apiRevision = "2024-02-15"

// Client is a Klaviyo API client.
type Client struct {
	baseURL    string
	apiKey     string
	listID     string
	enabled    bool
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Klaviyo API client.
func NewClient(cfg config.KlaviyoConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		listID:  cfg.ListID,
		enabled: cfg.Enabled,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// Profile is the payload pushed for one dormant customer.
type Profile struct {
	Email      string
	FirstName  string
	LastName   string
	Properties map[string]interface{}
}

type profileRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Email      string                 `json:"email"`
			FirstName  string                 `json:"first_name,omitempty"`
			LastName   string                 `json:"last_name,omitempty"`
			Properties map[string]interface{} `json:"properties,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

type profileResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// UpsertProfile creates or updates a profile and returns its Klaviyo id.
func (c *Client) UpsertProfile(ctx context.Context, p Profile) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("%w: klaviyo", outreach.ErrNotConnected)
	}

	var reqBody profileRequest
	reqBody.Data.Type = "profile"
	reqBody.Data.Attributes.Email = p.Email
	reqBody.Data.Attributes.FirstName = p.FirstName
	reqBody.Data.Attributes.LastName = p.LastName
	reqBody.Data.Attributes.Properties = p.Properties

	body, err := c.do(ctx, http.MethodPost, "/profile-import/", reqBody)
	if err != nil {
		return "", err
	}
	var out profileResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding profile response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: klaviyo returned no profile id", outreach.ErrProvider)
	}
	return out.Data.ID, nil
}

type listRelationship struct {
	Data []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

// AddToList subscribes a profile to the configured win-back list.
func (c *Client) AddToList(ctx context.Context, profileID string) error {
	if !c.enabled {
		return fmt.Errorf("%w: klaviyo", outreach.ErrNotConnected)
	}
	if c.listID == "" {
		return nil
	}

	var reqBody listRelationship
	reqBody.Data = append(reqBody.Data, struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}{Type: "profile", ID: profileID})

	path := fmt.Sprintf("/lists/%s/relationships/profiles/", c.listID)
	_, err := c.do(ctx, http.MethodPost, path, reqBody)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("revision", apiRevision)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: klaviyo status %d", outreach.ErrNotConnected, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: klaviyo status %d: %s", outreach.ErrProvider, resp.StatusCode, string(body))
	}
	return body, nil
}
