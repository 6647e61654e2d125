// Package googleads reports ad spend for the dashboard. Tokens are refreshed
// through the standard OAuth installed-app flow off the stored refresh token.
package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/service/outreach"
)

const apiVersion = "v16"

// Client queries the Google Ads reporting API.
type Client struct {
	baseURL        string
	customerID     string
	developerToken string
	enabled        bool
	httpClient     *http.Client

	now func() time.Time
}

// NewClient creates a reporting client. The HTTP client carries an OAuth
// transport that refreshes access tokens from the stored refresh token.
func NewClient(cfg config.GoogleAdsConfig) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	source := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = cfg.Timeout()

	return &Client{
		baseURL:        cfg.BaseURL,
		customerID:     cfg.CustomerID,
		developerToken: cfg.DeveloperToken,
		enabled:        cfg.Enabled,
		httpClient:     httpClient,
		now:            time.Now,
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// searchStream returns one chunk per response page; costMicros arrives as a
// quoted int64.
type searchChunk struct {
	Results []struct {
		Metrics struct {
			CostMicros string `json:"costMicros"`
		} `json:"metrics"`
	} `json:"results"`
}

// SpendLastDays returns total ad spend in account currency units over the
// trailing window, today inclusive.
func (c *Client) SpendLastDays(ctx context.Context, days int) (float64, error) {
	if !c.enabled {
		return 0, fmt.Errorf("%w: google ads", outreach.ErrNotConnected)
	}
	if days <= 0 {
		days = 30
	}

	until := c.now()
	since := until.AddDate(0, 0, -(days - 1))
	query := fmt.Sprintf(
		"SELECT metrics.cost_micros FROM customer WHERE segments.date BETWEEN '%s' AND '%s'",
		since.Format("2006-01-02"), until.Format("2006-01-02"))

	body, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/customers/%s/googleAds:searchStream", c.baseURL, apiVersion, c.customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("developer-token", c.developerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return 0, fmt.Errorf("%w: google ads status %d", outreach.ErrNotConnected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: google ads status %d: %s", outreach.ErrProvider, resp.StatusCode, string(data))
	}

	var chunks []searchChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return 0, fmt.Errorf("decoding report: %w", err)
	}

	var micros int64
	for _, chunk := range chunks {
		for _, result := range chunk.Results {
			if result.Metrics.CostMicros == "" {
				continue
			}
			v, err := strconv.ParseInt(result.Metrics.CostMicros, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing cost %q: %w", result.Metrics.CostMicros, err)
			}
			micros += v
		}
	}
	return float64(micros) / 1e6, nil
}
