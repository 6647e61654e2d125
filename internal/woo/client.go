// Package woo implements the WooCommerce store client used by the
// dormant-customer sync.
package woo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/pkg/httpretry"
	"github.com/mact/ops-server/internal/service/outreach"
)

// Credentials is one WooCommerce REST key pair.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

// CredentialSource supplies store credentials from an external store, letting
// operators rotate keys without a restart.
type CredentialSource interface {
	WooCredentials(ctx context.Context) (Credentials, error)
}

type cachedCredentials struct {
	creds     Credentials
	fetchedAt time.Time
}

// Client is a WooCommerce REST API client. Credentials fetched from the
// source are cached for the configured TTL; the clock is injectable so the
// expiry path is testable.
type Client struct {
	baseURL    string
	static     Credentials
	source     CredentialSource
	ttl        time.Duration
	enabled    bool
	httpClient httpretry.HTTPDoer

	mu     sync.Mutex
	cached *cachedCredentials

	now func() time.Time
}

// NewClient creates a new WooCommerce client. source may be nil, in which
// case the static keys from configuration are used directly.
func NewClient(cfg config.WooConfig, source CredentialSource) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		static:  Credentials{ConsumerKey: cfg.ConsumerKey, ConsumerSecret: cfg.ConsumerSecret},
		source:  source,
		ttl:     cfg.CredentialTTL(),
		enabled: cfg.Enabled,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
		now: time.Now,
	}
}

// credentials returns fresh credentials, hitting the source only when the
// cached pair has aged past the TTL.
func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	if c.source == nil {
		return c.static, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.cached.fetchedAt) < c.ttl {
		return c.cached.creds, nil
	}

	creds, err := c.source.WooCredentials(ctx)
	if err != nil {
		// Serve stale credentials over failing the whole sync.
		if c.cached != nil {
			return c.cached.creds, nil
		}
		return Credentials{}, fmt.Errorf("fetch store credentials: %w", err)
	}
	c.cached = &cachedCredentials{creds: creds, fetchedAt: c.now()}
	return creds, nil
}

// Customer is one WooCommerce customer row.
type Customer struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Time handles WooCommerce timestamps, which omit the timezone suffix.
type Time struct{ time.Time }

func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		return nil
	}
	s = s[1 : len(s)-1]
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized woocommerce timestamp %q", s)
}

// Order is one WooCommerce order, trimmed to what enrichment needs.
type Order struct {
	ID          int    `json:"id"`
	DateCreated Time   `json:"date_created_gmt"`
	Total       string `json:"total"`
	LineItems   []struct {
		Name string `json:"name"`
	} `json:"line_items"`
}

// ListCustomersPage fetches one page of customers, oldest first. An empty
// slice signals the final page.
func (c *Client) ListCustomersPage(ctx context.Context, page, perPage int) ([]Customer, error) {
	if perPage <= 0 {
		perPage = 100
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orderby", "id")
	params.Set("order", "asc")

	var out []Customer
	if err := c.get(ctx, "/wp-json/wc/v3/customers", params, &out); err != nil {
		return nil, fmt.Errorf("list customers page %d: %w", page, err)
	}
	return out, nil
}

// LastOrder returns the customer's most recent order, or outreach.ErrNotFound
// if they never ordered.
func (c *Client) LastOrder(ctx context.Context, customerID int) (*Order, error) {
	params := url.Values{}
	params.Set("customer", strconv.Itoa(customerID))
	params.Set("per_page", "1")
	params.Set("orderby", "date")
	params.Set("order", "desc")

	var orders []Order
	if err := c.get(ctx, "/wp-json/wc/v3/orders", params, &orders); err != nil {
		return nil, fmt.Errorf("last order for customer %d: %w", customerID, err)
	}
	if len(orders) == 0 {
		return nil, outreach.ErrNotFound
	}
	return &orders[0], nil
}

// RevenueLastDays sums order totals over the trailing window, today
// inclusive. Pages through completed orders oldest-first.
func (c *Client) RevenueLastDays(ctx context.Context, days int) (float64, error) {
	if days <= 0 {
		days = 30
	}
	after := c.now().AddDate(0, 0, -(days - 1)).Format("2006-01-02T00:00:00")

	const perPage = 100
	var total float64
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("after", after)
		params.Set("status", "completed")

		var orders []Order
		if err := c.get(ctx, "/wp-json/wc/v3/orders", params, &orders); err != nil {
			return 0, fmt.Errorf("revenue page %d: %w", page, err)
		}
		for _, o := range orders {
			if o.Total == "" {
				continue
			}
			v, err := strconv.ParseFloat(o.Total, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing order %d total %q: %w", o.ID, o.Total, err)
			}
			total += v
		}
		if len(orders) < perPage {
			return total, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	if !c.enabled {
		return fmt.Errorf("%w: woocommerce", outreach.ErrNotConnected)
	}
	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: woocommerce status %d", outreach.ErrNotConnected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("woocommerce API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
