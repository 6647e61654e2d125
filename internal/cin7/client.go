// Package cin7 implements the ERP client the order automations read from.
package cin7

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/pkg/httpretry"
	"github.com/mact/ops-server/internal/service/automation"
	"github.com/mact/ops-server/internal/service/outreach"
)

// Client is a Cin7 API client.
type Client struct {
	baseURL    string
	username   string
	apiKey     string
	pageSize   int
	enabled    bool
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Cin7 API client.
func NewClient(cfg config.Cin7Config) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		enabled:  cfg.Enabled,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// SalesOrder is one Cin7 sales order row, as returned by the v1 API.
type SalesOrder struct {
	ID            int       `json:"id"`
	Reference     string    `json:"reference"`
	Stage         string    `json:"stage"`
	PaymentTerms  string    `json:"paymentTerms"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Company       string    `json:"company"`
	CreatedDate   time.Time `json:"createdDate"`
	InvoiceDate   *time.Time `json:"invoiceDate"`
	InvoiceNumber int       `json:"invoiceNumber"`
	Total         float64   `json:"total"`
	AmountPaid    float64   `json:"paymentTotal"`
}

func (o SalesOrder) toOrder() automation.Order {
	name := o.FirstName
	if o.LastName != "" {
		if name != "" {
			name += " "
		}
		name += o.LastName
	}
	out := automation.Order{
		ID:            strconv.Itoa(o.ID),
		OrderNumber:   o.Reference,
		Status:        o.Stage,
		PaymentTerms:  o.PaymentTerms,
		CustomerEmail: o.Email,
		CustomerName:  name,
		Company:       o.Company,
		OrderDate:     o.CreatedDate,
		InvoiceDate:   o.InvoiceDate,
		Total:         o.Total,
		AmountPaid:    o.AmountPaid,
	}
	if o.InvoiceNumber != 0 {
		out.InvoiceNumber = strconv.Itoa(o.InvoiceNumber)
	}
	return out
}

// ListRecentOrders fetches the recent sales-order window, walking pages until
// a short page signals the end. Satisfies automation.OrderSource.
func (c *Client) ListRecentOrders(ctx context.Context) ([]automation.Order, error) {
	if !c.enabled {
		return nil, fmt.Errorf("%w: cin7", outreach.ErrNotConnected)
	}

	pageSize := c.pageSize
	if pageSize <= 0 {
		pageSize = 250
	}

	var out []automation.Order
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("rows", strconv.Itoa(pageSize))
		params.Set("order", "createddate DESC")

		var rows []SalesOrder
		if err := c.get(ctx, "/v1/SalesOrders", params, &rows); err != nil {
			return nil, fmt.Errorf("list sales orders page %d: %w", page, err)
		}
		for _, row := range rows {
			out = append(out, row.toOrder())
		}
		if len(rows) < pageSize {
			return out, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
		return fmt.Errorf("%w: cin7 status %d", outreach.ErrNotConnected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cin7 API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
