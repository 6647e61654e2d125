package cin7

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/service/outreach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecentOrdersPaginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "macuser", user)
		assert.Equal(t, "secret", key)

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		w.Header().Set("Content-Type", "application/json")
		if page == "1" {
			// a full page forces a second fetch
			fmt.Fprint(w, `[
				{"id":1,"reference":"SO-1","stage":"ESTIMATED","email":"a@example.com",
				 "firstName":"Ann","lastName":"Lee","createdDate":"2024-01-01T00:00:00Z","total":100},
				{"id":2,"reference":"SO-2","stage":"COMPLETED","paymentTerms":"COD",
				 "email":"b@example.com","invoiceNumber":42,
				 "createdDate":"2024-01-02T00:00:00Z","invoiceDate":"2024-01-03T00:00:00Z",
				 "total":200,"paymentTotal":50}
			]`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(config.Cin7Config{
		BaseURL: srv.URL, Username: "macuser", APIKey: "secret",
		PageSize: 2, TimeoutSeconds: 5, Enabled: true,
	})

	orders, err := c.ListRecentOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, orders, 2)

	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, "Ann Lee", orders[0].CustomerName)
	assert.Equal(t, "ESTIMATED", orders[0].Status)

	assert.Equal(t, "SO-2", orders[1].OrderNumber)
	assert.Equal(t, "42", orders[1].InvoiceNumber)
	require.NotNil(t, orders[1].InvoiceDate)
	assert.Equal(t, 150.0, orders[1].Total-orders[1].AmountPaid)
}

func TestListRecentOrdersDisabled(t *testing.T) {
	c := NewClient(config.Cin7Config{Enabled: false, TimeoutSeconds: 5})
	_, err := c.ListRecentOrders(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, outreach.ErrNotConnected))
}

func TestListRecentOrdersAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.Cin7Config{BaseURL: srv.URL, TimeoutSeconds: 5, Enabled: true, PageSize: 10})
	_, err := c.ListRecentOrders(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, outreach.ErrNotConnected))
}
