package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/service/outreach"
)

func testLLM(serverURL string) *LLMClient {
	return NewLLMClient(config.LLMConfig{
		Enabled:        true,
		BaseURL:        serverURL,
		APIKey:         "sk-test",
		Model:          "gpt-4o-mini",
		TimeoutSeconds: 5,
	})
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req completionRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Within 2 days."}}]}`))
	}))
	defer server.Close()

	reply, err := testLLM(server.URL).Complete(context.Background(), []Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "When does it ship?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Within 2 days.", reply)
}

func TestCompleteDisabledWithoutKey(t *testing.T) {
	client := NewLLMClient(config.LLMConfig{Enabled: true, APIKey: ""})
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, outreach.ErrNotConnected)
}

func TestCompleteUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testLLM(server.URL).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, outreach.ErrNotConnected)
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"context length exceeded"}}`))
	}))
	defer server.Close()

	_, err := testLLM(server.URL).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, outreach.ErrProvider)
	assert.Contains(t, err.Error(), "context length exceeded")
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := testLLM(server.URL).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, outreach.ErrProvider)
}
