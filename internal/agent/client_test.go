package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecontent/content-review-service/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		Burst:     100,
	}, zerolog.Nop(), nil)

	return client, srv
}

func completionEnvelope(text string) []byte {
	body, _ := json.Marshal(map[string]any{"output": map[string]any{"text": text}})
	return body
}

func TestClientComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody completionRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(completionEnvelope("hello from agent"))
	})

	text, err := client.Complete(context.Background(), "similarity", "app-123", "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello from agent", text)
	assert.Equal(t, "/api/v1/apps/app-123/completion", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "the prompt", gotBody.Input.Prompt)
}

func TestClientCompleteMissingAppID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Complete(context.Background(), "review", "", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
}

func TestClientCompleteNonOKStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"code":"UpstreamError","message":"agent busy"}`))
	})

	_, err := client.Complete(context.Background(), "similarity", "app-123", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)

	var callErr *domain.AgentCallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, http.StatusBadGateway, callErr.StatusCode)
	assert.Contains(t, callErr.RawPayload, "agent busy")
}

func TestClientCompleteMalformedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})

	_, err := client.Complete(context.Background(), "similarity", "app-123", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
}

func TestClientCompleteEmptyOutput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":{"text":""},"message":"quota exceeded"}`))
	})

	_, err := client.Complete(context.Background(), "similarity", "app-123", "prompt")
	require.Error(t, err)

	var callErr *domain.AgentCallError
	require.True(t, errors.As(err, &callErr))
	assert.Contains(t, callErr.Message, "quota exceeded")
}

func TestClientCompleteContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "similarity", "app-123", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAgentCall)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://gateway", APIKey: "k"}, zerolog.Nop(), nil)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}
