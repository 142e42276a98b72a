package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{BaseURL: server.URL + "/", APIKey: "secret", Timeout: 5 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchByExternalID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/profile/abc123/report", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"error":false,"profile":{"user_id":"abc123","followers":1000,"engagement_rate":0.042}}`)
	})

	payload, err := client.FetchByExternalID(context.Background(), "abc123", analytics.Instagram)
	require.NoError(t, err)

	assert.Equal(t, "abc123", payload.ExternalID())
	assert.Equal(t, 1000.0, payload.Followers())
	assert.Equal(t, 0.042, payload.EngagementRate())
}

func TestFetchByUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tiktok/profile/report", r.URL.Path)
		assert.Equal(t, "alice_tt", r.URL.Query().Get("username"))
		writeJSON(w, http.StatusOK, `{"error":false,"profile":{"user_id":"6789","followers":55}}`)
	})

	payload, err := client.FetchByUsername(context.Background(), "alice_tt", analytics.TikTok)
	require.NoError(t, err)
	assert.Equal(t, "6789", payload.ExternalID())
}

func TestFetchRateLimited(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "120")
		writeJSON(w, http.StatusTooManyRequests, `{"error":true,"code":"rate_limit","message":"too many requests"}`)
	})

	_, err := client.FetchByExternalID(context.Background(), "abc123", analytics.Instagram)
	require.Error(t, err)

	var pe *analytics.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.RateLimited())
	assert.Equal(t, 2*time.Minute, pe.RetryAfter)
	assert.Equal(t, "rate_limit: too many requests", pe.Message)
	assert.Equal(t, 1, calls, "rate limited requests must not be retried")
}

func TestFetchNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":true,"message":"account not found"}`)
	})

	_, err := client.FetchByExternalID(context.Background(), "abc123", analytics.YouTube)

	var pe *analytics.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.InvalidIdentifier())
	assert.Equal(t, "account not found", pe.Message)
}

func TestFetchEmptyProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"error":false,"profile":{}}`)
	})

	_, err := client.FetchByUsername(context.Background(), "alice", analytics.Instagram)

	var pe *analytics.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadGateway, pe.Status)
	assert.False(t, pe.InvalidIdentifier())
	assert.False(t, pe.RateLimited())
}

func TestFetchTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Options{BaseURL: url, APIKey: "secret", Timeout: time.Second})
	_, err := client.FetchByUsername(context.Background(), "alice", analytics.Instagram)

	var pe *analytics.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.Status)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, retryAfter(future), 50*time.Minute)
}
