package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout   = 30 * time.Second
	externalIDReport = "/{platform}/profile/{externalId}/report"
	usernameReport   = "/{platform}/profile/report"
)

// Client talks to the social analytics provider.
type Client struct {
	http *resty.Client
}

var _ analytics.Gateway = (*Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// reportResponse is the provider's envelope for profile reports.
type reportResponse struct {
	Error   bool              `json:"error"`
	Profile analytics.Payload `json:"profile"`
}

type errorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient builds a client. Retries stay disabled: a retried 429 would
// amplify the provider's rate limit.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "dashboard-analytics").
		SetRetryCount(0)

	return &Client{http: client}
}

// FetchByExternalID requests the report for a provider-issued account id.
func (c *Client) FetchByExternalID(ctx context.Context, externalID string, platform analytics.Platform) (analytics.Payload, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"platform":   platform.String(),
			"externalId": externalID,
		})

	return c.report(req, externalIDReport)
}

// FetchByUsername requests the report for a platform username.
func (c *Client) FetchByUsername(ctx context.Context, username string, platform analytics.Platform) (analytics.Payload, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("platform", platform.String()).
		SetQueryParam("username", username)

	return c.report(req, usernameReport)
}

func (c *Client) report(req *resty.Request, path string) (analytics.Payload, error) {
	resp, err := req.
		SetResult(&reportResponse{}).
		SetError(&errorResponse{}).
		Get(path)
	if err != nil {
		return nil, &analytics.ProviderError{Message: err.Error()}
	}

	if resp.IsError() {
		return nil, &analytics.ProviderError{
			Status:     resp.StatusCode(),
			Message:    errorMessage(resp),
			RetryAfter: retryAfter(resp.Header().Get("Retry-After")),
		}
	}

	result, ok := resp.Result().(*reportResponse)
	if !ok || result.Error || result.Profile.IsEmpty() {
		return nil, &analytics.ProviderError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("unusable report from provider (status %d)", resp.StatusCode()),
		}
	}

	return result.Profile, nil
}

func errorMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*errorResponse); ok && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	if body := strings.TrimSpace(resp.String()); body != "" {
		return body
	}
	return resp.Status()
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
