package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Pushover API.
	DefaultBaseURL = "https://api.pushover.net/1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimitPerHour caps outbound pushes.
	DefaultRateLimitPerHour = 10
)

// PushoverClient delivers notifications through the Pushover API.
// The client carries no retry logic: a failed send is reported to the
// caller, which owns retry and accounting decisions.
type PushoverClient struct {
	baseURL    string
	apiToken   string
	userToken  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// PushoverOption configures the PushoverClient.
type PushoverOption func(*PushoverClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) PushoverOption {
	return func(c *PushoverClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) PushoverOption {
	return func(c *PushoverClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) PushoverOption {
	return func(c *PushoverClient) {
		c.logger = logger
	}
}

// WithRateLimitPerHour sets a custom hourly push budget.
func WithRateLimitPerHour(perHour int) PushoverOption {
	return func(c *PushoverClient) {
		if perHour > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
		}
	}
}

// NewPushoverClient creates a Pushover client.
func NewPushoverClient(apiToken, userToken string, opts ...PushoverOption) *PushoverClient {
	c := &PushoverClient{
		baseURL:   DefaultBaseURL,
		apiToken:  apiToken,
		userToken: userToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Hour/DefaultRateLimitPerHour), DefaultRateLimitPerHour),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send delivers one notification. The hourly limiter is checked without
// blocking: a throttled send fails fast so the alert stays pending and
// retries on a later cycle instead of stalling the whole invocation.
func (c *PushoverClient) Send(ctx context.Context, notification *interfaces.Notification) error {
	if c.apiToken == "" || c.userToken == "" {
		return fmt.Errorf("pushover tokens not configured")
	}

	if !c.limiter.Allow() {
		return fmt.Errorf("pushover hourly rate limit reached")
	}

	form := url.Values{}
	form.Set("token", c.apiToken)
	form.Set("user", c.userToken)
	form.Set("title", notification.Title)
	form.Set("message", notification.Message)
	form.Set("priority", strconv.Itoa(notification.Priority))
	if notification.URL != "" {
		form.Set("url", notification.URL)
		if notification.URLTitle != "" {
			form.Set("url_title", notification.URLTitle)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages.json", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover returned status %d: %s", resp.StatusCode, string(body))
	}

	if c.logger != nil {
		c.logger.Info().
			Str("title", notification.Title).
			Int("priority", notification.Priority).
			Msg("Push notification delivered")
	}

	return nil
}
