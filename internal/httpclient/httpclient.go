// Package httpclient provides the shared HTTP plumbing for all upstream
// data clients: retrying transport with exponential backoff, per-client
// timeouts, rate limiting and uniform error categorization.
package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/capmatch/marketdata/internal/errors"
)

// UserAgent identifies this service to upstream APIs.
const UserAgent = "marketdata-go https://github.com/capmatch/marketdata"

// leveledSlog adapts slog for retryablehttp. Intermediate retry failures
// are logged at WARN, not ERROR, since the request may still succeed.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// RetryPolicy retries connection errors, 5xx responses and 429
// rate-limit responses. All other 4xx responses fail immediately so
// malformed queries are surfaced instead of hammered.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Config controls the retry and rate-limit behavior of a Client.
type Config struct {
	Component    string        // error component and logger attribute
	Timeout      time.Duration // per-request timeout including retries
	MaxRetries   int           // attempts beyond the first
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second, 0 disables limiting
	RateBurst    int
}

// Client wraps an http.Client whose transport retries transient upstream
// failures, plus an optional token-bucket limiter shared by all requests
// through this client.
type Client struct {
	httpClient *http.Client
	inner      *http.Client // transport-level client the retry layer drives; tests hook mocks here
	limiter    *rate.Limiter
	component  string
	logger     *slog.Logger
}

// New builds a Client from the given config.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Component == "" {
		cfg.Component = errors.ComponentUnknown
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = RetryPolicy
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})

	client := retryClient.StandardClient()
	client.Timeout = cfg.Timeout

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		httpClient: client,
		inner:      retryClient.HTTPClient,
		limiter:    limiter,
		component:  cfg.Component,
		logger:     logger,
	}
}

// Inner exposes the transport-level client so tests can install a mock
// transport without disabling the retry layer.
func (c *Client) Inner() *http.Client {
	return c.inner
}

// GetJSON performs a GET request and unmarshals the JSON response into
// result. Retries happen inside the transport; the error returned here is
// already categorized and final.
func (c *Client) GetJSON(ctx context.Context, rawURL string, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.categorizeTransport(err, rawURL)
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", MaskSecrets(rawURL)).
			Component(c.component).
			Build()
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upstream request failed",
			"url", MaskSecrets(rawURL),
			"error", err)
		return c.categorizeTransport(err, rawURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", MaskSecrets(rawURL)).
			Context("status_code", resp.StatusCode).
			Component(c.component).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		c.logger.Warn("upstream returned non-OK status",
			"url", MaskSecrets(rawURL),
			"status_code", resp.StatusCode,
			"response_preview", preview)
		return errors.Newf("upstream returned status %d", resp.StatusCode).
			Category(categoryForStatus(resp.StatusCode)).
			Context("url", MaskSecrets(rawURL)).
			Context("status_code", resp.StatusCode).
			Component(c.component).
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			preview := string(body)
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			c.logger.Error("failed to parse upstream response",
				"url", MaskSecrets(rawURL),
				"response_size", len(body),
				"response_preview", preview,
				"error", err)
			return errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryDataIntegrity).
				Context("url", MaskSecrets(rawURL)).
				Context("response_size", len(body)).
				Component(c.component).
				Build()
		}
	}

	c.logger.Debug("upstream request succeeded",
		"url", MaskSecrets(rawURL),
		"duration_ms", time.Since(start).Milliseconds(),
		"response_size", len(body))

	return nil
}

// categorizeTransport maps transport-level failures onto error categories.
// Context cancellation and deadline expiry are timeouts; everything else is
// a network fault.
func (c *Client) categorizeTransport(err error, rawURL string) error {
	category := errors.CategoryNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		category = errors.CategoryTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		category = errors.CategoryTimeout
	}
	return errors.Newf("upstream request failed: %w", err).
		Category(category).
		Context("url", MaskSecrets(rawURL)).
		Component(c.component).
		Build()
}

// categoryForStatus determines the appropriate error category based on
// HTTP status code.
func categoryForStatus(statusCode int) errors.ErrorCategory {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return errors.CategoryConfiguration
	case statusCode == http.StatusTooManyRequests:
		return errors.CategoryLimit
	case statusCode == http.StatusNotFound:
		return errors.CategoryNotFound
	case statusCode == http.StatusGatewayTimeout:
		return errors.CategoryTimeout
	case statusCode >= 500:
		return errors.CategoryNetwork
	default:
		return errors.CategoryValidation
	}
}

// secretParams are query parameters whose values never reach the logs.
var secretParams = []string{"key", "apikey", "apiKey", "wsapikey"}

// MaskSecrets replaces API-key query parameter values in a URL with "***".
// Unparseable URLs are returned unchanged; they carry no extracted secrets.
func MaskSecrets(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	masked := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "***")
			masked = true
		}
	}
	if !masked {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
