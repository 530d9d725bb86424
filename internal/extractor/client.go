package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/policy/ratelimit"
)

const (
	defaultUserAgent    = "content-harvester/1.0"
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

// ClientConfig controls the shared HTTP harness.
type ClientConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

// Client issues rate-limited GET requests and classifies failures.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
	limiter   *ratelimit.Limiter
	retry     *RetryPolicy
	logger    *zap.Logger
}

// statusError records a non-2xx response.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.url, e.code)
}

// NewClient builds a Client. A nil limiter means unlimited.
func NewClient(cfg ClientConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		limiter:   limiter,
		retry:     NewRetryPolicy(cfg.Retry),
		logger:    logger,
	}
}

// Wait blocks on the rate limiter for sourceType.
func (c *Client) Wait(ctx context.Context, sourceType harvest.SourceType) error {
	if err := c.limiter.Wait(ctx, string(sourceType)); err != nil {
		return harvest.NewExtractError(harvest.KindOf(err), err, "rate limiter for %s", sourceType)
	}
	return nil
}

// Get fetches rawURL and returns the body. Errors are *harvest.ExtractError.
func (c *Client) Get(ctx context.Context, sourceType harvest.SourceType, rawURL string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := c.Wait(ctx, sourceType); err != nil {
			return nil, err
		}
		body, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if !c.retry.ShouldRetry(err, attempt) {
			return nil, classify(err, rawURL)
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Debug("retrying transient fetch failure",
			zap.String("source_type", string(sourceType)),
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := sleep(ctx, backoff); err != nil {
			return nil, classify(err, rawURL)
		}
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, harvest.NewExtractError(harvest.KindUnknown, err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &statusError{code: resp.StatusCode, url: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, harvest.NewExtractError(harvest.KindParseError, nil, "response body exceeds %d bytes", c.maxBody)
	}
	return body, nil
}

// KindForStatus maps an HTTP status code onto an error kind.
func KindForStatus(code int) harvest.ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return harvest.KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return harvest.KindAuthFailed
	case code == http.StatusNotFound || code == http.StatusGone:
		return harvest.KindNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return harvest.KindTimeout
	default:
		return harvest.KindUnknown
	}
}

func classify(err error, rawURL string) error {
	var extractErr *harvest.ExtractError
	if errors.As(err, &extractErr) {
		return extractErr
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return harvest.NewExtractError(KindForStatus(statusErr.code), err, "GET %s returned %d", rawURL, statusErr.code)
	}
	return harvest.NewExtractError(harvest.KindOf(err), err, "GET %s", rawURL)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
