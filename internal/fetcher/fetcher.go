// Package fetcher retrieves raw pages from the external stock-data source
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultUserAgent    = "Mozilla/5.0 (compatible; nse-market-service/1.0)"
)

// Client performs single-attempt, uncached GET requests against the source
type Client struct {
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
	limiter      *rate.Limiter
	logger       logrus.FieldLogger
}

// Option configures the client
type Option func(*Client)

// WithTimeout sets the hard per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit caps outbound requests per second
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxBodyBytes caps the size of a response body
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		c.maxBodyBytes = n
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a fetcher client
func New(opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		httpClient:   &http.Client{},
		timeout:      DefaultTimeout,
		userAgent:    DefaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		logger:       discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET against sourceURL and returns the body of a 2xx
// response. Every failure is an *Error.
func (c *Client) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(sourceURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: sourceURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", sourceURL).Warn("source request failed")
		return nil, classify(sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.WithFields(logrus.Fields{
			"url":    sourceURL,
			"status": resp.StatusCode,
		}).Warn("source returned non-2xx status")
		return nil, &Error{Kind: KindHTTPStatus, URL: sourceURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, classify(sourceURL, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, &Error{Kind: KindBodyTooLarge, URL: sourceURL, Limit: c.maxBodyBytes}
	}

	c.logger.WithFields(logrus.Fields{
		"url":     sourceURL,
		"bytes":   len(body),
		"elapsed": time.Since(start).String(),
	}).Debug("source fetched")
	return body, nil
}

func classify(url string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: url, Err: err}
}
