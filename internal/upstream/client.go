// Package upstream implements the authenticated HTTP client against the
// upstream marketing platform's JSON:API-style REST API: parameter
// shaping, client-side rate limiting, retry with backoff, a circuit
// breaker, and request coalescing for identical concurrent calls.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/analytics-sync/backend/infrastructure/config"
	"github.com/analytics-sync/backend/infrastructure/errors"
	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/metrics"
	"github.com/analytics-sync/backend/infrastructure/resilience"
	"github.com/analytics-sync/backend/internal/jsonapi"
	"github.com/analytics-sync/backend/internal/upstream/ratelimit"
)

// Config configures a Client.
type Config struct {
	BaseURL            string
	Credential         string
	AuthScheme         config.AuthScheme
	APIRevision        string
	MinRequestInterval time.Duration
	MaxConcurrent      int
	PerAttemptTimeout  time.Duration
	TotalTimeout       time.Duration
	RetryConfig        resilience.RetryConfig
	BreakerConfig      resilience.Config
}

// Client is the upstream API client described by this system's ingestion
// pipeline.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Manager
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *logging.Logger
}

// New builds a Client from cfg.
func New(cfg Config, logger *logging.Logger) *Client {
	if cfg.PerAttemptTimeout <= 0 {
		cfg.PerAttemptTimeout = 30 * time.Second
	}
	if cfg.APIRevision == "" {
		cfg.APIRevision = "2024-10-15"
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = config.AuthSchemeAPIKey
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.PerAttemptTimeout,
		},
		limiter: ratelimit.NewManager(ratelimit.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MinInterval:   cfg.MinRequestInterval,
		}),
		breaker: resilience.New(cfg.BreakerConfig),
		logger:  logger,
	}
}

// Get performs a single-page authenticated GET against path with params,
// coalescing concurrent identical requests into one outbound call.
func (c *Client) Get(ctx context.Context, path string, params jsonapi.Params) (jsonapi.Page, error) {
	reqURL, err := jsonapi.BuildURL(c.cfg.BaseURL, path, params)
	if err != nil {
		return jsonapi.Page{}, errors.InvalidInput("url", err.Error())
	}

	v, err, _ := c.group.Do(reqURL, func() (interface{}, error) {
		return c.doWithResilience(ctx, path, reqURL)
	})
	if err != nil {
		return jsonapi.Page{}, err
	}
	return v.(jsonapi.Page), nil
}

// PageHandler is called for each decoded page during GetPaginated.
// Returning an error stops pagination.
type PageHandler func(page jsonapi.Page) error

// GetPaginated follows `links.next` until exhausted, a handler error, or
// context cancellation. On cancellation mid-page, the in-progress page is
// discarded entirely: the handler is not called for it.
func (c *Client) GetPaginated(ctx context.Context, path string, params jsonapi.Params, handle PageHandler) error {
	next := path
	first := true

	for {
		if ctx.Err() != nil {
			return errors.Cancelled("upstream.GetPaginated", ctx.Err())
		}

		var page jsonapi.Page
		var err error
		if first {
			page, err = c.Get(ctx, path, params)
			first = false
		} else {
			page, err = c.getRawURL(ctx, next)
		}
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return errors.Cancelled("upstream.GetPaginated", ctx.Err())
		}

		if err := handle(page); err != nil {
			return err
		}

		if page.NextLink == "" {
			return nil
		}
		next = page.NextLink
	}
}

// getRawURL fetches a fully-formed URL (e.g. a links.next value) rather
// than building one from path+params.
func (c *Client) getRawURL(ctx context.Context, fullURL string) (jsonapi.Page, error) {
	v, err, _ := c.group.Do(fullURL, func() (interface{}, error) {
		return c.doWithResilience(ctx, fullURL, fullURL)
	})
	if err != nil {
		return jsonapi.Page{}, err
	}
	return v.(jsonapi.Page), nil
}

// doWithResilience wraps a single logical request with the circuit breaker
// and retry-with-backoff policy, honoring rate limiting and classifying
// failures per spec §4.1/§7.
func (c *Client) doWithResilience(ctx context.Context, endpoint, reqURL string) (jsonapi.Page, error) {
	var result jsonapi.Page
	attempts := 0

	err := c.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, c.cfg.RetryConfig, func() error {
			attempts++
			start := time.Now()

			release, err := c.limiter.Acquire(ctx, endpoint)
			if err != nil {
				return errors.Cancelled("upstream.acquire", err)
			}
			defer release()

			page, callErr := c.doOnce(ctx, reqURL)
			duration := time.Since(start)

			status := "error"
			if callErr == nil {
				status = "success"
				c.limiter.ReportSuccess(endpoint)
			}
			metrics.Global().RecordUpstreamRequest("upstream", endpoint, status, duration)
			if c.logger != nil {
				c.logger.LogUpstreamCall(ctx, endpoint, statusCodeOf(callErr), attempts, duration, callErr)
			}

			if callErr != nil {
				if errors.GetServiceError(callErr) != nil && errors.GetServiceError(callErr).Code == errors.ErrCodeRateLimitExceeded {
					c.limiter.ReportRateLimited(endpoint)
					metrics.Global().RecordUpstreamRateLimitHit("upstream", endpoint)
				}
				if !errors.IsRetryable(callErr) {
					return backoffPermanent(callErr)
				}
				return callErr
			}

			result = page
			return nil
		})
	})

	if err != nil {
		if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
			return jsonapi.Page{}, errors.UpstreamError(endpoint, err)
		}
		return jsonapi.Page{}, err
	}
	return result, nil
}

func statusCodeOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if se := errors.GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return 0
}

// doOnce performs exactly one HTTP round trip and classifies the result.
func (c *Client) doOnce(ctx context.Context, reqURL string) (jsonapi.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return jsonapi.Page{}, errors.InvalidInput("url", err.Error())
	}
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return jsonapi.Page{}, errors.Timeout("upstream.request")
		}
		return jsonapi.Page{}, errors.Network("upstream.request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonapi.Page{}, errors.Network("upstream.read_body", err)
	}

	if err := classifyStatus(resp, body); err != nil {
		return jsonapi.Page{}, err
	}

	page, err := jsonapi.DecodePage(body)
	if err != nil {
		return jsonapi.Page{}, errors.InvalidFormat("response_body", err.Error())
	}
	return page, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	switch c.cfg.AuthScheme {
	case config.AuthSchemeBearer:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Credential)
	default:
		req.Header.Set("Authorization", "Klaviyo-API-Key "+c.cfg.Credential)
	}
	req.Header.Set("revision", c.cfg.APIRevision)
	req.Header.Set("Accept", "application/json")
}

// classifyStatus maps an HTTP response status to a typed ServiceError per
// spec §4.1/§7, or returns nil for 2xx.
func classifyStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Unauthorized("upstream rejected the configured credential")
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("upstream resource", resp.Request.URL.Path)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return errors.InvalidInput("request", string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return errors.RateLimitExceeded(0, "", retryAfter)
	case resp.StatusCode >= 500:
		return errors.UpstreamError("upstream", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return errors.UpstreamError("upstream", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return seconds
}

// backoffPermanent marks err as non-retryable for cenkalti/backoff without
// importing its type into callers that only depend on resilience's adapter
// surface.
func backoffPermanent(err error) error {
	return resilience.Permanent(err)
}
