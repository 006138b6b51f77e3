// Package upstream issues the GET requests every resolver depends on.
//
// A Client wraps an http.Client with a request rate limiter and an optional
// response cache. Only successful, decodable bodies are cached.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-geoserve/internal/cache"
	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/metrics"
)

// maxBody bounds how much of a response is read.
const maxBody = 32 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Config holds the Client settings.
type Config struct {
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables limiting
	Burst         int
	UserAgent     string
	Cache         cache.Store // nil disables caching
	CacheTTL      time.Duration
}

// Client fetches JSON documents from the geospatial services.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	cache     cache.Store
	cacheTTL  time.Duration
	userAgent string
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		userAgent: cfg.UserAgent,
	}
}

// GetJSON fetches rawURL and decodes the body into v. endpoint labels the
// call in logs and metrics.
func (c *Client) GetJSON(ctx context.Context, endpoint, rawURL string, v any) error {
	if body, ok := c.cached(ctx, endpoint, rawURL); ok {
		if err := json.Unmarshal(body, v); err == nil {
			return nil
		}
	}

	body, err := c.get(ctx, endpoint, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(endpoint).Inc()
		logger.L().Error("upstream_decode_error", "endpoint", endpoint, "url", rawURL, "err", err)
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, rawURL, body, c.cacheTTL); err != nil {
			logger.L().Warn("cache_set_error", "endpoint", endpoint, "err", err)
		}
	}
	return nil
}

func (c *Client) cached(ctx context.Context, endpoint, rawURL string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, rawURL)
	if err != nil {
		logger.L().Warn("cache_get_error", "endpoint", endpoint, "err", err)
		return nil, false
	}
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(endpoint).Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(endpoint).Inc()
	return body, true
}

func (c *Client) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint).Inc()
	logger.L().Debug("upstream_req", "endpoint", endpoint, "url", rawURL)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(endpoint).Inc()
		logger.L().Error("upstream_http_error", "endpoint", endpoint, "url", rawURL, "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	dur := time.Since(t0).Milliseconds()
	metrics.UpstreamDurationMs.WithLabelValues(endpoint).Observe(float64(dur))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamFailuresTotal.WithLabelValues(endpoint).Inc()
		err := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		logger.L().Error("upstream_http_error", "endpoint", endpoint, "url", rawURL, "err", err, "duration_ms", dur)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	logger.L().Debug("upstream_resp", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body), "duration_ms", dur)
	return body, nil
}
