package backendapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"DeskSync/internal/domain/models"
	"DeskSync/pkg/cache"
	"DeskSync/pkg/config"
	xhttp "DeskSync/pkg/http"
	"DeskSync/pkg/logger"
)

// Client is the REST adapter for the trading backend. One instance serves all
// sessions; responses for fetch domains are cached briefly per account and
// purged when a scope changes or a mutation settles.
type Client struct {
	baseURL  string
	apiKey   string
	client   *xhttp.Client
	cache    cache.Service
	cacheTTL time.Duration
	logger   *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithCache enables read-through response caching.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// New builds the backend adapter from config.
func New(cfg *config.Config, lgr *logger.Logger, opts ...Option) *Client {
	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: cfg.Backend.BaseURL,
		apiKey:  cfg.Backend.APIKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		logger:  lgr,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *Client) fetchKey(account models.AccountID, d models.Domain) string {
	return cache.GenerateKeyWithParams("fetch", account, string(d))
}

// getJSON fetches path and decodes into dest. When caching is enabled the raw
// body is stored under cacheKey so one backend round trip can serve several
// sessions watching the same account.
func (c *Client) getJSON(ctx context.Context, path, cacheKey string, dest interface{}) error {
	if c.cache != nil && cacheKey != "" {
		var raw string
		if err := c.cache.Get(ctx, cacheKey, &raw); err == nil {
			if jerr := json.Unmarshal([]byte(raw), dest); jerr == nil {
				return nil
			}
			// stale or malformed entry; fall through to the origin
		}
	}

	var body []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + path,
		Headers: c.authHeaders(),
	}, &body)
	if err != nil {
		return err
	}

	if c.cache != nil && cacheKey != "" {
		_ = c.cache.Set(ctx, cacheKey, string(body), c.cacheTTL)
	}

	return json.Unmarshal(body, dest)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, dest interface{}) error {
	return c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: c.authHeaders(),
		Body:    payload,
	}, dest)
}

// InvalidateAccount drops cached fetch responses for the account.
func (c *Client) InvalidateAccount(ctx context.Context, account models.AccountID) error {
	if c.cache == nil {
		return nil
	}
	pattern := cache.BuildPattern(cache.GenerateKey("fetch", string(account)))
	return c.cache.DeleteByPattern(ctx, pattern)
}

// fetchErr wraps a transport failure as a typed, per-domain fetch error.
func (c *Client) fetchErr(d models.Domain, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return &models.FetchError{Domain: d, Status: se.Code, Err: err}
	}
	return &models.FetchError{Domain: d, Err: err}
}
