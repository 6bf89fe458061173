// Package imagelibrary searches third-party stock image providers and
// imports their images into object storage.
package imagelibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// DefaultPageSize is used when a search does not specify one.
	DefaultPageSize = 20
)

var (
	// ErrProviderNotFound is returned for an unknown or disabled provider.
	ErrProviderNotFound = errors.New("image library provider not found")

	// ErrInvalidParams is returned when search or detail parameters are malformed.
	ErrInvalidParams = errors.New("invalid image library parameters")
)

// Image is a provider image normalized to a common shape.
type Image struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbURL     string `json:"thumbUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int64  `json:"size,omitempty"`
	Description  string `json:"description"`
	Alt          string `json:"alt"`
	OriginalName string `json:"originalName"`
	FileType     string `json:"fileType,omitempty"`
}

// SearchParams selects one page of search results. Page is 1-based.
type SearchParams struct {
	Keyword  string
	Page     int
	PageSize int
}

func (p SearchParams) normalize() SearchParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// ProviderInfo describes a provider for listing.
type ProviderInfo struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Website  string `json:"website"`
}

// Provider is a stock image source.
type Provider interface {
	Info() ProviderInfo
	Search(ctx context.Context, params SearchParams) ([]Image, error)
	Detail(ctx context.Context, id string) (*Image, error)
}

// APIError represents a non-success response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status %d, endpoint: %s)", e.Provider, e.Message, e.StatusCode, e.Endpoint)
}

// Option configures a provider client.
type Option func(*client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *client) {
		c.logger = logger
	}
}

// client is the rate-limited JSON client shared by the providers.
type client struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	header     http.Header
}

func newClient(provider, baseURL string, opts []Option) *client {
	c := &client{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     slog.Default(),
		header:     make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "image library request", "provider", c.provider, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.ErrorContext(ctx, "image library request failed", "provider", c.provider, "status", resp.StatusCode, "body", string(body))
		return &APIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
