package imagelibrary

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Config holds provider credentials. A provider without its required
// fields is skipped.
type Config struct {
	Unsplash     UnsplashConfig `yaml:"unsplash" json:"unsplash"`
	GiphyAPIKey  string         `yaml:"giphy_api_key" json:"giphy_api_key" env:"GIPHY_API_KEY"`
	PexelsAPIKey string         `yaml:"pexels_api_key" json:"pexels_api_key" env:"PEXELS_API_KEY"`

	HTTPClient *http.Client `yaml:"-" json:"-"`
	RateLimit  int          `yaml:"rate_limit" json:"rate_limit" env:"IMAGE_LIBRARY_RATE_LIMIT"`
}

// Registry holds the enabled providers in listing order.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry builds the enabled providers from cfg.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []Option{WithLogger(logger)}
	if cfg.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}

	r := &Registry{providers: make(map[string]Provider)}

	if cfg.Unsplash != (UnsplashConfig{}) {
		if p, err := NewUnsplash(cfg.Unsplash, opts...); err != nil {
			logger.Warn("image library provider disabled", "provider", "unsplash", "required", "appId, accessKey, secretKey", "error", err)
		} else {
			r.Add(p)
		}
	}
	if cfg.GiphyAPIKey != "" {
		if p, err := NewGiphy(cfg.GiphyAPIKey, opts...); err == nil {
			r.Add(p)
		}
	}
	if cfg.PexelsAPIKey != "" {
		if p, err := NewPexels(cfg.PexelsAPIKey, opts...); err == nil {
			r.Add(p)
		}
	}
	return r
}

// Add registers p under its provider key.
func (r *Registry) Add(p Provider) {
	key := p.Info().Provider
	if _, ok := r.providers[key]; !ok {
		r.order = append(r.order, key)
	}
	r.providers[key] = p
}

// Get returns the provider registered under key.
func (r *Registry) Get(key string) (Provider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, key)
	}
	return p, nil
}

// Providers lists the enabled providers.
func (r *Registry) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(r.order))
	for _, key := range r.order {
		infos = append(infos, r.providers[key].Info())
	}
	return infos
}
