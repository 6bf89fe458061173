// Package moderation provides the content-security providers the article
// pipeline screens writes with, selected by name from configuration.
package moderation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

// ErrUnknownProvider is returned when no factory is registered for a name.
var ErrUnknownProvider = errors.New("unknown moderation provider")

// Settings carries everything a provider factory may need.
type Settings struct {
	Keywords        []string
	WeChatAppID     string
	WeChatAppSecret string
	WeChatBaseURL   string
	RateLimit       int
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Factory builds a moderator from settings.
type Factory func(Settings) (simplecms.Moderator, error)

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("noop", func(Settings) (simplecms.Moderator, error) {
		return Noop{}, nil
	})
	r.Register("keyword", func(s Settings) (simplecms.Moderator, error) {
		return NewKeyword(s.Keywords)
	})
	r.Register("wechat", func(s Settings) (simplecms.Moderator, error) {
		var opts []WeChatOption
		if s.WeChatBaseURL != "" {
			opts = append(opts, WithWeChatBaseURL(s.WeChatBaseURL))
		}
		if s.HTTPClient != nil {
			opts = append(opts, WithWeChatHTTPClient(s.HTTPClient))
		}
		if s.RateLimit > 0 {
			opts = append(opts, WithWeChatRateLimit(s.RateLimit))
		}
		if s.Logger != nil {
			opts = append(opts, WithWeChatLogger(s.Logger))
		}
		return NewWeChat(s.WeChatAppID, s.WeChatAppSecret, opts...)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build resolves name to a moderator.
func (r *Registry) Build(name string, s Settings) (simplecms.Moderator, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, name, r.Names())
	}
	return f(s)
}

// Names lists registered providers in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
