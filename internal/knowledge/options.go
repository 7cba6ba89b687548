package knowledge

import (
	"time"

	"github.com/alexkamer/recall/internal/chat"
)

const (
	defaultTopK          = 5
	defaultSearchTimeout = 10 * time.Second
)

type searchConfig struct {
	topK    int32
	scope   chat.ScopeFilter
	timeout time.Duration
}

// SearchOption customizes a search.
type SearchOption func(*searchConfig)

// WithTopK sets the maximum number of results.
func WithTopK(k int32) SearchOption {
	return func(cfg *searchConfig) {
		if k > 0 {
			cfg.topK = k
		}
	}
}

// WithScope restricts results to the given source types. An empty scope
// means no restriction.
func WithScope(scope chat.ScopeFilter) SearchOption {
	return func(cfg *searchConfig) {
		cfg.scope = scope
	}
}

// WithTimeout overrides the per-search timeout.
func WithTimeout(timeout time.Duration) SearchOption {
	return func(cfg *searchConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:    defaultTopK,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
