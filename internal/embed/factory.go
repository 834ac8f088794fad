package embed

import (
	"context"
	"fmt"
	"strings"
)

// Provider selects which concrete Embedder backs the store pipeline.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderHTTP   Provider = "http"
)

// ParseProvider normalizes a config string to a Provider, defaulting to
// static when unset or unrecognized so the module never fails to start for
// lack of a reachable embedding endpoint.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http", "ollama":
		return ProviderHTTP
	default:
		return ProviderStatic
	}
}

// Options describes how to construct an Embedder.
type Options struct {
	Provider   Provider
	Endpoint   string
	Model      string
	Dimensions int
	CacheSize  int
	Persistent PersistentCache
}

// New builds an Embedder per opts, wrapped in a read-through cache unless
// CacheSize is negative.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var inner Embedder

	switch opts.Provider {
	case ProviderHTTP:
		inner = NewHTTPEmbedder(HTTPConfig{
			Host:       opts.Endpoint,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
		})
	case ProviderStatic, "":
		inner = NewStaticEmbedder(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	if opts.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, opts.CacheSize, opts.Persistent)
}
