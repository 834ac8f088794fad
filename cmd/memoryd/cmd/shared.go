package cmd

import (
	"context"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/embed"
)

// buildEmbedder constructs the configured Embedder, shared by serve and
// doctor so both agree on what "the embedder" means. persistent may be nil
// (doctor has no database open); serve passes the global database's
// embedding_cache table so cached vectors survive restarts.
func buildEmbedder(ctx context.Context, cfg *config.Config, persistent embed.PersistentCache) (embed.Embedder, error) {
	return embed.New(ctx, embed.Options{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		Endpoint:   cfg.Embeddings.Endpoint,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
		Persistent: persistent,
	})
}
