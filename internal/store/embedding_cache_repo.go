package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// EmbeddingCacheRepository persists embeddings keyed by a digest over the
// instruction prefix and source text, satisfying embed.PersistentCache so
// the embed package never imports this one directly.
type EmbeddingCacheRepository struct {
	h       *Handle
	modelID string
}

func NewEmbeddingCacheRepository(h *Handle, modelID string) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{h: h, modelID: modelID}
}

// Get returns the cached embedding for key, scoped to this repository's
// model, or (nil, false, nil) on a miss.
func (r *EmbeddingCacheRepository) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	var modelID string
	err := r.h.DB().QueryRowContext(ctx,
		`SELECT embedding, model_id FROM embedding_cache WHERE text_hash = ?`, key).
		Scan(&blob, &modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, memerrors.Storage("read embedding cache", err)
	}
	if modelID != r.modelID {
		return nil, false, nil
	}
	vec, err := decodeEmbedding(blob)
	if err != nil {
		return nil, false, memerrors.Storage("decode cached embedding", err)
	}
	return vec, true, nil
}

// Put stores vector under key, overwriting any prior entry.
func (r *EmbeddingCacheRepository) Put(ctx context.Context, key string, vector []float32) error {
	_, err := r.h.DB().ExecContext(ctx, `
		INSERT INTO embedding_cache(text_hash, embedding, model_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(text_hash) DO UPDATE SET
			embedding = excluded.embedding,
			model_id = excluded.model_id,
			created_at = excluded.created_at`,
		key, encodeEmbedding(vector), r.modelID, time.Now().UTC().Unix())
	if err != nil {
		return memerrors.Storage("write embedding cache", err)
	}
	return nil
}
