package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheRepository_PutThenGet(t *testing.T) {
	h := newTestHandle(t)
	repo := NewEmbeddingCacheRepository(h, "static-hash-768")

	vec := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	require.NoError(t, repo.Put(context.Background(), "key-1", vec))

	got, ok, err := repo.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestEmbeddingCacheRepository_Miss(t *testing.T) {
	h := newTestHandle(t)
	repo := NewEmbeddingCacheRepository(h, "static-hash-768")

	_, ok, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheRepository_MissOnModelMismatch(t *testing.T) {
	h := newTestHandle(t)
	writer := NewEmbeddingCacheRepository(h, "model-a")
	reader := NewEmbeddingCacheRepository(h, "model-b")

	require.NoError(t, writer.Put(context.Background(), "key-1", []float32{1, 2, 3, 4, 5, 6, 7, 8}))

	_, ok, err := reader.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheRepository_PutOverwrites(t *testing.T) {
	h := newTestHandle(t)
	repo := NewEmbeddingCacheRepository(h, "static-hash-768")

	require.NoError(t, repo.Put(context.Background(), "key-1", []float32{1, 0, 0, 0, 0, 0, 0, 0}))
	require.NoError(t, repo.Put(context.Background(), "key-1", []float32{0, 1, 0, 0, 0, 0, 0, 0}))

	got, ok, err := repo.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float32(1), got[1])
}
