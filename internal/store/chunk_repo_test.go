package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRepository_CreateChunks_PopulatesAllMirrors(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)

	m := &Memory{Content: "chunked memory about caching"}
	require.NoError(t, memRepo.Create(context.Background(), m))

	err := chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "caching reduces latency", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
		{Chunk: Chunk{Content: "invalidation is the hard part", ChunkIndex: 1}, Embedding: []float32{0, 1, 0, 0, 0, 0, 0, 0}},
	})
	require.NoError(t, err)

	all, err := chunkRepo.GetAllEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestChunkRepository_SearchVector_ReturnsClosestFirst(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)

	m := &Memory{Content: "vector search memory"}
	require.NoError(t, memRepo.Create(context.Background(), m))

	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "near match", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
		{Chunk: Chunk{Content: "far match", ChunkIndex: 1}, Embedding: []float32{0, 0, 0, 0, 0, 0, 0, 1}},
	}))

	results, err := chunkRepo.SearchVector(context.Background(), []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "near match", results[0].Content)
}

func TestChunkRepository_SearchVector_BruteForceFallback(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)

	m := &Memory{Content: "degraded vector graph memory"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "near match", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
		{Chunk: Chunk{Content: "far match", ChunkIndex: 1}, Embedding: []float32{0, 0, 0, 0, 0, 0, 0, 1}},
	}))

	h.mu.Lock()
	h.vecOK = false
	h.mu.Unlock()

	results, err := chunkRepo.SearchVector(context.Background(), []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "near match", results[0].Content)
}

func TestChunkRepository_SearchFTS_FindsKeyword(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)

	m := &Memory{Content: "fts memory"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "the quick brown fox", ChunkIndex: 0}, Embedding: make([]float32, 8)},
		{Chunk: Chunk{Content: "a slow green turtle", ChunkIndex: 1}, Embedding: make([]float32, 8)},
	}))

	results, err := chunkRepo.SearchFTS(context.Background(), "fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "fox")
}

func TestChunkRepository_DeleteByMemory_RemovesAllMirrors(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)

	m := &Memory{Content: "memory to purge"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "purge me", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
	}))

	require.NoError(t, chunkRepo.DeleteByMemory(context.Background(), m.ID))

	all, err := chunkRepo.GetAllEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	results, err := chunkRepo.SearchFTS(context.Background(), "purge", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
