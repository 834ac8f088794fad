package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RunsMigrationsAndEnablesVectorGraph(t *testing.T) {
	h := newTestHandle(t)
	assert.True(t, h.VecAvailable())
	assert.Equal(t, 8, h.Dimensions())
}

func TestOpen_RehydratesVectorGraphOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")

	h1, err := Open(path, 8)
	require.NoError(t, err)
	memRepo := NewMemoryRepository(h1)
	chunkRepo := NewChunkRepository(h1)

	m := &Memory{Content: "persisted chunk"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "persisted chunk", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
	}))
	require.NoError(t, h1.Close())

	h2, err := Open(path, 8)
	require.NoError(t, err)
	defer func() { _ = h2.Close() }()
	assert.True(t, h2.VecAvailable())

	chunkRepo2 := NewChunkRepository(h2)
	results, err := chunkRepo2.SearchVector(context.Background(), []float32{1, 0, 0, 0, 0, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "persisted chunk", results[0].Content)
}

func TestManager_OpensGlobalAndProjectHandlesOnce(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, 8)
	defer func() { _ = mgr.CloseAll() }()

	g1, err := mgr.Global()
	require.NoError(t, err)
	g2, err := mgr.Global()
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	p1, err := mgr.Project("abc123")
	require.NoError(t, err)
	assert.NotSame(t, g1, p1)
}
