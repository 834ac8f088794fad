package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := Open("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestMemoryRepository_CreateAndGetByID(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	m := &Memory{Content: "remember to use pure-Go sqlite driver", Source: SourceUser}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.NotEmpty(t, m.ID)

	got, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, 1, got.AccessCount)
}

func TestMemoryRepository_GetByID_NotFound(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemoryRepository_Peek_DoesNotBumpAccess(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	m := &Memory{Content: "peek should not perturb recency"}
	require.NoError(t, repo.Create(context.Background(), m))

	got, err := repo.Peek(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AccessCount)
}

func TestMemoryRepository_List_FiltersAndPaginates(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	for i := 0; i < 5; i++ {
		m := &Memory{Content: "entry", ProjectID: "proj-a"}
		require.NoError(t, repo.Create(context.Background(), m))
	}
	other := &Memory{Content: "other project entry", ProjectID: "proj-b"}
	require.NoError(t, repo.Create(context.Background(), other))

	results, total, err := repo.List(context.Background(), MemoryFilter{ProjectID: "proj-a", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, results, 2)
}

func TestMemoryRepository_List_ExcludesArchivedByDefault(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	active := &Memory{Content: "active memory"}
	require.NoError(t, repo.Create(context.Background(), active))
	archived := &Memory{Content: "archived memory", StorageTier: TierArchive}
	require.NoError(t, repo.Create(context.Background(), archived))

	results, total, err := repo.List(context.Background(), MemoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, active.ID, results[0].ID)

	_, totalWithArchived, err := repo.List(context.Background(), MemoryFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, 2, totalWithArchived)
}

func TestMemoryRepository_Update_PartialFields(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	m := &Memory{Content: "original", ImportanceScore: 0.1}
	require.NoError(t, repo.Create(context.Background(), m))

	patch := &Memory{Content: "updated", ImportanceScore: 0.9}
	require.NoError(t, repo.Update(context.Background(), m.ID, patch, []string{"content", "importance_score"}))

	got, err := repo.Peek(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
	assert.Equal(t, 0.9, got.ImportanceScore)
}

func TestMemoryRepository_Update_NotFound(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	err := repo.Update(context.Background(), "missing", &Memory{Content: "x"}, []string{"content"})
	assert.Error(t, err)
}

func TestMemoryRepository_Delete_CascadesChunksAndTags(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	chunkRepo := NewChunkRepository(h)
	tagRepo := NewTagRepository(h)

	m := &Memory{Content: "to be deleted"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, tagRepo.SetForMemory(context.Background(), m.ID, []string{"alpha"}))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []ChunkWithEmbedding{
		{Chunk: Chunk{Content: "to be deleted", ChunkIndex: 0}, Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
	}))

	var calledChunkIDs []string
	deleted, err := memRepo.Delete(context.Background(), m.ID, func(ids []string) { calledChunkIDs = ids })
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Len(t, calledChunkIDs, 1)

	_, err = memRepo.GetByID(context.Background(), m.ID)
	assert.Error(t, err)

	tags, err := tagRepo.GetForMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestMemoryRepository_Delete_MissingReturnsFalse(t *testing.T) {
	h := newTestHandle(t)
	repo := NewMemoryRepository(h)

	deleted, err := repo.Delete(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.False(t, deleted)
}
