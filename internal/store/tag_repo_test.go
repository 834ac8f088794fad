package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRepository_Ensure_IsIdempotent(t *testing.T) {
	h := newTestHandle(t)
	repo := NewTagRepository(h)

	id1, err := repo.Ensure(context.Background(), "golang")
	require.NoError(t, err)
	id2, err := repo.Ensure(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestTagRepository_SetForMemory_ReplacesExisting(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	tagRepo := NewTagRepository(h)

	m := &Memory{Content: "tagged memory"}
	require.NoError(t, memRepo.Create(context.Background(), m))

	require.NoError(t, tagRepo.SetForMemory(context.Background(), m.ID, []string{"a", "b"}))
	names, err := tagRepo.GetForMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, tagRepo.SetForMemory(context.Background(), m.ID, []string{"c"}))
	names, err = tagRepo.GetForMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names)
}

func TestTagRepository_AddTag_DoesNotDisturbOthers(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	tagRepo := NewTagRepository(h)

	m := &Memory{Content: "feedback target"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, tagRepo.SetForMemory(context.Background(), m.ID, []string{"existing"}))

	require.NoError(t, tagRepo.AddTag(context.Background(), m.ID, "new"))
	names, err := tagRepo.GetForMemory(context.Background(), m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"existing", "new"}, names)
}

func TestTagRepository_GetForMemories_BatchesAcrossIDs(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	tagRepo := NewTagRepository(h)

	m1 := &Memory{Content: "first"}
	m2 := &Memory{Content: "second"}
	require.NoError(t, memRepo.Create(context.Background(), m1))
	require.NoError(t, memRepo.Create(context.Background(), m2))
	require.NoError(t, tagRepo.SetForMemory(context.Background(), m1.ID, []string{"x"}))
	require.NoError(t, tagRepo.SetForMemory(context.Background(), m2.ID, []string{"y"}))

	byMemory, err := tagRepo.GetForMemories(context.Background(), []string{m1.ID, m2.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, byMemory[m1.ID])
	assert.Equal(t, []string{"y"}, byMemory[m2.ID])
}

func TestTagRepository_HasAll(t *testing.T) {
	h := newTestHandle(t)
	memRepo := NewMemoryRepository(h)
	tagRepo := NewTagRepository(h)

	m := &Memory{Content: "tag intersection target"}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, tagRepo.SetForMemory(context.Background(), m.ID, []string{"a", "b", "c"}))

	ok, err := tagRepo.HasAll(context.Background(), m.ID, []string{"a", "c"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tagRepo.HasAll(context.Background(), m.ID, []string{"a", "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
}
