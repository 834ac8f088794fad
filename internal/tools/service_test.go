package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/embed"
	"github.com/cerplabs/memoryd/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Embeddings.Dimensions = 8

	manager := store.NewManager(cfg.Paths.DataDir, 8)
	t.Cleanup(func() { _ = manager.CloseAll() })

	embedder := embed.NewStaticEmbedder(8)
	return NewService(manager, embedder, cfg)
}

func TestService_StoreGetFeedback_UsefulRaisesImportance(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	stored, err := s.Store(ctx, &StoreInput{Text: "remember to vendor dependencies"})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.Greater(t, stored.Chunks, 0)

	got, err := s.Get(ctx, &GetInput{ID: stored.ID})
	require.NoError(t, err)
	baseline := got.Memory.ImportanceScore

	fb, err := s.Feedback(ctx, &FeedbackInput{ID: stored.ID, Rating: "useful"})
	require.NoError(t, err)
	assert.True(t, fb.Updated)
	assert.InDelta(t, baseline+0.1, fb.NewImportance, 1e-9)
}

func TestService_Feedback_WrongZeroesImportanceAndTagsDisputed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	stored, err := s.Store(ctx, &StoreInput{Text: "this turned out to be incorrect", Importance: 0.6})
	require.NoError(t, err)

	fb, err := s.Feedback(ctx, &FeedbackInput{ID: stored.ID, Rating: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fb.NewImportance)

	got, err := s.Get(ctx, &GetInput{ID: stored.ID})
	require.NoError(t, err)
	assert.Contains(t, got.Memory.Tags, "disputed")
}

func TestService_Cleanup_NoOlderThanIsNoopDryRun(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Store(ctx, &StoreInput{Text: "anything at all"})
	require.NoError(t, err)

	out, err := s.Cleanup(ctx, &CleanupInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.WouldDelete)
	assert.Equal(t, 0, out.Deleted)
	assert.True(t, out.DryRun)
}

func TestService_TaskAddAndCancel(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	added, err := s.TaskAdd(ctx, &TaskAddInput{Description: "review the diff"})
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)

	cancelled, err := s.TaskCancel(ctx, &TaskCancelInput{ID: added.ID})
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	// A task that is no longer pending cannot be cancelled again.
	again, err := s.TaskCancel(ctx, &TaskCancelInput{ID: added.ID})
	require.NoError(t, err)
	assert.False(t, again.Cancelled)
}

func TestService_Import_MalformedDataReturnsOneError(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	out, err := s.Import(ctx, &ImportInput{Data: "not valid json"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Imported)
	assert.Equal(t, 1, out.Errors)
}
