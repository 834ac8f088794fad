package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerplabs/memoryd/internal/embed"
	"github.com/cerplabs/memoryd/internal/store"
)

// fakeEmbedder returns a pre-programmed vector for known text and an
// orthogonal default otherwise, so fusion scores are fully under the test's
// control regardless of actual semantic content.
type fakeEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) with(text string, v []float32) *fakeEmbedder {
	f.vectors[text] = v
	return f
}

func (f *fakeEmbedder) Embed(_ context.Context, text string, _ embed.Kind) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, f.dims)
	v[f.dims-1] = 1
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, kind embed.Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t, kind)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return f.dims }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

func seedMemory(t *testing.T, h *store.Handle, content string, vec []float32, opts func(*store.Memory)) string {
	t.Helper()
	memRepo := store.NewMemoryRepository(h)
	chunkRepo := store.NewChunkRepository(h)

	m := &store.Memory{Content: content}
	if opts != nil {
		opts(m)
	}
	require.NoError(t, memRepo.Create(context.Background(), m))
	require.NoError(t, chunkRepo.CreateChunks(context.Background(), m.ID, []store.ChunkWithEmbedding{
		{Chunk: store.Chunk{Content: content, ChunkIndex: 0}, Embedding: vec},
	}))
	return m.ID
}

func newTestEngine(t *testing.T, embedder embed.Embedder) (*Engine, *store.Handle) {
	t.Helper()
	h, err := store.Open("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	e := NewEngine(store.NewChunkRepository(h), store.NewMemoryRepository(h), store.NewTagRepository(h), embedder)
	return e, h
}

func TestEngine_Search_EmptyQueryReturnsEmpty(t *testing.T) {
	fe := newFakeEmbedder(8)
	e, _ := newTestEngine(t, fe)

	out, err := e.Search(context.Background(), "   ", Options{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEngine_Search_HybridRetrieval_RanksKeywordAndVectorMatchFirst(t *testing.T) {
	fe := newFakeEmbedder(8)
	queryVec := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	fe.with("React hooks", queryVec)

	e, h := newTestEngine(t, fe)

	aID := seedMemory(t, h, "React hooks useState useEffect", queryVec, nil)
	seedMemory(t, h, "React introduction", []float32{0.3, 0.954, 0, 0, 0, 0, 0, 0}, nil)
	seedMemory(t, h, "Database optimization techniques", []float32{-0.5, 0.866, 0, 0, 0, 0, 0, 0}, nil)

	out, err := e.Search(context.Background(), "React hooks", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, aID, out[0].MemoryID)

	for _, r := range out {
		assert.NotEqual(t, "Database optimization techniques", r.Content)
	}
}

func TestEngine_Search_TagFilterRequiresAllTags(t *testing.T) {
	fe := newFakeEmbedder(8)
	vec := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	fe.with("frontend memory", vec)

	e, h := newTestEngine(t, fe)
	tags := store.NewTagRepository(h)

	bothID := seedMemory(t, h, "frontend work one", vec, nil)
	require.NoError(t, tags.SetForMemory(context.Background(), bothID, []string{"frontend", "react", "typescript"}))

	onlyID := seedMemory(t, h, "frontend work two", vec, nil)
	require.NoError(t, tags.SetForMemory(context.Background(), onlyID, []string{"frontend", "react"}))

	out, err := e.Search(context.Background(), "frontend memory", Options{
		TagFilter: []string{"react", "typescript"},
		MinScore:  0.01,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, bothID, out[0].MemoryID)
}

func TestEngine_Search_ExcludesArchivedUnlessIncluded(t *testing.T) {
	fe := newFakeEmbedder(8)
	vec := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	fe.with("archived query", vec)

	e, h := newTestEngine(t, fe)
	id := seedMemory(t, h, "archived query content", vec, func(m *store.Memory) {
		m.StorageTier = store.TierArchive
	})

	out, err := e.Search(context.Background(), "archived query", Options{MinScore: 0.01})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = e.Search(context.Background(), "archived query", Options{MinScore: 0.01, IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].MemoryID)
}

func TestEngine_Search_MaxResultsCutoffAndNonIncreasingScore(t *testing.T) {
	fe := newFakeEmbedder(8)
	vec := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	fe.with("ranked query", vec)

	e, h := newTestEngine(t, fe)
	for i := 0; i < 5; i++ {
		seedMemory(t, h, "ranked query content", vec, nil)
	}

	out, err := e.Search(context.Background(), "ranked query", Options{MaxResults: 3, MinScore: 0.01})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}
