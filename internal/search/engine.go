package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cerplabs/memoryd/internal/embed"
	"github.com/cerplabs/memoryd/internal/store"
)

// Reranker is an optional post-merge hook that can reorder fused results
// before the final cutoff. No implementation ships by default; this is an
// extension point only.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []Result) ([]Result, error)
}

// Engine runs hybrid vector+keyword search against one project (or global)
// database handle.
type Engine struct {
	chunks   *store.ChunkRepository
	memories *store.MemoryRepository
	tags     *store.TagRepository
	embedder embed.Embedder
	reranker Reranker
}

func NewEngine(chunks *store.ChunkRepository, memories *store.MemoryRepository, tags *store.TagRepository, embedder embed.Embedder) *Engine {
	return &Engine{chunks: chunks, memories: memories, tags: tags, embedder: embedder}
}

// WithReranker attaches an optional reranker, applied after fusion and
// before the max-results cutoff.
func (e *Engine) WithReranker(r Reranker) *Engine {
	e.reranker = r
	return e
}

type fused struct {
	chunkID, memoryID string
	score             float64
}

// Search embeds the query, fans out vector and
// FTS candidate fetches concurrently, fuse per-chunk by weighted sum, group
// by memory keeping the best chunk, filter and rank.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	opts = opts.WithDefaults()

	queryEmbedding, err := e.embedder.Embed(ctx, query, embed.KindQuery)
	if err != nil {
		return nil, nil
	}

	k := 3 * opts.MaxResults

	var vecResults, ftsResults []store.ChunkMatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, vecErr := e.chunks.SearchVector(gctx, queryEmbedding, k)
		if vecErr == nil {
			vecResults = r
		}
		return nil
	})
	g.Go(func() error {
		r, ftsErr := e.chunks.SearchFTS(gctx, query, k)
		if ftsErr == nil {
			ftsResults = r
		}
		return nil
	})
	_ = g.Wait()

	merged := make(map[string]*fused, len(vecResults)+len(ftsResults))
	for _, m := range vecResults {
		merged[m.ChunkID] = &fused{chunkID: m.ChunkID, memoryID: m.MemoryID, score: opts.VectorWeight * m.Score}
	}
	for _, m := range ftsResults {
		if f, ok := merged[m.ChunkID]; ok {
			f.score += opts.FTSWeight * m.Score
		} else {
			merged[m.ChunkID] = &fused{chunkID: m.ChunkID, memoryID: m.MemoryID, score: opts.FTSWeight * m.Score}
		}
	}

	byMemory := make(map[string]*fused, len(merged))
	for _, f := range merged {
		if f.score < opts.MinScore {
			continue
		}
		cur, ok := byMemory[f.memoryID]
		if !ok || f.score > cur.score {
			byMemory[f.memoryID] = f
		}
	}
	if len(byMemory) == 0 {
		return nil, nil
	}

	candidates := make([]*fused, 0, len(byMemory))
	for _, f := range byMemory {
		candidates = append(candidates, f)
	}

	ids := make([]string, len(candidates))
	for i, f := range candidates {
		ids[i] = f.memoryID
	}
	memRows, err := e.memories.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	tagRows, err := e.tags.GetForMemories(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(candidates))
	for _, f := range candidates {
		m, ok := memRows[f.memoryID]
		if !ok {
			continue
		}
		if opts.ProjectFilter != "" && m.ProjectID != opts.ProjectFilter {
			continue
		}
		if !opts.IncludeArchived && m.StorageTier == store.TierArchive {
			continue
		}
		tags := tagRows[f.memoryID]
		if len(opts.TagFilter) > 0 && !hasAllTags(tags, opts.TagFilter) {
			continue
		}
		out = append(out, Result{
			MemoryID:        m.ID,
			Content:         m.Content,
			Score:           f.score,
			CreatedAt:       m.CreatedAt,
			ProjectID:       m.ProjectID,
			Source:          m.Source,
			MemoryType:      m.MemoryType,
			ImportanceScore: m.ImportanceScore,
			Tags:            tags,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MemoryID < out[j].MemoryID
	})

	if e.reranker != nil {
		if reranked, err := e.reranker.Rerank(ctx, query, out); err == nil {
			out = reranked
		}
	}

	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

func hasAllTags(have, required []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range required {
		if !set[t] {
			return false
		}
	}
	return true
}
