// Package memory implements the store pipeline: dedup-on-write classification
// (near-duplicate / merge / novel) followed by chunking, embedding, and a
// single transactional write.
package memory

import (
	"context"
	"sort"

	"github.com/cerplabs/memoryd/internal/chunk"
	"github.com/cerplabs/memoryd/internal/embed"
	"github.com/cerplabs/memoryd/internal/store"
)

const (
	nearDuplicateThreshold = 0.95
	mergeLowThreshold      = 0.90
	similarLowThreshold    = 0.85
	similarHighThreshold   = 0.90
	maxSimilarAdvisories   = 3
)

// Pipeline wires the chunker, embedder, and repositories needed by store().
type Pipeline struct {
	Memories *store.MemoryRepository
	Chunks   *store.ChunkRepository
	Tags     *store.TagRepository
	Embedder embed.Embedder

	MaxTokens     int
	OverlapTokens int
}

// StoreInput mirrors store(...)'s parameter list.
type StoreInput struct {
	Text       string
	Tags       []string
	Project    string
	Source     string
	Metadata   string
	MemoryType string
	Importance float64
	IsRule     bool
}

// StoreOutput mirrors store(...)'s return shape.
type StoreOutput struct {
	ID               string
	ChunksWritten    int
	Deduplicated     bool
	Merged           bool
	SimilarMemories  []SimilarMemory
}

// SimilarMemory is one "similar, not duplicate" advisory entry.
type SimilarMemory struct {
	ID    string
	Score float64
}

type candidate struct {
	memoryID string
	score    float64
}

// Store implements the three-way dedup classification and transactional
// write.
func (p *Pipeline) Store(ctx context.Context, in StoreInput) (*StoreOutput, error) {
	q, err := p.Embedder.Embed(ctx, in.Text, embed.KindQuery)
	if err != nil {
		return nil, err
	}

	candidates, err := p.rankedCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		top := candidates[0]
		switch {
		case top.score > nearDuplicateThreshold:
			return p.nearDuplicate(ctx, top.memoryID)
		case top.score >= mergeLowThreshold:
			return p.merge(ctx, top.memoryID, in, candidates)
		}
	}

	return p.novel(ctx, in, candidates)
}

// rankedCandidates runs search_vector(q, 10), groups by memory keeping the
// max score, and sorts descending.
func (p *Pipeline) rankedCandidates(ctx context.Context, q []float32) ([]candidate, error) {
	matches, err := p.Chunks.SearchVector(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64, len(matches))
	for _, m := range matches {
		if s, ok := best[m.MemoryID]; !ok || m.Score > s {
			best[m.MemoryID] = m.Score
		}
	}
	out := make([]candidate, 0, len(best))
	for id, s := range best {
		out = append(out, candidate{memoryID: id, score: s})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, nil
}

func (p *Pipeline) nearDuplicate(ctx context.Context, memoryID string) (*StoreOutput, error) {
	if _, err := p.Memories.GetByID(ctx, memoryID); err != nil {
		return nil, err
	}
	return &StoreOutput{ID: memoryID, ChunksWritten: 0, Deduplicated: true}, nil
}

func (p *Pipeline) merge(ctx context.Context, memoryID string, in StoreInput, candidates []candidate) (*StoreOutput, error) {
	existing, err := p.Memories.Peek(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	newContent := existing.Content + "\n\n---\n\n" + in.Text

	patch := &store.Memory{Content: newContent}
	if err := p.Memories.Update(ctx, memoryID, patch, []string{"content"}); err != nil {
		return nil, err
	}

	written, err := p.RebuildChunks(ctx, memoryID, newContent)
	if err != nil {
		return nil, err
	}

	return &StoreOutput{
		ID:              memoryID,
		ChunksWritten:   written,
		Merged:          true,
		SimilarMemories: similarAdvisories(candidates, memoryID),
	}, nil
}

func (p *Pipeline) novel(ctx context.Context, in StoreInput, candidates []candidate) (*StoreOutput, error) {
	m := &store.Memory{
		Content:         in.Text,
		Source:          in.Source,
		ProjectID:       in.Project,
		Metadata:        in.Metadata,
		MemoryType:      in.MemoryType,
		ImportanceScore: in.Importance,
		IsRule:          in.IsRule,
	}
	if m.MemoryType == "" {
		m.MemoryType = store.MemoryTypeGeneral
	}
	if m.IsRule && m.ImportanceScore < 0.9 {
		m.ImportanceScore = 0.9
	}
	if err := p.Memories.Create(ctx, m); err != nil {
		return nil, err
	}

	if len(in.Tags) > 0 {
		if err := p.Tags.SetForMemory(ctx, m.ID, in.Tags); err != nil {
			return nil, err
		}
	}

	written, err := p.writeChunks(ctx, m.ID, in.Text)
	if err != nil {
		return nil, err
	}

	return &StoreOutput{
		ID:              m.ID,
		ChunksWritten:   written,
		SimilarMemories: similarAdvisories(candidates, m.ID),
	}, nil
}

// RebuildChunks deletes a memory's existing chunks and mirrors and
// rewrites them from content, used by merge() and by the consolidation
// job's target rebuild.
func (p *Pipeline) RebuildChunks(ctx context.Context, memoryID, content string) (int, error) {
	if err := p.Chunks.DeleteByMemory(ctx, memoryID); err != nil {
		return 0, err
	}
	return p.writeChunks(ctx, memoryID, content)
}

// writeChunks splits text, embeds each chunk with kind=document
// consulting the cache, and inserts chunks plus both mirrors in one
// transaction (delegated to store.ChunkRepository.CreateChunks).
func (p *Pipeline) writeChunks(ctx context.Context, memoryID, text string) (int, error) {
	pieces := chunk.Chunk(text, p.chunkMaxTokens(), p.chunkOverlapTokens())

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Content
	}
	embeddings, err := p.Embedder.EmbedBatch(ctx, texts, embed.KindDocument)
	if err != nil {
		return 0, err
	}

	withEmbeddings := make([]store.ChunkWithEmbedding, len(pieces))
	for i, c := range pieces {
		withEmbeddings[i] = store.ChunkWithEmbedding{
			Chunk: store.Chunk{
				MemoryID:   memoryID,
				Content:    c.Content,
				ChunkIndex: c.ChunkIndex,
				TokenCount: c.TokenCount,
			},
			Embedding: embeddings[i],
		}
	}

	if err := p.Chunks.CreateChunks(ctx, memoryID, withEmbeddings); err != nil {
		return 0, err
	}
	return len(withEmbeddings), nil
}

func (p *Pipeline) chunkMaxTokens() int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return chunk.DefaultMaxTokens
}

func (p *Pipeline) chunkOverlapTokens() int {
	if p.OverlapTokens > 0 {
		return p.OverlapTokens
	}
	return chunk.DefaultOverlapTokens
}

// similarAdvisories builds the up-to-three "similar, not duplicate" list,
// excluding the memory that was just written to.
func similarAdvisories(candidates []candidate, excludeID string) []SimilarMemory {
	var out []SimilarMemory
	for _, c := range candidates {
		if c.memoryID == excludeID {
			continue
		}
		if c.score >= similarLowThreshold && c.score < similarHighThreshold {
			out = append(out, SimilarMemory{ID: c.memoryID, Score: c.score})
			if len(out) == maxSimilarAdvisories {
				break
			}
		}
	}
	return out
}
