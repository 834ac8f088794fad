package tools

import (
	"context"

	"github.com/cerplabs/memoryd/internal/memory"
)

// Store implements the store tool: dedup-on-write classification followed
// by a transactional chunk+embedding write.
func (s *Service) Store(ctx context.Context, in *StoreInput) (*StoreOutput, error) {
	if trimmedOrEmpty(in.Text) == "" {
		return nil, invalidParams("text is required")
	}
	in.Project = s.projectID(in.Project)

	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	out, err := db.pipeline.Store(ctx, memory.StoreInput{
		Text:       in.Text,
		Tags:       in.Tags,
		Project:    in.Project,
		Source:     in.Source,
		Metadata:   in.Metadata,
		MemoryType: in.MemoryType,
		Importance: in.Importance,
		IsRule:     in.IsRule,
	})
	if err != nil {
		return nil, err
	}

	result := &StoreOutput{
		ID:           out.ID,
		Chunks:       out.ChunksWritten,
		Deduplicated: out.Deduplicated,
		Merged:       out.Merged,
	}
	for _, sm := range out.SimilarMemories {
		result.SimilarMemories = append(result.SimilarMemories, SimilarMemory{ID: sm.ID, Score: sm.Score})
	}
	return result, nil
}
