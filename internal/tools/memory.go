package tools

import (
	"context"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/store"
)

// Get implements the get tool: a full memory record, bumping access stats
// as a side effect of the lookup.
func (s *Service) Get(ctx context.Context, in *GetInput) (*GetOutput, error) {
	if trimmedOrEmpty(in.ID) == "" {
		return nil, invalidParams("id is required")
	}
	db, _, err := s.resolveByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	m, err := db.memories.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	tags, err := db.tags.GetForMemory(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return &GetOutput{Memory: toMemoryRecord(m, tags)}, nil
}

// List implements the list tool: a filtered, paginated page of memories
// from the global database, or a given project's database.
func (s *Service) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	filter := store.MemoryFilter{
		ProjectID: in.Project,
		Tag:       in.Tag,
		Source:    in.Source,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	if in.Since != "" {
		t, err := time.Parse(time.RFC3339, in.Since)
		if err != nil {
			return nil, invalidParams("since must be an RFC3339 timestamp: %v", err)
		}
		filter.Since = &t
	}

	memories, total, err := db.memories.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	tagsByMemory, err := db.tags.GetForMemories(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &ListOutput{Memories: make([]MemoryRecord, 0, len(memories)), Total: total}
	for _, m := range memories {
		out.Memories = append(out.Memories, toMemoryRecord(m, tagsByMemory[m.ID]))
	}
	return out, nil
}

var updatableFields = map[string]bool{
	"content": true, "metadata": true, "memory_type": true,
	"importance_score": true, "is_rule": true, "storage_tier": true, "source": true,
}

// Update implements the update tool: applies the named field subset and,
// when content changes, re-chunks and re-embeds.
func (s *Service) Update(ctx context.Context, in *UpdateInput) (*UpdateOutput, error) {
	if trimmedOrEmpty(in.ID) == "" {
		return nil, invalidParams("id is required")
	}
	for _, f := range in.Fields {
		if !updatableFields[f] {
			return nil, invalidParams("unknown field %q", f)
		}
	}

	db, _, err := s.resolveByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	patch := &store.Memory{
		Content:         in.Content,
		Metadata:        in.Metadata,
		MemoryType:      in.MemoryType,
		ImportanceScore: in.ImportanceScore,
		IsRule:          in.IsRule,
		StorageTier:     in.StorageTier,
		Source:          in.Source,
	}
	if err := db.memories.Update(ctx, in.ID, patch, in.Fields); err != nil {
		return nil, err
	}

	out := &UpdateOutput{Updated: true}
	if containsField(in.Fields, "content") {
		written, err := db.pipeline.RebuildChunks(ctx, in.ID, in.Content)
		if err != nil {
			return nil, err
		}
		out.Chunks = written
	}
	return out, nil
}

// Delete implements the delete tool.
func (s *Service) Delete(ctx context.Context, in *DeleteInput) (*DeleteOutput, error) {
	if trimmedOrEmpty(in.ID) == "" {
		return nil, invalidParams("id is required")
	}
	db, _, err := s.resolveByID(ctx, in.ID)
	if err != nil {
		if memerrors.IsNotFound(err) {
			return &DeleteOutput{Deleted: false}, nil
		}
		return nil, err
	}
	deleted, err := db.memories.Delete(ctx, in.ID, db.handle.VecForget)
	if err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: deleted}, nil
}

// Cleanup implements the cleanup tool: age/count-bounded deletion, dry-run
// by default, scoped to one database. A project id scans only that
// project's database, never the global one.
func (s *Service) Cleanup(ctx context.Context, in *CleanupInput) (*CleanupOutput, error) {
	dryRun := true
	if in.DryRun != nil {
		dryRun = *in.DryRun
	}
	if in.OlderThan == "" {
		return &CleanupOutput{WouldDelete: 0, Deleted: 0, DryRun: true}, nil
	}
	cutoff, err := time.Parse(time.RFC3339, in.OlderThan)
	if err != nil {
		return nil, invalidParams("older_than must be an RFC3339 timestamp: %v", err)
	}

	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	candidates, _, err := db.memories.List(ctx, store.MemoryFilter{
		ProjectID:       in.Project,
		IncludeArchived: true,
		Limit:           100000,
	})
	if err != nil {
		return nil, err
	}

	var eligible []string
	for _, m := range candidates {
		if m.CreatedAt.Before(cutoff) && !m.IsRule {
			eligible = append(eligible, m.ID)
		}
	}
	if in.MaxCount > 0 && len(eligible) > in.MaxCount {
		eligible = eligible[:in.MaxCount]
	}

	out := &CleanupOutput{WouldDelete: len(eligible), DryRun: dryRun}
	if dryRun {
		return out, nil
	}

	for _, id := range eligible {
		ok, err := db.memories.Delete(ctx, id, db.handle.VecForget)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Deleted++
		}
	}
	return out, nil
}

// Feedback implements the feedback tool's four rating effects.
func (s *Service) Feedback(ctx context.Context, in *FeedbackInput) (*FeedbackOutput, error) {
	if trimmedOrEmpty(in.ID) == "" {
		return nil, invalidParams("id is required")
	}
	db, m, err := s.resolveByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	out := &FeedbackOutput{Updated: true, Action: in.Rating}
	switch in.Rating {
	case "useful":
		newScore := m.ImportanceScore + 0.1
		if newScore > 1.0 {
			newScore = 1.0
		}
		if err := db.memories.Update(ctx, in.ID, &store.Memory{ImportanceScore: newScore}, []string{"importance_score"}); err != nil {
			return nil, err
		}
		out.NewImportance = newScore
	case "outdated":
		newScore := m.ImportanceScore * 0.5
		if err := db.memories.Update(ctx, in.ID, &store.Memory{ImportanceScore: newScore}, []string{"importance_score"}); err != nil {
			return nil, err
		}
		out.NewImportance = newScore
	case "wrong":
		if err := db.memories.Update(ctx, in.ID, &store.Memory{ImportanceScore: 0}, []string{"importance_score"}); err != nil {
			return nil, err
		}
		if err := db.tags.AddTag(ctx, in.ID, "disputed"); err != nil {
			return nil, err
		}
		out.NewImportance = 0
	case "duplicate":
		if err := db.tags.AddTag(ctx, in.ID, "consolidation-candidate"); err != nil {
			return nil, err
		}
	default:
		return nil, invalidParams("rating must be one of useful, outdated, wrong, duplicate")
	}
	return out, nil
}

// BulkDelete implements the bulk_delete tool: at least one filter plus an
// explicit confirm=true safety latch.
func (s *Service) BulkDelete(ctx context.Context, in *BulkDeleteInput) (*BulkDeleteOutput, error) {
	if !in.Confirm {
		return nil, invalidParams("confirm must be true")
	}
	if in.Tag == "" && in.Project == "" && in.OlderThan == "" {
		return nil, invalidParams("at least one of tag, project, older_than is required")
	}

	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	var cutoff *time.Time
	if in.OlderThan != "" {
		t, err := time.Parse(time.RFC3339, in.OlderThan)
		if err != nil {
			return nil, invalidParams("older_than must be an RFC3339 timestamp: %v", err)
		}
		cutoff = &t
	}

	filter := store.MemoryFilter{ProjectID: in.Project, Tag: in.Tag, IncludeArchived: true, Limit: 100000}
	candidates, _, err := db.memories.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &BulkDeleteOutput{}
	for _, m := range candidates {
		if cutoff != nil && !m.CreatedAt.Before(*cutoff) {
			continue
		}
		ok, err := db.memories.Delete(ctx, m.ID, db.handle.VecForget)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Deleted++
		}
	}
	return out, nil
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func toMemoryRecord(m *store.Memory, tags []string) MemoryRecord {
	return MemoryRecord{
		ID:              m.ID,
		Content:         m.Content,
		Source:          m.Source,
		ProjectID:       m.ProjectID,
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       m.UpdatedAt.Format(time.RFC3339),
		LastAccessedAt:  m.LastAccessedAt.Format(time.RFC3339),
		AccessCount:     m.AccessCount,
		Metadata:        m.Metadata,
		MemoryType:      m.MemoryType,
		ImportanceScore: m.ImportanceScore,
		IsRule:          m.IsRule,
		StorageTier:     m.StorageTier,
		Tags:            tags,
	}
}
