package tools

import (
	"context"
	"sort"

	"github.com/cerplabs/memoryd/internal/search"
)

// Search implements the search tool: hybrid vector+FTS retrieval fanned out
// over the scope's database(s), merged and re-ranked.
func (s *Service) Search(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	if trimmedOrEmpty(in.Query) == "" {
		return &SearchOutput{Results: []SearchResult{}}, nil
	}

	scope := in.Scope
	if scope == "" {
		scope = "all"
	}
	if scope != "global" && scope != "project" && scope != "all" {
		return nil, invalidParams("scope must be one of global, project, all")
	}

	dbs, err := s.dbsForSearchScope(scope, s.projectID(in.Project))
	if err != nil {
		return nil, err
	}

	opts := search.Options{
		TagFilter:       in.Tags,
		MaxResults:      in.MaxResults,
		MinScore:        in.MinScore,
		IncludeArchived: in.IncludeArchived,
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = s.cfg.Search.MaxResults
	}
	if opts.MinScore == 0 {
		opts.MinScore = s.cfg.Search.MinScore
	}
	opts.VectorWeight = s.cfg.Search.VectorWeight
	opts.FTSWeight = s.cfg.Search.FTSWeight

	var all []search.Result
	for _, db := range dbs {
		r, err := db.engine.Search(ctx, in.Query, opts)
		if err != nil {
			s.log().Warn("search backend failed", "error", err.Error())
			continue
		}
		all = append(all, r...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].MemoryID < all[j].MemoryID
	})
	if len(all) > opts.MaxResults {
		all = all[:opts.MaxResults]
	}

	out := &SearchOutput{Results: make([]SearchResult, 0, len(all))}
	for _, r := range all {
		out.Results = append(out.Results, SearchResult{
			ID:              r.MemoryID,
			Content:         r.Content,
			Score:           r.Score,
			ProjectID:       r.ProjectID,
			Source:          r.Source,
			MemoryType:      r.MemoryType,
			ImportanceScore: r.ImportanceScore,
			Tags:            r.Tags,
		})
	}
	return out, nil
}
