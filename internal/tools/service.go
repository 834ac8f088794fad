// Package tools implements the thin dispatch layer that maps validated
// RPC inputs onto the core operations in internal/memory, internal/search,
// and internal/scheduler: one Service method per tool, typed Input/Output
// structs, core errors wrapped into {error, is_error} at the MCP boundary.
package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/embed"
	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/memory"
	"github.com/cerplabs/memoryd/internal/project"
	"github.com/cerplabs/memoryd/internal/search"
	"github.com/cerplabs/memoryd/internal/store"
)

// dbSet is one database handle plus the repositories and engines built on
// top of it. A Service lazily builds one dbSet per path (global or a given
// project) via Manager and caches the derived objects alongside the handle.
type dbSet struct {
	handle   *store.Handle
	memories *store.MemoryRepository
	tags     *store.TagRepository
	chunks   *store.ChunkRepository
	tasks    *store.TaskRepository
	results  *store.TaskResultRepository
	pipeline *memory.Pipeline
	engine   *search.Engine
}

// Service wires the core components together and implements one method per
// tool in the operation set exposed to the RPC boundary.
type Service struct {
	manager  *store.Manager
	embedder embed.Embedder
	cfg      *config.Config
	logger   *slog.Logger
}

// NewService builds a Service over manager using embedder for all query and
// document embeddings and cfg for chunk/search defaults.
func NewService(manager *store.Manager, embedder embed.Embedder, cfg *config.Config) *Service {
	return &Service{
		manager:  manager,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default().With("component", "tools"),
	}
}

// dbForProject resolves a dbSet for projectID, or the global database when
// projectID is empty.
func (s *Service) dbForProject(projectID string) (*dbSet, error) {
	var h *store.Handle
	var err error
	if projectID == "" {
		h, err = s.manager.Global()
	} else {
		h, err = s.manager.Project(projectID)
	}
	if err != nil {
		return nil, err
	}
	return s.buildSet(h), nil
}

func (s *Service) buildSet(h *store.Handle) *dbSet {
	memories := store.NewMemoryRepository(h)
	tags := store.NewTagRepository(h)
	chunks := store.NewChunkRepository(h)
	tasks := store.NewTaskRepository(h)
	results := store.NewTaskResultRepository(h)

	pipeline := &memory.Pipeline{
		Memories:      memories,
		Chunks:        chunks,
		Tags:          tags,
		Embedder:      s.embedder,
		MaxTokens:     s.cfg.Chunk.MaxTokens,
		OverlapTokens: s.cfg.Chunk.OverlapTokens,
	}
	engine := search.NewEngine(chunks, memories, tags, s.embedder)

	return &dbSet{
		handle: h, memories: memories, tags: tags, chunks: chunks,
		tasks: tasks, results: results, pipeline: pipeline, engine: engine,
	}
}

// dbsForSearchScope resolves the dbSet(s) a search(scope=...) call should
// fan out across: "project" is exactly the named project, "global" is the
// global database, "all" (the default) is the global database plus the
// named project's database when one is given.
func (s *Service) dbsForSearchScope(scope, projectID string) ([]*dbSet, error) {
	switch scope {
	case "project":
		if projectID == "" {
			return nil, invalidParams("scope=project requires project to be set")
		}
		ds, err := s.dbForProject(projectID)
		if err != nil {
			return nil, err
		}
		return []*dbSet{ds}, nil
	case "global":
		ds, err := s.dbForProject("")
		if err != nil {
			return nil, err
		}
		return []*dbSet{ds}, nil
	default: // "all" or unset
		global, err := s.dbForProject("")
		if err != nil {
			return nil, err
		}
		sets := []*dbSet{global}
		if projectID != "" {
			proj, err := s.dbForProject(projectID)
			if err != nil {
				return nil, err
			}
			sets = append(sets, proj)
		}
		return sets, nil
	}
}

// allDBs returns a dbSet for the global database plus every project
// database known on disk, global first, used by operations that address a
// memory by bare id and by the jobs that sweep every database.
func (s *Service) allDBs() ([]*dbSet, error) {
	global, err := s.dbForProject("")
	if err != nil {
		return nil, err
	}
	sets := []*dbSet{global}

	ids, err := s.manager.ProjectIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ds, err := s.dbForProject(id)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ds)
	}
	return sets, nil
}

// resolveByID locates the dbSet holding memory id, searching the global
// database first, then every known project database. Returns
// memerrors.NotFound when no database holds it.
func (s *Service) resolveByID(ctx context.Context, id string) (*dbSet, *store.Memory, error) {
	dbs, err := s.allDBs()
	if err != nil {
		return nil, nil, err
	}
	for _, db := range dbs {
		m, err := db.memories.Peek(ctx, id)
		if err == nil {
			return db, m, nil
		}
		if !memerrors.IsNotFound(err) {
			return nil, nil, err
		}
	}
	return nil, nil, memerrors.NotFound("memory " + id + " not found")
}

// projectID resolves a caller-supplied project reference. Hook clients pass
// their working directory rather than a precomputed id; a path-like value is
// resolved through project detection (git remote, else hashed cwd) to its
// stable id, anything else is taken as an id verbatim.
func (s *Service) projectID(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." {
		if info, err := project.Detect(ref); err == nil {
			return info.ID
		}
	}
	return ref
}

func trimmedOrEmpty(s string) string { return strings.TrimSpace(s) }

// log exposes the service logger to sibling files in this package.
func (s *Service) log() *slog.Logger { return s.logger }
