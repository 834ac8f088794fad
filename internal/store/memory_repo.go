package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// MemoryRepository provides typed CRUD for memories, batch-friendly and
// context-first.
type MemoryRepository struct {
	h *Handle
}

func NewMemoryRepository(h *Handle) *MemoryRepository { return &MemoryRepository{h: h} }

// Create inserts m, filling CreatedAt/UpdatedAt/LastAccessedAt with now if
// zero and assigning an id if empty.
func (r *MemoryRepository) Create(ctx context.Context, m *Memory) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = now
	}
	if m.MemoryType == "" {
		m.MemoryType = MemoryTypeGeneral
	}
	if m.StorageTier == "" {
		m.StorageTier = TierActive
	}

	_, err := r.h.DB().ExecContext(ctx, `
		INSERT INTO memories(
			id, content, source, project_id, created_at, updated_at,
			last_accessed_at, access_count, metadata, memory_type,
			importance_score, is_rule, storage_tier
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, m.Source, m.ProjectID,
		m.CreatedAt.Unix(), m.UpdatedAt.Unix(), m.LastAccessedAt.Unix(),
		m.AccessCount, m.Metadata, m.MemoryType, m.ImportanceScore,
		boolToInt(m.IsRule), m.StorageTier,
	)
	if err != nil {
		return memerrors.Storage("insert memory", err)
	}
	return nil
}

// GetByID loads a memory and, as a side effect, bumps access_count and
// last_accessed_at atomically.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Memory, error) {
	m, err := r.scanOne(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = r.h.DB().ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		now.Unix(), id)
	if err != nil {
		return nil, memerrors.Storage("bump access stats", err)
	}
	m.AccessCount++
	m.LastAccessedAt = now
	return m, nil
}

// Peek loads a memory without the access-tracking side effect, used by
// internal callers (dedup, tiering, consolidation) that must not perturb
// recency signals.
func (r *MemoryRepository) Peek(ctx context.Context, id string) (*Memory, error) {
	return r.scanOne(ctx, id)
}

func (r *MemoryRepository) scanOne(ctx context.Context, id string) (*Memory, error) {
	row := r.h.DB().QueryRowContext(ctx, `
		SELECT id, content, source, project_id, created_at, updated_at,
		       last_accessed_at, access_count, metadata, memory_type,
		       importance_score, is_rule, storage_tier
		FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memerrors.NotFound(fmt.Sprintf("memory %s not found", id))
	}
	if err != nil {
		return nil, memerrors.Storage("scan memory", err)
	}
	return m, nil
}

// GetByIDs batch-loads memories without the access-tracking side effect,
// used by search result enrichment to avoid N+1 queries.
func (r *MemoryRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*Memory, error) {
	out := make(map[string]*Memory, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT id, content, source, project_id, created_at, updated_at,
		       last_accessed_at, access_count, metadata, memory_type,
		       importance_score, is_rule, storage_tier
		FROM memories WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.h.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerrors.Storage("batch load memories", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, memerrors.Storage("scan batch memory row", err)
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// List returns the filtered page of memories (ordered created_at DESC, id
// as tie-break) plus the total count before limit/offset.
func (r *MemoryRepository) List(ctx context.Context, f MemoryFilter) ([]*Memory, int, error) {
	where, args := buildMemoryWhere(f)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM memories" + where
	if err := r.h.DB().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, memerrors.Storage("count memories", err)
	}

	query := `
		SELECT id, content, source, project_id, created_at, updated_at,
		       last_accessed_at, access_count, metadata, memory_type,
		       importance_score, is_rule, storage_tier
		FROM memories` + where + ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.h.DB().QueryContext(ctx, query, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, memerrors.Storage("list memories", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, 0, memerrors.Storage("scan memory row", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, memerrors.Storage("iterate memories", err)
	}
	return out, total, nil
}

func buildMemoryWhere(f MemoryFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.Unix())
	}
	if !f.IncludeArchived {
		clauses = append(clauses, "storage_tier != ?")
		args = append(args, TierArchive)
	}
	if f.Tag != "" {
		clauses = append(clauses, `id IN (
			SELECT mt.memory_id FROM memory_tags mt
			JOIN tags t ON t.id = mt.tag_id WHERE t.name = ?)`)
		args = append(args, f.Tag)
	}
	for _, tag := range f.Tags {
		clauses = append(clauses, `id IN (
			SELECT mt.memory_id FROM memory_tags mt
			JOIN tags t ON t.id = mt.tag_id WHERE t.name = ?)`)
		args = append(args, tag)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Update applies a partial update; zero-value fields in patch that are not
// explicitly included in `fields` are left untouched.
func (r *MemoryRepository) Update(ctx context.Context, id string, patch *Memory, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)

	for _, f := range fields {
		switch f {
		case "content":
			set = append(set, "content = ?")
			args = append(args, patch.Content)
		case "metadata":
			set = append(set, "metadata = ?")
			args = append(args, patch.Metadata)
		case "memory_type":
			set = append(set, "memory_type = ?")
			args = append(args, patch.MemoryType)
		case "importance_score":
			set = append(set, "importance_score = ?")
			args = append(args, patch.ImportanceScore)
		case "is_rule":
			set = append(set, "is_rule = ?")
			args = append(args, boolToInt(patch.IsRule))
		case "storage_tier":
			set = append(set, "storage_tier = ?")
			args = append(args, patch.StorageTier)
		case "source":
			set = append(set, "source = ?")
			args = append(args, patch.Source)
		}
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC().Unix())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE memories SET %s WHERE id = ?", strings.Join(set, ", "))
	res, err := r.h.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return memerrors.Storage("update memory", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerrors.NotFound(fmt.Sprintf("memory %s not found", id))
	}
	return nil
}

// Delete removes a memory and, in the same transaction, every chunk,
// mirror row, and tag-join row that references it. Returns false if the
// memory did not exist.
func (r *MemoryRepository) Delete(ctx context.Context, id string, onVectorDelete func(chunkIDs []string)) (bool, error) {
	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, memerrors.Storage("begin delete tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE memory_id = ?`, id)
	if err != nil {
		return false, memerrors.Storage("list chunks for delete", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return false, memerrors.Storage("scan chunk id", err)
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE memory_id = ?`, id); err != nil {
		return false, memerrors.Storage("delete fts rows", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors_fallback WHERE memory_id = ?`, id); err != nil {
		return false, memerrors.Storage("delete vector fallback rows", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, id); err != nil {
		return false, memerrors.Storage("delete tag joins", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE memory_id = ?`, id); err != nil {
		return false, memerrors.Storage("delete chunks", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, memerrors.Storage("delete memory", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, memerrors.Storage("commit delete", err)
	}
	if onVectorDelete != nil {
		onVectorDelete(chunkIDs)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	return scanMemoryRows(row)
}

func scanMemoryRows(row rowScanner) (*Memory, error) {
	var m Memory
	var createdAt, updatedAt, lastAccessedAt int64
	var isRule int
	if err := row.Scan(
		&m.ID, &m.Content, &m.Source, &m.ProjectID,
		&createdAt, &updatedAt, &lastAccessedAt, &m.AccessCount,
		&m.Metadata, &m.MemoryType, &m.ImportanceScore, &isRule, &m.StorageTier,
	); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	m.LastAccessedAt = time.Unix(lastAccessedAt, 0).UTC()
	m.IsRule = isRule != 0
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
