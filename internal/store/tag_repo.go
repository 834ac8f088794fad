package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// TagRepository manages the shared, never-garbage-collected tag vocabulary.
type TagRepository struct {
	h *Handle
}

func NewTagRepository(h *Handle) *TagRepository { return &TagRepository{h: h} }

// Ensure returns the id of the tag named name, creating it if absent.
// Insert-if-absent then read, safe under concurrency.
func (r *TagRepository) Ensure(ctx context.Context, name string) (string, error) {
	id := NewID()
	_, err := r.h.DB().ExecContext(ctx,
		`INSERT INTO tags(id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, id, name)
	if err != nil {
		return "", memerrors.Storage("ensure tag", err)
	}

	var existing string
	err = r.h.DB().QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&existing)
	if err != nil {
		return "", memerrors.Storage("read ensured tag", err)
	}
	return existing, nil
}

// SetForMemory replaces the complete tag set of a memory, transactionally.
func (r *TagRepository) SetForMemory(ctx context.Context, memoryID string, names []string) error {
	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return memerrors.Storage("begin set tags tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, memoryID); err != nil {
		return memerrors.Storage("clear existing tags", err)
	}

	for _, name := range dedupeNonEmpty(names) {
		var tagID string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); errors.Is(err, sql.ErrNoRows) {
			tagID = NewID()
			if _, err := tx.ExecContext(ctx, `INSERT INTO tags(id, name) VALUES (?, ?)`, tagID, name); err != nil {
				return memerrors.Storage("insert tag", err)
			}
		} else if err != nil {
			return memerrors.Storage("lookup tag", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_tags(memory_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			memoryID, tagID); err != nil {
			return memerrors.Storage("link tag", err)
		}
	}

	return tx.Commit()
}

// AddTag links a single existing-or-new tag name to memoryID without
// disturbing the rest of its tag set (used by feedback effects).
func (r *TagRepository) AddTag(ctx context.Context, memoryID, name string) error {
	tagID, err := r.Ensure(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.h.DB().ExecContext(ctx,
		`INSERT INTO memory_tags(memory_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		memoryID, tagID)
	if err != nil {
		return memerrors.Storage("add tag", err)
	}
	return nil
}

// GetForMemory returns the tag names currently linked to memoryID.
func (r *TagRepository) GetForMemory(ctx context.Context, memoryID string) ([]string, error) {
	rows, err := r.h.DB().QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN memory_tags mt ON mt.tag_id = t.id
		WHERE mt.memory_id = ? ORDER BY t.name`, memoryID)
	if err != nil {
		return nil, memerrors.Storage("get tags for memory", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, memerrors.Storage("scan tag name", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetForMemories batch-loads tag names for many memories in one query,
// avoiding an N+1 query pattern.
func (r *TagRepository) GetForMemories(ctx context.Context, memoryIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(memoryIDs))
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT mt.memory_id, t.name FROM tags t
		JOIN memory_tags mt ON mt.tag_id = t.id
		WHERE mt.memory_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY t.name`
	rows, err := r.h.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerrors.Storage("get tags for memories", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memoryID, name string
		if err := rows.Scan(&memoryID, &name); err != nil {
			return nil, memerrors.Storage("scan tag row", err)
		}
		out[memoryID] = append(out[memoryID], name)
	}
	return out, rows.Err()
}

// HasAll reports whether memoryID carries every tag in required.
func (r *TagRepository) HasAll(ctx context.Context, memoryID string, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	have, err := r.GetForMemory(ctx, memoryID)
	if err != nil {
		return false, err
	}
	set := make(map[string]bool, len(have))
	for _, n := range have {
		set[n] = true
	}
	for _, n := range required {
		if !set[n] {
			return false, nil
		}
	}
	return true, nil
}

func dedupeNonEmpty(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
