package tiering

import (
	"context"
	"time"

	"github.com/cerplabs/memoryd/internal/embed"
	memerrors "github.com/cerplabs/memoryd/internal/errors"
	"github.com/cerplabs/memoryd/internal/memory"
	"github.com/cerplabs/memoryd/internal/store"
)

const (
	archiveMinSimilarity = 0.85
	consolidationLookbackDays = 30
	consolidationMaxAccess    = 3
)

// Job recomputes importance, reassigns storage tiers, and consolidates
// stale low-access memories for a single database handle.
type Job struct {
	Handle   *store.Handle
	Memories *store.MemoryRepository
	Chunks   *store.ChunkRepository
	Pipeline *memory.Pipeline
	Embedder embed.Embedder
}

// RecomputeImportance recomputes the score for every memory in one
// transaction.
func (j *Job) RecomputeImportance(ctx context.Context, now time.Time) (int, error) {
	tx, err := j.Handle.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, memerrors.Storage("begin importance tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, source, memory_type, last_accessed_at, access_count, is_rule
		FROM memories`)
	if err != nil {
		return 0, memerrors.Storage("list memories for importance", err)
	}
	type update struct {
		id    string
		score float64
	}
	var updates []update
	for rows.Next() {
		var id, source, memoryType string
		var lastAccessedAt int64
		var accessCount, isRuleInt int
		if err := rows.Scan(&id, &source, &memoryType, &lastAccessedAt, &accessCount, &isRuleInt); err != nil {
			rows.Close()
			return 0, memerrors.Storage("scan memory for importance", err)
		}
		days := now.Sub(time.Unix(lastAccessedAt, 0).UTC()).Hours() / 24
		score := Importance(source, memoryType, days, accessCount, isRuleInt != 0)
		updates = append(updates, update{id: id, score: score})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, memerrors.Storage("iterate memories for importance", err)
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `UPDATE memories SET importance_score = ? WHERE id = ?`)
	if err != nil {
		return 0, memerrors.Storage("prepare importance update", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.score, u.id); err != nil {
			return 0, memerrors.Storage("update importance", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, memerrors.Storage("commit importance recompute", err)
	}
	return len(updates), nil
}

// Tier reassigns storage_tier for every memory by the three disjoint rules
// in one transaction, and returns (promoted, demoted, archived).
func (j *Job) Tier(ctx context.Context, now time.Time) (promoted, demoted, archived int, err error) {
	tx, err := j.Handle.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, memerrors.Storage("begin tiering tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, last_accessed_at, importance_score, is_rule, storage_tier
		FROM memories`)
	if err != nil {
		return 0, 0, 0, memerrors.Storage("list memories for tiering", err)
	}
	type assignment struct {
		id       string
		oldTier  string
		newTier  string
	}
	var assignments []assignment
	for rows.Next() {
		var id, oldTier string
		var lastAccessedAt int64
		var importance float64
		var isRuleInt int
		if err := rows.Scan(&id, &lastAccessedAt, &importance, &isRuleInt, &oldTier); err != nil {
			rows.Close()
			return 0, 0, 0, memerrors.Storage("scan memory for tiering", err)
		}
		lastAccess := time.Unix(lastAccessedAt, 0).UTC()
		isRule := isRuleInt != 0
		newTier := classifyTier(now, lastAccess, importance, isRule)
		assignments = append(assignments, assignment{id: id, oldTier: oldTier, newTier: newTier})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, 0, memerrors.Storage("iterate memories for tiering", err)
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `UPDATE memories SET storage_tier = ? WHERE id = ?`)
	if err != nil {
		return 0, 0, 0, memerrors.Storage("prepare tier update", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if a.newTier == a.oldTier {
			continue
		}
		if _, err := stmt.ExecContext(ctx, a.newTier, a.id); err != nil {
			return 0, 0, 0, memerrors.Storage("update tier", err)
		}
		switch {
		case a.newTier == store.TierActive:
			promoted++
		case a.newTier == store.TierArchive:
			archived++
		case a.newTier == store.TierWorking && a.oldTier == store.TierActive:
			demoted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, memerrors.Storage("commit tiering", err)
	}
	return promoted, demoted, archived, nil
}

func classifyTier(now, lastAccessedAt time.Time, importance float64, isRule bool) string {
	daysSinceAccess := now.Sub(lastAccessedAt).Hours() / 24
	isActive := daysSinceAccess < 7 || importance > 0.7 || isRule
	if isActive {
		return store.TierActive
	}
	if daysSinceAccess >= 30 && importance < 0.3 && !isRule {
		return store.TierArchive
	}
	return store.TierWorking
}

// Consolidate finds stale low-access candidates and merges each into its
// best similar match. Returns (merged, deleted, skipped).
func (j *Job) Consolidate(ctx context.Context, maxPerRun int, now time.Time) (merged, deleted, skipped int, err error) {
	if maxPerRun <= 0 {
		return 0, 0, 0, nil
	}
	cutoff := now.AddDate(0, 0, -consolidationLookbackDays).Unix()

	rows, err := j.Handle.DB().QueryContext(ctx, `
		SELECT id FROM memories
		WHERE is_rule = 0 AND access_count <= ? AND created_at < ?
		ORDER BY access_count ASC, created_at ASC
		LIMIT ?`, consolidationMaxAccess, cutoff, 2*maxPerRun)
	if err != nil {
		return 0, 0, 0, memerrors.Storage("list consolidation candidates", err)
	}
	var candidateIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, 0, 0, memerrors.Storage("scan candidate id", err)
		}
		candidateIDs = append(candidateIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, 0, memerrors.Storage("iterate candidates", err)
	}

	mergedThisRun := make(map[string]bool, len(candidateIDs))

	for _, candidateID := range candidateIDs {
		if merged >= maxPerRun {
			break
		}
		if mergedThisRun[candidateID] {
			continue
		}
		candidate, err := j.Memories.Peek(ctx, candidateID)
		if err != nil {
			if memerrors.IsNotFound(err) {
				continue
			}
			return merged, deleted, skipped, err
		}

		// kind=query, not document: the asymmetric query prefix matches
		// similar content across different phrasings better.
		q, err := j.Embedder.Embed(ctx, candidate.Content, embed.KindQuery)
		if err != nil {
			skipped++
			continue
		}

		matches, err := j.Chunks.SearchVector(ctx, q, maxPerRun+len(mergedThisRun)+1)
		if err != nil {
			skipped++
			continue
		}

		best, bestScore := "", 0.0
		seenBest := make(map[string]float64)
		for _, m := range matches {
			if m.MemoryID == candidateID || mergedThisRun[m.MemoryID] {
				continue
			}
			if s, ok := seenBest[m.MemoryID]; !ok || m.Score > s {
				seenBest[m.MemoryID] = m.Score
			}
		}
		for id, s := range seenBest {
			if s > bestScore {
				best, bestScore = id, s
			}
		}

		if best == "" || bestScore < archiveMinSimilarity {
			skipped++
			continue
		}

		target, err := j.Memories.Peek(ctx, best)
		if err != nil {
			skipped++
			continue
		}

		newContent := target.Content + "\n\n---\n\n" + candidate.Content
		patch := &store.Memory{Content: newContent}
		if err := j.Memories.Update(ctx, best, patch, []string{"content"}); err != nil {
			return merged, deleted, skipped, err
		}
		if _, err := j.Pipeline.RebuildChunks(ctx, best, newContent); err != nil {
			return merged, deleted, skipped, err
		}

		ok, err := j.Memories.Delete(ctx, candidateID, j.Handle.VecForget)
		if err != nil {
			return merged, deleted, skipped, err
		}
		if ok {
			deleted++
		}
		merged++
		mergedThisRun[candidateID] = true
	}

	return merged, deleted, skipped, nil
}
