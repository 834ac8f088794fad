package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/coder/hnsw"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// ChunkRepository owns chunk rows plus their two mirrors: the in-process
// HNSW vector graph (or, when degraded, a brute-force fallback table) and
// the SQLite FTS5 keyword index.
type ChunkRepository struct {
	h *Handle
}

func NewChunkRepository(h *Handle) *ChunkRepository { return &ChunkRepository{h: h} }

// CreateChunks inserts chunks and both mirrors for one memory in a single
// transaction, inserting into three tables.
func (r *ChunkRepository) CreateChunks(ctx context.Context, memoryID string, chunks []ChunkWithEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return memerrors.Storage("begin create chunks tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, memory_id, content, chunk_index, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return memerrors.Storage("prepare chunk insert", err)
	}
	defer chunkStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks_fts(chunk_id, memory_id, content) VALUES (?, ?, ?)`)
	if err != nil {
		return memerrors.Storage("prepare fts insert", err)
	}
	defer ftsStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_vectors_fallback(chunk_id, memory_id, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return memerrors.Storage("prepare vector fallback insert", err)
	}
	defer vecStmt.Close()

	now := time.Now().UTC()
	ids := make([]string, len(chunks))
	for i, cwe := range chunks {
		c := cwe.Chunk
		if c.ID == "" {
			c.ID = NewID()
		}
		ids[i] = c.ID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := chunkStmt.ExecContext(ctx, c.ID, memoryID, c.Content, c.ChunkIndex, c.TokenCount, c.CreatedAt.Unix()); err != nil {
			return memerrors.Storage("insert chunk", err)
		}
		if _, err := ftsStmt.ExecContext(ctx, c.ID, memoryID, c.Content); err != nil {
			return memerrors.Storage("insert fts chunk", err)
		}
		if _, err := vecStmt.ExecContext(ctx, c.ID, memoryID, encodeEmbedding(cwe.Embedding)); err != nil {
			return memerrors.Storage("insert fallback vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return memerrors.Storage("commit create chunks", err)
	}

	r.h.mu.Lock()
	for i, cwe := range chunks {
		r.h.vecAddLocked(ids[i], cwe.Embedding)
	}
	r.h.mu.Unlock()

	return nil
}

// DeleteByMemory removes all chunks and mirrors for memoryID in one
// transaction.
func (r *ChunkRepository) DeleteByMemory(ctx context.Context, memoryID string) error {
	rows, err := r.h.DB().QueryContext(ctx, `SELECT id FROM chunks WHERE memory_id = ?`, memoryID)
	if err != nil {
		return memerrors.Storage("list chunks for delete", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return memerrors.Storage("scan chunk id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	tx, err := r.h.DB().BeginTx(ctx, nil)
	if err != nil {
		return memerrors.Storage("begin delete chunks tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE memory_id = ?`, memoryID); err != nil {
		return memerrors.Storage("delete fts chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors_fallback WHERE memory_id = ?`, memoryID); err != nil {
		return memerrors.Storage("delete vector fallback chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE memory_id = ?`, memoryID); err != nil {
		return memerrors.Storage("delete chunks", err)
	}
	if err := tx.Commit(); err != nil {
		return memerrors.Storage("commit delete chunks", err)
	}

	r.h.mu.Lock()
	for _, id := range ids {
		r.h.vecDeleteLocked(id)
	}
	r.h.mu.Unlock()

	return nil
}

// SearchVector returns the k nearest chunks to queryEmbedding by cosine
// similarity, using the native HNSW graph when available, otherwise
// brute-force cosine over GetAllEmbeddings.
func (r *ChunkRepository) SearchVector(ctx context.Context, queryEmbedding []float32, k int) ([]ChunkMatch, error) {
	if r.h.VecAvailable() {
		return r.searchVectorGraph(ctx, queryEmbedding, k)
	}
	return r.searchVectorBruteForce(ctx, queryEmbedding, k)
}

func (r *ChunkRepository) searchVectorGraph(ctx context.Context, query []float32, k int) ([]ChunkMatch, error) {
	r.h.mu.RLock()
	defer r.h.mu.RUnlock()

	if r.h.vecGraph == nil || r.h.vecGraph.Len() == 0 {
		return nil, nil
	}

	nodes := r.h.vecGraph.Search(query, k)
	chunkIDs := make([]string, 0, len(nodes))
	distances := make(map[string]float32, len(nodes))
	for _, n := range nodes {
		id, ok := r.h.vecKeyMap[n.Key]
		if !ok {
			continue
		}
		chunkIDs = append(chunkIDs, id)
		distances[id] = hnsw.CosineDistance(query, n.Value)
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := r.fetchChunkRows(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		d := distances[rows[i].ChunkID]
		rows[i].Score = 1.0 - float64(d)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if len(rows) > k {
		rows = rows[:k]
	}
	return rows, nil
}

func (r *ChunkRepository) searchVectorBruteForce(ctx context.Context, query []float32, k int) ([]ChunkMatch, error) {
	all, err := r.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	type scored struct {
		chunkID, memoryID string
		score             float64
	}
	scores := make([]scored, 0, len(all))
	for chunkID, e := range all {
		// hnsw.CosineDistance is 1 - cos, so 1 - distance in the graph path
		// collapses back to the raw cosine; emit the same scale here so both
		// backends rank and score identically for the same inputs.
		score := cosineSimilarity(query, e.Embedding)
		scores = append(scores, scored{chunkID: chunkID, memoryID: e.MemoryID, score: score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > k {
		scores = scores[:k]
	}

	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = s.chunkID
	}
	rows, err := r.fetchChunkRows(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]float64, len(scores))
	for _, s := range scores {
		byID[s.chunkID] = s.score
	}
	for i := range rows {
		rows[i].Score = byID[rows[i].ChunkID]
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows, nil
}

// embeddingRow pairs a stored embedding with its owning memory.
type embeddingRow struct {
	MemoryID  string
	Embedding []float32
}

// GetAllEmbeddings loads every fallback-table embedding, used by the
// brute-force search path.
func (r *ChunkRepository) GetAllEmbeddings(ctx context.Context) (map[string]embeddingRow, error) {
	rows, err := r.h.DB().QueryContext(ctx, `SELECT chunk_id, memory_id, embedding FROM chunk_vectors_fallback`)
	if err != nil {
		return nil, memerrors.Storage("load all embeddings", err)
	}
	defer rows.Close()

	out := make(map[string]embeddingRow)
	for rows.Next() {
		var chunkID, memoryID string
		var blob []byte
		if err := rows.Scan(&chunkID, &memoryID, &blob); err != nil {
			return nil, memerrors.Storage("scan embedding row", err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			continue
		}
		out[chunkID] = embeddingRow{MemoryID: memoryID, Embedding: vec}
	}
	return out, rows.Err()
}

func (r *ChunkRepository) fetchChunkRows(ctx context.Context, chunkIDs []string) ([]ChunkMatch, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT id, memory_id, content, chunk_index FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.h.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerrors.Storage("fetch chunk rows", err)
	}
	defer rows.Close()

	var out []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.MemoryID, &m.Content, &m.ChunkIndex); err != nil {
			return nil, memerrors.Storage("scan chunk row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var ftsQuoteEscaper = strings.NewReplacer(`"`, `""`)

var whitespaceSplit = regexp.MustCompile(`\s+`)

// SearchFTS tokenizes query into whitespace-separated terms, quotes and ANDs
// them into an FTS5 MATCH expression, and converts bm25() rank to a
// positive similarity 1/(1+|rank|).
func (r *ChunkRepository) SearchFTS(ctx context.Context, query string, k int) ([]ChunkMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	terms := whitespaceSplit.Split(query, -1)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+ftsQuoteEscaper.Replace(t)+`"`)
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	matchExpr := strings.Join(quoted, " AND ")

	rows, err := r.h.DB().QueryContext(ctx, `
		SELECT chunk_id, memory_id, content, bm25(chunks_fts) AS rank
		FROM chunks_fts WHERE chunks_fts MATCH ?
		ORDER BY rank LIMIT ?`, matchExpr, k)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, memerrors.Storage("fts search", err)
	}
	defer rows.Close()

	var out []ChunkMatch
	for rows.Next() {
		var m ChunkMatch
		var rank float64
		if err := rows.Scan(&m.ChunkID, &m.MemoryID, &m.Content, &rank); err != nil {
			return nil, memerrors.Storage("scan fts row", err)
		}
		m.Score = 1.0 / (1.0 + absFloat(rank))
		out = append(out, m)
	}
	return out, rows.Err()
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
