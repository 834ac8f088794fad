package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// Handle wraps a single SQLite database (global.db or one project.db) plus
// its in-process HNSW vector mirror. One Handle owns exactly one *sql.DB
// with a single connection, enforcing the single-writer invariant.
type Handle struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string

	dimensions int
	vecGraph   *hnsw.Graph[uint64]
	vecIDMap   map[string]uint64
	vecKeyMap  map[uint64]string
	vecNextKey uint64
	vecOK      bool

	closed bool
}

// Open creates or attaches to the SQLite database at path (or an in-memory
// database when path is ""), enables WAL mode, runs forward-only
// migrations, and builds the in-process vector graph. SetMaxOpenConns(1)
// keeps all access on one connection.
func Open(path string, dimensions int) (*Handle, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	h := &Handle{
		db:         db,
		path:       path,
		dimensions: dimensions,
	}

	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	h.buildVectorGraph()

	return h, nil
}

// buildVectorGraph constructs the in-process HNSW graph and, if the
// persisted fallback table already has rows (e.g. reopening an existing
// database), rehydrates it from there. Construction itself never fails —
// unlike a loadable SQLite extension there is nothing to "detect" — but a
// corrupt rehydration marks the handle degraded.
func (h *Handle) buildVectorGraph() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	h.vecGraph = graph
	h.vecIDMap = make(map[string]uint64)
	h.vecKeyMap = make(map[uint64]string)
	h.vecOK = true

	rows, err := h.db.Query(`SELECT chunk_id, embedding FROM chunk_vectors_fallback`)
	if err != nil {
		slog.Warn("vector_graph_rehydrate_failed", slog.String("error", err.Error()))
		h.vecOK = false
		return
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			slog.Warn("vector_graph_rehydrate_row_failed", slog.String("error", err.Error()))
			continue
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			slog.Warn("vector_graph_rehydrate_decode_failed", slog.String("chunk_id", chunkID), slog.String("error", err.Error()))
			continue
		}
		h.vecAddLocked(chunkID, vec)
		count++
	}
	if err := rows.Err(); err != nil {
		slog.Warn("vector_graph_rehydrate_scan_failed", slog.String("error", err.Error()))
		h.vecOK = false
	}
}

// vecAddLocked inserts vec under id using lazy replacement: a pre-existing
// id is orphaned in the graph rather than deleted, avoiding a coder/hnsw
// bug with deleting the last node.
func (h *Handle) vecAddLocked(id string, vec []float32) {
	if existing, ok := h.vecIDMap[id]; ok {
		delete(h.vecKeyMap, existing)
		delete(h.vecIDMap, id)
	}
	key := h.vecNextKey
	h.vecNextKey++
	h.vecGraph.Add(hnsw.MakeNode(key, vec))
	h.vecIDMap[id] = key
	h.vecKeyMap[key] = id
}

// vecDeleteLocked lazily removes id from the graph's live set.
func (h *Handle) vecDeleteLocked(id string) {
	if key, ok := h.vecIDMap[id]; ok {
		delete(h.vecKeyMap, key)
		delete(h.vecIDMap, id)
	}
}

// VecAvailable reports whether the native in-process vector graph is usable
// for this handle; false means search_vector must fall back to brute force.
func (h *Handle) VecAvailable() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vecOK
}

// VecForget lazily removes chunkIDs from the graph's live set, used by
// callers that delete chunk rows directly rather than through
// ChunkRepository.DeleteByMemory.
func (h *Handle) VecForget(chunkIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range chunkIDs {
		h.vecDeleteLocked(id)
	}
}

// DB exposes the underlying connection for repositories in this package.
func (h *Handle) DB() *sql.DB { return h.db }

// Dimensions returns the embedding width this handle's vector graph expects.
func (h *Handle) Dimensions() int { return h.dimensions }

// Close releases the database connection. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.db != nil {
		_, _ = h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return h.db.Close()
	}
	return nil
}
