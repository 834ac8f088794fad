// Package store owns SQLite-backed persistence: connection handles per
// database file, schema migrations, and typed repositories for memories,
// tags, chunks (with vector + FTS mirrors), tasks, and task results.
package store

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Memory is the atomic unit of recall.
type Memory struct {
	ID              string
	Content         string
	Source          string
	ProjectID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int
	Metadata        string // opaque, pre-serialized by the caller
	MemoryType      string
	ImportanceScore float64
	IsRule          bool
	StorageTier     string
}

const (
	SourceUser            = "user"
	SourceSessionSummary  = "session-summary"
	SourceAutomation      = "automation"
	SourceHook            = "hook"
	SourceExtraction      = "extraction"
	SourceConsolidation   = "consolidation"
)

const (
	MemoryTypeGeneral   = "general"
	MemoryTypePreference = "preference"
	MemoryTypeLearning  = "learning"
	MemoryTypeObjective = "objective"
	MemoryTypeMistake   = "mistake"
	MemoryTypeRule      = "rule"
	MemoryTypeEpisode   = "episode"
)

const (
	TierActive  = "active"
	TierWorking = "working"
	TierArchive = "archive"
)

// Chunk is a contiguous piece of a memory.
type Chunk struct {
	ID         string
	MemoryID   string
	Content    string
	ChunkIndex int
	TokenCount int
	CreatedAt  time.Time
}

// ChunkWithEmbedding pairs a chunk with its unit-length embedding, as
// produced by the store pipeline before a transactional write.
type ChunkWithEmbedding struct {
	Chunk     Chunk
	Embedding []float32
}

// ChunkMatch is a scored chunk-level search hit.
type ChunkMatch struct {
	ChunkID    string
	MemoryID   string
	Content    string
	Score      float64
	ChunkIndex int
}

// Tag is a deduplicated label shared across memories.
type Tag struct {
	ID   string
	Name string
}

// Task is a unit of scheduled background work.
type Task struct {
	ID           string
	Description  string
	Type         string
	Status       string
	Priority     int
	ProjectID    string
	RepoURL      string
	ScheduledFor *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RetryCount   int
	MaxRetries   int
	TimeoutMS    int64
	Context      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	TaskTypeCodeReview  = "code-review"
	TaskTypeTestRunner  = "test-runner"
	TaskTypeDocUpdater  = "doc-updater"
	TaskTypeRefactor    = "refactor"
	TaskTypeCustom      = "custom"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// TaskResult is one execution outcome of a task.
type TaskResult struct {
	ID         string
	TaskID     string
	Output     string
	Summary    string
	Success    bool
	Error      string
	DurationMS int64
	TokensUsed int
	CostUSD    float64
	MemoryID   string
	CreatedAt  time.Time
}

// MemoryFilter narrows a memory list/search.
type MemoryFilter struct {
	ProjectID       string
	Tag             string
	Tags            []string
	Source          string
	Since           *time.Time
	IncludeArchived bool
	Limit           int
	Offset          int
}

// NewID returns a random 128-bit identifier rendered as lowercase hex.
// Uses uuid.New()'s random bytes as the entropy source but skips the
// dashed string form; ids are opaque and never parsed back.
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
