package tools

// StoreInput defines the input schema for the store tool.
type StoreInput struct {
	Text       string   `json:"text" jsonschema:"the memory text to store"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tags to attach to the memory"`
	Project    string   `json:"project,omitempty" jsonschema:"project id to scope the memory to; omit for the global store"`
	Source     string   `json:"source,omitempty" jsonschema:"origin of the memory: user, session-summary, automation, hook, extraction, consolidation"`
	Metadata   string   `json:"metadata,omitempty" jsonschema:"opaque caller-supplied metadata, never interpreted by the core"`
	MemoryType string   `json:"memory_type,omitempty" jsonschema:"general, preference, learning, objective, mistake, rule, episode"`
	Importance float64  `json:"importance,omitempty" jsonschema:"initial importance score in [0,1]"`
	IsRule     bool     `json:"is_rule,omitempty" jsonschema:"true if this memory is a standing rule"`
}

// StoreOutput defines the output schema for the store tool.
type StoreOutput struct {
	ID              string           `json:"id"`
	Chunks          int              `json:"chunks"`
	Deduplicated    bool             `json:"deduplicated,omitempty"`
	Merged          bool             `json:"merged,omitempty"`
	SimilarMemories []SimilarMemory  `json:"similar_memories,omitempty"`
}

// SimilarMemory is one "similar, not duplicate" advisory entry.
type SimilarMemory struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query           string   `json:"query" jsonschema:"the search query to execute"`
	Scope           string   `json:"scope,omitempty" jsonschema:"global, project, or all; default all"`
	Project         string   `json:"project,omitempty" jsonschema:"project id to search, required when scope is project"`
	Tags            []string `json:"tags,omitempty" jsonschema:"require every one of these tags"`
	MaxResults      int      `json:"max_results,omitempty" jsonschema:"1-50, default 10"`
	MinScore        float64  `json:"min_score,omitempty" jsonschema:"0-1, default 0.3"`
	IncludeArchived bool     `json:"include_archived,omitempty" jsonschema:"include archived-tier memories, default false"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is one scored memory surfaced by search.
type SearchResult struct {
	ID              string   `json:"id"`
	Content         string   `json:"content"`
	Score           float64  `json:"score"`
	ProjectID       string   `json:"project_id,omitempty"`
	Source          string   `json:"source,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	ImportanceScore float64  `json:"importance_score"`
	Tags            []string `json:"tags,omitempty"`
}

// GetInput defines the input schema for the get tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the memory id"`
}

// GetOutput defines the output schema for the get tool.
type GetOutput struct {
	Memory MemoryRecord `json:"memory"`
}

// MemoryRecord is the full memory record returned by get and list.
type MemoryRecord struct {
	ID              string   `json:"id"`
	Content         string   `json:"content"`
	Source          string   `json:"source,omitempty"`
	ProjectID       string   `json:"project_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	LastAccessedAt  string   `json:"last_accessed_at"`
	AccessCount     int      `json:"access_count"`
	Metadata        string   `json:"metadata,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	ImportanceScore float64  `json:"importance_score"`
	IsRule          bool     `json:"is_rule,omitempty"`
	StorageTier     string   `json:"storage_tier,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// ListInput defines the input schema for the list tool.
type ListInput struct {
	Project string `json:"project,omitempty" jsonschema:"project id; omit for the global store"`
	Tag     string `json:"tag,omitempty" jsonschema:"require this tag"`
	Source  string `json:"source,omitempty" jsonschema:"filter by source"`
	Since   string `json:"since,omitempty" jsonschema:"RFC3339 timestamp lower bound on created_at"`
	Limit   int    `json:"limit,omitempty" jsonschema:"1-100, default 20"`
	Offset  int    `json:"offset,omitempty" jsonschema:"default 0"`
}

// ListOutput defines the output schema for the list tool.
type ListOutput struct {
	Memories []MemoryRecord `json:"memories"`
	Total    int            `json:"total"`
}

// UpdateInput defines the input schema for the update tool. Only fields
// present in Fields are applied; a "content" update triggers re-chunking.
type UpdateInput struct {
	ID              string   `json:"id" jsonschema:"the memory id"`
	Fields          []string `json:"fields" jsonschema:"subset of: content, metadata, memory_type, importance_score, is_rule, storage_tier, source"`
	Content         string   `json:"content,omitempty"`
	Metadata        string   `json:"metadata,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	ImportanceScore float64  `json:"importance_score,omitempty"`
	IsRule          bool     `json:"is_rule,omitempty"`
	StorageTier     string   `json:"storage_tier,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// UpdateOutput defines the output schema for the update tool.
type UpdateOutput struct {
	Updated bool `json:"updated"`
	Chunks  int  `json:"chunks,omitempty"`
}

// DeleteInput defines the input schema for the delete tool.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"the memory id"`
}

// DeleteOutput defines the output schema for the delete tool.
type DeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// CleanupInput defines the input schema for the cleanup tool.
type CleanupInput struct {
	OlderThan string `json:"older_than,omitempty" jsonschema:"RFC3339 timestamp; memories created before this are eligible"`
	MaxCount  int    `json:"max_count,omitempty" jsonschema:"cap on deletions this call"`
	DryRun    *bool  `json:"dry_run,omitempty" jsonschema:"report counts without deleting; default true"`
	Project   string `json:"project,omitempty" jsonschema:"project id; when set only that project's database is scanned"`
}

// CleanupOutput defines the output schema for the cleanup tool.
type CleanupOutput struct {
	WouldDelete int  `json:"would_delete"`
	Deleted     int  `json:"deleted"`
	DryRun      bool `json:"dry_run"`
}

// FeedbackInput defines the input schema for the feedback tool.
type FeedbackInput struct {
	ID     string `json:"id" jsonschema:"the memory id"`
	Rating string `json:"rating" jsonschema:"useful, outdated, wrong, or duplicate"`
}

// FeedbackOutput defines the output schema for the feedback tool.
type FeedbackOutput struct {
	Updated      bool    `json:"updated"`
	NewImportance float64 `json:"new_importance,omitempty"`
	Action       string  `json:"action"`
}

// BulkDeleteInput defines the input schema for the bulk_delete tool. At
// least one of Tag, Project, OlderThan must be set.
type BulkDeleteInput struct {
	Tag       string `json:"tag,omitempty"`
	Project   string `json:"project,omitempty"`
	OlderThan string `json:"older_than,omitempty" jsonschema:"RFC3339 timestamp"`
	Confirm   bool   `json:"confirm" jsonschema:"must be true; a safety latch against accidental bulk deletes"`
}

// BulkDeleteOutput defines the output schema for the bulk_delete tool.
type BulkDeleteOutput struct {
	Deleted int `json:"deleted"`
}

// ExportInput defines the input schema for the export tool.
type ExportInput struct {
	Project string `json:"project,omitempty" jsonschema:"project id; omit for the global store"`
	Format  string `json:"format,omitempty" jsonschema:"json or markdown, default json"`
}

// ExportOutput defines the output schema for the export tool.
type ExportOutput struct {
	Data   string `json:"data"`
	Count  int    `json:"count"`
	Format string `json:"format"`
}

// ImportInput defines the input schema for the import tool.
type ImportInput struct {
	Data    string `json:"data" jsonschema:"serialized export payload"`
	Format  string `json:"format,omitempty" jsonschema:"json, default json"`
	Project string `json:"project,omitempty" jsonschema:"project id to import into; omit for the global store"`
}

// ImportOutput defines the output schema for the import tool.
type ImportOutput struct {
	Imported int `json:"imported"`
	Errors   int `json:"errors"`
}

// TaskAddInput defines the input schema for the task_add tool.
type TaskAddInput struct {
	Description  string `json:"description" jsonschema:"what the task should do"`
	Type         string `json:"type,omitempty" jsonschema:"code-review, test-runner, doc-updater, refactor, custom"`
	Project      string `json:"project,omitempty" jsonschema:"project id this task belongs to"`
	RepoURL      string `json:"repo_url,omitempty" jsonschema:"git remote to shallow-clone before running the task"`
	Priority     int    `json:"priority,omitempty" jsonschema:"1-10, default 5, higher runs first"`
	ScheduledFor string `json:"scheduled_for,omitempty" jsonschema:"RFC3339 timestamp; do not claim before this time"`
	Context      string `json:"context,omitempty" jsonschema:"opaque key/value context passed to the runner"`
	TimeoutMS    int64  `json:"timeout_ms,omitempty" jsonschema:"deadline for a single run attempt"`
}

// TaskAddOutput defines the output schema for the task_add tool.
type TaskAddOutput struct {
	ID           string `json:"id"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
}

// TaskListInput defines the input schema for the task_list tool.
type TaskListInput struct {
	Status  string `json:"status,omitempty" jsonschema:"pending, running, completed, failed, cancelled"`
	Project string `json:"project,omitempty"`
	Since   string `json:"since,omitempty" jsonschema:"RFC3339 timestamp"`
	Limit   int    `json:"limit,omitempty" jsonschema:"1-100, default 20"`
}

// TaskListOutput defines the output schema for the task_list tool.
type TaskListOutput struct {
	Tasks []TaskRecord `json:"tasks"`
}

// TaskRecord is one task as surfaced to callers.
type TaskRecord struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	ProjectID    string `json:"project_id,omitempty"`
	RepoURL      string `json:"repo_url,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	RetryCount   int    `json:"retry_count"`
	MaxRetries   int    `json:"max_retries"`
	CreatedAt    string `json:"created_at"`
}

// TaskResultsInput defines the input schema for the task_results tool.
type TaskResultsInput struct {
	TaskID string `json:"task_id,omitempty"`
	Since  string `json:"since,omitempty" jsonschema:"RFC3339 timestamp"`
	Limit  int    `json:"limit,omitempty" jsonschema:"1-100, default 10"`
}

// TaskResultsOutput defines the output schema for the task_results tool.
type TaskResultsOutput struct {
	Results []TaskResultRecord `json:"results"`
}

// TaskResultRecord is one task result as surfaced to callers.
type TaskResultRecord struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	Summary    string  `json:"summary,omitempty"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	TokensUsed int     `json:"tokens_used,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	MemoryID   string  `json:"memory_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// TaskCancelInput defines the input schema for the task_cancel tool.
type TaskCancelInput struct {
	ID string `json:"id" jsonschema:"the task id"`
}

// TaskCancelOutput defines the output schema for the task_cancel tool.
type TaskCancelOutput struct {
	Cancelled bool `json:"cancelled"`
}
