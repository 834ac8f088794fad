// Package search implements hybrid keyword + vector retrieval over the
// chunk mirrors maintained by internal/store.
package search

import "time"

// Result is one memory surfaced by a search, scored by the best chunk it
// contains.
type Result struct {
	MemoryID        string
	Content         string
	Score           float64
	CreatedAt       time.Time
	ProjectID       string
	Source          string
	MemoryType      string
	ImportanceScore float64
	Tags            []string
}

// Options configures a single hybrid search call, mirroring the
// search(...) parameter list with its defaults.
type Options struct {
	ProjectFilter   string
	TagFilter       []string
	MaxResults      int
	MinScore        float64
	VectorWeight    float64
	FTSWeight       float64
	IncludeArchived bool
}

// WithDefaults fills in the default weights, limit, and threshold
// for any zero-value field.
func (o Options) WithDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}
	if o.MinScore == 0 {
		o.MinScore = 0.3
	}
	if o.VectorWeight == 0 && o.FTSWeight == 0 {
		o.VectorWeight = 0.7
		o.FTSWeight = 0.3
	}
	return o
}
