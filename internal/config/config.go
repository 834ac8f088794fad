// Package config loads the memory store's configuration contract: data
// directory, embedding dimension, chunk defaults, search weights/limits,
// scheduler cron expression, and the enabled flag. Unknown keys are ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PathsConfig configures where the store keeps its SQLite databases.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ChunkConfig configures the default chunker parameters.
type ChunkConfig struct {
	MaxTokens     int `yaml:"max_tokens" json:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// EmbeddingsConfig configures the embedding adapter.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // "static" or "http"
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig configures hybrid search defaults.
type SearchConfig struct {
	MaxResults    int     `yaml:"max_results" json:"max_results"`
	MinScore      float64 `yaml:"min_score" json:"min_score"`
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	FTSWeight     float64 `yaml:"fts_weight" json:"fts_weight"`
}

// SchedulerConfig configures the background task scheduler. RunnerEndpoint
// selects the HTTP runner when set; otherwise RunnerCommand selects the CLI
// runner, which runs the command with the task description as its final
// argument (the default command, "true", exits successfully with no output).
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Cron           string `yaml:"cron" json:"cron"`
	DefaultTimeout string `yaml:"default_timeout" json:"default_timeout"`
	MaxRetries     int    `yaml:"max_retries" json:"max_retries"`
	RunnerEndpoint string `yaml:"runner_endpoint" json:"runner_endpoint"`
	RunnerCommand  string `yaml:"runner_command" json:"runner_command"`
}

// ServerConfig configures the ambient ops HTTP endpoint.
type ServerConfig struct {
	HealthAddr string `yaml:"health_addr" json:"health_addr"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// Config is the complete configuration contract read by the core.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunk      ChunkConfig      `yaml:"chunk" json:"chunk"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" json:"scheduler"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// Default returns the configuration's hardcoded defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	dataDir := filepath.Join(os.TempDir(), "memoryd")
	if err == nil {
		dataDir = filepath.Join(home, ".memoryd")
	}
	return &Config{
		Paths: PathsConfig{DataDir: dataDir},
		Chunk: ChunkConfig{MaxTokens: 500, OverlapTokens: 100},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "static-768",
			Dimensions: 768,
			CacheSize:  1000,
		},
		Search: SearchConfig{
			MaxResults:   10,
			MinScore:     0.3,
			VectorWeight: 0.7,
			FTSWeight:    0.3,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			Cron:           "*/1 * * * *",
			DefaultTimeout: "10m",
			MaxRetries:     2,
			RunnerCommand:  "true",
		},
		Server: ServerConfig{
			HealthAddr: "127.0.0.1:8787",
			LogLevel:   "info",
		},
	}
}

// SchedulerTimeout parses Scheduler.DefaultTimeout, falling back to 10m.
func (c *Config) SchedulerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.DefaultTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// Load reads configuration from path (if it exists), merging onto the
// defaults, then applies MEMORYD_* environment variable overrides.
// A missing file is not an error — defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			var parsed Config
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.mergeWith(&parsed)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Chunk.MaxTokens != 0 {
		c.Chunk.MaxTokens = other.Chunk.MaxTokens
	}
	if other.Chunk.OverlapTokens != 0 {
		c.Chunk.OverlapTokens = other.Chunk.OverlapTokens
	}
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.VectorWeight != 0 {
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.FTSWeight != 0 {
		c.Search.FTSWeight = other.Search.FTSWeight
	}
	c.Scheduler.Enabled = other.Scheduler.Enabled || c.Scheduler.Enabled
	if other.Scheduler.Cron != "" {
		c.Scheduler.Cron = other.Scheduler.Cron
	}
	if other.Scheduler.DefaultTimeout != "" {
		c.Scheduler.DefaultTimeout = other.Scheduler.DefaultTimeout
	}
	if other.Scheduler.MaxRetries != 0 {
		c.Scheduler.MaxRetries = other.Scheduler.MaxRetries
	}
	if other.Scheduler.RunnerEndpoint != "" {
		c.Scheduler.RunnerEndpoint = other.Scheduler.RunnerEndpoint
	}
	if other.Scheduler.RunnerCommand != "" {
		c.Scheduler.RunnerCommand = other.Scheduler.RunnerCommand
	}
	if other.Server.HealthAddr != "" {
		c.Server.HealthAddr = other.Server.HealthAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies MEMORYD_* environment variables, highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMORYD_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("MEMORYD_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MEMORYD_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("MEMORYD_SEARCH_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.MinScore = f
		}
	}
	if v := os.Getenv("MEMORYD_SCHEDULER_ENABLED"); v != "" {
		c.Scheduler.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MEMORYD_SCHEDULER_CRON"); v != "" {
		c.Scheduler.Cron = v
	}
}

// Validate rejects configurations that would make the core misbehave.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive")
	}
	if c.Search.VectorWeight < 0 || c.Search.FTSWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	return nil
}

// WriteYAML writes the config to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns the config file path used by "memoryd config" when no
// --config flag is given: $XDG_CONFIG_HOME/memoryd/config.yaml, falling back
// to ~/.config/memoryd/config.yaml.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "memoryd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "memoryd", "config.yaml")
	}
	return filepath.Join(home, ".config", "memoryd", "config.yaml")
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
