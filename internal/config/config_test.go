package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.Embeddings.Dimensions)
}

func TestSchedulerTimeout_FallsBackOnInvalidDuration(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.DefaultTimeout = "not-a-duration"
	assert.Equal(t, 10*time.Minute, cfg.SchedulerTimeout())

	cfg.Scheduler.DefaultTimeout = "30s"
	assert.Equal(t, 30*time.Second, cfg.SchedulerTimeout())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Embeddings.Dimensions, cfg.Embeddings.Dimensions)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	custom := Default()
	custom.Search.MaxResults = 25
	custom.Embeddings.Dimensions = 384
	require.NoError(t, custom.WriteYAML(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, 384, cfg.Embeddings.Dimensions)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Default().WriteYAML(path))

	t.Setenv("MEMORYD_SEARCH_MIN_SCORE", "0.42")
	t.Setenv("MEMORYD_SCHEDULER_CRON", "0 * * * *")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.42, cfg.Search.MinScore)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.Cron)
}

func TestValidate_RejectsMissingDataDirAndNonPositiveDimensions(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Embeddings.Dimensions = 0
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTripsAndExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	assert.False(t, Exists(path))

	cfg := Default()
	require.NoError(t, cfg.WriteYAML(path))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Scheduler.Cron, loaded.Scheduler.Cron)
}

func TestBackupConfigFile_NoopWhenConfigDoesNotExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	backup, err := BackupConfigFile(path)
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupConfigFile_RotatesAtMaxBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Default().WriteYAML(path))

	var last string
	for i := 0; i < MaxBackups+2; i++ {
		backup, err := BackupConfigFile(path)
		require.NoError(t, err)
		require.NotEmpty(t, backup)
		last = backup
		time.Sleep(1100 * time.Millisecond) // timestamps are second-resolution
	}

	backups, err := ListConfigBackups(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
	assert.Contains(t, backups, last)
}
