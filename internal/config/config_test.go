package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 500, cfg.Portal.MinIntervalMillis)
	assert.Equal(t, 3, cfg.Portal.MaxRetries)
	assert.Equal(t, 120, cfg.Downloader.TimeoutSecs)
	assert.True(t, cfg.Downloader.SkipIfExisting)
	assert.Equal(t, "2019", cfg.Taxonomy.DefaultVersion)
	assert.Equal(t, 10, cfg.Orchestrator.PoolSize)
	assert.Equal(t, 500, cfg.Orchestrator.MaxBatchSize)
	assert.False(t, cfg.LLM.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  sqlite_path: ./test.db
log:
  level: debug
  format: console
orchestrator:
  pool_size: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Orchestrator.PoolSize)
	// Defaults still apply for unset values.
	assert.Equal(t, 500, cfg.Orchestrator.MaxBatchSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FUNDSYNC_STORE_DRIVER", "postgres")
	t.Setenv("FUNDSYNC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FUNDSYNC_ORCHESTRATOR_POOL_SIZE", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Orchestrator.PoolSize)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all validation-relevant defaults populated.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Portal.BaseURL = "http://reportdocs.static.szse.cn"
	cfg.Taxonomy.ConfigDir = "./taxonomy"
	cfg.Orchestrator.PoolSize = 10
	cfg.Orchestrator.MaxBatchSize = 500
	return cfg
}

func TestValidateService_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("service"))
}

func TestValidateService_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Orchestrator.PoolSize = 10
	cfg.Orchestrator.MaxBatchSize = 500

	err := cfg.Validate("service")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "portal.base_url is required")
	assert.Contains(t, err.Error(), "taxonomy.config_dir is required")
}

func TestValidateWorker_RequiresTemporal(t *testing.T) {
	cfg := validDefaults()
	cfg.Orchestrator.TemporalHostPort = ""
	cfg.Orchestrator.TaskQueue = ""

	err := cfg.Validate("worker")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "temporal_host_port")
	assert.Contains(t, err.Error(), "task_queue")
}

func TestValidateWorker_Valid(t *testing.T) {
	cfg := validDefaults()
	cfg.Orchestrator.TemporalHostPort = "localhost:7233"
	cfg.Orchestrator.TaskQueue = "fundreport-ingest"

	assert.NoError(t, cfg.Validate("worker"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidatePoolSizeBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Orchestrator.PoolSize = 0

	err := cfg.Validate("service")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pool_size must be >= 1")
}

func TestValidateLLMRequiresKey(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Enabled = true

	err := cfg.Validate("service")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "llm.key is required")

	cfg.LLM.Key = "sk-ant-test"
	assert.NoError(t, cfg.Validate("service"))
}
