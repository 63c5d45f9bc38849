package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Portal       PortalConfig       `yaml:"portal" mapstructure:"portal"`
	Downloader   DownloaderConfig   `yaml:"downloader" mapstructure:"downloader"`
	Taxonomy     TaxonomyConfig     `yaml:"taxonomy" mapstructure:"taxonomy"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend used by both the persistence
// layer (C12) and the task store (C13).
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PortalConfig configures the disclosure portal client (C1/C2).
type PortalConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalMillis int     `yaml:"min_interval_millis" mapstructure:"min_interval_millis"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond     float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// DownloaderConfig configures artifact downloading (C3).
type DownloaderConfig struct {
	DestDir        string `yaml:"dest_dir" mapstructure:"dest_dir"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	SkipIfExisting bool   `yaml:"skip_if_existing" mapstructure:"skip_if_existing"`
}

// TaxonomyConfig configures where taxonomy schemas/label linkbases and
// concept-mapping config files live (C7/C8).
type TaxonomyConfig struct {
	ConfigDir      string `yaml:"config_dir" mapstructure:"config_dir"`
	DefaultVersion string `yaml:"default_version" mapstructure:"default_version"`
}

// OrchestratorConfig configures the Temporal-backed task orchestrator (C11).
type OrchestratorConfig struct {
	TemporalHostPort  string `yaml:"temporal_host_port" mapstructure:"temporal_host_port"`
	TemporalNamespace string `yaml:"temporal_namespace" mapstructure:"temporal_namespace"`
	TaskQueue         string `yaml:"task_queue" mapstructure:"task_queue"`
	PoolSize          int    `yaml:"pool_size" mapstructure:"pool_size"`
	MaxBatchSize      int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	DownloadTimeoutS  int    `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	ParseTimeoutS     int    `yaml:"parse_timeout_secs" mapstructure:"parse_timeout_secs"`
	PersistTimeoutS   int    `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
}

// LLMConfig configures the optional last-resort LLM extractor (C10 step 5).
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields based on run mode.
// Supported modes: "service" (the fundreport.Service composition root) and
// "worker" (the orchestrator's Temporal worker process).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "service", "worker":
		if (c.Store.Driver == "" || c.Store.Driver == "postgres") && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required when store.driver is postgres")
		}
		if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required when store.driver is sqlite")
		}
		if c.Portal.BaseURL == "" {
			errs = append(errs, "portal.base_url is required")
		}
		if c.Taxonomy.ConfigDir == "" {
			errs = append(errs, "taxonomy.config_dir is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "worker" {
		if c.Orchestrator.TemporalHostPort == "" {
			errs = append(errs, "orchestrator.temporal_host_port is required")
		}
		if c.Orchestrator.TaskQueue == "" {
			errs = append(errs, "orchestrator.task_queue is required")
		}
	}

	if c.Orchestrator.PoolSize < 1 {
		errs = append(errs, "orchestrator.pool_size must be >= 1")
	}
	if c.Orchestrator.MaxBatchSize < 1 {
		errs = append(errs, "orchestrator.max_batch_size must be >= 1")
	}
	if c.LLM.Enabled && c.LLM.Key == "" {
		errs = append(errs, "llm.key is required when llm.enabled is true")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FUNDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.sqlite_path", "./fundreport.db")

	v.SetDefault("portal.base_url", "http://reportdocs.static.szse.cn")
	v.SetDefault("portal.user_agent", "fundreport-sync/1.0")
	v.SetDefault("portal.min_interval_millis", 500)
	v.SetDefault("portal.burst", 1)
	v.SetDefault("portal.max_retries", 3)
	v.SetDefault("portal.timeout_secs", 30)
	v.SetDefault("portal.rate_per_second", 2.0)

	v.SetDefault("downloader.dest_dir", "./artifacts")
	v.SetDefault("downloader.timeout_secs", 120)
	v.SetDefault("downloader.max_retries", 3)
	v.SetDefault("downloader.user_agent", "fundreport-sync/1.0")
	v.SetDefault("downloader.skip_if_existing", true)

	v.SetDefault("taxonomy.config_dir", "./taxonomy")
	v.SetDefault("taxonomy.default_version", "2019")

	v.SetDefault("orchestrator.temporal_host_port", "localhost:7233")
	v.SetDefault("orchestrator.temporal_namespace", "default")
	v.SetDefault("orchestrator.task_queue", "fundreport-ingest")
	v.SetDefault("orchestrator.pool_size", 10)
	v.SetDefault("orchestrator.max_batch_size", 500)
	v.SetDefault("orchestrator.download_timeout_secs", 120)
	v.SetDefault("orchestrator.parse_timeout_secs", 60)
	v.SetDefault("orchestrator.persist_timeout_secs", 30)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 4096)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
