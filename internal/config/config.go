package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/crawlspace/internal/jobs"
	"github.com/sells-group/crawlspace/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Jobs    JobsConfig    `yaml:"jobs" mapstructure:"jobs"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PoolConfig returns the Postgres pool tuning of the store section.
func (c StoreConfig) PoolConfig() *store.PoolConfig {
	return &store.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// JobsConfig configures the crawl job scheduler. Seeds go to Project/Spider;
// keyword searches go to KeywordProject/KeywordSpider.
type JobsConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Project        string  `yaml:"project" mapstructure:"project"`
	Spider         string  `yaml:"spider" mapstructure:"spider"`
	KeywordProject string  `yaml:"keyword_project" mapstructure:"keyword_project"`
	KeywordSpider  string  `yaml:"keyword_spider" mapstructure:"keyword_spider"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Options converts the section into job client options.
func (c JobsConfig) Options() jobs.Options {
	retry := jobs.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		retry.MaxAttempts = c.MaxAttempts
	}
	return jobs.Options{
		BaseURL:        c.BaseURL,
		Project:        c.Project,
		Spider:         c.Spider,
		KeywordProject: c.KeywordProject,
		KeywordSpider:  c.KeywordSpider,
		Timeout:        time.Duration(c.TimeoutSecs) * time.Second,
		RatePerSec:     c.RatePerSec,
		Retry:          retry,

		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  time.Duration(c.BreakerCooldownSecs) * time.Second,
	}
}

// RefreshConfig configures seed state polling.
type RefreshConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRAWLSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crawlspace.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("jobs.base_url", "http://localhost:6800")
	v.SetDefault("jobs.project", "discovery-project")
	v.SetDefault("jobs.spider", "website_finder")
	v.SetDefault("jobs.keyword_project", "searchengine-project")
	v.SetDefault("jobs.keyword_spider", "google.com")
	v.SetDefault("jobs.timeout_secs", 30)
	v.SetDefault("jobs.max_attempts", 3)
	v.SetDefault("jobs.rate_per_sec", 5.0)
	v.SetDefault("jobs.breaker_threshold", 5)
	v.SetDefault("jobs.breaker_cooldown_secs", 30)
	v.SetDefault("refresh.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks the settings a command mode depends on. Modes: "store"
// for commands that only touch the database, "serve" for the API server and
// "jobs" for commands that talk to the scheduler.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		errs = append(errs, "store.min_conns must not exceed store.max_conns")
	}

	switch mode {
	case "store":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateJobs()...)
	case "jobs":
		errs = append(errs, c.validateJobs()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateJobs() []string {
	var errs []string
	if c.Jobs.BaseURL == "" {
		errs = append(errs, "jobs.base_url is required")
	}
	if c.Jobs.Project == "" {
		errs = append(errs, "jobs.project is required")
	}
	if c.Jobs.Spider == "" {
		errs = append(errs, "jobs.spider is required")
	}
	if c.Jobs.RatePerSec < 0 {
		errs = append(errs, "jobs.rate_per_sec must be >= 0")
	}
	if c.Refresh.Concurrency < 1 || c.Refresh.Concurrency > 64 {
		errs = append(errs, "refresh.concurrency must be between 1 and 64")
	}
	return errs
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
