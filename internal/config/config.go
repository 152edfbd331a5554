package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	FEC        FECConfig        `yaml:"fec" mapstructure:"fec"`
	SEC        SECConfig        `yaml:"sec" mapstructure:"sec"`
	Attom      AttomConfig      `yaml:"attom" mapstructure:"attom"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Authority  AuthorityConfig  `yaml:"authority" mapstructure:"authority"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the checkpoint store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the synthesis step.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings for web research.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// FECConfig holds FEC API settings for contribution lookups.
type FECConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SECConfig holds EDGAR full-text search settings. EDGAR needs no key but
// requires a descriptive User-Agent with a contact address.
type SECConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// AttomConfig holds ATTOM property data API settings.
type AttomConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds the Notion integration token and target database.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// WebhookConfig configures result delivery to an external endpoint.
type WebhookConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Secret      string `yaml:"secret" mapstructure:"secret"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AuthorityConfig points at an optional source-authority override file.
type AuthorityConfig struct {
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// PipelineConfig tunes step execution.
type PipelineConfig struct {
	MaxRetries    int `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelaySecs int `yaml:"base_delay_secs" mapstructure:"base_delay_secs"`
	MaxDelaySecs  int `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
}

// VerifyConfig tunes claim verification thresholds.
type VerifyConfig struct {
	Variance       float64 `yaml:"variance" mapstructure:"variance"`
	ReportingFloor float64 `yaml:"reporting_floor" mapstructure:"reporting_floor"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentSubjects int `yaml:"max_concurrent_subjects" mapstructure:"max_concurrent_subjects"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "prospect.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_subjects", 2)
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.base_delay_secs", 2)
	v.SetDefault("pipeline.max_delay_secs", 30)
	v.SetDefault("verify.variance", 0.3)
	v.SetDefault("verify.reporting_floor", 200)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("fec.base_url", "https://api.open.fec.gov/v1")
	v.SetDefault("sec.base_url", "https://efts.sec.gov/LATEST")
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com/propertyapi/v1.0.0")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("webhook.timeout_secs", 10)

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

// Validate checks the settings a given mode needs before any work starts,
// collecting every problem instead of stopping at the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "research", "batch":
		check(c.Anthropic.Key != "", "anthropic.key is required (synthesis step)")
		if c.Store.Driver == "postgres" {
			check(c.Store.DatabaseURL != "", "store.database_url is required for the postgres driver")
		}
		if mode == "batch" {
			check(c.Batch.MaxConcurrentSubjects >= 1 && c.Batch.MaxConcurrentSubjects <= 20,
				"batch.max_concurrent_subjects must be between 1 and 20")
		}
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Anthropic.Key != "", "anthropic.key is required (synthesis step)")
	case "runs", "reset":
		if c.Store.Driver == "postgres" {
			check(c.Store.DatabaseURL != "", "store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	check(c.Verify.Variance > 0 && c.Verify.Variance <= 1, "verify.variance must be in (0, 1]")
	check(c.Pipeline.MaxRetries >= 0, "pipeline.max_retries must be >= 0")

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
