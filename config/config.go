package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the wellbeing council service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Council   CouncilConfig   `mapstructure:"council"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
}

type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the postgres connection string for lib/pq.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// LLMConfig names the available model providers. Personas reference models
// on the active provider directly by model id.
type LLMConfig struct {
	Provider  string                       `mapstructure:"provider"`
	Providers map[string]LLMProviderConfig `mapstructure:"providers"`
}

// LLMProviderConfig represents a single LLM provider configuration
type LLMProviderConfig struct {
	Type      string        `mapstructure:"type"` // "anthropic" | "openai"
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// CouncilConfig bounds debate execution.
type CouncilConfig struct {
	File              string          `mapstructure:"file"` // optional personas/tasks YAML override
	MaxToolIterations int             `mapstructure:"max_tool_iterations"`
	TaskTimeout       time.Duration   `mapstructure:"task_timeout"`
	ToolTimeout       time.Duration   `mapstructure:"tool_timeout"`
	StreamStallWaits  []time.Duration `mapstructure:"stream_stall_waits"`
	HeartbeatInterval time.Duration   `mapstructure:"heartbeat_interval"`
	VisibleBeatEvery  int             `mapstructure:"visible_beat_every"`
	ContextWindow     int             `mapstructure:"context_window"`
	ContextMaxRunes   int             `mapstructure:"context_max_runes"`
}

// ToolsConfig carries credentials and limits for the verification tools.
type ToolsConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	UserAgent        string        `mapstructure:"user_agent"`
	BraveAPIKey      string        `mapstructure:"brave_api_key"`
	PerplexityAPIKey string        `mapstructure:"perplexity_api_key"`
	HadithAPIKey     string        `mapstructure:"hadith_api_key"`
	HeadlessFallback bool          `mapstructure:"headless_fallback"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoadConfig reads configuration from an optional file plus WELLBEING_*
// environment variables and panics on failure. Most callers want this.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("loading config: %v", err))
	}
	return cfg
}

// Load reads configuration from the given file (or default locations when
// path is empty), overlays environment variables, validates and normalizes.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("WELLBEING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
			// defaults plus env only
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.data_dir", "./data")

	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.scheduler_interval", "1m")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "wellbeing")
	v.SetDefault("storage.postgres.password", "wellbeing")
	v.SetDefault("storage.postgres.dbname", "wellbeing")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.providers.anthropic.type", "anthropic")
	v.SetDefault("llm.providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.providers.anthropic.timeout", "180s")
	v.SetDefault("llm.providers.anthropic.max_tokens", 4096)
	v.SetDefault("llm.providers.openai.type", "openai")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com")
	v.SetDefault("llm.providers.openai.timeout", "180s")
	v.SetDefault("llm.providers.openai.max_tokens", 4096)

	v.SetDefault("council.max_tool_iterations", 3)
	v.SetDefault("council.task_timeout", "4m")
	v.SetDefault("council.tool_timeout", "25s")
	v.SetDefault("council.stream_stall_waits", []string{"30s", "60s", "120s"})
	v.SetDefault("council.heartbeat_interval", "5s")
	v.SetDefault("council.visible_beat_every", 3)
	v.SetDefault("council.context_window", 3)
	v.SetDefault("council.context_max_runes", 2000)

	v.SetDefault("tools.timeout", "20s")
	v.SetDefault("tools.retries", 2)
	v.SetDefault("tools.user_agent", "wellbeing-council/1.0")
	v.SetDefault("tools.headless_fallback", false)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "wellbeing-council")
}

// Normalize fills derived values and clamps nonsensical ones.
func (c *Config) Normalize() {
	if c.Council.MaxToolIterations <= 0 {
		c.Council.MaxToolIterations = 3
	}
	if c.Council.TaskTimeout <= 0 {
		c.Council.TaskTimeout = 4 * time.Minute
	}
	if c.Council.ToolTimeout <= 0 {
		c.Council.ToolTimeout = 25 * time.Second
	}
	if len(c.Council.StreamStallWaits) == 0 {
		c.Council.StreamStallWaits = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
	}
	if c.Council.HeartbeatInterval <= 0 {
		c.Council.HeartbeatInterval = 5 * time.Second
	}
	if c.Council.VisibleBeatEvery <= 0 {
		c.Council.VisibleBeatEvery = 3
	}
	if c.Council.ContextWindow <= 0 {
		c.Council.ContextWindow = 3
	}
	if c.Council.ContextMaxRunes <= 0 {
		c.Council.ContextMaxRunes = 2000
	}
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = os.Getenv("WELLBEING_JWT_SECRET")
	}
	if c.General.DataDir != "" {
		c.General.DataDir = filepath.Clean(c.General.DataDir)
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if _, ok := c.LLM.Providers[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm.provider %q has no providers entry", c.LLM.Provider)
	}
	for name, p := range c.LLM.Providers {
		switch p.Type {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("llm.providers.%s.type %q is not supported", name, p.Type)
		}
	}
	if c.Council.MaxToolIterations > 10 {
		return fmt.Errorf("council.max_tool_iterations %d is unreasonably high", c.Council.MaxToolIterations)
	}
	return nil
}

// ActiveProvider returns the configured LLM provider entry.
func (c *Config) ActiveProvider() LLMProviderConfig {
	return c.LLM.Providers[c.LLM.Provider]
}
