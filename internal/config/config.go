// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMConfig
	History() HistoryConfig
	Scan() ScanConfig
	Server() ServerConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	LLMCfg     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	HistoryCfg HistoryConfig `mapstructure:"history" yaml:"history"`
	ScanCfg    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) LLM() LLMConfig         { return c.LLMCfg }
func (c *Config) History() HistoryConfig { return c.HistoryCfg }
func (c *Config) Scan() ScanConfig       { return c.ScanCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the generation backend shared by scans and chat.
type LLMConfig struct {
	Provider             LLMProvider       `mapstructure:"provider" yaml:"provider"`
	DefaultFastModel     string            `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string            `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	APIKey               string            `mapstructure:"api_key" yaml:"-"`
	Endpoint             string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout           time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature          float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP                 float32           `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens            int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters        map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	RequestsPerMinute    float64           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetryElapsed      time.Duration     `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// LLMModelConfig is the resolved configuration for a single model.
type LLMModelConfig struct {
	Provider          LLMProvider
	Model             string
	APIKey            string
	Endpoint          string
	APITimeout        time.Duration
	Temperature       float32
	TopP              float32
	MaxTokens         int
	SafetyFilters     map[string]string
	RequestsPerMinute float64
	MaxRetryElapsed   time.Duration
}

// Model resolves the shared settings against a concrete model name.
func (l LLMConfig) Model(name string) LLMModelConfig {
	return LLMModelConfig{
		Provider:          l.Provider,
		Model:             name,
		APIKey:            l.APIKey,
		Endpoint:          l.Endpoint,
		APITimeout:        l.APITimeout,
		Temperature:       l.Temperature,
		TopP:              l.TopP,
		MaxTokens:         l.MaxTokens,
		SafetyFilters:     l.SafetyFilters,
		RequestsPerMinute: l.RequestsPerMinute,
		MaxRetryElapsed:   l.MaxRetryElapsed,
	}
}

// History backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// HistoryConfig selects and tunes the report history persistence.
type HistoryConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Key         string `mapstructure:"key" yaml:"key"`
	MaxEntries  int    `mapstructure:"max_entries" yaml:"max_entries"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
}

// ResolvedDir expands a leading ~ in the history directory.
func (h HistoryConfig) ResolvedDir() (string, error) {
	dir, err := homedir.Expand(h.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to expand history dir %q: %w", h.Dir, err)
	}
	return dir, nil
}

// ScanConfig tunes the scan lifecycle.
type ScanConfig struct {
	// NarrationPace scales every progress narration delay. 1.0 keeps the
	// stock timings, 0 disables them.
	NarrationPace float64 `mapstructure:"narration_pace" yaml:"narration_pace"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "websec")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_minute", 30.0)
	v.SetDefault("llm.max_retry_elapsed", "1m")

	// -- History --
	v.SetDefault("history.backend", BackendFile)
	v.SetDefault("history.dir", "~/.websec")
	v.SetDefault("history.key", "websec_history")
	v.SetDefault("history.max_entries", 10)

	// -- Scan --
	v.SetDefault("scan.narration_pace", 1.0)

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8088")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "3m")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The API key is accepted under the names the hosted SDKs use as well.
	_ = v.BindEnv("llm.api_key", "WEBSEC_LLM_API_KEY", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("history.postgres_url", "WEBSEC_HISTORY_POSTGRES_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// A missing API key is not a configuration error: history and intel commands
// work without one, and generation calls report it themselves.
func (c *Config) Validate() error {
	if c.LLMCfg.Provider != ProviderGemini {
		return fmt.Errorf("llm.provider %q is not supported. Supported: [%s]", c.LLMCfg.Provider, ProviderGemini)
	}
	if c.LLMCfg.DefaultFastModel == "" || c.LLMCfg.DefaultPowerfulModel == "" {
		return fmt.Errorf("llm.default_fast_model and llm.default_powerful_model are required")
	}
	if c.LLMCfg.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}
	if err := c.HistoryCfg.Validate(); err != nil {
		return fmt.Errorf("history configuration invalid: %w", err)
	}
	if c.ScanCfg.NarrationPace < 0 {
		return fmt.Errorf("scan.narration_pace must not be negative")
	}
	return nil
}

// Validate checks the history settings.
func (h *HistoryConfig) Validate() error {
	if h.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be a positive integer")
	}
	if strings.TrimSpace(h.Key) == "" {
		return fmt.Errorf("key is required")
	}
	switch h.Backend {
	case BackendMemory:
	case BackendFile:
		if h.Dir == "" {
			return fmt.Errorf("dir is required for the file backend")
		}
	case BackendPostgres:
		if h.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres backend (WEBSEC_HISTORY_POSTGRES_URL)")
		}
	default:
		return fmt.Errorf("unknown backend %q", h.Backend)
	}
	return nil
}
