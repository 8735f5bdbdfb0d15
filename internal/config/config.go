// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (PROCUREFLOW_* plus provider API keys)
//  2. Config file (~/.procureflow/config.yaml or ./config.yaml)
//  3. Defaults
//
// A .env file in the working directory is loaded first so local
// development can keep API keys out of the shell profile.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates the selected provider has no API key.
	// Startup tolerates this; the chat endpoint reports it per request.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidMaxTurns indicates the tool-loop bound is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidUploadLimit indicates the upload size limit is out of range.
	ErrInvalidUploadLimit = errors.New("invalid upload limit")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultMaxUploadBytes caps transcription uploads at 20 MB.
const DefaultMaxUploadBytes int64 = 20 << 20

// Config stores application configuration.
type Config struct {
	// AI provider and model
	Provider  string `mapstructure:"provider"`
	ModelName string `mapstructure:"model_name"`
	MaxTurns  int    `mapstructure:"max_turns"`

	// HTTP server
	Addr string `mapstructure:"addr"`

	// DataDir holds chat files and cart state.
	DataDir string `mapstructure:"data_dir"`

	// MaxUploadBytes caps transcription request bodies.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// Per-IP request rate limiting
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// TrustProxy trusts X-Real-IP/X-Forwarded-For headers for client
	// identification. Set true only behind a reverse proxy.
	TrustProxy bool `mapstructure:"trust_proxy"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	// Best effort; absence of .env is the normal case.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".procureflow")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("model_name", "gpt-5-nano")
	v.SetDefault("max_turns", 5)
	v.SetDefault("addr", ":4000")
	v.SetDefault("data_dir", configDir)
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds PROCUREFLOW_* overrides. Provider API keys
// (OPENAI_API_KEY, GEMINI_API_KEY) are read directly by the Genkit
// plugins, not via Viper; APIKeyPresent checks them.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "PROCUREFLOW_PROVIDER")
	mustBind("model_name", "PROCUREFLOW_MODEL_NAME")
	mustBind("max_turns", "PROCUREFLOW_MAX_TURNS")
	mustBind("addr", "PROCUREFLOW_ADDR")
	mustBind("data_dir", "PROCUREFLOW_DATA_DIR")
	mustBind("max_upload_bytes", "PROCUREFLOW_MAX_UPLOAD_BYTES")
	mustBind("rate_limit", "PROCUREFLOW_RATE_LIMIT")
	mustBind("rate_burst", "PROCUREFLOW_RATE_BURST")
	mustBind("trust_proxy", "PROCUREFLOW_TRUST_PROXY")
	mustBind("log_level", "PROCUREFLOW_LOG_LEVEL")
	mustBind("log_json", "PROCUREFLOW_LOG_JSON")
}

// Validate performs range checks. A missing API key is deliberately
// not an error here.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGemini)
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxTurns < 1 || c.MaxTurns > 25 {
		return fmt.Errorf("%w: %d (want 1-25)", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.MaxUploadBytes < 1 || c.MaxUploadBytes > 100<<20 {
		return fmt.Errorf("%w: %d (want 1 byte to 100 MB)", ErrInvalidUploadLimit, c.MaxUploadBytes)
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

// QualifiedModel returns the Genkit model name including the provider
// prefix, e.g. "openai/gpt-5-nano".
func (c *Config) QualifiedModel() string {
	switch c.Provider {
	case ProviderGemini:
		return "googleai/" + c.ModelName
	default:
		return "openai/" + c.ModelName
	}
}

// APIKeyEnvVar returns the environment variable the selected provider
// reads its key from.
func (c *Config) APIKeyEnvVar() string {
	if c.Provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// APIKeyPresent reports whether the provider's API key is set.
func (c *Config) APIKeyPresent() bool {
	return os.Getenv(c.APIKeyEnvVar()) != ""
}

// ChatDir is where chat files live.
func (c *Config) ChatDir() string {
	return filepath.Join(c.DataDir, "chats")
}

// CartStatePath is where the cart's durable state lives.
func (c *Config) CartStatePath() string {
	return filepath.Join(c.DataDir, "cart-state.json")
}
