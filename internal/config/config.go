package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultPort             = 3000
	DefaultEnv              = "development"
	DefaultCORSOrigin       = "*"
	DefaultLineDataEndpoint = "https://api-data.line.me"
	DefaultLineTimeout      = 30
	DefaultMaxContentBytes  = 50 * 1024 * 1024
	DefaultOpenAIModel      = "gpt-5-mini"
	DefaultMaxTokensCeiling = 1500
	DefaultOpenAITimeout    = 60
	DefaultDedupeTTL        = 600

	RedeliveryProcess  = "process"
	RedeliverySkipSeen = "skip_seen"
)

// Config is the immutable process configuration. It is built once at startup
// and passed by value to every service that needs it.
type Config struct {
	Env      string         `toml:"env"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Line     LineConfig     `toml:"line"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Dispatch DispatchConfig `toml:"dispatch"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Port       int    `toml:"port" validate:"gte=1,lte=65535"`
	CORSOrigin string `toml:"cors_origin"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type LineConfig struct {
	ChannelAccessToken string `toml:"channel_access_token"`
	DataEndpoint       string `toml:"data_endpoint" validate:"required,url"`
	TimeoutSeconds     int    `toml:"timeout_seconds" validate:"gte=1"`
	MaxContentBytes    int64  `toml:"max_content_bytes" validate:"gte=1"`
}

func (c LineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type OpenAIConfig struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url" validate:"omitempty,url"`
	Model            string `toml:"model" validate:"required"`
	MaxTokensCeiling int    `toml:"max_tokens_ceiling" validate:"gte=1"`
	TimeoutSeconds   int    `toml:"timeout_seconds" validate:"gte=1"`
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type DispatchConfig struct {
	// MaxConcurrentWorkflows caps in-flight workflows; 0 means unbounded.
	MaxConcurrentWorkflows int    `toml:"max_concurrent_workflows" validate:"gte=0"`
	Redelivery             string `toml:"redelivery" validate:"oneof=process skip_seen"`
	DedupeTTLSeconds       int    `toml:"dedupe_ttl_seconds" validate:"gte=1"`
}

func (c DispatchConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

// IsDevelopment reports whether the process runs in the development environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// Warnings lists missing settings that degrade features without preventing startup.
func (c Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.Line.ChannelAccessToken) == "" {
		out = append(out, "MESSAGING_API_CHANNEL_ACCESS_TOKEN is not set; content retrieval and replies will fail")
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		out = append(out, "OPENAI_API_KEY is not set; AI analysis will fail")
	}
	return out
}

// Default returns the configuration used when no file or override is present.
func Default() Config {
	return Config{
		Env: DefaultEnv,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Port:       DefaultPort,
			CORSOrigin: DefaultCORSOrigin,
		},
		Line: LineConfig{
			DataEndpoint:    DefaultLineDataEndpoint,
			TimeoutSeconds:  DefaultLineTimeout,
			MaxContentBytes: DefaultMaxContentBytes,
		},
		OpenAI: OpenAIConfig{
			Model:            DefaultOpenAIModel,
			MaxTokensCeiling: DefaultMaxTokensCeiling,
			TimeoutSeconds:   DefaultOpenAITimeout,
		},
		Dispatch: DispatchConfig{
			Redelivery:       RedeliveryProcess,
			DedupeTTLSeconds: DefaultDedupeTTL,
		},
	}
}

// envBindings maps configuration keys to the environment variables that may set them.
var envBindings = map[string][]string{
	"env":                       {"NODE_ENV", "APP_ENV"},
	"server.port":               {"PORT"},
	"server.cors_origin":        {"CORS_ORIGIN"},
	"line.channel_access_token": {"MESSAGING_API_CHANNEL_ACCESS_TOKEN"},
	"line.data_endpoint":        {"LINE_DATA_ENDPOINT"},
	"line.timeout_seconds":      {"LINE_TIMEOUT_SECONDS"},
	"openai.api_key":            {"OPENAI_API_KEY"},
	"openai.base_url":           {"OPENAI_BASE_URL"},
	"openai.model":              {"OPENAI_MODEL"},
	"openai.timeout_seconds":    {"OPENAI_TIMEOUT_SECONDS"},
	"log.level":                 {"LOG_LEVEL"},
	"log.format":                {"LOG_FORMAT"},
}

// BindEnv registers the recognized environment variables on v.
func BindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional TOML file at path,
// and any keys set on v (environment variables or flags). A missing file is
// not an error.
func Load(path string, v *viper.Viper) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if v != nil {
		applyOverrides(&cfg, v)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyOverrides(cfg *Config, v *viper.Viper) {
	overrideString(v, "env", &cfg.Env)
	overrideString(v, "log.level", &cfg.Log.Level)
	overrideString(v, "log.format", &cfg.Log.Format)
	overrideInt(v, "server.port", &cfg.Server.Port)
	overrideString(v, "server.cors_origin", &cfg.Server.CORSOrigin)
	overrideString(v, "line.channel_access_token", &cfg.Line.ChannelAccessToken)
	overrideString(v, "line.data_endpoint", &cfg.Line.DataEndpoint)
	overrideInt(v, "line.timeout_seconds", &cfg.Line.TimeoutSeconds)
	overrideString(v, "openai.api_key", &cfg.OpenAI.APIKey)
	overrideString(v, "openai.base_url", &cfg.OpenAI.BaseURL)
	overrideString(v, "openai.model", &cfg.OpenAI.Model)
	overrideInt(v, "openai.timeout_seconds", &cfg.OpenAI.TimeoutSeconds)
	overrideInt(v, "openai.max_tokens_ceiling", &cfg.OpenAI.MaxTokensCeiling)
	overrideInt(v, "dispatch.max_concurrent_workflows", &cfg.Dispatch.MaxConcurrentWorkflows)
	overrideString(v, "dispatch.redelivery", &cfg.Dispatch.Redelivery)
	overrideInt(v, "dispatch.dedupe_ttl_seconds", &cfg.Dispatch.DedupeTTLSeconds)
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if !v.IsSet(key) {
		return
	}
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		*dst = s
	}
}

func overrideInt(v *viper.Viper, key string, dst *int) {
	if !v.IsSet(key) {
		return
	}
	if n := v.GetInt(key); n != 0 {
		*dst = n
	}
}
