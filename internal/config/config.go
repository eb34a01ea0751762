package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderDashScope = "dashscope"
	ProviderGemini    = "gemini"
)

type Config struct {
	ListenAddr     string
	Provider       string
	UpstreamAPIKey string
	CompatBaseURL  string
	CompatModel    string
	NativeURL      string
	NativeModel    string
	GeminiBaseURL  string
	GeminiModel    string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	StaticDir      string
	StaticMaxAge   time.Duration
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

type envConfig struct {
	ListenAddr            string   `env:"LISTEN_ADDR" envDefault:":3000"`
	Provider              string   `env:"UPSTREAM_PROVIDER" envDefault:"openai"`
	UpstreamAPIKey        string   `env:"UPSTREAM_API_KEY"`
	CompatBaseURL         string   `env:"COMPAT_BASE_URL" envDefault:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	CompatModel           string   `env:"COMPAT_MODEL" envDefault:"qwen3-omni-flash"`
	NativeURL             string   `env:"NATIVE_URL" envDefault:"https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"`
	NativeModel           string   `env:"NATIVE_MODEL" envDefault:"qwen-vl-plus"`
	GeminiBaseURL         string   `env:"GEMINI_BASE_URL"`
	GeminiModel           string   `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	RequestTimeoutSeconds int      `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"60"`
	MaxBodyBytes          int64    `env:"MAX_BODY_BYTES" envDefault:"20971520"`
	StaticDir             string   `env:"STATIC_DIR" envDefault:"public"`
	StaticMaxAgeSeconds   int      `env:"STATIC_MAX_AGE_SECONDS" envDefault:"3600"`
	AllowedOrigins        []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string   `env:"LOG_FORMAT" envDefault:"auto"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	origins := make([]string, 0, len(raw.AllowedOrigins))
	for _, o := range raw.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := Config{
		ListenAddr:     strings.TrimSpace(raw.ListenAddr),
		Provider:       strings.ToLower(strings.TrimSpace(raw.Provider)),
		UpstreamAPIKey: strings.TrimSpace(raw.UpstreamAPIKey),
		CompatBaseURL:  strings.TrimRight(strings.TrimSpace(raw.CompatBaseURL), "/"),
		CompatModel:    strings.TrimSpace(raw.CompatModel),
		NativeURL:      strings.TrimSpace(raw.NativeURL),
		NativeModel:    strings.TrimSpace(raw.NativeModel),
		GeminiBaseURL:  strings.TrimRight(strings.TrimSpace(raw.GeminiBaseURL), "/"),
		GeminiModel:    strings.TrimSpace(raw.GeminiModel),
		RequestTimeout: time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		MaxBodyBytes:   raw.MaxBodyBytes,
		StaticDir:      strings.TrimSpace(raw.StaticDir),
		StaticMaxAge:   time.Duration(raw.StaticMaxAgeSeconds) * time.Second,
		AllowedOrigins: origins,
		LogLevel:       strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		LogFormat:      strings.ToLower(strings.TrimSpace(raw.LogFormat)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Model returns the model configured for the selected provider.
func (c Config) Model() string {
	switch c.Provider {
	case ProviderDashScope:
		return c.NativeModel
	case ProviderGemini:
		return c.GeminiModel
	default:
		return c.CompatModel
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.CompatBaseURL == "" {
			return errors.New("COMPAT_BASE_URL must not be empty")
		}
	case ProviderDashScope:
		if c.NativeURL == "" {
			return errors.New("NATIVE_URL must not be empty")
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("UPSTREAM_PROVIDER must be one of %s, %s or %s, got %q", ProviderOpenAI, ProviderDashScope, ProviderGemini, c.Provider)
	}
	if c.UpstreamAPIKey == "" {
		return errors.New("UPSTREAM_API_KEY must not be empty")
	}
	if c.Model() == "" {
		return fmt.Errorf("model for provider %q must not be empty", c.Provider)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	if c.StaticMaxAge < 0 {
		return errors.New("STATIC_MAX_AGE_SECONDS must be >= 0")
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("ALLOWED_ORIGINS must not be empty")
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be auto, text or json, got %q", c.LogFormat)
	}
	return nil
}
