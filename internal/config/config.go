package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultModel = "gemini-1.5-flash"

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	ModelTimeout       time.Duration
	MaxRequestBodySize int64
	MaxImageSize       int64
	ImageFetchAttempts int
	ImageFetchBackoff  time.Duration
	AllowedImageHosts  []string
	LogLevel           string

	Model ModelConfig
	Azure AzureConfig
}

// ModelConfig selects the vision model and carries provider credentials.
type ModelConfig struct {
	Name          string
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// AzureConfig enables the blob fetcher when both fields are set.
type AzureConfig struct {
	AccountName string
	AccountKey  string
}

func (a AzureConfig) Enabled() bool {
	return a.AccountName != "" && a.AccountKey != ""
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Host               string   `yaml:"host"`
	Port               string   `yaml:"port"`
	RequestTimeout     string   `yaml:"request_timeout"`
	ImageFetchTimeout  string   `yaml:"image_fetch_timeout"`
	ModelTimeout       string   `yaml:"model_timeout"`
	MaxRequestBodySize int64    `yaml:"max_request_body_size"`
	MaxImageSize       int64    `yaml:"max_image_size"`
	ImageFetchAttempts int      `yaml:"image_fetch_attempts"`
	ImageFetchBackoff  string   `yaml:"image_fetch_backoff"`
	AllowedImageHosts  []string `yaml:"allowed_image_hosts"`
	LogLevel           string   `yaml:"log_level"`
	Model              struct {
		Name          string `yaml:"name"`
		GeminiBaseURL string `yaml:"gemini_base_url"`
		OpenAIBaseURL string `yaml:"openai_base_url"`
	} `yaml:"model"`
	Azure struct {
		AccountName string `yaml:"account_name"`
	} `yaml:"azure"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
// Secrets are only read from the environment.
func LoadFromEnv() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	env := &envParser{}
	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = env.duration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = env.duration("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.ModelTimeout = env.duration("MODEL_TIMEOUT", cfg.ModelTimeout)
	cfg.MaxRequestBodySize = env.int64("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.MaxImageSize = env.int64("MAX_IMAGE_SIZE", cfg.MaxImageSize)
	cfg.ImageFetchAttempts = int(env.int64("IMAGE_FETCH_ATTEMPTS", int64(cfg.ImageFetchAttempts)))
	cfg.ImageFetchBackoff = env.duration("IMAGE_FETCH_BACKOFF", cfg.ImageFetchBackoff)
	if err := env.err(); err != nil {
		return nil, err
	}
	if hosts := os.Getenv("ALLOWED_IMAGE_HOSTS"); hosts != "" {
		cfg.AllowedImageHosts = splitList(hosts)
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.Model.Name = getEnvOrDefault("LLM_MODEL", cfg.Model.Name)
	cfg.Model.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Model.GeminiBaseURL = getEnvOrDefault("GEMINI_BASE_URL", cfg.Model.GeminiBaseURL)
	cfg.Model.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Model.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.Model.OpenAIBaseURL)

	cfg.Azure.AccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.Azure.AccountName)
	cfg.Azure.AccountKey = os.Getenv("AZURE_STORAGE_KEY")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     120 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		ModelTimeout:       90 * time.Second,
		MaxRequestBodySize: 1024 * 1024,      // 1MB
		MaxImageSize:       20 * 1024 * 1024, // 20MB
		ImageFetchAttempts: 1,
		ImageFetchBackoff:  time.Second,
		LogLevel:           "info",
		Model: ModelConfig{
			Name:          DefaultModel,
			GeminiBaseURL: "https://generativelanguage.googleapis.com/v1beta",
			OpenAIBaseURL: "https://api.openai.com/v1",
		},
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	for _, d := range []struct {
		raw    string
		target *time.Duration
		key    string
	}{
		{fc.RequestTimeout, &cfg.RequestTimeout, "request_timeout"},
		{fc.ImageFetchTimeout, &cfg.ImageFetchTimeout, "image_fetch_timeout"},
		{fc.ModelTimeout, &cfg.ModelTimeout, "model_timeout"},
		{fc.ImageFetchBackoff, &cfg.ImageFetchBackoff, "image_fetch_backoff"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.target = parsed
	}
	if fc.MaxRequestBodySize != 0 {
		cfg.MaxRequestBodySize = fc.MaxRequestBodySize
	}
	if fc.MaxImageSize != 0 {
		cfg.MaxImageSize = fc.MaxImageSize
	}
	if fc.ImageFetchAttempts != 0 {
		cfg.ImageFetchAttempts = fc.ImageFetchAttempts
	}
	if len(fc.AllowedImageHosts) > 0 {
		cfg.AllowedImageHosts = fc.AllowedImageHosts
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Model.Name != "" {
		cfg.Model.Name = fc.Model.Name
	}
	if fc.Model.GeminiBaseURL != "" {
		cfg.Model.GeminiBaseURL = fc.Model.GeminiBaseURL
	}
	if fc.Model.OpenAIBaseURL != "" {
		cfg.Model.OpenAIBaseURL = fc.Model.OpenAIBaseURL
	}
	if fc.Azure.AccountName != "" {
		cfg.Azure.AccountName = fc.Azure.AccountName
	}
	return nil
}

func (c *Config) validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be > 0 (got %d)", c.MaxImageSize)
	}
	if c.ImageFetchAttempts < 1 {
		return fmt.Errorf("IMAGE_FETCH_ATTEMPTS must be >= 1 (got %d)", c.ImageFetchAttempts)
	}
	if c.ImageFetchBackoff < 0 {
		return fmt.Errorf("IMAGE_FETCH_BACKOFF must be >= 0 (got %s)", c.ImageFetchBackoff)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.ModelTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, model=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.ModelTimeout)
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		return fmt.Errorf("LLM_MODEL must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed environment values and collects every malformed one,
// so a bad variable fails the load the same way a bad file value does.
type envParser struct {
	errs []error
}

func (p *envParser) duration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (p *envParser) int64(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
