// Package config handles loading and persisting user configuration
// for pagesum. Configuration is stored in ~/.pagesum/config.yaml and can be
// overridden through environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".pagesum"
	fileName = "config.yaml"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	defaultProvider        = ProviderOllama
	defaultEndpoint        = "http://localhost:11434"
	defaultGeneratePath    = "/api/generate"
	defaultModel           = "qwen3:8b"
	defaultEmbedModel      = "nomic-embed-text"
	defaultLanguage        = "English"
	defaultMaxContentChars = 10000
	defaultListen          = "127.0.0.1:8501"
	defaultLogLevel        = "info"
	defaultMockDelay       = 150 * time.Millisecond

	envKeyEndpoint      = "OLLAMA_API_ENDPOINT"
	envKeyModel         = "OLLAMA_MODEL"
	envKeyProvider      = "PAGESUM_PROVIDER"
	envKeyListen        = "PAGESUM_LISTEN"
	envKeyOpenAIKey     = "OPENAI_API_KEY"
	envKeyOpenAIBaseURL = "OPENAI_BASE_URL"
)

var (
	ErrMissingEndpoint = errors.New("model endpoint is not configured")
	ErrInvalidEndpoint = errors.New("model endpoint is not a valid http(s) URL")
	ErrMissingModel    = errors.New("model is not configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownKey      = errors.New("unknown configuration key")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Config holds the user's configuration.
type Config struct {
	Provider        string        `yaml:"provider"`
	Endpoint        string        `yaml:"endpoint"`
	GeneratePath    string        `yaml:"generate_path"`
	Model           string        `yaml:"model"`
	EmbedEndpoint   string        `yaml:"embed_endpoint,omitempty"`
	EmbedModel      string        `yaml:"embed_model"`
	OpenAIAPIKey    string        `yaml:"openai_api_key,omitempty"`
	OpenAIBaseURL   string        `yaml:"openai_base_url,omitempty"`
	Language        string        `yaml:"language"`
	MaxContentChars int           `yaml:"max_content_chars"`
	Listen          string        `yaml:"listen"`
	ShowThinking    bool          `yaml:"show_thinking"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file,omitempty"`
	MockDelay       time.Duration `yaml:"mock_delay"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Provider:        defaultProvider,
		Endpoint:        defaultEndpoint,
		GeneratePath:    defaultGeneratePath,
		Model:           defaultModel,
		EmbedModel:      defaultEmbedModel,
		Language:        defaultLanguage,
		MaxContentChars: defaultMaxContentChars,
		Listen:          defaultListen,
		ShowThinking:    true,
		LogLevel:        defaultLogLevel,
		MockDelay:       defaultMockDelay,
	}
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the configuration file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads the configuration from disk and environment variables.
// A missing file is not an error; a malformed one is.
func Load() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	cfg.fillDefaults()
	return cfg, nil
}

func loadFile() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", Path(), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", Path(), err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envKeyEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(envKeyModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(envKeyProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(envKeyListen); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv(envKeyOpenAIKey); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv(envKeyOpenAIBaseURL); v != "" {
		cfg.OpenAIBaseURL = v
	}
}

func (c *Config) fillDefaults() {
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	if c.GeneratePath == "" {
		c.GeneratePath = defaultGeneratePath
	}
	if c.EmbedModel == "" {
		c.EmbedModel = defaultEmbedModel
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = defaultMaxContentChars
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// EmbedBaseURL returns the endpoint used for embeddings, which defaults to
// the model endpoint.
func (c *Config) EmbedBaseURL() string {
	if c.EmbedEndpoint != "" {
		return c.EmbedEndpoint
	}
	return c.Endpoint
}

// Validate reports configuration problems that would prevent talking to
// the model backend.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama:
		if strings.TrimSpace(c.Endpoint) == "" {
			return fmt.Errorf("%w (set %s or run: pagesum config set endpoint <url>)", ErrMissingEndpoint, envKeyEndpoint)
		}
		if !isHTTPURL(c.Endpoint) {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
		}
		if strings.TrimSpace(c.Model) == "" {
			return fmt.Errorf("%w (set %s or run: pagesum config set model <name>)", ErrMissingModel, envKeyModel)
		}
	case ProviderOpenAI:
		if c.OpenAIBaseURL != "" && !isHTTPURL(c.OpenAIBaseURL) {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.OpenAIBaseURL)
		}
		if strings.TrimSpace(c.Model) == "" {
			return fmt.Errorf("%w (run: pagesum config set model <name>)", ErrMissingModel)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("%w %q (expected %s, %s or %s)", ErrUnknownProvider, c.Provider, ProviderOllama, ProviderOpenAI, ProviderMock)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(Path(), data, 0o600)
}

var setters = map[string]func(c *Config, v string) error{
	"provider":        func(c *Config, v string) error { c.Provider = v; return nil },
	"endpoint":        func(c *Config, v string) error { c.Endpoint = v; return nil },
	"generate_path":   func(c *Config, v string) error { c.GeneratePath = v; return nil },
	"model":           func(c *Config, v string) error { c.Model = v; return nil },
	"embed_endpoint":  func(c *Config, v string) error { c.EmbedEndpoint = v; return nil },
	"embed_model":     func(c *Config, v string) error { c.EmbedModel = v; return nil },
	"openai_api_key":  func(c *Config, v string) error { c.OpenAIAPIKey = v; return nil },
	"openai_base_url": func(c *Config, v string) error { c.OpenAIBaseURL = v; return nil },
	"language":        func(c *Config, v string) error { c.Language = v; return nil },
	"listen":          func(c *Config, v string) error { c.Listen = v; return nil },
	"log_level":       func(c *Config, v string) error { c.LogLevel = v; return nil },
	"log_file":        func(c *Config, v string) error { c.LogFile = v; return nil },
	"max_content_chars": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: max_content_chars must be a positive integer", ErrInvalidValue)
		}
		c.MaxContentChars = n
		return nil
	},
	"show_thinking": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: show_thinking must be true or false", ErrInvalidValue)
		}
		c.ShowThinking = b
		return nil
	},
	"mock_delay": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: mock_delay must be a duration such as 150ms", ErrInvalidValue)
		}
		c.MockDelay = d
		return nil
	},
}

// Keys lists the settable configuration keys.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates a single key in the config file. Environment overrides are
// not written back.
func Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	cfg, err := loadFile()
	if err != nil {
		return err
	}
	if err := set(cfg, value); err != nil {
		return err
	}
	return save(cfg)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	return Set("model", model)
}
