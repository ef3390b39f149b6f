package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Tagger providers.
const (
	TaggerKeyword   = "keyword"
	TaggerEmbedding = "embedding"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Watch  WatchConfig       `yaml:"watch"`
	Index  IndexConfig       `yaml:"index"`
	Cache  CacheConfig       `yaml:"cache"`
	Tagger TaggerConfig      `yaml:"tagger"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Tagger.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel string     `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Level maps the configured log level name to a slog.Level.
// Unknown values fall back to info.
func (c *ApplicationConfig) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WatchConfig holds the watched directory tree settings.
type WatchConfig struct {
	Root       string   `yaml:"root"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extensions, validation.Required),
	)
}

// IndexConfig holds the search index directory.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// CacheConfig holds the derived-tags cache directory.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// TaggerConfig selects and configures the tag derivation model.
//
// Provider controls how tags are derived:
//   - "keyword" (default): local frequency-based extraction, no network.
//   - "embedding": OpenAI-compatible embeddings endpoint; Endpoint and
//     Model must be set.
type TaggerConfig struct {
	Provider string `yaml:"provider"`
	TopK     int    `yaml:"top_k"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// Validate validates the tagger configuration.
func (c *TaggerConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = TaggerKeyword
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(TaggerKeyword, TaggerEmbedding)),
		validation.Field(&c.TopK, validation.Min(0), validation.Max(64)),
	); err != nil {
		return err
	}
	if c.Provider == TaggerEmbedding && (c.Endpoint == "" || c.Model == "") {
		return fmt.Errorf("tagger: provider is %q but endpoint or model is empty", TaggerEmbedding)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: "info",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Watch: WatchConfig{
			Root:       "./files",
			Extensions: []string{".md", ".markdown", ".txt", ".text", ".log", ".rst"},
		},
		Index: IndexConfig{
			Dir: "./data/index",
		},
		Cache: CacheConfig{
			Dir: "./data/cache",
		},
		Tagger: TaggerConfig{
			Provider: TaggerKeyword,
			TopK:     8,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
