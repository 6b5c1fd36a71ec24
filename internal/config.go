package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	Cache      CacheConfig       `yaml:"cache"`
	Similarity SimilarityConfig  `yaml:"similarity"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Similarity.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CacheLimits bounds one cache instance. Non-positive limits are a
// configuration error: they indicate a broken deployment, not a
// runtime condition, so startup fails immediately.
type CacheLimits struct {
	MaxBytes   int64 `yaml:"max_bytes"`
	MaxItems   int   `yaml:"max_items"`
	TTLSeconds int   `yaml:"ttl_seconds"`
}

// TTL returns the limit's expiry as a duration.
func (c *CacheLimits) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Validate validates one cache instance's limits.
func (c *CacheLimits) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxItems, validation.Required, validation.Min(1)),
		validation.Field(&c.TTLSeconds, validation.Required, validation.Min(1)),
	)
}

// CacheConfig holds limits for both cache instances.
type CacheConfig struct {
	Content CacheLimits `yaml:"content"`
	Queries CacheLimits `yaml:"queries"`
}

// Validate validates both cache instances.
func (c *CacheConfig) Validate() error {
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content cache: %w", err)
	}
	if err := c.Queries.Validate(); err != nil {
		return fmt.Errorf("query cache: %w", err)
	}
	return nil
}

// SimilarityConfig holds the duplicate-scan threshold.
type SimilarityConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// Validate validates the similarity configuration.
func (c *SimilarityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Required, validation.Min(0.0), validation.Max(1.0)),
	)
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
	// Normalise empty mode to "disabled" for backward compatibility.
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
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Cache: CacheConfig{
			Content: CacheLimits{
				MaxBytes:   10 << 20,
				MaxItems:   200,
				TTLSeconds: 300,
			},
			Queries: CacheLimits{
				MaxBytes:   5 << 20,
				MaxItems:   100,
				TTLSeconds: 60,
			},
		},
		Similarity: SimilarityConfig{
			Threshold: 0.8,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
