// Package config provides configuration management for the AL-Go MCP Server.
// It supports loading configuration from multiple sources: command-line flags, config files,
// and environment variables, with proper precedence handling.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/j4ng5y/al-go-mcp-server/internal/fetcher"
)

const (
	// AppName names the config directory under $XDG_CONFIG_HOME
	AppName = "al-go-mcp-server"
	// EnvPrefix is prepended to every configuration environment variable
	EnvPrefix = "AL_GO_MCP_"
)

// Config holds all configuration settings for the AL-Go MCP Server.
type Config struct {
	// Server settings
	LogLevel string `json:"log_level"` // debug, info, warn, error (default: info)

	// Repository settings
	GitHubAPIURL string `json:"github_api_url"` // GitHub REST API base URL
	RepoOwner    string `json:"repo_owner"`     // default: microsoft
	RepoName     string `json:"repo_name"`      // default: AL-Go
	Branch       string `json:"branch"`         // default: main

	// Fetch settings
	FetchTimeout  int `json:"fetch_timeout"`  // per-request timeout in seconds (default: 30)
	MaxRetries    int `json:"max_retries"`    // retries for network errors and 5xx (default: 3)
	MaxConcurrent int `json:"max_concurrent"` // parallel file downloads (default: 5)
	MaxDocFiles   int `json:"max_doc_files"`  // documentation files per refresh (default: 50)

	// Cache settings
	CacheTTL  int  `json:"cache_ttl"`  // seconds a refresh stays fresh (default: 3600)
	WarmCache bool `json:"warm_cache"` // load the index at startup (default: false)

	// Transport settings
	TransportType string `json:"transport_type"` // stdio, sse, streamablehttp (default: stdio)
	Host          string `json:"host"`           // bind host for network transports
	Port          int    `json:"port"`           // bind port for network transports

	// GitHub credentials, read from the environment only
	GitHub GitHubAuth `json:"-"`
}

// GitHubAuth holds the GitHub credentials resolved at startup
type GitHubAuth struct {
	Token          string
	AppID          string
	PrivateKey     string
	InstallationID string
}

// Credentials converts the auth settings for the fetcher
func (a GitHubAuth) Credentials() fetcher.Credentials {
	return fetcher.Credentials{
		Token:          a.Token,
		AppID:          a.AppID,
		PrivateKey:     a.PrivateKey,
		InstallationID: a.InstallationID,
	}
}

// NewConfig creates a new Config with default values for all optional parameters.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",

		GitHubAPIURL: fetcher.DefaultAPIBaseURL,
		RepoOwner:    "microsoft",
		RepoName:     "AL-Go",
		Branch:       "main",

		FetchTimeout:  30,
		MaxRetries:    3,
		MaxConcurrent: 5,
		MaxDocFiles:   50,

		CacheTTL:  3600,
		WarmCache: false,

		TransportType: "stdio",
		Host:          "localhost",
		Port:          0,
	}
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	return LoadWithFlags("", nil)
}

// LoadFromFile loads configuration from a config file, with environment variables
// as fallback, and defaults as final fallback.
// The precedence order is: config file > environment variables > defaults.
func LoadFromFile(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config file path cannot be empty")
	}
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags loads configuration from command-line flags, config file,
// environment variables, and defaults.
// The precedence order is: flags > config file > environment variables > defaults.
// Flag values are keyed by config key (e.g. "log_level").
func LoadWithFlags(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := NewConfig()

	loadFromEnv(cfg)

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		loadFromViper(cfg, v)
	}

	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fields maps config keys to the fields they populate
func (c *Config) fields() map[string]any {
	return map[string]any{
		"log_level":      &c.LogLevel,
		"github_api_url": &c.GitHubAPIURL,
		"repo_owner":     &c.RepoOwner,
		"repo_name":      &c.RepoName,
		"branch":         &c.Branch,
		"fetch_timeout":  &c.FetchTimeout,
		"max_retries":    &c.MaxRetries,
		"max_concurrent": &c.MaxConcurrent,
		"max_doc_files":  &c.MaxDocFiles,
		"cache_ttl":      &c.CacheTTL,
		"warm_cache":     &c.WarmCache,
		"transport_type": &c.TransportType,
		"host":           &c.Host,
		"port":           &c.Port,
	}
}

// EnvKey returns the environment variable for a config key
// Example: log_level -> AL_GO_MCP_LOG_LEVEL
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// loadFromEnv loads configuration from environment variables into the provided Config.
// Values that do not parse are ignored.
func loadFromEnv(cfg *Config) {
	for key, ptr := range cfg.fields() {
		val := os.Getenv(EnvKey(key))
		if val == "" {
			continue
		}
		switch p := ptr.(type) {
		case *string:
			*p = val
		case *int:
			if intVal, err := strconv.Atoi(val); err == nil {
				*p = intVal
			}
		case *bool:
			if boolVal, err := strconv.ParseBool(val); err == nil {
				*p = boolVal
			}
		}
	}

	cfg.GitHub = GitHubAuth{
		Token:          firstEnv("GITHUB_TOKEN", EnvKey("github_token")),
		AppID:          os.Getenv("GITHUB_APP_ID"),
		PrivateKey:     os.Getenv("GITHUB_PRIVATE_KEY"),
		InstallationID: os.Getenv("GITHUB_INSTALLATION_ID"),
	}
}

func loadFromViper(cfg *Config, v *viper.Viper) {
	for key, ptr := range cfg.fields() {
		if !v.IsSet(key) {
			continue
		}
		switch p := ptr.(type) {
		case *string:
			*p = v.GetString(key)
		case *int:
			*p = v.GetInt(key)
		case *bool:
			*p = v.GetBool(key)
		}
	}
}

func loadFromFlags(cfg *Config, flags map[string]interface{}) error {
	fields := cfg.fields()
	for key, val := range flags {
		if val == nil {
			continue
		}
		ptr, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s", key)
		}
		switch p := ptr.(type) {
		case *string:
			if strVal, ok := val.(string); ok {
				*p = strVal
			}
		case *int:
			if intVal, ok := val.(int); ok {
				*p = intVal
			}
		case *bool:
			if boolVal, ok := val.(bool); ok {
				*p = boolVal
			}
		}
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/al-go-mcp-server/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// ResolveConfigPath returns explicit when set, otherwise the default config
// path if that file exists, otherwise "".
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := DefaultConfigPath(); fileExists(path) {
		return path
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var httpURL = regexp.MustCompile(`^https?://[^/\s]+`)

// Validate validates all configuration values and returns descriptive errors
// for any invalid settings.
func (c *Config) Validate() error {
	network := c.TransportType == "sse" || c.TransportType == "streamablehttp"

	err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.GitHubAPIURL, validation.Required, validation.Match(httpURL).Error("must be an http:// or https:// URL")),
		validation.Field(&c.RepoOwner, validation.Required),
		validation.Field(&c.RepoName, validation.Required),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.FetchTimeout, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.MaxConcurrent, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxDocFiles, validation.Required, validation.Min(1)),
		validation.Field(&c.CacheTTL, validation.Required, validation.Min(1)),
		validation.Field(&c.TransportType, validation.Required, validation.In("stdio", "sse", "streamablehttp")),
		validation.Field(&c.Port,
			validation.Min(0),
			validation.Max(65535),
			validation.When(network, validation.Required.Error("must be configured for network transports")),
		),
	)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// FetchTimeoutDuration returns FetchTimeout as a duration
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// CacheTTLDuration returns CacheTTL as a duration
func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetTransportType returns the configured transport type
func (c *Config) GetTransportType() string {
	return c.TransportType
}

// GetPort returns the configured port
func (c *Config) GetPort() int {
	return c.Port
}

// GetTransportAddress returns "host:port" for network transports and "" for stdio
func (c *Config) GetTransportAddress() string {
	if c.TransportType == "stdio" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RepositoryURL returns the web URL of the configured repository
func (c *Config) RepositoryURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", c.RepoOwner, c.RepoName)
}
