package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Completion service (Anthropic Messages API)
	AnthropicAPIKey   string        `envconfig:"ANTHROPIC_API_KEY"`
	CompletionModel   string        `envconfig:"COMPLETION_MODEL" default:"claude-sonnet-4-5"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"120s"` // platform function timeouts were 120-300s
	MaxTokens         int           `envconfig:"COMPLETION_MAX_TOKENS" default:"8192"`

	// GitHub auth: either a personal access token or App credentials.
	GitHubToken          string `envconfig:"GITHUB_TOKEN"`
	GitHubAppID          int64  `envconfig:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `envconfig:"GITHUB_INSTALLATION_ID"`
	GitHubPrivateKeyPath string `envconfig:"GITHUB_PRIVATE_KEY_PATH"`

	// Default repository locator for sessions that don't name one.
	DefaultOwner  string `envconfig:"DEFAULT_REPO_OWNER"`
	DefaultRepo   string `envconfig:"DEFAULT_REPO_NAME"`
	DefaultBranch string `envconfig:"DEFAULT_REPO_BRANCH" default:"main"`

	// Fetch limits
	MaxFileBytes int64 `envconfig:"MAX_FILE_BYTES" default:"262144"` // skip blobs larger than this
	MaxRepoFiles int   `envconfig:"MAX_REPO_FILES" default:"500"`

	// Session persistence
	SessionDBPath string        `envconfig:"SESSION_DB_PATH" default:"buildbox-sessions.db"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// API
	APIAuthMode    string `envconfig:"API_AUTH_MODE" default:"none"` // "api-key" or "none"
	APIKey         string `envconfig:"API_KEY"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"40"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`
}

// CompletionEnabled returns true if an Anthropic API key is configured.
func (c *Config) CompletionEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// GitHubAppEnabled returns true if GitHub App credentials are configured.
func (c *Config) GitHubAppEnabled() bool {
	return c.GitHubAppID > 0 && c.GitHubPrivateKeyPath != ""
}

// GitHubEnabled returns true if any GitHub credential is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubToken != "" || c.GitHubAppEnabled()
}

// Validate rejects configurations the agent cannot run with.
func (c *Config) Validate() error {
	if c.APIAuthMode == "api-key" && c.APIKey == "" {
		return fmt.Errorf("API_AUTH_MODE is api-key but API_KEY is empty")
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
