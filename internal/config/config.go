// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	DBURL       string `mapstructure:"DB_URL"`
	GithubToken string `mapstructure:"GITHUB_TOKEN"`
	// GithubBaseURL points the client at a GitHub Enterprise instance.
	// Empty means public GitHub.
	GithubBaseURL string `mapstructure:"GITHUB_BASE_URL"`
	IndexAPIURL   string `mapstructure:"INDEX_API_URL"`
	IndexAPIKey   string `mapstructure:"INDEX_API_KEY"`

	// Staleness windows per resource kind. Registrations carry no TTL.
	RepoTTL             time.Duration `mapstructure:"REPO_TTL"`
	BranchTTL           time.Duration `mapstructure:"BRANCH_TTL"`
	TreeTTL             time.Duration `mapstructure:"TREE_TTL"`
	InvocationStatusTTL time.Duration `mapstructure:"INVOCATION_STATUS_TTL"`

	// PollInterval of 0 disables the background invocation poller.
	PollInterval  time.Duration `mapstructure:"POLL_INTERVAL"`
	PollBatchSize int32         `mapstructure:"POLL_BATCH_SIZE"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("GITHUB_BASE_URL", "")
	viper.SetDefault("REPO_TTL", "720h")
	viper.SetDefault("BRANCH_TTL", "24h")
	viper.SetDefault("TREE_TTL", "24h")
	viper.SetDefault("INVOCATION_STATUS_TTL", "2s")
	viper.SetDefault("POLL_INTERVAL", "30s")
	viper.SetDefault("POLL_BATCH_SIZE", 50)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.IndexAPIURL == "" {
		return nil, errors.New("INDEX_API_URL is a required configuration field")
	}
	if cfg.InvocationStatusTTL <= 0 {
		return nil, errors.New("INVOCATION_STATUS_TTL must be a positive duration")
	}
	if cfg.PollBatchSize <= 0 {
		return nil, errors.New("POLL_BATCH_SIZE must be a positive integer")
	}

	return &cfg, nil
}
