// Package config handles configuration loading and management for posse.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for posse.
type Config struct {
	// Model is the default model identifier; empty selects the client default.
	Model string `mapstructure:"model"`
	// MaxConcurrent caps parallel runs; 0 derives the ceiling from host CPUs.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// DefaultTimeout bounds runs that set no per-request timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// MaxIterations bounds the tool loop for definitions that set none.
	MaxIterations int `mapstructure:"max_iterations"`
	// MaxTokens caps output tokens per model call.
	MaxTokens int `mapstructure:"max_tokens"`
	// ModelRetries is how many times a failed model call is retried.
	ModelRetries int `mapstructure:"model_retries"`
	// ProtectedAgents extends the built-in protected name list.
	ProtectedAgents []string `mapstructure:"protected_agents"`

	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	History   HistoryConfig   `mapstructure:"history"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AgentsConfig overrides the definition directories.
type AgentsConfig struct {
	// UserDir overrides the user-scope agents directory.
	UserDir string `mapstructure:"user_dir"`
	// ProjectDir overrides the project-scope agents directory.
	ProjectDir string `mapstructure:"project_dir"`
}

// HistoryConfig holds run-history store settings.
type HistoryConfig struct {
	// Enabled toggles persistence of terminal reports.
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the database location; empty uses the project default.
	Path string `mapstructure:"path"`
}

// BedrockConfig holds AWS Bedrock transport settings.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (POSSE_*, ANTHROPIC_API_KEY)
// 2. Project config (.posse.yaml in current directory or parent)
// 3. User config (~/.config/posse/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over the user file.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// POSSE_MAX_CONCURRENT=8 overrides max_concurrent, and so on.
	v.SetEnvPrefix("POSSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("model", cfg.Model)
	v.Set("max_concurrent", cfg.MaxConcurrent)
	v.Set("default_timeout", cfg.DefaultTimeout.String())
	v.Set("max_iterations", cfg.MaxIterations)
	v.Set("max_tokens", cfg.MaxTokens)
	v.Set("model_retries", cfg.ModelRetries)
	v.Set("protected_agents", cfg.ProtectedAgents)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("agents.user_dir", cfg.Agents.UserDir)
	v.Set("agents.project_dir", cfg.Agents.ProjectDir)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("bedrock.profile", cfg.Bedrock.Profile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "")
	v.SetDefault("max_concurrent", 0)
	v.SetDefault("default_timeout", "10m")
	v.SetDefault("max_iterations", 10)
	v.SetDefault("max_tokens", 8192)
	v.SetDefault("model_retries", 2)
	v.SetDefault("protected_agents", []string{})

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("agents.user_dir", "")
	v.SetDefault("agents.project_dir", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "")
	v.SetDefault("bedrock.profile", "")
}

// getUserConfigDir returns the XDG config directory for posse.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "posse")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "posse")
	}
	return filepath.Join(home, ".config", "posse")
}

// findProjectConfig searches for .posse.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".posse.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Model:          "",
		MaxConcurrent:  0,
		DefaultTimeout: 10 * time.Minute,
		MaxIterations:  10,
		MaxTokens:      8192,
		ModelRetries:   2,
		History: HistoryConfig{
			Enabled: true,
		},
	}
}
