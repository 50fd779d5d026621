package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/posse/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify posse configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/posse/config.yaml
Project-specific overrides can be placed in .posse.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (source: %s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("model: %s\n", orDefault(cfg.Model, "(client default)"))
	fmt.Printf("max_concurrent: %s\n", concurrencyLabel(cfg.MaxConcurrent))
	fmt.Printf("default_timeout: %s\n", cfg.DefaultTimeout)
	fmt.Printf("max_iterations: %d\n", cfg.MaxIterations)
	fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
	fmt.Printf("model_retries: %d\n", cfg.ModelRetries)
	fmt.Printf("protected_agents: %s\n", orDefault(strings.Join(cfg.ProtectedAgents, ","), "(none)"))
	fmt.Printf("agents.user_dir: %s\n", orDefault(cfg.Agents.UserDir, "(default)"))
	fmt.Printf("agents.project_dir: %s\n", orDefault(cfg.Agents.ProjectDir, "(default)"))
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("history.path: %s\n", orDefault(cfg.History.Path, "(default)"))
	fmt.Printf("bedrock.enabled: %t\n", cfg.Bedrock.Enabled)
	fmt.Printf("bedrock.region: %s\n", orDefault(cfg.Bedrock.Region, "(not set)"))
	fmt.Printf("bedrock.profile: %s\n", orDefault(cfg.Bedrock.Profile, "(not set)"))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "model":
		return cfg.Model, nil
	case "max_concurrent":
		return strconv.Itoa(cfg.MaxConcurrent), nil
	case "default_timeout":
		return cfg.DefaultTimeout.String(), nil
	case "max_iterations":
		return strconv.Itoa(cfg.MaxIterations), nil
	case "max_tokens":
		return strconv.Itoa(cfg.MaxTokens), nil
	case "model_retries":
		return strconv.Itoa(cfg.ModelRetries), nil
	case "protected_agents":
		return strings.Join(cfg.ProtectedAgents, ","), nil
	case "agents.user_dir":
		return cfg.Agents.UserDir, nil
	case "agents.project_dir":
		return cfg.Agents.ProjectDir, nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return cfg.History.Path, nil
	case "bedrock.enabled":
		return strconv.FormatBool(cfg.Bedrock.Enabled), nil
	case "bedrock.region":
		return cfg.Bedrock.Region, nil
	case "bedrock.profile":
		return cfg.Bedrock.Profile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "model":
		cfg.Model = value
	case "max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max_concurrent must be a non-negative integer, got %q", value)
		}
		cfg.MaxConcurrent = n
	case "default_timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("default_timeout must be a duration like 10m, got %q", value)
		}
		cfg.DefaultTimeout = d
	case "max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("max_iterations must be a positive integer, got %q", value)
		}
		cfg.MaxIterations = n
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("max_tokens must be a positive integer, got %q", value)
		}
		cfg.MaxTokens = n
	case "model_retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("model_retries must be a non-negative integer, got %q", value)
		}
		cfg.ModelRetries = n
	case "protected_agents":
		cfg.ProtectedAgents = splitList(value)
	case "agents.user_dir":
		cfg.Agents.UserDir = value
	case "agents.project_dir":
		cfg.Agents.ProjectDir = value
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("history.enabled must be true or false, got %q", value)
		}
		cfg.History.Enabled = b
	case "history.path":
		cfg.History.Path = value
	case "bedrock.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("bedrock.enabled must be true or false, got %q", value)
		}
		cfg.Bedrock.Enabled = b
	case "bedrock.region":
		cfg.Bedrock.Region = value
	case "bedrock.profile":
		cfg.Bedrock.Profile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func concurrencyLabel(n int) string {
	if n == 0 {
		return "0 (one per CPU)"
	}
	return strconv.Itoa(n)
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
