package config

import (
	"errors"
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("environment wins over config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"},
		}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "sk-ant-from-env" {
			t.Errorf("expected env key, got %q", key)
		}
	})

	t.Run("falls back to config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"},
		}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "sk-ant-from-file" {
			t.Errorf("expected config key, got %q", key)
		}
	})

	t.Run("unexpanded reference is not a key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "${POSSE_MISSING_VAR}"},
		}
		_, err := GetAPIKey(cfg)
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("no key anywhere", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := GetAPIKey(&Config{})
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-proj-abcdefghijklmnopqrst", true},
		{"too short", "sk-ant-xyz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"long key", "sk-ant-REDACTED", "sk-ant-...mnop"},
		{"empty key", "", "(not set)"},
		{"short key", "sk-ant-x", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.expected {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-anything")

		if got := GetAPIKeySource(&Config{}); got != KeySourceEnv {
			t.Errorf("expected KeySourceEnv, got %v", got)
		}
	})

	t.Run("config file", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "sk-ant-from-file"},
		}
		if got := GetAPIKeySource(cfg); got != KeySourceConfig {
			t.Errorf("expected KeySourceConfig, got %v", got)
		}
	})

	t.Run("none", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		if got := GetAPIKeySource(&Config{}); got != KeySourceNone {
			t.Errorf("expected KeySourceNone, got %v", got)
		}
	})
}
