package main

import (
	"fmt"

	"github.com/ShayCichocki/posse/internal/api"
	"github.com/ShayCichocki/posse/internal/config"
	"github.com/ShayCichocki/posse/internal/runner"
)

// buildModelClient constructs the model client runs delegate through.
// Direct Anthropic API or AWS Bedrock per config, always wrapped in the
// circuit breaker so a provider outage fails fast instead of stalling
// every queued run.
func buildModelClient(cfg *config.Config) (runner.ModelClient, error) {
	clientCfg := api.ClientConfig{
		Model: cfg.Model,
	}

	if cfg.Bedrock.Enabled {
		clientCfg.UseAWSBedrock = true
		clientCfg.AWSRegion = cfg.Bedrock.Region
		clientCfg.AWSProfile = cfg.Bedrock.Profile
	} else {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("no API key: %w\n\n"+
				"Set one with:\n"+
				"  export ANTHROPIC_API_KEY=sk-ant-...\n"+
				"or:\n"+
				"  posse config anthropic.api_key sk-ant-...", err)
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	return api.NewBreaker(client, api.BreakerConfig{}), nil
}
