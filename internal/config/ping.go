package config

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Ping verifies a provider is reachable by listing its models, the same
// cheap reachability check the teacher's copilot_proxy provider runs
// before trusting a local OpenAI-compatible endpoint. It never touches
// c.AllModels; a nil error just means the provider answered.
func (c *Catalog) Ping(ctx context.Context, provider string) error {
	entry, ok := c.Providers.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if entry.APIBase == "" {
		return fmt.Errorf("provider %q is missing api_base", provider)
	}
	apiKey, err := c.APIKey(entry)
	if err != nil {
		return err
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = trimCompletionsSuffix(entry.APIBase)
	client := openai.NewClientWithConfig(cfg)

	if _, err := client.ListModels(ctx); err != nil {
		return fmt.Errorf("ping provider %q: %w", provider, err)
	}
	return nil
}
