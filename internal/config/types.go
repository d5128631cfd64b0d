// Package config loads the model and provider catalogs from the two JSON
// (or JSON5) files alongside the binary, and resolves model keys to
// concrete provider/model pairs per spec.md §4.1.
package config

// ModelEntry describes one named model: which provider serves it, the
// exact model name to send on the wire, and any aliases it answers to.
type ModelEntry struct {
	Provider  string   `json:"provider"`
	ModelName string   `json:"model_name"`
	Alias     []string `json:"alias,omitempty"`
}

// SDK selects which providers.Client implementation serves a Provider.
type SDK string

const (
	SDKOpenAICompatible SDK = "openai-compatible"
	SDKAnthropic        SDK = "anthropic"
	SDKOpenAINative     SDK = "openai-native"
)

// ProviderEntry describes how to reach one backend: its base URL, the env
// var holding its bearer token, and which client implementation to use.
type ProviderEntry struct {
	APIBase   string `json:"api_base"`
	APIKeyEnv string `json:"api_key_env"`
	SDK       SDK    `json:"sdk,omitempty"`
}

// ProvidersMeta is the optional "_meta" entry in providers.json.
type ProvidersMeta struct {
	DefaultModel string `json:"default_model,omitempty"`
}

// ProviderCatalog is the parsed providers.json: provider name -> entry,
// plus an optional _meta block.
type ProviderCatalog struct {
	Providers map[string]ProviderEntry
	Meta      ProvidersMeta
}

// AllModelsEntry is one provider's cached dynamic catalog, written by
// update_all_models (spec.md §4.11).
type AllModelsEntry struct {
	FetchedAt int64    `json:"fetched_at"`
	Source    string   `json:"source"`
	Models    []string `json:"models"`
}

// AllModelsFile is the on-disk shape of all-models.json.
type AllModelsFile struct {
	Providers map[string]AllModelsEntry `json:"providers"`
}

func (s SDK) orDefault() SDK {
	if s == "" {
		return SDKOpenAICompatible
	}
	return s
}
