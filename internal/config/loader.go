package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// Catalog is the live, mutable view of models + providers the engine
// consults for every switch_model call. Virtual all:<provider>:<id>
// entries are added to Models at runtime and are never persisted, per
// spec.md §3.
type Catalog struct {
	dir    string
	logger *slog.Logger

	Models        map[string]ModelEntry
	Providers     ProviderCatalog
	AllModels     map[string]AllModelsEntry
}

// Load reads models.json and providers.json from dir, failing soft: a
// missing or invalid file logs a warning and yields an empty catalog for
// that file, per spec.md §4.1 and §7. The caller (engine startup) is
// responsible for refusing to start if Models ends up empty.
func Load(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		dir:       dir,
		logger:    logger,
		Models:    map[string]ModelEntry{},
		Providers: ProviderCatalog{Providers: map[string]ProviderEntry{}},
		AllModels: map[string]AllModelsEntry{},
	}

	var errs *multierror.Error

	if models, err := loadModels(filepath.Join(dir, "models.json")); err != nil {
		errs = multierror.Append(errs, err)
		logger.Warn("failed to load models.json", "error", err)
	} else {
		c.Models = models
	}

	if providers, meta, err := loadProviders(filepath.Join(dir, "providers.json")); err != nil {
		errs = multierror.Append(errs, err)
		logger.Warn("failed to load providers.json", "error", err)
	} else {
		c.Providers = ProviderCatalog{Providers: providers, Meta: meta}
	}

	if all, err := loadAllModels(filepath.Join(dir, "all-models.json")); err == nil {
		c.AllModels = all
	}

	return c, errs.ErrorOrNil()
}

func loadModels(path string) (map[string]ModelEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]ModelEntry{}, fmt.Errorf("read %q: %w", path, err)
	}
	var models map[string]ModelEntry
	if err := json5.Unmarshal(data, &models); err != nil {
		return map[string]ModelEntry{}, fmt.Errorf("parse %q: %w", path, err)
	}
	return models, nil
}

func loadProviders(path string) (map[string]ProviderEntry, ProvidersMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]ProviderEntry{}, ProvidersMeta{}, fmt.Errorf("read %q: %w", path, err)
	}
	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return map[string]ProviderEntry{}, ProvidersMeta{}, fmt.Errorf("parse %q: %w", path, err)
	}
	providers := map[string]ProviderEntry{}
	var meta ProvidersMeta
	for key, val := range raw {
		blob, err := remarshal(val)
		if err != nil {
			continue
		}
		if key == "_meta" {
			_ = json.Unmarshal(blob, &meta)
			continue
		}
		var entry ProviderEntry
		if err := json.Unmarshal(blob, &entry); err == nil {
			entry.SDK = entry.SDK.orDefault()
			providers[key] = entry
		}
	}
	return providers, meta, nil
}

func loadAllModels(path string) (map[string]AllModelsEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file AllModelsFile
	if err := json5.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Providers, nil
}

// remarshal round-trips an any (decoded by json5 as map[string]any) back
// into bytes so it can be re-decoded into a concrete struct. Plain
// encoding/json suffices here: the JSON5-specific syntax (comments,
// trailing commas) was already resolved by the initial json5.Unmarshal.
func remarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// SwitchModelResult reports the outcome of resolving a model key.
type SwitchModelResult struct {
	ResolvedKey string
	Entry       ModelEntry
	Suggestions string // populated only when resolution failed
}

// SwitchModel resolves key against the catalog using the order in
// spec.md §4.1:
//  1. virtual all:<provider>:<id>
//  2. exact match
//  3. case-insensitive alias match
//  4. provider:name prefix match
//
// Unknown keys return an error whose message lists available models
// grouped by provider; the caller must leave the current model unchanged.
func (c *Catalog) SwitchModel(key string) (SwitchModelResult, error) {
	if strings.HasPrefix(strings.ToLower(key), "all:") {
		return c.switchVirtualModel(key)
	}

	if entry, ok := c.Models[key]; ok {
		return SwitchModelResult{ResolvedKey: key, Entry: entry}, nil
	}

	lowered := strings.ToLower(key)
	for display, entry := range c.Models {
		for _, alias := range entry.Alias {
			if strings.ToLower(alias) == lowered {
				return SwitchModelResult{ResolvedKey: display, Entry: entry}, nil
			}
		}
	}

	if provider, name, found := strings.Cut(key, ":"); found {
		for display, entry := range c.Models {
			if entry.Provider != provider {
				continue
			}
			if display == name || hasAliasCI(entry.Alias, name) {
				return SwitchModelResult{ResolvedKey: display, Entry: entry}, nil
			}
		}
	}

	return SwitchModelResult{}, fmt.Errorf("unknown model %q\n%s", key, c.GroupedListing())
}

func hasAliasCI(aliases []string, name string) bool {
	lowered := strings.ToLower(name)
	for _, a := range aliases {
		if strings.ToLower(a) == lowered {
			return true
		}
	}
	return false
}

func (c *Catalog) switchVirtualModel(key string) (SwitchModelResult, error) {
	rest := key[len("all:"):]
	provider, id, found := strings.Cut(rest, ":")
	if !found || provider == "" || id == "" {
		return SwitchModelResult{}, fmt.Errorf("usage: all:<provider>:<model_id>")
	}
	cached, ok := c.AllModels[provider]
	if !ok {
		return SwitchModelResult{}, fmt.Errorf("no cached catalog for provider %q; run update_all_models first", provider)
	}
	found = false
	for _, m := range cached.Models {
		if m == id {
			found = true
			break
		}
	}
	if !found {
		return SwitchModelResult{}, fmt.Errorf("unknown model %q for provider %q", id, provider)
	}
	entry := ModelEntry{Provider: provider, ModelName: id}
	c.Models[key] = entry
	return SwitchModelResult{ResolvedKey: key, Entry: entry}, nil
}

// GroupedListing renders available models grouped by provider, used both
// for the bare "/model" command and for unknown-model error messages.
func (c *Catalog) GroupedListing() string {
	byProvider := map[string][]string{}
	for name, entry := range c.Models {
		byProvider[entry.Provider] = append(byProvider[entry.Provider], name)
	}
	providers := make([]string, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	var b strings.Builder
	b.WriteString("Available models (by provider):\n")
	for _, p := range providers {
		fmt.Fprintf(&b, "%s:\n", p)
		models := byProvider[p]
		sort.Strings(models)
		for _, m := range models {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}
	b.WriteString("\nTip: type 'all:' to see full provider catalogs. Use 'all:provider:model'.\n")
	return b.String()
}

// ProviderFor resolves the ProviderEntry backing an entry's Provider name.
func (c *Catalog) ProviderFor(entry ModelEntry) (ProviderEntry, error) {
	p, ok := c.Providers.Providers[entry.Provider]
	if !ok {
		return ProviderEntry{}, fmt.Errorf("provider %q not found", entry.Provider)
	}
	return p, nil
}

// APIKey resolves the bearer token for a provider from its env var.
func (c *Catalog) APIKey(p ProviderEntry) (string, error) {
	if p.APIKeyEnv == "" {
		return "", nil
	}
	v := os.Getenv(p.APIKeyEnv)
	if v == "" {
		return "", fmt.Errorf("env var %q is not set for provider", p.APIKeyEnv)
	}
	return v, nil
}
