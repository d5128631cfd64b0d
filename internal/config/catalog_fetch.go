package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var trimmedModelSuffixes = []string{"/chat/completions", "/completions", "/responses"}

// trimCompletionsSuffix strips a trailing /chat/completions, /completions,
// or /responses from api_base, leaving the bare provider root.
func trimCompletionsSuffix(apiBase string) string {
	url := strings.TrimRight(apiBase, "/")
	for _, suffix := range trimmedModelSuffixes {
		if strings.HasSuffix(url, suffix) {
			return strings.TrimSuffix(url, suffix)
		}
	}
	return url
}

// modelsURLFor derives the /models endpoint from a chat-completions style
// api_base, per spec.md §4.11.
func modelsURLFor(apiBase string) string {
	url := trimCompletionsSuffix(apiBase)
	if !strings.HasSuffix(url, "/models") {
		url += "/models"
	}
	return url
}

type modelsListResponse struct {
	Data []modelsListItem `json:"data"`
}

type modelsListItem struct {
	ID string `json:"id"`
}

// UpdateAllModels fetches GET <api_base-derived>/models for provider,
// caches the resulting ids into c.AllModels, and persists all-models.json
// next to the other config files. Accepts either the OpenAI-compatible
// {data:[{id:...}]} shape or a bare array of strings/{id} objects.
func (c *Catalog) UpdateAllModels(provider string) (string, error) {
	entry, ok := c.Providers.Providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	if entry.APIBase == "" {
		return "", fmt.Errorf("provider %q is missing api_base", provider)
	}
	url := modelsURLFor(entry.APIBase)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if entry.APIKeyEnv != "" {
		if key := os.Getenv(entry.APIKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch models from %q: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch models from %q: HTTP %d", provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read models response: %w", err)
	}

	ids := parseModelIDs(body)
	if len(ids) == 0 {
		return fmt.Sprintf("no models parsed from %s at %s", provider, url), nil
	}

	c.AllModels[provider] = AllModelsEntry{
		FetchedAt: time.Now().Unix(),
		Source:    url,
		Models:    ids,
	}
	if err := c.saveAllModels(); err != nil {
		return "", err
	}
	return fmt.Sprintf("updated all-models.json for provider %q with %d models", provider, len(ids)), nil
}

func parseModelIDs(body []byte) []string {
	var asObject modelsListResponse
	if err := json.Unmarshal(body, &asObject); err == nil && len(asObject.Data) > 0 {
		ids := make([]string, 0, len(asObject.Data))
		for _, item := range asObject.Data {
			if item.ID != "" {
				ids = append(ids, item.ID)
			}
		}
		if len(ids) > 0 {
			return ids
		}
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(body, &asList); err == nil {
		ids := make([]string, 0, len(asList))
		for _, raw := range asList {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				ids = append(ids, s)
				continue
			}
			var item modelsListItem
			if err := json.Unmarshal(raw, &item); err == nil && item.ID != "" {
				ids = append(ids, item.ID)
			}
		}
		return ids
	}
	return nil
}

func (c *Catalog) saveAllModels() error {
	file := AllModelsFile{Providers: c.AllModels}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal all-models.json: %w", err)
	}
	path := c.dir + "/all-models.json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write all-models.json: %w", err)
	}
	return nil
}
