package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadMissingFilesFailsSoft(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir, testLogger())
	if err == nil {
		t.Fatal("expected multierror for missing models.json/providers.json, got nil")
	}
	if c == nil {
		t.Fatal("expected non-nil catalog even on load failure")
	}
	if len(c.Models) != 0 {
		t.Fatalf("expected empty Models, got %v", c.Models)
	}
}

func TestLoadAndSwitchModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.json", `{
		// comment allowed, json5
		"gpt-big": {"provider": "openai", "model_name": "gpt-big-001", "alias": ["Big", "default"]},
		"claude-fast": {"provider": "anthropic", "model_name": "claude-fast-1"},
	}`)
	writeFile(t, dir, "providers.json", `{
		"_meta": {"default_model": "gpt-big"},
		"openai": {"api_base": "https://api.openai.example/v1/chat/completions", "api_key_env": "OPENAI_KEY"},
		"anthropic": {"api_base": "https://api.anthropic.example/v1", "api_key_env": "ANTHROPIC_KEY", "sdk": "anthropic"},
	}`)

	c, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(c.Models))
	}
	if c.Providers.Meta.DefaultModel != "gpt-big" {
		t.Fatalf("expected default_model gpt-big, got %q", c.Providers.Meta.DefaultModel)
	}
	if got := c.Providers.Providers["openai"].SDK; got != SDKOpenAICompatible {
		t.Fatalf("expected openai-compatible default sdk, got %q", got)
	}
	if got := c.Providers.Providers["anthropic"].SDK; got != SDKAnthropic {
		t.Fatalf("expected anthropic sdk, got %q", got)
	}

	// exact match
	res, err := c.SwitchModel("gpt-big")
	if err != nil || res.ResolvedKey != "gpt-big" {
		t.Fatalf("exact match failed: %v %v", res, err)
	}

	// alias match, case-insensitive
	res, err = c.SwitchModel("BIG")
	if err != nil || res.ResolvedKey != "gpt-big" {
		t.Fatalf("alias match failed: %v %v", res, err)
	}

	// provider:name prefix match
	res, err = c.SwitchModel("anthropic:claude-fast")
	if err != nil || res.ResolvedKey != "claude-fast" {
		t.Fatalf("provider prefix match failed: %v %v", res, err)
	}

	// unknown model
	_, err = c.SwitchModel("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestSwitchVirtualModelRequiresCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.json", `{}`)
	writeFile(t, dir, "providers.json", `{"openai": {"api_base": "https://x/v1", "api_key_env": "X"}}`)
	c, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := c.SwitchModel("all:openai:gpt-9"); err == nil {
		t.Fatal("expected error with no cached all-models entry")
	}

	c.AllModels["openai"] = AllModelsEntry{Models: []string{"gpt-9"}}
	res, err := c.SwitchModel("all:openai:gpt-9")
	if err != nil {
		t.Fatalf("SwitchModel virtual: %v", err)
	}
	if res.Entry.ModelName != "gpt-9" || res.Entry.Provider != "openai" {
		t.Fatalf("unexpected virtual entry: %+v", res.Entry)
	}
	if _, ok := c.Models["all:openai:gpt-9"]; !ok {
		t.Fatal("expected virtual entry to be cached in Models map")
	}
}

func TestAPIKeyMissingEnv(t *testing.T) {
	entry := ProviderEntry{APIKeyEnv: "EGG_TEST_UNSET_KEY_VAR"}
	os.Unsetenv("EGG_TEST_UNSET_KEY_VAR")
	c := &Catalog{}
	if _, err := c.APIKey(entry); err == nil {
		t.Fatal("expected error for unset api key env var")
	}
}

func TestModelsURLFor(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com/v1/chat/completions": "https://api.openai.com/v1/models",
		"https://api.example.com/v1":                 "https://api.example.com/v1/models",
		"https://api.example.com/v1/":                "https://api.example.com/v1/models",
	}
	for in, want := range cases {
		if got := modelsURLFor(in); got != want {
			t.Errorf("modelsURLFor(%q) = %q, want %q", in, got, want)
		}
	}
}
