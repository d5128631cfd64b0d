package main

import (
	"testing"

	"github.com/eggchat/egg/internal/config"
)

func newTestCatalog(models map[string]config.ModelEntry, defaultModel string) *config.Catalog {
	return &config.Catalog{
		Models:    models,
		Providers: config.ProviderCatalog{Meta: config.ProvidersMeta{DefaultModel: defaultModel}},
	}
}

func TestResolveInitialModelKeyPrefersChildModelEnv(t *testing.T) {
	t.Setenv("EG_CHILD_MODEL", "fast")
	t.Setenv("DEFAULT_MODEL", "slow")
	catalog := newTestCatalog(map[string]config.ModelEntry{"fast": {}, "slow": {}}, "slow")

	if got := resolveInitialModelKey(catalog); got != "fast" {
		t.Fatalf("resolveInitialModelKey() = %q, want %q", got, "fast")
	}
}

func TestResolveInitialModelKeyFallsBackToCatalogDefault(t *testing.T) {
	catalog := newTestCatalog(map[string]config.ModelEntry{"a": {}, "b": {}}, "b")

	if got := resolveInitialModelKey(catalog); got != "b" {
		t.Fatalf("resolveInitialModelKey() = %q, want %q", got, "b")
	}
}

func TestResolveInitialModelKeyFallsBackToFirstSortedKey(t *testing.T) {
	catalog := newTestCatalog(map[string]config.ModelEntry{"zeta": {}, "alpha": {}}, "")

	if got := resolveInitialModelKey(catalog); got != "alpha" {
		t.Fatalf("resolveInitialModelKey() = %q, want %q", got, "alpha")
	}
}

func TestResolveInitialModelKeyIgnoresUnknownEnvOverride(t *testing.T) {
	t.Setenv("EG_CHILD_MODEL", "does-not-exist")
	catalog := newTestCatalog(map[string]config.ModelEntry{"real": {}}, "")

	if got := resolveInitialModelKey(catalog); got != "real" {
		t.Fatalf("resolveInitialModelKey() = %q, want %q", got, "real")
	}
}

func TestLogLevelDefaultsToInfo(t *testing.T) {
	if got := logLevel(); got.String() != "INFO" {
		t.Fatalf("logLevel() = %v, want INFO", got)
	}
}

func TestLogLevelHonorsEnv(t *testing.T) {
	t.Setenv("EGG_LOG_LEVEL", "debug")
	if got := logLevel(); got.String() != "DEBUG" {
		t.Fatalf("logLevel() = %v, want DEBUG", got)
	}
}
