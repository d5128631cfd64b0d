package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPingSucceedsAgainstModelsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"test-model","object":"model"}]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, dir, "models.json", `{}`)
	writeFile(t, dir, "providers.json", `{"test": {"api_base": "`+srv.URL+`/chat/completions"}}`)

	c, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Ping(context.Background(), "test"); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPingUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.json", `{}`)
	writeFile(t, dir, "providers.json", `{}`)
	c, err := Load(dir, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Ping(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
