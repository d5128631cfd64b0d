package agenttree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNextChildIDAllocatesMonotonicSuffixes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "worker-001"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "worker-002"), 0o755); err != nil {
		t.Fatal(err)
	}
	got := NextChildID(dir, "worker")
	if got != "worker-003" {
		t.Fatalf("expected worker-003, got %q", got)
	}
}

func TestNextChildIDSanitizesLabel(t *testing.T) {
	dir := t.TempDir()
	got := NextChildID(dir, "my agent/helper")
	if got != "my_agent_helper-001" {
		t.Fatalf("expected sanitized label, got %q", got)
	}
}

func TestNextChildIDEmptyDirStartsAtOne(t *testing.T) {
	dir := t.TempDir()
	if got := NextChildID(dir, "child"); got != "child-001" {
		t.Fatalf("expected child-001, got %q", got)
	}
}

func TestWriteResultThenReadResultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	res := Result{Status: "done", ReturnValue: "42", ShortRecap: "finished the thing", FinishedAt: 1234}
	if err := WriteResult(dir, res); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}

	got, ok, err := ReadResult(dir)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after WriteResult")
	}
	if got != res {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, res)
	}

	st, err := ReadState(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if st.Status != "done" {
		t.Fatalf("expected state.json status=done, got %q", st.Status)
	}

	if _, err := os.Stat(filepath.Join(dir, "notify", "done")); err != nil {
		t.Fatalf("expected notify/done to exist: %v", err)
	}
}

func TestReadResultMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	res, ok, err := ReadResult(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing result.json")
	}
	if res != (Result{}) {
		t.Fatalf("expected zero Result, got %+v", res)
	}
}

func TestResolveTreeIDPrefersEnvVar(t *testing.T) {
	t.Setenv("EG_TREE_ID", "from-env")
	tree := New(t.TempDir())
	id, err := tree.ResolveTreeID()
	if err != nil {
		t.Fatalf("ResolveTreeID: %v", err)
	}
	if id != "from-env" {
		t.Fatalf("expected env var to win, got %q", id)
	}
}

func TestResolveTreeIDFallsBackToSentinelThenCreatesOne(t *testing.T) {
	t.Setenv("EG_TREE_ID", "")
	dir := t.TempDir()
	tree := New(dir)

	first, err := tree.ResolveTreeID()
	if err != nil {
		t.Fatalf("ResolveTreeID: %v", err)
	}
	if first == "" {
		t.Fatal("expected a freshly generated tree id")
	}

	second, err := tree.ResolveTreeID()
	if err != nil {
		t.Fatalf("ResolveTreeID (second call): %v", err)
	}
	if second != first {
		t.Fatalf("expected sentinel file to pin the id across calls: %q != %q", second, first)
	}
}

func TestResolveParentIDDefaultsToRoot(t *testing.T) {
	t.Setenv("EG_AGENT_ID", "")
	if got := ResolveParentID(); got != "root" {
		t.Fatalf("expected root, got %q", got)
	}
}

func TestResolveParentIDPrefersEnvVar(t *testing.T) {
	t.Setenv("EG_AGENT_ID", "worker-007")
	if got := ResolveParentID(); got != "worker-007" {
		t.Fatalf("expected worker-007, got %q", got)
	}
}

func TestWriteStateThenReadStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	st := State{AgentID: "child-001", ParentID: "root", Status: "active", ModelKey: "gpt-5", SpawnedAt: 100}
	if err := WriteState(path, st); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	got, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if got.AgentID != st.AgentID || got.ParentID != st.ParentID || got.Status != st.Status ||
		got.ModelKey != st.ModelKey || got.SpawnedAt != st.SpawnedAt {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, st)
	}
}
