package agenttree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveModelKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	tree := New(dir)

	if got := tree.resolveModelKey("explicit-model", "t1", "root"); got != "explicit-model" {
		t.Fatalf("expected explicit model_key to win, got %q", got)
	}

	if err := WriteState(tree.ParentStatePath("t1", "root"), State{ModelKey: "parent-model"}); err != nil {
		t.Fatal(err)
	}
	if got := tree.resolveModelKey("", "t1", "root"); got != "parent-model" {
		t.Fatalf("expected parent state model_key, got %q", got)
	}

	t.Setenv("DEFAULT_MODEL", "env-model")
	if got := tree.resolveModelKey("", "t1", "missing-parent"); got != "env-model" {
		t.Fatalf("expected DEFAULT_MODEL fallback, got %q", got)
	}
}

func TestListAgentsReportsChildStatusAndReturnValue(t *testing.T) {
	dir := t.TempDir()
	tree := New(dir)

	activeDir := tree.ChildDir("t1", "root", "worker-001")
	if err := os.MkdirAll(activeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteState(filepath.Join(activeDir, "state.json"), State{Status: "active"}); err != nil {
		t.Fatal(err)
	}

	doneDir := tree.ChildDir("t1", "root", "worker-002")
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteResult(doneDir, Result{Status: "done", ReturnValue: "ok"}); err != nil {
		t.Fatal(err)
	}

	resp := tree.ListAgents("t1")
	if resp.TreeID != "t1" {
		t.Fatalf("expected tree id t1, got %q", resp.TreeID)
	}
	children, ok := resp.Parents["root"]
	if !ok {
		t.Fatal("expected root parent entry")
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}

	byID := map[string]childSummary{}
	for _, c := range children {
		byID[c.ChildID] = c
	}
	if byID["worker-001"].Status != "active" {
		t.Fatalf("expected worker-001 active, got %+v", byID["worker-001"])
	}
	if byID["worker-002"].Status != "done" || byID["worker-002"].ReturnValue != "ok" {
		t.Fatalf("expected worker-002 done with return value ok, got %+v", byID["worker-002"])
	}
}

func TestListAgentsUnknownTreeReturnsEmptyParents(t *testing.T) {
	tree := New(t.TempDir())
	resp := tree.ListAgents("does-not-exist")
	if len(resp.Parents) != 0 {
		t.Fatalf("expected no parents, got %+v", resp.Parents)
	}
}

func TestWriteResultForCurrentAgentRequiresEnv(t *testing.T) {
	t.Setenv("EG_TREE_ID", "")
	t.Setenv("EG_PARENT_ID", "")
	t.Setenv("EG_AGENT_ID", "")
	tree := New(t.TempDir())
	if err := tree.WriteResultForCurrentAgent("value", ""); err == nil {
		t.Fatal("expected error when not running as a spawned child")
	}
}

func TestWriteResultForCurrentAgentWritesToChildDir(t *testing.T) {
	dir := t.TempDir()
	tree := New(dir)
	t.Setenv("EG_TREE_ID", "t1")
	t.Setenv("EG_PARENT_ID", "root")
	t.Setenv("EG_AGENT_ID", "worker-001")

	if err := tree.WriteResultForCurrentAgent("all done", "short recap here"); err != nil {
		t.Fatalf("WriteResultForCurrentAgent: %v", err)
	}

	childDir := tree.ChildDir("t1", "root", "worker-001")
	res, ok, err := ReadResult(childDir)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !ok {
		t.Fatal("expected result.json to exist")
	}
	if res.ReturnValue != "all done" || res.ShortRecap != "short recap here" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseSpawnRequestReadsKnownFields(t *testing.T) {
	req := ParseSpawnRequest(map[string]any{
		"context_text": "do the thing",
		"label":        "worker",
		"model_key":    "gpt-5",
	})
	if req.ContextText != "do the thing" || req.Label != "worker" || req.ModelKey != "gpt-5" {
		t.Fatalf("unexpected request: %+v", req)
	}
}
