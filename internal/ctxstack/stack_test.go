package ctxstack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eggchat/egg/internal/transcript"
)

func newTestStack(t *testing.T) (*Stack, *transcript.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := transcript.NewStore(filepath.Join(dir, "chats"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.Reset([]transcript.Message{
		transcript.NewTextMessage(transcript.RoleSystem, "original system prompt"),
		transcript.NewTextMessage(transcript.RoleUser, "hi"),
	})
	globalDir := filepath.Join(dir, "global_commands")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return New(store, "original system prompt", globalDir), store
}

func TestPushRequiresFileOrText(t *testing.T) {
	s, _ := newTestStack(t)
	if _, err := s.Push("", ""); err == nil {
		t.Fatal("expected error when neither file nor text given")
	}
}

func TestPushThenPopRestoresPreviousTranscript(t *testing.T) {
	s, store := newTestStack(t)

	if _, err := s.Push("", "new task"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("expected depth 1 after push, got %d", s.Depth())
	}
	if store.Len() != 2 {
		t.Fatalf("expected fresh transcript [system,user], got %d messages", store.Len())
	}
	if store.Messages[1].ContentString() != "new task" {
		t.Fatalf("unexpected user content: %q", store.Messages[1].ContentString())
	}

	msg, err := s.Pop("done")
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if s.Depth() != 0 {
		t.Fatalf("expected depth 0 after pop, got %d", s.Depth())
	}
	if store.Len() != 3 {
		t.Fatalf("expected restored transcript [system,user,synthetic], got %d", store.Len())
	}
	last := store.Messages[store.Len()-1]
	if last.ContentString() != ReturnValuePrefix+"done" {
		t.Fatalf("unexpected synthetic message: %q", last.ContentString())
	}
	if msg == "" {
		t.Fatal("expected non-empty result message")
	}
}

func TestPopWithEmptyStackResetsToOriginal(t *testing.T) {
	s, store := newTestStack(t)
	msg, err := s.Pop("bye")
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected [system,synthetic], got %d", store.Len())
	}
	if store.Messages[0].ContentString() != "original system prompt" {
		t.Fatalf("expected original system prompt restored, got %q", store.Messages[0].ContentString())
	}
	if msg == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestPushResolvesGlobalPrefix(t *testing.T) {
	s, store := newTestStack(t)
	if err := os.WriteFile(filepath.Join(s.globalCommandsDir, "note.md"), []byte("global note"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Push("global/note.md", ""); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if store.Messages[1].ContentString() != "global note" {
		t.Fatalf("expected content from global_commands file, got %q", store.Messages[1].ContentString())
	}
}
