package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func newTestConsole(showReasoning bool) (*Console, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	return NewConsole(&buf, showReasoning), &buf
}

func TestContentChunkWritesTextVerbatim(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ContentChunk("hello ")
	c.ContentChunk("world")
	if buf.String() != "hello world" {
		t.Fatalf("buf = %q, want %q", buf.String(), "hello world")
	}
}

func TestReasoningChunkSuppressedWhenDisabled(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ReasoningChunk("thinking...")
	if buf.Len() != 0 {
		t.Fatalf("expected no output with reasoning display off, got %q", buf.String())
	}
}

func TestReasoningChunkPrintsLabelOnceThenAppends(t *testing.T) {
	c, buf := newTestConsole(true)
	c.ReasoningChunk("step one")
	c.ReasoningChunk(" step two")
	out := buf.String()
	if strings.Count(out, "[thinking]") != 1 {
		t.Fatalf("expected exactly one [thinking] label, got %q", out)
	}
	if !strings.Contains(out, "step one") || !strings.Contains(out, "step two") {
		t.Fatalf("expected both reasoning chunks in output, got %q", out)
	}
}

func TestBeginTurnResetsReasoningLabelState(t *testing.T) {
	c, buf := newTestConsole(true)
	c.ReasoningChunk("first turn")
	c.BeginTurn()
	buf.Reset()
	c.ReasoningChunk("second turn")
	if strings.Count(buf.String(), "[thinking]") != 1 {
		t.Fatalf("expected the label to reprint after BeginTurn, got %q", buf.String())
	}
}

func TestEndTurnWritesTrailingNewline(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ContentChunk("no newline yet")
	c.EndTurn()
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("expected EndTurn to append a trailing newline, got %q", buf.String())
	}
}

func TestInfoWarnErrorIncludeMessage(t *testing.T) {
	c, buf := newTestConsole(false)
	c.Info("info message")
	c.Warn("warn message")
	c.Error("error message")
	out := buf.String()
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestToolOutputIncludesNameAndOutput(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ToolOutput("bash", "file1\nfile2")
	out := buf.String()
	if !strings.Contains(out, "bash") || !strings.Contains(out, "file1\nfile2") {
		t.Fatalf("expected tool name and output in buffer, got %q", out)
	}
}

func TestSetShowReasoningTogglesAtRuntime(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ReasoningChunk("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected reasoning suppressed before toggling, got %q", buf.String())
	}
	c.SetShowReasoning(true)
	c.ReasoningChunk("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected reasoning visible after SetShowReasoning(true), got %q", buf.String())
	}
}
