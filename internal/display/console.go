package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Console is the default Adapter: plain stdout streaming with
// fatih/color-styled status lines (color.New(...).Printf per message
// kind rather than ANSI codes inline). This is grounded on
// original_source/chat.py's rich-based colored console (console.print,
// Panel, border_style per message kind) — the teacher itself only
// carries fatih/color as an indirect dependency and never styles its
// own cmd/nexus output with it.
type Console struct {
	out              io.Writer
	showReasoning    bool
	reasoningPrinted bool
}

// NewConsole builds a Console writing to w. showReasoning controls
// whether ReasoningChunk is rendered at all, toggled at runtime by
// /toggleThinkingDisplay.
func NewConsole(w io.Writer, showReasoning bool) *Console {
	return &Console{out: w, showReasoning: showReasoning}
}

// SetShowReasoning flips reasoning visibility, per /toggleThinkingDisplay.
func (c *Console) SetShowReasoning(show bool) {
	c.showReasoning = show
}

func (c *Console) BeginTurn() {
	c.reasoningPrinted = false
}

func (c *Console) ContentChunk(text string) {
	fmt.Fprint(c.out, text)
}

func (c *Console) ReasoningChunk(text string) {
	if !c.showReasoning || strings.TrimSpace(text) == "" {
		return
	}
	if !c.reasoningPrinted {
		color.New(color.FgHiBlack).Fprint(c.out, "[thinking] ")
		c.reasoningPrinted = true
	}
	color.New(color.FgHiBlack).Fprint(c.out, text)
}

func (c *Console) EndTurn() {
	fmt.Fprintln(c.out)
}

func (c *Console) Info(msg string) {
	color.New(color.FgBlue).Fprintf(c.out, "ℹ %s\n", msg)
}

func (c *Console) Warn(msg string) {
	color.New(color.FgYellow).Fprintf(c.out, "⚠ %s\n", msg)
}

func (c *Console) Error(msg string) {
	color.New(color.FgRed).Fprintf(c.out, "✗ %s\n", msg)
}

func (c *Console) ToolOutput(toolName, output string) {
	color.New(color.FgHiBlack).Fprintf(c.out, "► %s\n", toolName)
	fmt.Fprintln(c.out, output)
}

var _ Adapter = (*Console)(nil)
