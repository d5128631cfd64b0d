package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ScriptTimeout bounds bash/python tool invocations, per
// original_source/executors.py's subprocess.run(timeout=60).
const ScriptTimeout = 60 * time.Second

// RunBash executes script with /bin/bash -c and returns the combined,
// labeled stdout/stderr, mirroring run_bash_script.
func RunBash(script string) string {
	return runShell(script, "/bin/bash", "-c")
}

// RunPython executes script with the "python3" interpreter via -c,
// standing in for the original's in-process exec(): spawning a real
// interpreter is the idiomatic Go way to run an arbitrary Python script
// from a compiled binary.
func RunPython(script string) string {
	ctx, cancel := context.WithTimeout(context.Background(), ScriptTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "python3", "-c", script)
	return runCmd(ctx, cmd, "script")
}

func runShell(script, shell, flag string) string {
	ctx, cancel := context.WithTimeout(context.Background(), ScriptTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, flag, script)
	return runCmd(ctx, cmd, "command")
}

func runCmd(ctx context.Context, cmd *exec.Cmd, noun string) string {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("--- STDERR ---\nError: %s timed out after %s.", noun, ScriptTimeout)
	}

	var out strings.Builder
	if s := strings.TrimSpace(stdout.String()); s != "" {
		fmt.Fprintf(&out, "--- STDOUT ---\n%s\n", s)
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		fmt.Fprintf(&out, "--- STDERR ---\n%s\n", s)
	}
	if err != nil && strings.TrimSpace(stderr.String()) == "" {
		fmt.Fprintf(&out, "--- STDERR ---\nError executing %s: %v\n", noun, err)
	}

	result := strings.TrimSpace(out.String())
	if result == "" {
		return fmt.Sprintf("--- The %s executed successfully and produced no output ---", noun)
	}
	return result
}

// RunJavaScript is an opaque stub: real headless-browser automation is
// explicitly out of scope (spec.md §1), but the tool stays registered so
// a model that calls it gets a clear, non-crashing answer instead of an
// "unknown tool" error.
func RunJavaScript(_ map[string]any) string {
	return "Error: javascript tool is not available in this environment."
}
