package agenttree

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// tmuxRaw runs a shell command through /bin/bash (matching the teacher's
// own shell-out convention for tmux control) and returns trimmed stdout,
// swallowing errors: tmux introspection failing is not fatal to spawning,
// per original_source/tool_manager.py's _tmux_raw.
func tmuxRaw(cmd string) string {
	ctx := exec.Command("/bin/bash", "-c", cmd)
	var out bytes.Buffer
	ctx.Stdout = &out
	_ = ctx.Run()
	return strings.TrimSpace(out.String())
}

// SessionName is the tmux session hosting an entire tree, per spec.md
// §4.9.
func SessionName(treeID string) string {
	return "egg-tree-" + treeID
}

// EnsureSession creates the tree's tmux session if absent.
func EnsureSession(treeID string) string {
	session := SessionName(treeID)
	tmuxRaw(fmt.Sprintf("tmux has-session -t %s 2>/dev/null || tmux new-session -d -s %s 'bash'", session, session))
	return session
}

func splitHorizontal(targetPane string) string {
	tmuxRaw(fmt.Sprintf("tmux split-window -h -t %s", targetPane))
	return tmuxRaw("tmux display-message -p '#{pane_id}'")
}

func splitVertical(targetPane string) string {
	tmuxRaw(fmt.Sprintf("tmux split-window -v -t %s", targetPane))
	tmuxRaw("tmux select-layout -E")
	return tmuxRaw("tmux display-message -p '#{pane_id}'")
}

func paneExists(paneID string) bool {
	if paneID == "" {
		return false
	}
	out := tmuxRaw("tmux list-panes -a -F '#{pane_id}'")
	for _, line := range strings.Fields(out) {
		if line == paneID {
			return true
		}
	}
	return false
}

// KillPane kills a pane if it still exists; no-op for an empty id.
func KillPane(paneID string) {
	if paneID == "" {
		return
	}
	tmuxRaw(fmt.Sprintf("tmux kill-pane -t %s 2>/dev/null || true", paneID))
}

// spawnIntoParentLayer implements the layout policy from spec.md §4.9:
// the first child of a parent splits a new right column; every
// subsequent child splits that column vertically, stacking top-to-bottom.
// It sends runScript into the new pane via tmux send-keys and returns the
// new pane's id.
func (t *Tree) spawnIntoParentLayer(session, treeID, parentID, runScript string) string {
	statePath := t.ParentStatePath(treeID, parentID)
	st, _ := ReadState(statePath)
	parentPane := st.PaneID
	if parentPane == "" {
		parentPane = tmuxRaw("tmux display-message -p '#{pane_id}'")
		if parentPane == "" {
			out := tmuxRaw(fmt.Sprintf("tmux list-panes -t %s -F '#{pane_id}' | head -n1", session))
			parentPane = strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
		}
	}
	if parentPane == "" {
		return ""
	}

	rightCol := st.RightColumnPaneID
	var targetForChild string
	if rightCol == "" || !paneExists(rightCol) {
		rightCol = splitHorizontal(parentPane)
		st.RightColumnPaneID = rightCol
		st.PaneID = parentPane
		_ = WriteState(statePath, st)
		targetForChild = rightCol
	} else {
		targetForChild = splitVertical(rightCol)
	}

	escaped := strings.ReplaceAll(runScript, "'", `'"'"'`)
	tmuxRaw(fmt.Sprintf("tmux send-keys -t %s '%s' C-m", targetForChild, escaped))
	return targetForChild
}

// LaunchOptions configures one child's run.sh and environment.
type LaunchOptions struct {
	Session     string
	ParentCWD   string
	AgentDir    string
	ChildID     string
	TreeID      string
	ParentID    string
	BinaryPath  string
	ModelKey    string // becomes EG_CHILD_MODEL / DEFAULT_MODEL when set
	AutoApprove bool   // spawn_agent_auto sets EG_YES_TOOL_FLAG=1
}

// LaunchChild writes run.sh for the child and sends it into a newly
// allocated tmux pane per the parent's layout policy, per spec.md §4.9.
// The child's own pane id is recorded in its state.json if a pane was
// successfully created.
func (t *Tree) LaunchChild(opts LaunchOptions) error {
	initCtx := filepath.Join(opts.AgentDir, "init_context.txt")
	runShPath := filepath.Join(opts.AgentDir, "run.sh")

	lines := []string{
		"#!/usr/bin/env bash",
		"set -e",
		fmt.Sprintf("cd '%s'", opts.ParentCWD),
		fmt.Sprintf("export EG_AGENT_DIR='%s'", opts.AgentDir),
		fmt.Sprintf("export EG_TREE_ID='%s'", opts.TreeID),
		fmt.Sprintf("export EG_PARENT_ID='%s'", opts.ParentID),
		fmt.Sprintf("export EG_AGENT_ID='%s'", opts.ChildID),
		fmt.Sprintf("export EG_INIT_CONTEXT_FILE='%s'", initCtx),
	}
	if opts.ModelKey != "" {
		lines = append(lines,
			fmt.Sprintf("export EG_CHILD_MODEL='%s'", opts.ModelKey),
			fmt.Sprintf("export DEFAULT_MODEL='%s'", opts.ModelKey),
		)
	}
	if opts.AutoApprove {
		lines = append(lines, "export EG_YES_TOOL_FLAG='1'")
	}
	lines = append(lines, fmt.Sprintf("exec '%s' --tree '%s' --parent '%s' --agent '%s'",
		opts.BinaryPath, opts.TreeID, opts.ParentID, opts.ChildID))

	if err := os.WriteFile(runShPath, []byte(strings.Join(lines, "\n")+"\n"), 0o755); err != nil {
		return fmt.Errorf("write run.sh: %w", err)
	}

	childPane := t.spawnIntoParentLayer(opts.Session, opts.TreeID, opts.ParentID, fmt.Sprintf("'%s'", runShPath))
	if childPane != "" {
		childStatePath := filepath.Join(opts.AgentDir, "state.json")
		st, _ := ReadState(childStatePath)
		st.PaneID = childPane
		_ = WriteState(childStatePath, st)
	}
	return nil
}

// WaitForPaneAttach gives tmux a brief moment to register the new pane
// before the caller reports success, matching the small implicit
// scheduling delay in the teacher's shell-out pattern.
func WaitForPaneAttach() {
	time.Sleep(50 * time.Millisecond)
}
