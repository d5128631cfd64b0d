package agenttree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultChildSystemPrompt = "You are a helpful assistant."

// SpawnRequest is the argument object for spawn_agent/spawn_agent_auto,
// per spec.md §4.9.
type SpawnRequest struct {
	ContextText string `json:"context_text"`
	Label       string `json:"label"`
	ModelKey    string `json:"model_key"`
}

// SpawnResponse is the JSON shape both spawn tools return.
type SpawnResponse struct {
	TreeID   string `json:"tree_id"`
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	Dir      string `json:"dir"`
	Session  string `json:"session"`
}

// resolveModelKey implements the model_key precedence from spec.md §4.9:
// explicit argument, else the parent's own state.json model_key, else the
// DEFAULT_MODEL environment variable.
func (t *Tree) resolveModelKey(explicit, treeID, parentID string) string {
	if explicit != "" {
		return explicit
	}
	parentState, _ := ReadState(t.ParentStatePath(treeID, parentID))
	if parentState.ModelKey != "" {
		return parentState.ModelKey
	}
	return os.Getenv("DEFAULT_MODEL")
}

// spawn is the shared implementation behind SpawnAgent and
// SpawnAgentAuto; autoApprove sets EG_YES_TOOL_FLAG=1 in the child's
// run.sh so it never blocks on tool confirmation prompts.
func (t *Tree) spawn(binaryPath string, req SpawnRequest, autoApprove bool) (SpawnResponse, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = "child"
	}
	contextText := strings.TrimSpace(req.ContextText)

	treeID, err := t.ResolveTreeID()
	if err != nil {
		return SpawnResponse{}, err
	}
	parentID := ResolveParentID()
	parentCWD, err := os.Getwd()
	if err != nil {
		return SpawnResponse{}, fmt.Errorf("resolve cwd: %w", err)
	}

	modelKey := t.resolveModelKey(req.ModelKey, treeID, parentID)

	childrenDir := t.ChildrenDir(treeID, parentID)
	childID, childDir, err := t.AllocateChildDir(childrenDir, label)
	if err != nil {
		return SpawnResponse{}, err
	}

	state := State{
		AgentID:   childID,
		ParentID:  parentID,
		Status:    "active",
		ModelKey:  modelKey,
		SpawnedAt: time.Now().Unix(),
		Children:  []string{},
		CWD:       parentCWD,
	}
	if err := WriteState(filepath.Join(childDir, "state.json"), state); err != nil {
		return SpawnResponse{}, err
	}
	if err := WriteInitialMessages(childDir, defaultChildSystemPrompt, contextText); err != nil {
		return SpawnResponse{}, err
	}
	if err := os.WriteFile(filepath.Join(childDir, "init_context.txt"), []byte(contextText), 0o644); err != nil {
		return SpawnResponse{}, fmt.Errorf("write init_context.txt: %w", err)
	}

	session := EnsureSession(treeID)
	if err := t.LaunchChild(LaunchOptions{
		Session:     session,
		ParentCWD:   parentCWD,
		AgentDir:    childDir,
		ChildID:     childID,
		TreeID:      treeID,
		ParentID:    parentID,
		BinaryPath:  binaryPath,
		ModelKey:    modelKey,
		AutoApprove: autoApprove,
	}); err != nil {
		return SpawnResponse{}, err
	}
	WaitForPaneAttach()

	return SpawnResponse{
		TreeID:   treeID,
		ParentID: parentID,
		ChildID:  childID,
		Dir:      childDir,
		Session:  session,
	}, nil
}

// SpawnAgent implements spawn_agent, requiring the user to approve the
// spawned child's own tool calls one at a time (no auto-approve).
func (t *Tree) SpawnAgent(binaryPath string, req SpawnRequest) (SpawnResponse, error) {
	return t.spawn(binaryPath, req, false)
}

// SpawnAgentAuto implements spawn_agent_auto: identical to SpawnAgent but
// the child starts with its global tool auto-approve toggle
// (EG_YES_TOOL_FLAG) on for its entire session, per spec.md §4.9.
func (t *Tree) SpawnAgentAuto(binaryPath string, req SpawnRequest) (SpawnResponse, error) {
	return t.spawn(binaryPath, req, true)
}

// childSummary is one entry in ListAgentsResponse.Parents[parentID].
type childSummary struct {
	ChildID     string `json:"child_id"`
	Status      string `json:"status"`
	ReturnValue any    `json:"return_value"`
}

// ListAgentsResponse is list_agents' returned JSON shape.
type ListAgentsResponse struct {
	TreeID  string                    `json:"tree_id"`
	Parents map[string][]childSummary `json:"parents"`
}

// ListAgents implements spec.md §4.9's list_agents: every parent in the
// tree that has at least one child, with each child's status and (if
// finished) return value.
func (t *Tree) ListAgents(treeID string) ListAgentsResponse {
	if treeID == "" {
		treeID = os.Getenv("EG_TREE_ID")
	}
	if treeID == "" {
		if data, err := os.ReadFile(filepath.Join(t.baseDir, ".current_tree")); err == nil {
			treeID = strings.TrimSpace(string(data))
		}
	}
	resp := ListAgentsResponse{TreeID: treeID, Parents: map[string][]childSummary{}}

	base := filepath.Join(t.baseDir, treeID)
	parents, err := os.ReadDir(base)
	if err != nil {
		return resp
	}
	for _, parent := range parents {
		if !parent.IsDir() {
			continue
		}
		childrenRoot := filepath.Join(base, parent.Name(), "children")
		children, err := os.ReadDir(childrenRoot)
		if err != nil {
			continue
		}
		var summaries []childSummary
		for _, c := range children {
			if !c.IsDir() {
				continue
			}
			childDir := filepath.Join(childrenRoot, c.Name())
			st, _ := ReadState(filepath.Join(childDir, "state.json"))
			res, done, _ := ReadResult(childDir)
			status := st.Status
			var rv any
			if done {
				status = "done"
				rv = res.ReturnValue
			} else if status == "" {
				status = "active"
			}
			summaries = append(summaries, childSummary{ChildID: c.Name(), Status: status, ReturnValue: rv})
		}
		if len(summaries) > 0 {
			resp.Parents[parent.Name()] = summaries
		}
	}
	return resp
}

// WriteResultForCurrentAgent implements the write_result tool per
// spec.md's Design Notes: "write the given object to the current agent's
// result.json, behavior parallel to popContext minus the process exit."
// It resolves the current child's own directory from EG_TREE_ID,
// EG_PARENT_ID, and EG_AGENT_ID.
func (t *Tree) WriteResultForCurrentAgent(returnValue, shortRecap string) error {
	treeID := os.Getenv("EG_TREE_ID")
	parentID := os.Getenv("EG_PARENT_ID")
	agentID := os.Getenv("EG_AGENT_ID")
	if treeID == "" || parentID == "" || agentID == "" {
		return fmt.Errorf("write_result requires EG_TREE_ID, EG_PARENT_ID, and EG_AGENT_ID to be set (not running as a spawned child)")
	}
	childDir := t.ChildDir(treeID, parentID, agentID)
	return WriteResult(childDir, Result{
		Status:      "done",
		ReturnValue: returnValue,
		ShortRecap:  shortRecap,
		FinishedAt:  time.Now().Unix(),
	})
}

// ParseSpawnRequest decodes a tool-call arguments map into a SpawnRequest,
// tolerating string/object variance already normalized upstream by the
// argument-repair pipeline.
func ParseSpawnRequest(args map[string]any) SpawnRequest {
	var req SpawnRequest
	if v, ok := args["context_text"].(string); ok {
		req.ContextText = v
	}
	if v, ok := args["label"].(string); ok {
		req.Label = v
	}
	if v, ok := args["model_key"].(string); ok {
		req.ModelKey = v
	}
	return req
}

// MustJSON marshals v with two-space indent, matching the original's
// json.dumps(..., indent=2) tool-output convention; marshal failures
// degrade to an error object rather than panicking, since tool output
// must always be a string.
func MustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
