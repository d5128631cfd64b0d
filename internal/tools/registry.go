// Package tools implements the dispatchable tool registry: bash/python
// execution, file editing, context-stack control, and agent tree
// spawning/waiting, per spec.md §4.6.
package tools

import "encoding/json"

// Spec is one entry in the OpenAI-compatible "tools" array sent with
// every streaming request.
type Spec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the JSON-schema description of a single tool.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry is the fixed set of tools spec.md §4.6 names.
var Registry = []Spec{
	{Type: "function", Function: FunctionSpec{
		Name:        "bash",
		Description: "Execute a bash script and return combined stdout/stderr.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"script": map[string]any{"type": "string"}},
			"required":   []string{"script"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "python",
		Description: "Execute a Python script and return combined stdout/stderr.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"script": map[string]any{"type": "string"}},
			"required":   []string{"script"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "javascript",
		Description: "Execute JavaScript in an attached browser tab. Not available in this environment.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"script": map[string]any{"type": "string"}},
			"required":   []string{"script"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "popContext",
		Description: "Return a value to the calling agent or context frame that pushed this one.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"return_value": map[string]any{"type": "string"}},
			"required":   []string{"return_value"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "str_replace_editor",
		Description: "Replace an exact string match in a file.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{"type": "string"},
				"old_str":   map[string]any{"type": "string"},
				"new_str":   map[string]any{"type": "string"},
			},
			"required": []string{"file_path", "old_str", "new_str"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "replace_lines",
		Description: "Line-number based file edit: replace, insert, or delete.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path":   map[string]any{"type": "string"},
				"start_line":  map[string]any{"type": "integer"},
				"end_line":    map[string]any{"type": "integer"},
				"new_content": map[string]any{"type": "string"},
				"action":      map[string]any{"type": "string", "enum": []string{"replace", "insert", "delete"}},
				"position":    map[string]any{"type": "string", "enum": []string{"before", "after"}},
			},
			"required": []string{"file_path", "start_line"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "spawn_agent",
		Description: "Spawn a child agent with its own transcript and tmux pane.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"context_text": map[string]any{"type": "string"},
				"label":        map[string]any{"type": "string"},
				"model_key":    map[string]any{"type": "string"},
			},
			"required": []string{"context_text"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "spawn_agent_auto",
		Description: "Like spawn_agent, but the child starts with tool auto-approve armed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"context_text": map[string]any{"type": "string"},
				"label":        map[string]any{"type": "string"},
				"model_key":    map[string]any{"type": "string"},
			},
			"required": []string{"context_text"},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "wait_agents",
		Description: "Block until some or all named child agents finish.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"which":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"timeout_sec": map[string]any{"type": "number"},
				"any_mode":    map[string]any{"type": "boolean"},
			},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "list_agents",
		Description: "List known children in the current agent tree and their status.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"tree_id": map[string]any{"type": "string"}},
		},
	}},
	{Type: "function", Function: FunctionSpec{
		Name:        "write_result",
		Description: "Write this agent's final result, if running as a child; the agent keeps running.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"return_value": map[string]any{"type": "string"}},
			"required":   []string{"return_value"},
		},
	}},
}

// RegistrySpecs marshals Registry into the raw JSON form streaming.Request
// expects, since each Spec's Parameters is already generic JSON-schema
// data.
func RegistrySpecs() ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(Registry))
	for _, s := range Registry {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
