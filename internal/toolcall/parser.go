// Package toolcall implements the content-fallback tool-call parser and
// the provider argument-repair pipeline described in spec.md §4.4-4.5.
package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/eggchat/egg/internal/transcript"
)

// ParseFromContent attempts to interpret raw assistant text as one of the
// three accepted tool-call envelopes, per spec.md §4.4:
//
//	{ "tool_calls": [ { "function": {name, arguments} }, ... ] }
//	[ {name, arguments}, ... ]
//	{ name, arguments }
//
// Returns nil, false if content isn't valid JSON or matches none of the
// shapes. wasWholeJSON reports whether content, once trimmed, begins and
// ends with a matching bracket (the caller uses this to decide whether to
// mark the message for re-display, per spec.md §4.4).
func ParseFromContent(content string) (calls []transcript.ToolCall, wasWholeJSON bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, false
	}
	wasWholeJSON = looksLikeWholeJSON(trimmed)

	var generic any
	if err := json.Unmarshal([]byte(trimmed), &generic); err != nil {
		return nil, false
	}

	switch v := generic.(type) {
	case map[string]any:
		if tcs, ok := v["tool_calls"]; ok {
			return parseToolCallsList(tcs), wasWholeJSON
		}
		if call, ok := parseNameArgsEntry(v); ok {
			return []transcript.ToolCall{call}, wasWholeJSON
		}
		return nil, wasWholeJSON
	case []any:
		var out []transcript.ToolCall
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if call, ok := parseNameArgsEntry(obj); ok {
				out = append(out, call)
			}
		}
		return out, wasWholeJSON
	default:
		return nil, wasWholeJSON
	}
}

func looksLikeWholeJSON(s string) bool {
	if len(s) < 2 {
		return false
	}
	switch {
	case s[0] == '{' && s[len(s)-1] == '}':
		return true
	case s[0] == '[' && s[len(s)-1] == ']':
		return true
	default:
		return false
	}
}

func parseToolCallsList(tcs any) []transcript.ToolCall {
	list, ok := tcs.([]any)
	if !ok {
		return nil
	}
	var out []transcript.ToolCall
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := obj["function"].(map[string]any)
		if call, ok := parseNameArgsEntry(fn); ok {
			out = append(out, call)
		}
	}
	return out
}

// parseNameArgsEntry reads {name, arguments} out of a generic JSON object.
// arguments may be a string (kept verbatim) or an object (re-serialized).
func parseNameArgsEntry(obj map[string]any) (transcript.ToolCall, bool) {
	name, _ := obj["name"].(string)
	if name == "" {
		return transcript.ToolCall{}, false
	}
	argsStr := "{}"
	switch args := obj["arguments"].(type) {
	case string:
		argsStr = args
	case nil:
		argsStr = "{}"
	default:
		if b, err := json.Marshal(args); err == nil {
			argsStr = string(b)
		}
	}
	return transcript.ToolCall{
		Type: "function",
		Function: transcript.ToolCallFunction{
			Name:      name,
			Arguments: argsStr,
		},
	}, true
}
