// Package sanitize prepares the in-memory transcript for the wire: dropping
// local-only tool output and fields the provider never needs to see.
package sanitize

import "github.com/eggchat/egg/internal/transcript"

// ForProvider returns a copy of messages suitable for sending to an
// OpenAI-compatible endpoint, per spec.md §4.2:
//   - messages with LocalTool=true are dropped entirely
//   - ReasoningContent, ModelKey, LocalTool are stripped from every message
//   - a nil Content with no ToolCalls becomes an empty string
//   - an empty ToolCalls slice on an assistant message is removed
//
// Ordering of the remaining messages is preserved.
func ForProvider(messages []transcript.Message) []transcript.Message {
	out := make([]transcript.Message, 0, len(messages))
	for _, m := range messages {
		if m.LocalTool {
			continue
		}
		clean := m.Clone()
		clean.ReasoningContent = ""
		clean.ModelKey = ""
		clean.LocalTool = false

		if clean.Content == nil && len(clean.ToolCalls) == 0 {
			empty := ""
			clean.Content = &empty
		}
		if clean.Role == transcript.RoleAssistant && clean.ToolCalls != nil && len(clean.ToolCalls) == 0 {
			clean.ToolCalls = nil
		}
		out = append(out, clean)
	}
	return out
}
