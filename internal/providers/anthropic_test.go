package providers

import (
	"encoding/json"
	"testing"

	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/transcript"
)

func TestConvertMessagesSplitsSystemPrompt(t *testing.T) {
	msgs := []transcript.Message{
		transcript.NewTextMessage(transcript.RoleSystem, "be terse"),
		transcript.NewTextMessage(transcript.RoleUser, "hello"),
	}
	result, system, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if system != "be terse" {
		t.Fatalf("system = %q, want %q", system, "be terse")
	}
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1 (system message must not become a MessageParam)", len(result))
	}
}

func TestConvertMessagesRejectsInvalidToolCallArguments(t *testing.T) {
	content := ""
	msgs := []transcript.Message{
		{
			Role:    transcript.RoleAssistant,
			Content: &content,
			ToolCalls: []transcript.ToolCall{
				{ID: "call_1", Type: "function", Function: transcript.ToolCallFunction{Name: "bash", Arguments: "not json"}},
			},
		},
	}
	if _, _, err := convertMessages(msgs); err == nil {
		t.Fatal("expected an error for malformed tool call arguments")
	}
}

func TestConvertToolsProducesOneEntryPerSpec(t *testing.T) {
	spec := tools.Spec{
		Type: "function",
		Function: tools.FunctionSpec{
			Name:        "bash",
			Description: "run a script",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"script": map[string]any{"type": "string"}},
			},
		},
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}

	result, err := convertTools([]json.RawMessage{raw})
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
	if result[0].OfTool == nil {
		t.Fatal("expected OfTool to be populated")
	}
	if result[0].OfTool.Name != "bash" {
		t.Fatalf("tool name = %q, want %q", result[0].OfTool.Name, "bash")
	}
}

func TestConvertToolsRejectsMalformedSpec(t *testing.T) {
	if _, err := convertTools([]json.RawMessage{json.RawMessage(`not json`)}); err == nil {
		t.Fatal("expected an error for a malformed tool spec")
	}
}

func TestNewAnthropicClientBuildsNonNilClient(t *testing.T) {
	c := NewAnthropicClient("", "test-key")
	if c == nil {
		t.Fatal("expected a non-nil client")
	}
}
