package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/eggchat/egg/internal/streaming"
	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/transcript"
)

// defaultMaxTokens is used when a request carries no explicit limit;
// the wire format streaming.Request shares with the OpenAI-compatible
// client has no max_tokens field, so Anthropic always gets this default.
const defaultMaxTokens = 4096

// AnthropicClient drives Anthropic's Messages streaming API, grounded on
// the teacher's internal/agent/providers/anthropic.go (minus the beta
// computer-use path, which this repo has no use for).
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient builds a client against apiBase (empty uses the
// SDK's default https://api.anthropic.com).
func NewAnthropicClient(apiBase, apiKey string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// Stream satisfies providers.Client. A StreamDone delta is always sent as
// the final event, matching internal/streaming.Client's contract so the
// engine's accumulator behaves identically regardless of which Client it
// is holding.
func (c *AnthropicClient) Stream(ctx context.Context, req streaming.Request, out chan<- streaming.Delta) error {
	params, err := buildMessageParams(req)
	if err != nil {
		out <- streaming.Delta{Kind: streaming.StreamError, Err: err}
		out <- streaming.Delta{Kind: streaming.StreamDone}
		return nil
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	processAnthropicStream(stream, out)
	return nil
}

func buildMessageParams(req streaming.Request) (anthropic.MessageNewParams, error) {
	messages, system, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		toolParams, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = toolParams
	}
	return params, nil
}

// convertMessages splits the sanitized transcript into Anthropic message
// params plus a concatenated system prompt, since Anthropic carries
// system text out of band instead of as a message role.
func convertMessages(msgs []transcript.Message) ([]anthropic.MessageParam, string, error) {
	var system []string
	var result []anthropic.MessageParam

	for _, msg := range msgs {
		if msg.Role == transcript.RoleSystem {
			system = append(system, msg.ContentString())
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Role == transcript.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.ContentString(), false))
		} else if msg.ContentString() != "" {
			content = append(content, anthropic.NewTextBlock(msg.ContentString()))
		}

		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					return nil, "", fmt.Errorf("anthropic: invalid tool call arguments for %s: %w", tc.Function.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == transcript.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, strings.Join(system, "\n\n"), nil
}

// convertTools turns the streaming.Request's already-marshaled
// tools.Spec entries into Anthropic tool params.
func convertTools(specs []json.RawMessage) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, raw := range specs {
		var spec tools.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool spec: %w", err)
		}

		schemaBytes, err := json.Marshal(spec.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", spec.Function.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", spec.Function.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, spec.Function.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(spec.Function.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

// processAnthropicStream walks an Anthropic SSE stream and emits the
// equivalent streaming.Delta events, per the teacher's processStream.
// Tool calls arrive as content_block_start (id/name) followed by zero or
// more input_json_delta fragments; streaming.ToolCallDelta mirrors that
// shape with a stable Index per block.
func processAnthropicStream(stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}, out chan<- streaming.Delta) {
	blockIndex := -1

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			blockIndex++
			if start.ContentBlock.Type == "tool_use" {
				toolUse := start.ContentBlock.AsToolUse()
				out <- streaming.Delta{Kind: streaming.ToolCallDelta, Index: blockIndex, ID: toolUse.ID, Name: toolUse.Name}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- streaming.Delta{Kind: streaming.ContentDelta, Text: delta.Text}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					out <- streaming.Delta{Kind: streaming.ReasoningDelta, Text: delta.Thinking}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					out <- streaming.Delta{Kind: streaming.ToolCallDelta, Index: blockIndex, Arguments: delta.PartialJSON}
				}
			}

		case "message_stop":
			out <- streaming.Delta{Kind: streaming.StreamDone}
			return

		case "error":
			out <- streaming.Delta{Kind: streaming.StreamError, Err: fmt.Errorf("anthropic: stream error event")}
			out <- streaming.Delta{Kind: streaming.StreamDone}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- streaming.Delta{Kind: streaming.StreamError, Err: fmt.Errorf("anthropic: stream read error: %w", err)}
	}
	out <- streaming.Delta{Kind: streaming.StreamDone}
}
