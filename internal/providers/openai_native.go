package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/eggchat/egg/internal/streaming"
	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/transcript"
)

// OpenAINativeClient drives OpenAI's chat-completions streaming API via
// the official SDK rather than the hand-rolled SSE parser in
// internal/streaming, for providers whose config entry sets
// sdk: "openai-native" (e.g. to pick up SDK-side retry/backoff and
// typed request validation). Grounded on the openai-go provider in the
// pack's other_examples/ (NeboLoop's internal/agent/ai.OpenAIProvider).
type OpenAINativeClient struct {
	client openai.Client
}

// NewOpenAINativeClient builds a client against apiBase (empty uses the
// SDK's default https://api.openai.com/v1).
func NewOpenAINativeClient(apiBase, apiKey string) *OpenAINativeClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &OpenAINativeClient{client: openai.NewClient(opts...)}
}

// Stream satisfies providers.Client.
func (c *OpenAINativeClient) Stream(ctx context.Context, req streaming.Request, out chan<- streaming.Delta) error {
	messages, err := convertChatMessages(req.Messages)
	if err != nil {
		out <- streaming.Delta{Kind: streaming.StreamError, Err: err}
		out <- streaming.Delta{Kind: streaming.StreamDone}
		return nil
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		toolParams, err := convertChatTools(req.Tools)
		if err != nil {
			out <- streaming.Delta{Kind: streaming.StreamError, Err: err}
			out <- streaming.Delta{Kind: streaming.StreamDone}
			return nil
		}
		params.Tools = toolParams
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	processChatStream(stream, out)
	return nil
}

func convertChatMessages(msgs []transcript.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion
	for _, msg := range msgs {
		switch msg.Role {
		case transcript.RoleSystem:
			if msg.ContentString() != "" {
				result = append(result, openai.SystemMessage(msg.ContentString()))
			}
		case transcript.RoleUser:
			result = append(result, openai.UserMessage(msg.ContentString()))
		case transcript.RoleTool:
			result = append(result, openai.ToolMessage(msg.ContentString(), msg.ToolCallID))
		case transcript.RoleAssistant:
			assistantMsg := openai.ChatCompletionAssistantMessageParam{Role: "assistant"}
			if msg.ContentString() != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.ContentString()),
				}
			}
			for _, tc := range msg.ToolCalls {
				assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})
		}
	}
	return result, nil
}

func convertChatTools(specs []json.RawMessage) ([]openai.ChatCompletionToolParam, error) {
	result := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, raw := range specs {
		var spec tools.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("openai-native: invalid tool spec: %w", err)
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        spec.Function.Name,
				Description: openai.String(spec.Function.Description),
				Parameters:  shared.FunctionParameters(spec.Function.Parameters),
			},
		})
	}
	return result, nil
}

// processChatStream walks the SDK's streaming chunks through the SDK's
// own accumulator (same JustFinishedToolCall pattern the NeboLoop
// provider uses) and emits streaming.Delta events.
func processChatStream(stream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
}, out chan<- streaming.Delta) {
	acc := openai.ChatCompletionAccumulator{}
	toolIndex := map[string]int{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			out <- streaming.Delta{Kind: streaming.ContentDelta, Text: chunk.Choices[0].Delta.Content}
		}

		if tc, ok := acc.JustFinishedToolCall(); ok {
			idx, seen := toolIndex[tc.ID]
			if !seen {
				idx = len(toolIndex)
				toolIndex[tc.ID] = idx
			}
			out <- streaming.Delta{Kind: streaming.ToolCallDelta, Index: idx, ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != "" {
			break
		}
	}

	if err := stream.Err(); err != nil {
		out <- streaming.Delta{Kind: streaming.StreamError, Err: fmt.Errorf("openai-native: stream error: %w", err)}
	}
	out <- streaming.Delta{Kind: streaming.StreamDone}
}
