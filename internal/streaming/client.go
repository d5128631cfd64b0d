package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eggchat/egg/internal/transcript"
)

// DefaultTimeout is the HTTP timeout for a streaming chat request, per
// spec.md §5 ("HTTP timeout 120 s for streaming").
const DefaultTimeout = 120 * time.Second

// Request is the body posted to an OpenAI-compatible chat/completions
// endpoint, per spec.md §4.3 and §6. It carries no stream/max_tokens
// field of its own: Client.Stream always streams, and the one-shot
// side-channel probe (SendOnce) sets its own wire fields, so there is
// nothing here for a caller to get wrong.
type Request struct {
	Model      string               `json:"model"`
	Messages   []transcript.Message `json:"messages"`
	Tools      []json.RawMessage    `json:"tools,omitempty"`
	ToolChoice string               `json:"tool_choice,omitempty"`
}

// Client drives one streaming chat completion request at a time.
type Client struct {
	APIBase string
	APIKey  string
	HTTP    *http.Client
}

// NewClient builds a Client with the spec-mandated streaming timeout.
func NewClient(apiBase, apiKey string) *Client {
	return &Client{
		APIBase: apiBase,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Stream posts req to c.APIBase and emits typed deltas on out until the
// stream ends, the context is canceled, or a transport error occurs. out
// is never closed by Stream; the caller owns it. A StreamDone delta is
// always sent as the final event on a clean finish or a handled error,
// matching spec.md §4.3's "buffers are finalized as if the stream had
// ended" error model.
func (c *Client) Stream(ctx context.Context, req Request, out chan<- Delta) error {
	body, err := json.Marshal(streamWireRequest{Request: req, Stream: true})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		out <- Delta{Kind: StreamError, Err: fmt.Errorf("streaming request failed: %w", err)}
		out <- Delta{Kind: StreamDone}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		out <- Delta{Kind: StreamError, Err: fmt.Errorf("streaming request: HTTP %d", resp.StatusCode)}
		out <- Delta{Kind: StreamDone}
		return nil
	}

	ParseSSE(ctx, resp.Body, out)
	return nil
}

// streamWireRequest adds the "stream" field Client.Stream always needs
// on the wire, without exposing a Stream field on Request itself for a
// caller to set (and have silently overridden).
type streamWireRequest struct {
	Request
	Stream bool `json:"stream"`
}

// sendOnceWireRequest is what SendOnce actually posts: stream disabled
// and max_tokens capped at 1, matching
// original_source/chat_client.py's send_context_only payload exactly.
type sendOnceWireRequest struct {
	Request
	Stream    bool `json:"stream"`
	MaxTokens int  `json:"max_tokens"`
}

// SendOnce posts req as a single non-streaming, max_tokens=1 request and
// discards the response body once the status code is checked — the
// cheap fire-and-forget context probe behind send_context_only, per
// spec.md's `b <script>` command. It never reads or parses a response
// body, matching the original's requests.post(...).raise_for_status()
// with no further handling.
func (c *Client) SendOnce(ctx context.Context, req Request) error {
	body, err := json.Marshal(sendOnceWireRequest{Request: req, Stream: false, MaxTokens: 1})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send-once request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send-once request: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return httpReq, nil
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content          *string `json:"content"`
			ReasoningContent *string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int     `json:"index"`
				ID       *string `json:"id"`
				Function struct {
					Name      *string `json:"name"`
					Arguments *string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ParseSSE reads line-delimited "data: " frames from body and emits
// typed deltas on out, per spec.md §4.3. It stops at the "[DONE]"
// sentinel, on scanner error, or when ctx is canceled, always emitting a
// trailing StreamDone. The caller owns closing out.
func ParseSSE(ctx context.Context, body interface{ Read([]byte) (int, error) }, out chan<- Delta) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			out <- Delta{Kind: StreamDone}
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			out <- Delta{Kind: StreamDone}
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != nil && *delta.Content != "" {
			out <- Delta{Kind: ContentDelta, Text: *delta.Content}
		}
		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			out <- Delta{Kind: ReasoningDelta, Text: *delta.ReasoningContent}
		}
		for _, tc := range delta.ToolCalls {
			d := Delta{Kind: ToolCallDelta, Index: tc.Index}
			if tc.ID != nil {
				d.ID = *tc.ID
			}
			if tc.Function.Name != nil {
				d.Name = *tc.Function.Name
			}
			if tc.Function.Arguments != nil {
				d.Arguments = *tc.Function.Arguments
			}
			out <- d
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		out <- Delta{Kind: StreamError, Err: fmt.Errorf("stream read error: %w", err)}
	}
	out <- Delta{Kind: StreamDone}
}
