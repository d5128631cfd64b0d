package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eggchat/egg/internal/sanitize"
	"github.com/eggchat/egg/internal/streaming"
	"github.com/eggchat/egg/internal/toolcall"
	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/tracing"
	"github.com/eggchat/egg/internal/transcript"
)

// sideChannelTimeout is used for send_context_only's non-streaming probe
// request, per spec.md §5.
const sideChannelTimeout = 30 * time.Second

// SendMessage appends userText as a user message (tagged with the current
// model key) and drives the request/tool-call loop until the assistant
// produces a turn with no tool calls, per spec.md §4.12 and the "Tool
// call loop" scenario in §8. ctx cancellation aborts the in-flight
// stream; any partial assistant message already buffered is still
// appended, matching the teacher's "interrupted" recovery.
func (e *Engine) SendMessage(ctx context.Context, userText string) {
	e.Store.Append(transcript.Message{
		Role:     transcript.RoleUser,
		Content:  strPtr(userText),
		ModelKey: e.CurrentModelKey,
	})

	for {
		cont := e.runOneTurn(ctx)
		if !cont {
			return
		}
	}
}

// runOneTurn issues one streaming request, finalizes the assistant
// message, dispatches any tool calls, and reports whether another turn is
// needed (true) or the loop should stop (false).
func (e *Engine) runOneTurn(ctx context.Context) bool {
	entry, provider, apiKey, err := e.resolveCurrentModel()
	if err != nil {
		e.Display.Error(err.Error())
		return false
	}

	toolSpecs, err := tools.RegistrySpecs()
	if err != nil {
		e.Display.Error(fmt.Sprintf("failed to build tool registry: %v", err))
		return false
	}

	turnCtx, span := tracing.StartTurn(ctx, e.Tracer, e.CurrentModelKey)
	defer span.End()

	client := e.clientFor(provider, apiKey)
	req := streaming.Request{
		Model:      entry.ModelName,
		Messages:   sanitize.ForProvider(e.Store.Messages),
		Tools:      toolSpecs,
		ToolChoice: "auto",
	}

	out := make(chan streaming.Delta, 16)
	acc := streaming.NewAccumulator()
	e.Display.BeginTurn()
	e.Dispatcher.BeginTurn()

	done := make(chan error, 1)
	go func() { done <- client.Stream(turnCtx, req, out) }()

	interrupted := false
loop:
	for {
		select {
		case d, ok := <-out:
			if !ok || acc.Apply(d) {
				break loop
			}
			e.Metrics.StreamChunks.WithLabelValues(deltaKindLabel(d.Kind)).Inc()
			switch d.Kind {
			case streaming.ContentDelta:
				e.Display.ContentChunk(d.Text)
			case streaming.ReasoningDelta:
				e.Display.ReasoningChunk(d.Text)
			}
		case <-turnCtx.Done():
			e.Display.Warn("Interrupted.")
			interrupted = true
			break loop
		}
	}
	if !interrupted {
		if err := <-done; err != nil {
			e.Display.Error(err.Error())
			tracing.EndWithError(span, err)
		}
	}

	e.Display.EndTurn()
	if acc.Err != nil {
		e.Display.Error(acc.Err.Error())
		tracing.EndWithError(span, acc.Err)
	}

	assistantMsg := acc.ToMessage(e.CurrentModelKey)

	// Content-fallback: some providers emit a tool call as plain JSON
	// text instead of a structured tool_calls delta, per spec.md §4.4.
	if len(assistantMsg.ToolCalls) == 0 && assistantMsg.ContentString() != "" {
		if calls, wasWholeJSON := toolcall.ParseFromContent(assistantMsg.ContentString()); len(calls) > 0 {
			for i := range calls {
				if calls[i].ID == "" {
					calls[i].ID = streaming.NewCallID()
				}
			}
			assistantMsg.ToolCalls = calls
			if wasWholeJSON {
				empty := ""
				assistantMsg.Content = &empty
			}
		}
	}

	if assistantMsg.ContentString() != "" {
		e.LastShortRecap = transcript.ExtractShortRecap(assistantMsg.ContentString())
	}
	e.Store.Append(assistantMsg)

	if len(assistantMsg.ToolCalls) == 0 {
		return false
	}

	for _, tc := range assistantMsg.ToolCalls {
		_, toolSpan := tracing.StartToolDispatch(turnCtx, e.Tracer, tc.Function.Name)
		output, err := e.Dispatcher.Dispatch(tc.Function.Name, tc.Function.Arguments, e.CurrentModelKey)
		outcome := "ok"
		switch {
		case err != nil:
			output = fmt.Sprintf("Error: %v", err)
			outcome = "error"
			tracing.EndWithError(toolSpan, err)
		case strings.Contains(output, tools.SkippedMessage):
			outcome = "declined"
		}
		toolSpan.End()
		e.Metrics.ToolDispatch.WithLabelValues(tc.Function.Name, outcome).Inc()
		e.Display.ToolOutput(tc.Function.Name, output)
		e.Store.Append(transcript.Message{
			Role:       transcript.RoleTool,
			Content:    strPtr(output),
			Name:       tc.Function.Name,
			ToolCallID: tc.ID,
		})
	}
	return true
}

// SendContextOnly posts contextMessage as a one-off, non-streamed,
// max_tokens=1 request appended to the sanitized history, without
// mutating the live transcript, per spec.md's `b <script>` command and
// original_source/chat_client.py's send_context_only. Failures are
// reported but never fatal to the conversation loop. This always goes
// out over the plain OpenAI-compatible wire path (streaming.Client,
// never a native internal/providers adapter): the original posts this
// probe straight to its configured base_url regardless of which SDK a
// real turn would use, and there is no response body to make a native
// SDK's richer parsing worth the cost of wiring it in here too.
func (e *Engine) SendContextOnly(contextMessage string) {
	entry, provider, apiKey, err := e.resolveCurrentModel()
	if err != nil {
		e.Display.Error(err.Error())
		return
	}

	toolSpecs, err := tools.RegistrySpecs()
	if err != nil {
		e.Display.Error(fmt.Sprintf("Failed to send context to LLM: %v", err))
		return
	}

	oneOff := append(sanitize.ForProvider(e.Store.Messages), transcript.NewTextMessage(transcript.RoleUser, contextMessage))

	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()

	client := streaming.NewClient(provider.APIBase, apiKey)
	req := streaming.Request{Model: entry.ModelName, Messages: oneOff, Tools: toolSpecs, ToolChoice: "auto"}
	if err := client.SendOnce(ctx, req); err != nil {
		e.Display.Error(fmt.Sprintf("Failed to send context to LLM: %v", err))
	}
}

func strPtr(s string) *string { return &s }

// deltaKindLabel names a streaming.DeltaKind for the egg_stream_chunks_total
// metric, per SPEC_FULL.md §4.14.
func deltaKindLabel(k streaming.DeltaKind) string {
	switch k {
	case streaming.ContentDelta:
		return "content"
	case streaming.ReasoningDelta:
		return "reasoning"
	case streaming.ToolCallDelta:
		return "tool_call"
	case streaming.StreamError:
		return "error"
	case streaming.StreamDone:
		return "done"
	default:
		return "unknown"
	}
}
