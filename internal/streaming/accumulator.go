package streaming

import (
	"sort"

	"github.com/eggchat/egg/internal/transcript"
)

// Accumulator is the consumer half of the producer/consumer split
// described in spec.md §9: it owns the content, reasoning, and tool-call
// buffers and turns a finished stream into one assistant transcript
// message.
type Accumulator struct {
	Content   strBuilder
	Reasoning strBuilder
	toolCalls map[int]*ToolCallBuffer
	order     []int
	Err       error
}

// strBuilder is a tiny indirection so zero-value Accumulator works
// without an explicit constructor.
type strBuilder struct{ s string }

func (b *strBuilder) WriteString(s string) { b.s += s }
func (b *strBuilder) String() string       { return b.s }

// NewAccumulator returns a ready-to-use Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{toolCalls: map[int]*ToolCallBuffer{}}
}

// Apply folds one delta into the accumulator's buffers. Returns true
// when d was a StreamDone (the caller should stop reading).
func (a *Accumulator) Apply(d Delta) (done bool) {
	switch d.Kind {
	case ContentDelta:
		a.Content.WriteString(d.Text)
	case ReasoningDelta:
		a.Reasoning.WriteString(d.Text)
	case ToolCallDelta:
		buf, ok := a.toolCalls[d.Index]
		if !ok {
			buf = &ToolCallBuffer{ID: d.ID}
			if buf.ID == "" {
				buf.ID = NewCallID()
			}
			a.toolCalls[d.Index] = buf
			a.order = append(a.order, d.Index)
		} else if d.ID != "" {
			buf.ID = d.ID
		}
		buf.Name += d.Name
		buf.Arguments += d.Arguments
	case StreamError:
		a.Err = d.Err
	case StreamDone:
		return true
	}
	return false
}

// ToolCalls returns the accumulated tool calls, in ascending index order,
// converted to the wire ToolCall shape.
func (a *Accumulator) ToolCalls() []transcript.ToolCall {
	if len(a.toolCalls) == 0 {
		return nil
	}
	indices := append([]int(nil), a.order...)
	sort.Ints(indices)
	calls := make([]transcript.ToolCall, 0, len(indices))
	for _, idx := range indices {
		buf := a.toolCalls[idx]
		calls = append(calls, transcript.ToolCall{
			ID:   buf.ID,
			Type: "function",
			Function: transcript.ToolCallFunction{
				Name:      buf.Name,
				Arguments: buf.Arguments,
			},
		})
	}
	return calls
}

// ToMessage builds the final assistant message from the accumulated
// buffers, per spec.md's "Basic turn" scenario in §8.
func (a *Accumulator) ToMessage(modelKey string) transcript.Message {
	msg := transcript.Message{
		Role:             transcript.RoleAssistant,
		ModelKey:         modelKey,
		ReasoningContent: a.Reasoning.String(),
		ToolCalls:        a.ToolCalls(),
	}
	content := a.Content.String()
	if content != "" || len(msg.ToolCalls) == 0 {
		msg.Content = &content
	}
	return msg
}
