// Package providers implements native-SDK alternatives to the hand-rolled
// OpenAI-compatible streaming client in internal/streaming, per
// SPEC_FULL.md §4.13. A config.ProviderEntry whose SDK field names
// "anthropic" or "openai-native" is served by one of these instead of
// internal/streaming.Client; everything else keeps using the
// OpenAI-compatible wire path.
package providers

import (
	"context"

	"github.com/eggchat/egg/internal/streaming"
)

// Client streams one chat completion, translating whatever wire format
// the underlying SDK speaks into internal/streaming.Delta events. Its
// method signature matches internal/streaming.Client.Stream exactly, so
// engine.Engine can hold either behind the same interface.
type Client interface {
	Stream(ctx context.Context, req streaming.Request, out chan<- streaming.Delta) error
}
