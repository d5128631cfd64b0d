// Package engine wires the config, transcript, streaming, tool
// dispatcher, context stack, and agent tree together into the
// conversation loop described in spec.md §4.12. Per the Design Notes'
// "Global mutable state" entry, every piece of state the original kept
// as process-wide globals lives on the Engine value instead.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/eggchat/egg/internal/agenttree"
	"github.com/eggchat/egg/internal/config"
	"github.com/eggchat/egg/internal/ctxstack"
	"github.com/eggchat/egg/internal/display"
	"github.com/eggchat/egg/internal/metrics"
	"github.com/eggchat/egg/internal/providers"
	"github.com/eggchat/egg/internal/streaming"
	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/tracing"
	"github.com/eggchat/egg/internal/transcript"
	"go.opentelemetry.io/otel/trace"
)

// Engine threads every piece of mutable session state through explicit
// fields instead of package-level globals: the current model, the
// tool-approve toggle, the reasoning-display toggle, and the short recap
// extracted from the most recent assistant turn.
type Engine struct {
	Logger *slog.Logger

	Catalog *config.Catalog
	Store   *transcript.Store
	Stack   *ctxstack.Stack
	Tree    *agenttree.Tree
	Display display.Adapter

	Dispatcher *tools.Dispatcher

	CurrentModelKey string
	YesToolFlag     bool
	ShowReasoning   bool
	LastShortRecap  string

	BinaryPath     string
	OriginalSystem string

	Metrics *metrics.Metrics
	Tracer  trace.Tracer

	clients    map[string]providers.Client
	traceClose tracing.Shutdown
}

// New builds an Engine from its already-loaded dependencies. initialModel
// must already be a resolved key in catalog.Models.
func New(logger *slog.Logger, catalog *config.Catalog, store *transcript.Store, stack *ctxstack.Stack, tree *agenttree.Tree, disp display.Adapter, binaryPath, originalSystem, initialModel string) *Engine {
	tracer, closeTracer := tracing.Setup(context.Background())
	e := &Engine{
		Logger:          logger,
		Catalog:         catalog,
		Store:           store,
		Stack:           stack,
		Tree:            tree,
		Display:         disp,
		CurrentModelKey: initialModel,
		BinaryPath:      binaryPath,
		OriginalSystem:  originalSystem,
		Metrics:         metrics.New(),
		Tracer:          tracer,
		clients:         map[string]providers.Client{},
		traceClose:      closeTracer,
	}
	e.Dispatcher = tools.NewDispatcher(&e.YesToolFlag, e.confirmToolCall)
	e.registerTools()
	return e
}

// Close flushes the tracer provider, if one was configured. Callers
// (cmd/egg's main) should defer this once at startup.
func (e *Engine) Close(ctx context.Context) error {
	if e.traceClose == nil {
		return nil
	}
	return e.traceClose(ctx)
}

// confirmToolCall implements the y/n/a prompt, per spec.md §4.6. It reads
// a single line from stdin; any value other than "y"/"n"/"a" is treated
// as "n" (declined), matching the teacher's conservative default.
func (e *Engine) confirmToolCall(toolName string) (string, error) {
	e.Display.Info(fmt.Sprintf("Run tool %q? [y/n/a]: ", toolName))
	var resp string
	if _, err := fmt.Scanln(&resp); err != nil {
		return "n", nil
	}
	switch resp {
	case "y", "n", "a":
		return resp, nil
	default:
		return "n", nil
	}
}

// clientFor returns (creating if needed) the providers.Client for one
// provider entry, keyed by SDK and base URL. The client built on first
// use, with the bearer token it was given then, is reused for the
// engine's lifetime; later apiKey values for the same key are ignored.
// The entry's SDK field picks
// the implementation: config.SDKAnthropic and config.SDKOpenAINative
// get a native-SDK adapter from internal/providers; everything else
// (including the default, empty SDK) keeps using the hand-rolled
// OpenAI-compatible internal/streaming.Client, per SPEC_FULL.md §4.13.
func (e *Engine) clientFor(provider config.ProviderEntry, apiKey string) providers.Client {
	key := string(provider.SDK) + "|" + provider.APIBase
	if c, ok := e.clients[key]; ok {
		return c
	}

	var c providers.Client
	switch provider.SDK {
	case config.SDKAnthropic:
		c = providers.NewAnthropicClient(provider.APIBase, apiKey)
	case config.SDKOpenAINative:
		c = providers.NewOpenAINativeClient(provider.APIBase, apiKey)
	default:
		c = streaming.NewClient(provider.APIBase, apiKey)
	}
	e.clients[key] = c
	return c
}

// resolveCurrentModel looks up the current model's provider entry and
// bearer token, surfacing the same errors switch_model's caller would
// need to report per spec.md §7.
func (e *Engine) resolveCurrentModel() (config.ModelEntry, config.ProviderEntry, string, error) {
	entry, ok := e.Catalog.Models[e.CurrentModelKey]
	if !ok {
		return config.ModelEntry{}, config.ProviderEntry{}, "", fmt.Errorf("current model %q not found in catalog", e.CurrentModelKey)
	}
	provider, err := e.Catalog.ProviderFor(entry)
	if err != nil {
		return config.ModelEntry{}, config.ProviderEntry{}, "", err
	}
	apiKey, err := e.Catalog.APIKey(provider)
	if err != nil {
		return config.ModelEntry{}, config.ProviderEntry{}, "", err
	}
	return entry, provider, apiKey, nil
}

// exitProcess terminates the process; overridden in tests so popContext's
// subagent-finished path can be exercised without actually exiting.
var exitProcess = os.Exit

// IsSpawnedChild reports whether this process is running as a child
// agent (EG_AGENT_DIR or the EG_TREE_ID/EG_PARENT_ID/EG_AGENT_ID triple
// set by the launcher), per spec.md §6.
func IsSpawnedChild() bool {
	if os.Getenv("EG_AGENT_DIR") != "" {
		return true
	}
	return os.Getenv("EG_TREE_ID") != "" && os.Getenv("EG_PARENT_ID") != "" && os.Getenv("EG_AGENT_ID") != ""
}
