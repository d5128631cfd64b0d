// Package main is the CLI entry point for egg, a terminal coding agent
// that talks to OpenAI-compatible (and natively, Anthropic/OpenAI)
// providers, executes tools locally, and can spawn tmux-hosted subagents.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/eggchat/egg/internal/agenttree"
	"github.com/eggchat/egg/internal/assets"
	"github.com/eggchat/egg/internal/config"
	"github.com/eggchat/egg/internal/ctxstack"
	"github.com/eggchat/egg/internal/display"
	"github.com/eggchat/egg/internal/engine"
	"github.com/eggchat/egg/internal/transcript"
	"github.com/spf13/cobra"
)

// Flags set by a spawned child's run.sh (internal/agenttree.LaunchChild),
// matching its generated `exec '<binary>' --tree ... --parent ... --agent
// ...` invocation. The engine itself resolves these through the
// EG_TREE_ID/EG_PARENT_ID/EG_AGENT_ID environment variables run.sh also
// exports; the flags exist so that exact invocation line parses.
var (
	treeFlag   string
	parentFlag string
	agentFlag  string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd(logger)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// logLevel reads EGG_LOG_LEVEL, defaulting to info, per SPEC_FULL.md §6.
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("EGG_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildRootCmd(logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "egg",
		Short:        "egg - a terminal coding agent with spawnable subagents",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), logger)
		},
	}
	rootCmd.PersistentFlags().StringVar(&treeFlag, "tree", "", "tree id (set by a spawned child's run.sh via EG_TREE_ID)")
	rootCmd.PersistentFlags().StringVar(&parentFlag, "parent", "", "parent agent id (set by a spawned child's run.sh via EG_PARENT_ID)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "this agent's own id (set by a spawned child's run.sh via EG_AGENT_ID)")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tree <tree-id>",
		Short: "print the agent tree as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			tree := agenttree.New(filepath.Join(cwd, agenttree.BaseDirName))
			fmt.Fprintln(cmd.OutOrStdout(), agenttree.MustJSON(tree.ListAgents(args[0])))
			return nil
		},
	})
	return rootCmd
}

// runChat wires every dependency together and drives the interactive
// read-eval-print loop over engine.HandleInput, per spec.md §4.12.
func runChat(ctx context.Context, logger *slog.Logger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve binary path: %w", err)
	}

	eggDir := filepath.Join(cwd, ".egg")
	agentsBaseDir := filepath.Join(cwd, agenttree.BaseDirName)
	localChatsDir := filepath.Join(eggDir, "localChats")

	if err := assets.WriteScripts(filepath.Join(agentsBaseDir, "bin"), binaryPath); err != nil {
		return fmt.Errorf("write agent-tree scripts: %w", err)
	}
	globalCommandsDir, err := assets.ExtractGlobalCommands(filepath.Join(eggDir, "global_commands"))
	if err != nil {
		return fmt.Errorf("extract global_commands: %w", err)
	}

	catalog, err := config.Load(filepath.Dir(binaryPath), logger)
	if err != nil {
		logger.Warn("catalog loaded with errors", "error", err)
	}
	if len(catalog.Models) == 0 {
		return fmt.Errorf("no models available in catalog; refusing to start")
	}

	store, err := transcript.NewStore(localChatsDir)
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}

	tree := agenttree.New(agentsBaseDir)
	systemPrompt, initialModelKey, err := bootstrapTranscript(tree, store, globalCommandsDir, cwd, catalog)
	if err != nil {
		return err
	}

	stack := ctxstack.New(store, systemPrompt, globalCommandsDir)

	disp := display.NewConsole(os.Stdout, false)

	eng := engine.New(logger, catalog, store, stack, tree, disp, binaryPath, systemPrompt, initialModelKey)
	switch strings.ToLower(os.Getenv("EG_YES_TOOL_FLAG")) {
	case "1", "true", "yes", "on":
		eng.YesToolFlag = true
	}

	if addr := os.Getenv("EGG_METRICS_ADDR"); addr != "" {
		go func() {
			if err := eng.Metrics.Serve(ctx, addr); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	defer func() {
		if err := eng.Close(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return repl(runCtx, eng)
}

// bootstrapTranscript seeds the transcript and resolves the starting
// system prompt + model key. A spawned child (engine.IsSpawnedChild)
// loads the messages.json its parent's spawn call already wrote, per
// agenttree.WriteInitialMessages; otherwise a fresh system message is
// built from the packaged base prompt, the global_commands path, and an
// optional project-local AI.md, per spec.md §6.
func bootstrapTranscript(tree *agenttree.Tree, store *transcript.Store, globalCommandsDir, cwd string, catalog *config.Catalog) (string, string, error) {
	if engine.IsSpawnedChild() {
		agentDir := os.Getenv("EG_AGENT_DIR")
		if agentDir == "" {
			treeID, err := tree.ResolveTreeID()
			if err != nil {
				return "", "", err
			}
			agentDir = tree.ChildDir(treeID, agenttree.ResolveParentID(), os.Getenv("EG_AGENT_ID"))
		}
		messages, err := transcript.LoadSnapshot(filepath.Join(agentDir, "messages.json"))
		if err != nil {
			return "", "", fmt.Errorf("load spawned-child transcript: %w", err)
		}
		store.Reset(messages)
		systemPrompt := messages[0].ContentString()
		return systemPrompt, resolveInitialModelKey(catalog), nil
	}

	systemPrompt, err := buildSystemPrompt(globalCommandsDir, cwd)
	if err != nil {
		return "", "", err
	}
	store.Reset([]transcript.Message{transcript.NewTextMessage(transcript.RoleSystem, systemPrompt)})
	return systemPrompt, resolveInitialModelKey(catalog), nil
}

// buildSystemPrompt appends the packaged global_commands path to the base
// prompt and, if present, CWD's AI.md, matching
// original_source/chat_client.py's _build_system_prompt.
func buildSystemPrompt(globalCommandsDir, cwd string) (string, error) {
	base, err := assets.SystemPrompt()
	if err != nil {
		return "", err
	}
	prompt := base + fmt.Sprintf("\nglobal folder: %s\n", globalCommandsDir)
	if data, err := os.ReadFile(filepath.Join(cwd, "AI.md")); err == nil {
		prompt += "\nTHIS PROJECT'S INSTRUCTIONS AND RULES:\n\n" + string(data)
	}
	return prompt, nil
}

// resolveInitialModelKey picks the starting model: EG_CHILD_MODEL, then
// DEFAULT_MODEL, then the providers catalog's configured default, then
// (for determinism) the lexicographically first configured key.
// catalog.Models is guaranteed non-empty by runChat.
func resolveInitialModelKey(catalog *config.Catalog) string {
	for _, candidate := range []string{os.Getenv("EG_CHILD_MODEL"), os.Getenv("DEFAULT_MODEL"), catalog.Providers.Meta.DefaultModel} {
		if candidate == "" {
			continue
		}
		if _, ok := catalog.Models[candidate]; ok {
			return candidate
		}
	}
	keys := make([]string, 0, len(catalog.Models))
	for k := range catalog.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

// repl reads one line of input at a time and drives it through
// engine.HandleInput until stdin closes or ctx is canceled, per spec.md
// §4.12's command table.
func repl(ctx context.Context, eng *engine.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		eng.HandleInput(ctx, scanner.Text())
	}
	return scanner.Err()
}
