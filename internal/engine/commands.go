package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/eggchat/egg/internal/agenttree"
	"github.com/eggchat/egg/internal/tools"
	"github.com/eggchat/egg/internal/transcript"
)

// HandleInput dispatches one line of operator input against the command
// table in spec.md §4.12, in order. Every branch appends the raw input to
// the transcript as a user message first, preserving the conversational
// record even for meta-commands, per the table's closing note.
func (e *Engine) HandleInput(ctx context.Context, input string) {
	trimmed := strings.TrimSpace(input)

	switch {
	case trimmed == "":
		e.SendMessage(ctx, "")
	case strings.HasPrefix(trimmed, "b "):
		e.recordCommand(trimmed)
		e.handleLocalBash(trimmed[2:])
	case strings.HasPrefix(trimmed, "o "):
		e.recordCommand(trimmed)
		e.handleLoadChat(strings.TrimSpace(trimmed[2:]))
	case strings.HasPrefix(trimmed, "/model"):
		e.recordCommand(trimmed)
		e.handleModel(strings.TrimSpace(trimmed[len("/model"):]))
	case strings.HasPrefix(trimmed, "/pushContext"):
		e.recordCommand(trimmed)
		e.handlePushContext(ctx, trimmed)
	case strings.HasPrefix(trimmed, "/popContext"):
		e.recordCommand(trimmed)
		e.handlePopContext(strings.TrimSpace(trimmed[len("/popContext"):]))
	case strings.HasPrefix(trimmed, "/toggleYesToolFlag"):
		e.recordCommand(trimmed)
		e.handleToggleYesToolFlag()
	case strings.HasPrefix(trimmed, "/toggleThinkingDisplay"):
		e.recordCommand(trimmed)
		e.handleToggleThinkingDisplay()
	case strings.HasPrefix(trimmed, "/spawn"):
		e.recordCommand(trimmed)
		e.handleSpawnCommand(ctx, trimmed)
	case strings.HasPrefix(trimmed, "/wait"):
		e.recordCommand(trimmed)
		e.handleWaitCommand(ctx, trimmed)
	case strings.HasPrefix(trimmed, "/tree"):
		e.recordCommand(trimmed)
		e.handleTreeCommand(trimmed)
	case strings.HasPrefix(trimmed, "/attach"):
		e.recordCommand(trimmed)
		e.handleAttachCommand(trimmed)
	default:
		e.SendMessage(ctx, trimmed)
	}
}

// recordCommand appends raw to the transcript as a user message, without
// a model key, matching the original's bare `{"role":"user","content":...}`
// append for meta-commands (only a genuine SendMessage tags model_key).
func (e *Engine) recordCommand(raw string) {
	e.Store.Append(transcript.NewTextMessage(transcript.RoleUser, raw))
}

func (e *Engine) handleLocalBash(script string) {
	script = strings.TrimSpace(script)
	if script == "" {
		e.Display.Warn("Empty bash command, skipping.")
		return
	}
	e.Display.Info("Executing local command...")
	output := tools.RunBash(script)
	e.Display.ToolOutput("b", output)
	contextMessage := fmt.Sprintf(
		"User executed a local command.\nCommand:\n```bash\n%s\n```\n\nOutput:\n---\n%s\n---",
		script, output,
	)
	e.SendContextOnly(contextMessage)
}

func (e *Engine) handleLoadChat(chatName string) {
	if chatName == "" {
		e.Display.Warn("No chat file specified.")
		return
	}
	path, err := e.Store.FindChatFile(chatName)
	if err != nil {
		e.Display.Error(err.Error())
		return
	}
	messages, err := transcript.LoadSnapshot(path)
	if err != nil {
		e.Display.Error(err.Error())
		return
	}
	e.Store.Reset(messages)
	e.Display.Info(fmt.Sprintf("Loaded chat: %s", path))
}

func (e *Engine) handleModel(modelKey string) {
	if modelKey == "" {
		e.Display.Info(e.Catalog.GroupedListing())
		return
	}
	result, err := e.Catalog.SwitchModel(modelKey)
	if err != nil {
		e.Display.Error(err.Error())
		return
	}
	e.CurrentModelKey = result.ResolvedKey
	e.Display.Info(fmt.Sprintf("Switched to model: %q", e.CurrentModelKey))
}

var pushContextPattern = regexp.MustCompile(`^/pushContext\s*(\S+\.md)?\s*(.*)$`)

func (e *Engine) handlePushContext(ctx context.Context, raw string) {
	m := pushContextPattern.FindStringSubmatch(raw)
	if m == nil {
		e.Display.Warn("Usage: /pushContext [<file_path.md>] [<additional_text>]")
		return
	}
	filePath, text := m[1], strings.TrimSpace(m[2])
	if filePath == "" && text == "" {
		e.Display.Warn("Usage: /pushContext [<file_path.md>] [<additional_text>]")
		return
	}
	result, err := e.Stack.Push(filePath, text)
	if err != nil {
		e.Display.Error(err.Error())
		return
	}
	e.Display.Info(result)
	e.SendMessage(ctx, "")
}

func (e *Engine) handlePopContext(returnValue string) {
	if returnValue == "" {
		e.Display.Warn("Usage: /popContext <return_value>")
		return
	}
	e.Display.Info(e.popContext(returnValue))
}

func (e *Engine) handleToggleYesToolFlag() {
	e.YesToolFlag = !e.YesToolFlag
	if e.YesToolFlag {
		e.Display.Info("TOOL CALLS WILL AUTOMATICALLY GO THROUGH")
	} else {
		e.Display.Info("Tool calls need confirmation")
	}
}

func (e *Engine) handleToggleThinkingDisplay() {
	e.ShowReasoning = !e.ShowReasoning
	if console, ok := e.Display.(interface{ SetShowReasoning(bool) }); ok {
		console.SetShowReasoning(e.ShowReasoning)
	}
}

var spawnFlagPattern = regexp.MustCompile(`--(tree|parent|label|count)\s+(\S+)`)
var spawnHeadPattern = regexp.MustCompile(`^/spawn\s*(\S+\.md)?\s*(.*)$`)

type spawnFlags struct {
	treeID   string
	parentID string
	label    string
	count    int
}

func parseSpawnFlags(text string) (spawnFlags, string) {
	flags := spawnFlags{treeID: "default", parentID: "root", count: 1}
	for _, m := range spawnFlagPattern.FindAllStringSubmatch(text, -1) {
		key, val := m[1], m[2]
		switch key {
		case "tree":
			flags.treeID = val
		case "parent":
			flags.parentID = val
		case "label":
			flags.label = val
		case "count":
			if n, err := strconv.Atoi(val); err == nil {
				flags.count = n
			}
		}
	}
	cleaned := strings.TrimSpace(spawnFlagPattern.ReplaceAllString(text, ""))
	return flags, cleaned
}

// handleSpawnCommand implements `/spawn`, per spec.md §4.12: it parses
// the command like /pushContext, extracts --tree/--parent/--label/--count
// flags, and builds a spawn_agents tool-call JSON that it sends through
// SendMessage as a user message; it is not dispatched locally.
func (e *Engine) handleSpawnCommand(ctx context.Context, raw string) {
	m := spawnHeadPattern.FindStringSubmatch(raw)
	if m == nil {
		e.Display.Warn("Usage: /spawn [<file_path.md>] [<additional_text with flags>]")
		return
	}
	filePath, rest := m[1], strings.TrimSpace(m[2])
	flags, cleanedText := parseSpawnFlags(rest)

	label := flags.label
	if label == "" {
		if filePath != "" {
			label = strings.TrimSuffix(filePath[strings.LastIndexByte(filePath, '/')+1:], ".md")
		} else if cleanedText != "" {
			label = strings.Fields(cleanedText)[0]
		} else {
			label = "child"
		}
	}

	var contextParts []string
	if filePath != "" {
		resolved := e.Stack.ResolveGlobalPath(filePath)
		data, err := os.ReadFile(resolved)
		if err != nil {
			e.Display.Error(fmt.Sprintf("Error reading file: %v", err))
		} else {
			contextParts = append(contextParts, string(data))
		}
	}
	if cleanedText != "" {
		contextParts = append(contextParts, cleanedText)
	}
	contextText := strings.TrimSpace(strings.Join(contextParts, "\n\n"))

	payload := agenttree.SpawnAgentsRequest{
		TreeID:    flags.treeID,
		ParentID:  flags.parentID,
		Specs:     []agenttree.SpawnSpec{{Label: label, ContextText: contextText, Count: flags.count}},
		MaxActive: max(flags.count, 1),
	}
	argsJSON, err := json.Marshal(payload)
	if err != nil {
		e.Display.Error(fmt.Sprintf("Error building spawn_agents call: %v", err))
		return
	}
	toolCallJSON := buildSyntheticToolCallJSON("spawn_agents", string(argsJSON))
	e.SendMessage(ctx, toolCallJSON)
}

// handleWaitCommand implements `/wait {json}`, synthesizing a wait_agents
// tool call the same way /spawn does.
func (e *Engine) handleWaitCommand(ctx context.Context, raw string) {
	payload := strings.TrimSpace(strings.TrimPrefix(raw, "/wait"))
	if payload == "" {
		payload = "{}"
	}
	toolCallJSON := buildSyntheticToolCallJSON("wait_agents", payload)
	e.SendMessage(ctx, toolCallJSON)
}

func buildSyntheticToolCallJSON(name, argsJSON string) string {
	type fn struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	type call struct {
		Type     string `json:"type"`
		Function fn     `json:"function"`
	}
	type envelope struct {
		ToolCalls []call `json:"tool_calls"`
	}
	data, _ := json.Marshal(envelope{ToolCalls: []call{{Type: "function", Function: fn{Name: name, Arguments: argsJSON}}}})
	return string(data)
}

func (e *Engine) handleTreeCommand(raw string) {
	parts := strings.Fields(raw)
	treeID := "default"
	if len(parts) > 1 {
		treeID = parts[1]
	}
	output := tools.RunBash(fmt.Sprintf(".egg/agents/bin/list_agents.sh %s", treeID))
	e.Display.Info(output)
}

func (e *Engine) handleAttachCommand(raw string) {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		e.Display.Warn("Usage: /attach <tree_id> [agent_id]")
		return
	}
	treeID := parts[1]
	agentID := ""
	if len(parts) > 2 {
		agentID = parts[2]
	}
	output := tools.RunBash(fmt.Sprintf(".egg/agents/bin/attach_agent.sh %s %s", treeID, agentID))
	e.Display.Info(output)
}
