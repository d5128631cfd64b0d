package tools

import (
	"fmt"
	"strings"

	"github.com/eggchat/egg/internal/toolcall"
)

// SplitResultsSeparator joins the outputs of multiple invocations folded
// into one assistant tool-call event, per spec.md §4.6.
const SplitResultsSeparator = "\n\n==== SPLIT RESULTS ===\n\n"

// SkippedMessage is recorded as a tool's output when the operator
// declines to run it.
const SkippedMessage = "--- SKIPPED BY USER ---"

// ToolFunc executes one tool invocation and returns its output text. It
// never returns an error: failures are folded into the returned string,
// matching the teacher's "Error executing X: ..." convention.
type ToolFunc func(args map[string]any) string

// Confirmer asks the operator whether to run toolName's pending
// invocation(s) and returns "y", "n", or "a", per spec.md §4.6.
type Confirmer func(toolName string) (string, error)

// Dispatcher holds the registered tool implementations and the
// single-turn auto-approve state for one assistant turn.
type Dispatcher struct {
	funcs       map[string]ToolFunc
	armed       bool // single-turn auto-approve, reset at BeginTurn
	yesToolFlag *bool
	confirm     Confirmer
}

// NewDispatcher builds a Dispatcher. yesToolFlag is the engine's global
// auto-approve toggle (shared, mutated by /toggleYesToolFlag); confirm
// drives the interactive y/n/a prompt.
func NewDispatcher(yesToolFlag *bool, confirm Confirmer) *Dispatcher {
	return &Dispatcher{funcs: map[string]ToolFunc{}, yesToolFlag: yesToolFlag, confirm: confirm}
}

// Register installs or replaces a tool implementation.
func (d *Dispatcher) Register(name string, fn ToolFunc) {
	d.funcs[name] = fn
}

// BeginTurn resets single-turn auto-approve at the start of a new
// assistant turn, per spec.md §4.6 ("armed earlier in this assistant
// turn").
func (d *Dispatcher) BeginTurn() {
	d.armed = false
}

// Dispatch executes one (possibly concatenated) tool call event: it
// repairs argsRaw into one or more argument objects, infers per-call tool
// names when the provider merged several calls' names together, prompts
// for confirmation once for the whole event, runs each call, and joins
// the outputs with SplitResultsSeparator.
func (d *Dispatcher) Dispatch(fnName, argsRaw, currentModelKey string) (string, error) {
	objs := toolcall.RepairArguments(argsRaw)
	if len(objs) == 0 {
		return "Error: Invalid arguments.", nil
	}

	names, ok := toolcall.SplitConcatenatedToolName(fnName, len(objs))
	if !ok {
		names = make([]string, len(objs))
		if toolcall.AllHaveContextText(objs) {
			chosen := "spawn_agent"
			if strings.Contains(strings.ToLower(fnName), "auto") {
				chosen = "spawn_agent_auto"
			}
			for i := range names {
				names[i] = chosen
			}
		} else {
			for i := range names {
				names[i] = fnName
			}
		}
	}

	execute, err := d.shouldExecute(fnName)
	if err != nil {
		return "", err
	}

	outputs := make([]string, len(objs))
	if !execute {
		for i := range outputs {
			outputs[i] = SkippedMessage
		}
		return joinOutputs(outputs), nil
	}

	for i, args := range objs {
		name := names[i]
		if name == "spawn_agent" || name == "spawn_agent_auto" {
			if _, has := args["model_key"]; !has && currentModelKey != "" {
				args["model_key"] = currentModelKey
			}
		}
		outputs[i] = d.execOne(name, args)
	}
	return joinOutputs(outputs), nil
}

func (d *Dispatcher) execOne(name string, args map[string]any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error executing %s: %v", name, r)
		}
	}()
	fn, ok := d.funcs[name]
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name)
	}
	return fn(args)
}

func (d *Dispatcher) shouldExecute(fnName string) (bool, error) {
	if (d.yesToolFlag != nil && *d.yesToolFlag) || d.armed {
		return true, nil
	}
	if d.confirm == nil {
		return true, nil
	}
	resp, err := d.confirm(fnName)
	if err != nil {
		return false, err
	}
	switch resp {
	case "a":
		d.armed = true
		return true, nil
	case "y":
		return true, nil
	default:
		return false, nil
	}
}

func joinOutputs(outputs []string) string {
	if len(outputs) == 1 {
		return outputs[0]
	}
	return strings.Join(outputs, SplitResultsSeparator)
}
