package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/eggchat/egg/internal/agenttree"
	"github.com/eggchat/egg/internal/tools"
)

// registerTools wires every entry in tools.Registry to a concrete
// implementation, closing over e so spawn/wait/list/popContext/write_result
// can reach the agent tree and context stack, per spec.md §4.6.
func (e *Engine) registerTools() {
	d := e.Dispatcher

	d.Register("bash", func(args map[string]any) string {
		return tools.RunBash(stringArg(args, "script"))
	})
	d.Register("python", func(args map[string]any) string {
		return tools.RunPython(stringArg(args, "script"))
	})
	d.Register("javascript", tools.RunJavaScript)

	d.Register("str_replace_editor", func(args map[string]any) string {
		return tools.StrReplaceEditor(stringArg(args, "file_path"), stringArg(args, "old_str"), stringArg(args, "new_str"))
	})
	d.Register("replace_lines", func(args map[string]any) string {
		return tools.ReplaceLines(
			stringArg(args, "file_path"),
			intArg(args, "start_line"),
			intArg(args, "end_line"),
			stringArg(args, "new_content"),
			stringArg(args, "action"),
			stringArg(args, "position"),
		)
	})

	d.Register("popContext", func(args map[string]any) string {
		return e.popContext(stringArg(args, "return_value"))
	})
	d.Register("write_result", func(args map[string]any) string {
		return e.writeResult(stringArg(args, "return_value"))
	})

	d.Register("spawn_agent", func(args map[string]any) string {
		req := agenttree.ParseSpawnRequest(args)
		resp, err := e.Tree.SpawnAgent(e.BinaryPath, req)
		if err != nil {
			return fmt.Sprintf("Error spawning agent: %v", err)
		}
		e.Metrics.ChildSpawned.Inc()
		e.Metrics.ChildrenActive.Inc()
		return agenttree.MustJSON(resp)
	})
	d.Register("spawn_agent_auto", func(args map[string]any) string {
		req := agenttree.ParseSpawnRequest(args)
		resp, err := e.Tree.SpawnAgentAuto(e.BinaryPath, req)
		if err != nil {
			return fmt.Sprintf("Error spawning agent: %v", err)
		}
		e.Metrics.ChildSpawned.Inc()
		e.Metrics.ChildrenActive.Inc()
		return agenttree.MustJSON(resp)
	})
	d.Register("spawn_agents", func(args map[string]any) string {
		req := parseSpawnAgentsRequest(args)
		results := e.Tree.SpawnAgents(context.Background(), e.BinaryPath, req)
		for _, r := range results {
			if r.Error == "" {
				e.Metrics.ChildSpawned.Inc()
				e.Metrics.ChildrenActive.Inc()
			}
		}
		return agenttree.MustJSON(results)
	})
	d.Register("wait_agents", func(args map[string]any) string {
		req := parseWaitRequest(args)
		treeID, err := e.Tree.ResolveTreeID()
		if err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		return agenttree.MustJSON(e.Tree.Wait(treeID, req))
	})
	d.Register("list_agents", func(args map[string]any) string {
		return agenttree.MustJSON(e.Tree.ListAgents(stringArg(args, "tree_id")))
	})
}

// popContext implements the popContext tool: it first tries to write a
// result.json for a spawned-child process (mirroring pop_context in
// original_source/chat_client.py), then pops the in-memory context
// stack. If this process is a spawned child and the stack is now empty,
// it exits cleanly rather than returning to an interactive prompt that
// doesn't exist.
func (e *Engine) popContext(returnValue string) string {
	spawnedChild := IsSpawnedChild()
	if spawnedChild {
		if err := e.Tree.WriteResultForCurrentAgent(returnValue, e.LastShortRecap); err != nil {
			e.Display.Warn(fmt.Sprintf("Error writing agent result: %v", err))
			e.Metrics.ChildCompleted.WithLabelValues("error").Inc()
		} else {
			e.Metrics.ChildCompleted.WithLabelValues("done").Inc()
			e.Metrics.ChildrenActive.Dec()
		}
	}

	msg, err := e.Stack.Pop(returnValue)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	if spawnedChild && e.Stack.Depth() == 0 {
		e.Display.Info("Subagent finished. Exiting...")
		exitProcess(0)
	}
	return msg
}

// writeResult implements write_result: spec.md's Open Question resolves
// it as "write the given object to the current agent's result.json,
// parallel to popContext minus the process exit."
func (e *Engine) writeResult(returnValue string) string {
	if err := e.Tree.WriteResultForCurrentAgent(returnValue, e.LastShortRecap); err != nil {
		e.Metrics.ChildCompleted.WithLabelValues("error").Inc()
		return fmt.Sprintf("Error writing result: %v", err)
	}
	e.Metrics.ChildCompleted.WithLabelValues("done").Inc()
	e.Metrics.ChildrenActive.Dec()
	return fmt.Sprintf("Result written. Return value: %s", returnValue)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func parseWaitRequest(args map[string]any) agenttree.WaitRequest {
	var req agenttree.WaitRequest
	if list, ok := args["which"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				req.Which = append(req.Which, s)
			}
		}
	}
	req.TimeoutSec = intArg(args, "timeout_sec")
	if b, ok := args["any_mode"].(bool); ok {
		req.AnyMode = b
	}
	return req
}

func parseSpawnAgentsRequest(args map[string]any) agenttree.SpawnAgentsRequest {
	var req agenttree.SpawnAgentsRequest
	req.TreeID = stringArg(args, "tree_id")
	req.ParentID = stringArg(args, "parent_id")
	req.MaxActive = intArg(args, "max_active")
	if list, ok := args["specs"].([]any); ok {
		for _, v := range list {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			req.Specs = append(req.Specs, agenttree.SpawnSpec{
				Label:       stringArg(obj, "label"),
				ContextText: stringArg(obj, "context_text"),
				Count:       intArg(obj, "count"),
			})
		}
	}
	return req
}
