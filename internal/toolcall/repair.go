package toolcall

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// concatenatedObjects matches a boundary between two JSON objects that a
// provider streamed back to back with no separator, e.g. `}{`.
var concatenatedObjects = regexp.MustCompile(`}\s*{`)

// RepairArguments turns a provider tool-call argument string into a list
// of argument objects, trying each stage of spec.md §4.5 in order:
//  1. direct JSON parse (object or array)
//  2. concatenated-object regex repair, wrapped as an array
//  3. tolerant repair (jsonrepair, then JSON5 for dict-literal-like text)
//  4. brace-matched manual split, parsing each piece independently
//
// The result is always non-nil only when at least one object was
// recovered; callers must treat a nil result as "invalid arguments".
func RepairArguments(raw string) []map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	if objs, ok := tryDirectParse(raw); ok {
		return objs
	}
	if objs, ok := tryConcatenatedRepair(raw); ok {
		return objs
	}
	if objs, ok := tryTolerantRepair(raw); ok {
		return objs
	}
	return splitBraceMatched(raw)
}

func tryDirectParse(raw string) ([]map[string]any, bool) {
	var asObject map[string]any
	if err := json.Unmarshal([]byte(raw), &asObject); err == nil {
		return []map[string]any{asObject}, true
	}
	var asList []map[string]any
	if err := json.Unmarshal([]byte(raw), &asList); err == nil {
		return asList, true
	}
	return nil, false
}

func tryConcatenatedRepair(raw string) ([]map[string]any, bool) {
	repaired := concatenatedObjects.ReplaceAllString(raw, "},{")
	wrapped := "[" + repaired + "]"
	var asList []map[string]any
	if err := json.Unmarshal([]byte(wrapped), &asList); err == nil && len(asList) > 0 {
		return asList, true
	}
	return nil, false
}

func tryTolerantRepair(raw string) ([]map[string]any, bool) {
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		var asObject map[string]any
		if err := json.Unmarshal([]byte(repaired), &asObject); err == nil {
			return []map[string]any{asObject}, true
		}
		var asList []map[string]any
		if err := json.Unmarshal([]byte(repaired), &asList); err == nil && len(asList) > 0 {
			return asList, true
		}
	}

	// json5 tolerates single-quoted strings and unquoted keys, covering
	// the "language-literal dict" case without a Python interpreter.
	var asObject map[string]any
	if err := json5.Unmarshal([]byte(raw), &asObject); err == nil {
		return []map[string]any{asObject}, true
	}
	return nil, false
}

// splitBraceMatched is the last-resort fallback: scan for balanced {...}
// runs and parse each independently, skipping fragments that still don't
// parse.
func splitBraceMatched(raw string) []map[string]any {
	var out []map[string]any
	i := 0
	for {
		start := strings.IndexByte(raw[i:], '{')
		if start == -1 {
			break
		}
		start += i
		depth := 0
		j := start
		for ; j < len(raw); j++ {
			switch raw[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					j++
					goto matched
				}
			}
		}
		break
	matched:
		if depth != 0 {
			break
		}
		piece := raw[start:j]
		var obj map[string]any
		if err := json.Unmarshal([]byte(piece), &obj); err == nil {
			out = append(out, obj)
		}
		i = j
	}
	return out
}

// KnownToolNames is the registry's set of dispatchable tool names, used
// by SplitConcatenatedToolName to undo the provider merging several
// calls' function names into one string.
var KnownToolNames = []string{
	"bash",
	"python",
	"javascript",
	"popContext",
	"str_replace_editor",
	"replace_lines",
	"spawn_agent",
	"spawn_agent_auto",
	"wait_agents",
	"list_agents",
	"write_result",
}

// SplitConcatenatedToolName attempts to explain a function name string as
// several known tool names concatenated with no separator, per spec.md
// §4.5. It tries a uniform repeat first, then falls back to a greedy
// longest-match scan; it only returns a split when the resulting sequence
// has exactly wantCount entries and consumes the whole string.
func SplitConcatenatedToolName(name string, wantCount int) ([]string, bool) {
	if wantCount <= 1 {
		return []string{name}, true
	}

	for _, known := range KnownToolNames {
		if strings.Repeat(known, wantCount) == name {
			seq := make([]string, wantCount)
			for i := range seq {
				seq[i] = known
			}
			return seq, true
		}
	}

	sortedKnown := append([]string(nil), KnownToolNames...)
	sort.Slice(sortedKnown, func(i, j int) bool { return len(sortedKnown[i]) > len(sortedKnown[j]) })

	var seq []string
	remaining := name
	for remaining != "" {
		matched := false
		for _, known := range sortedKnown {
			if strings.HasPrefix(remaining, known) {
				seq = append(seq, known)
				remaining = remaining[len(known):]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	if remaining == "" && len(seq) == wantCount {
		return seq, true
	}
	return nil, false
}

// AllHaveContextText reports whether every argument object carries a
// context_text key, the heuristic spec.md §4.5 uses to infer a spawn
// tool when the name split failed.
func AllHaveContextText(objs []map[string]any) bool {
	if len(objs) == 0 {
		return false
	}
	for _, o := range objs {
		if _, ok := o["context_text"]; !ok {
			return false
		}
	}
	return true
}
