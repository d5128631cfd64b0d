package toolcall

import "testing"

func TestParseFromContentToolCallsEnvelope(t *testing.T) {
	content := `{"tool_calls":[{"function":{"name":"bash","arguments":"{\"script\":\"ls\"}"}}]}`
	calls, whole := ParseFromContent(content)
	if !whole {
		t.Fatal("expected wasWholeJSON true for a bare JSON object")
	}
	if len(calls) != 1 || calls[0].Function.Name != "bash" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestParseFromContentBareList(t *testing.T) {
	content := `[{"name":"python","arguments":{"script":"print(1)"}}]`
	calls, _ := ParseFromContent(content)
	if len(calls) != 1 || calls[0].Function.Name != "python" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if calls[0].Function.Arguments != `{"script":"print(1)"}` {
		t.Fatalf("expected object arguments re-serialized to JSON, got %q", calls[0].Function.Arguments)
	}
}

func TestParseFromContentBareObject(t *testing.T) {
	content := `{"name":"write_result","arguments":"{\"return_value\":\"done\"}"}`
	calls, _ := ParseFromContent(content)
	if len(calls) != 1 || calls[0].Function.Name != "write_result" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestParseFromContentNotJSON(t *testing.T) {
	calls, whole := ParseFromContent("just talking, not a tool call")
	if calls != nil || whole {
		t.Fatalf("expected nil/false for plain text, got %+v %v", calls, whole)
	}
}

func TestRepairArgumentsDirect(t *testing.T) {
	objs := RepairArguments(`{"script":"ls"}`)
	if len(objs) != 1 || objs[0]["script"] != "ls" {
		t.Fatalf("unexpected: %+v", objs)
	}
}

func TestRepairArgumentsConcatenated(t *testing.T) {
	objs := RepairArguments(`{"a":1}{"a":2}`)
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects from concatenated repair, got %d: %+v", len(objs), objs)
	}
}

func TestSplitBraceMatchedFallback(t *testing.T) {
	// Exercises the last-resort stage directly: balanced objects
	// embedded in surrounding noise that no earlier stage can parse.
	objs := splitBraceMatched(`garbage {"a":1} noise {"b":2} trailing`)
	if len(objs) != 2 {
		t.Fatalf("expected brace-matched split to find 2 objects, got %d: %+v", len(objs), objs)
	}
	if objs[0]["a"] != float64(1) || objs[1]["b"] != float64(2) {
		t.Fatalf("unexpected object contents: %+v", objs)
	}
}

func TestSplitConcatenatedToolNameUniformRepeat(t *testing.T) {
	seq, ok := SplitConcatenatedToolName("bashbash", 2)
	if !ok || len(seq) != 2 || seq[0] != "bash" || seq[1] != "bash" {
		t.Fatalf("expected [bash bash], got %v ok=%v", seq, ok)
	}
}

func TestSplitConcatenatedToolNameGreedy(t *testing.T) {
	seq, ok := SplitConcatenatedToolName("bashpython", 2)
	if !ok || len(seq) != 2 || seq[0] != "bash" || seq[1] != "python" {
		t.Fatalf("expected [bash python], got %v ok=%v", seq, ok)
	}
}

func TestSplitConcatenatedToolNameFailsOnMismatch(t *testing.T) {
	_, ok := SplitConcatenatedToolName("bash", 3)
	if ok {
		t.Fatal("expected split to fail when name can't produce wantCount entries")
	}
}

func TestAllHaveContextText(t *testing.T) {
	objs := []map[string]any{
		{"context_text": "a"},
		{"context_text": "b"},
	}
	if !AllHaveContextText(objs) {
		t.Fatal("expected true when every object has context_text")
	}
	objs = append(objs, map[string]any{"other": "c"})
	if AllHaveContextText(objs) {
		t.Fatal("expected false when one object is missing context_text")
	}
}
