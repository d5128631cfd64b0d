package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReplaceLines performs a 1-based, line-number edit of filePath, per
// original_source/executors.py's replace_lines:
//   - action "replace" (default): replace inclusive [startLine..endLine]
//     (endLine defaults to startLine).
//   - action "insert": insert newContent relative to startLine using
//     position "before"|"after" (default "after"); inserting at the
//     beginning of a missing file creates it.
//   - action "delete": delete inclusive [startLine..endLine].
func ReplaceLines(filePath string, startLine, endLine int, newContent, action, position string) string {
	act := strings.ToLower(strings.TrimSpace(action))
	if act == "" {
		act = "replace"
	}
	pos := strings.ToLower(strings.TrimSpace(position))
	if pos == "" {
		pos = "after"
	}
	if act != "replace" && act != "insert" && act != "delete" {
		return "Error: action must be one of: replace, insert, delete."
	}
	if pos != "before" && pos != "after" {
		return "Error: position must be 'before' or 'after'."
	}

	var lines []string
	exists := true
	if data, err := os.ReadFile(filePath); err == nil {
		lines = splitKeepingLines(string(data))
	} else if os.IsNotExist(err) {
		exists = false
	} else {
		return fmt.Sprintf("Error: %v", err)
	}
	n := len(lines)

	write := func(out []string) string {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		if err := os.WriteFile(filePath, []byte(strings.Join(out, "")), 0o644); err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return ""
	}
	seg := buildInsertSegment(newContent)

	if act == "insert" {
		if n == 0 && startLine == 1 {
			if errMsg := write(seg); errMsg != "" {
				return errMsg
			}
			return fmt.Sprintf("Success: Inserted at beginning in %s. (file created)", filePath)
		}
		if !exists {
			return fmt.Sprintf("Error: File not found at %s. Insert into a missing file is only allowed at beginning (before line 1).", filePath)
		}
		if startLine < 1 {
			return "Error: start_line must be >= 1 for insert."
		}
		if startLine > n+1 {
			return fmt.Sprintf("Error: start_line out of bounds for insert. File has %d line(s).", n)
		}
		b := startLine
		switch {
		case startLine == n+1:
			b = n
		case pos == "before":
			b = startLine - 1
		}
		out := append(append(append([]string{}, lines[:b]...), seg...), lines[b:]...)
		if errMsg := write(out); errMsg != "" {
			return errMsg
		}
		return fmt.Sprintf("Success: Inserted %s line %d in %s.", pos, startLine, filePath)
	}

	if startLine < 1 {
		return "Error: start_line must be >= 1."
	}
	if endLine == 0 {
		endLine = startLine
	}
	if endLine < startLine {
		return "Error: end_line cannot be less than start_line."
	}
	sIdx := startLine - 1
	eIdx := endLine

	switch act {
	case "replace":
		if sIdx > n {
			sIdx = n
		}
		if eIdx > n {
			eIdx = n
		}
		out := append(append(append([]string{}, lines[:sIdx]...), seg...), lines[eIdx:]...)
		if errMsg := write(out); errMsg != "" {
			return errMsg
		}
		return fmt.Sprintf("Success: Replaced %d line(s) [%d-%d] in %s.", endLine-startLine+1, startLine, endLine, filePath)
	case "delete":
		if !exists {
			return fmt.Sprintf("Error: File not found at %s", filePath)
		}
		if eIdx > n {
			eIdx = n
		}
		out := append(append([]string{}, lines[:sIdx]...), lines[eIdx:]...)
		if errMsg := write(out); errMsg != "" {
			return errMsg
		}
		return fmt.Sprintf("Success: Deleted %d line(s) [%d-%d] in %s.", endLine-startLine+1, startLine, endLine, filePath)
	default:
		return "Error: Unknown action."
	}
}

func buildInsertSegment(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p+"\n")
	}
	return out
}

// splitKeepingLines splits content into lines, each retaining its
// trailing newline (matching Python's str.splitlines(keepends=True)).
func splitKeepingLines(content string) []string {
	if content == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			out = append(out, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		out = append(out, content[start:])
	}
	return out
}
