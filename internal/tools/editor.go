package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var protectedDirs = []string{"/etc", "/usr", "/var", "/sys", "/boot", "/dev"}

// StrReplaceEditor replaces an exact substring match of oldStr with
// newStr in filePath. A missing file is treated as empty. An empty oldStr
// prepends newStr to the file (creating it if missing). When oldStr isn't found, it
// reports the longest prefix of oldStr that does occur, with context,
// mirroring original_source/executors.py's str_replace_editor.
func StrReplaceEditor(filePath, oldStr, newStr string) string {
	if filePath == "" {
		return "Error: file_path is required."
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	for _, d := range protectedDirs {
		if strings.HasPrefix(absPath, d) {
			return "Error: Cannot edit system files in protected directories!"
		}
	}

	content := ""
	if data, err := os.ReadFile(absPath); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Sprintf("Error: %v", err)
	}

	var newContent string
	var summary string
	switch {
	case oldStr == "":
		newContent = newStr + content
		summary = "Success! Replaced in prepend"
	case strings.Contains(content, oldStr):
		count := strings.Count(content, oldStr)
		newContent = strings.ReplaceAll(content, oldStr, newStr)
		summary = fmt.Sprintf("Success! Replaced in %d location(s)", count)
	default:
		longest := longestPrefixMatch(content, oldStr)
		if longest == "" {
			return fmt.Sprintf(
				"String not found in file. Old string length: %d, File length: %d, First 100 chars of old string: %q",
				len(oldStr), len(content), truncate(oldStr, 100))
		}
		idx := strings.Index(content, longest)
		start := max(0, idx-20)
		end := min(len(content), idx+len(longest)+20)
		return fmt.Sprintf(
			"String not found in file. Found longest match starting with old string: %d characters.\nLongest match: %q\nContext in file:\n%q",
			len(longest), longest, content[start:end])
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if err := os.WriteFile(absPath, []byte(newContent), 0o644); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return summary
}

// longestPrefixMatch finds the longest run in content that matches a
// prefix of oldStr, starting at any position.
func longestPrefixMatch(content, oldStr string) string {
	longest := ""
	for i := 0; i < len(content); i++ {
		matchLen := 0
		for matchLen < len(oldStr) && i+matchLen < len(content) && content[i+matchLen] == oldStr[matchLen] {
			matchLen++
		}
		if matchLen > len(longest) {
			longest = content[i : i+matchLen]
		}
	}
	return longest
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
