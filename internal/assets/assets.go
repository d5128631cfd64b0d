// Package assets bundles the files egg ships alongside its binary: the
// base system prompt, the packaged global_commands directory ctxstack
// resolves "global/"-prefixed paths against, and the list_agents.sh /
// attach_agent.sh templates materialized into .egg/agents/bin at startup.
// Grounded on the teacher's internal/hooks/bundled/embed.go go:embed
// pattern.
package assets

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed systemPrompt
var systemPromptFS embed.FS

//go:embed global_commands
var globalCommandsFS embed.FS

//go:embed scripts
var scriptsFS embed.FS

// SystemPrompt returns the base system prompt text, before the caller
// appends the global_commands path and any project-local AI.md, per
// spec.md §6.
func SystemPrompt() (string, error) {
	b, err := systemPromptFS.ReadFile("systemPrompt")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExtractGlobalCommands writes the embedded global_commands tree onto
// disk under dir, so ctxstack can resolve "global/" paths with a plain
// os.ReadFile instead of carrying an fs.FS through the stack. Returns the
// directory written to.
func ExtractGlobalCommands(dir string) (string, error) {
	sub, err := fs.Sub(globalCommandsFS, "global_commands")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	err = fs.WalkDir(sub, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		b, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, path), b, 0o644)
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

// binaryPlaceholder is substituted with the running binary's resolved
// path in each script template before it is written to disk.
const binaryPlaceholder = "__EGG_BINARY__"

// WriteScripts materializes list_agents.sh and attach_agent.sh into
// binDir (normally .egg/agents/bin, per agenttree.BaseDirName), with
// binaryPlaceholder replaced by binaryPath and the result made
// executable, per SPEC_FULL.md §3's "generated once at startup from
// embedded templates" instruction.
func WriteScripts(binDir, binaryPath string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	templates := map[string]string{
		"list_agents.sh":  "scripts/list_agents.sh.tmpl",
		"attach_agent.sh": "scripts/attach_agent.sh.tmpl",
	}
	for outName, embedPath := range templates {
		b, err := scriptsFS.ReadFile(embedPath)
		if err != nil {
			return err
		}
		content := strings.ReplaceAll(string(b), binaryPlaceholder, binaryPath)
		if err := os.WriteFile(filepath.Join(binDir, outName), []byte(content), 0o755); err != nil {
			return err
		}
	}
	return nil
}
