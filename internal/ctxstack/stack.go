// Package ctxstack implements the push/pop context-frame stack described
// in spec.md §4.7: snapshotting the live transcript, swapping in a fresh
// one seeded from a file and/or inline text, and restoring a prior frame
// with a synthetic return-value message.
package ctxstack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eggchat/egg/internal/transcript"
)

// ReturnValuePrefix is prepended to the synthetic user message appended
// after a pop, per spec.md §4.7.
const ReturnValuePrefix = "Return value from push/pop context: "

// Stack manages the push/pop frames for one engine's live transcript.
type Stack struct {
	store             *transcript.Store
	originalSystem    string
	globalCommandsDir string
	frames            []string
}

// New builds a Stack bound to store's live transcript. originalSystem is
// the system prompt content restored when a pop empties the stack.
// globalCommandsDir resolves "global/" prefixed file paths, per spec.md
// §4.7.
func New(store *transcript.Store, originalSystem, globalCommandsDir string) *Stack {
	return &Stack{store: store, originalSystem: originalSystem, globalCommandsDir: globalCommandsDir}
}

// Depth reports how many frames are currently pushed.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// resolvePath maps a "global/"-prefixed path against the packaged
// global_commands directory; any other path is used as-is.
func (s *Stack) resolvePath(filePath string) string {
	if rest, ok := strings.CutPrefix(filePath, "global/"); ok {
		return filepath.Join(s.globalCommandsDir, rest)
	}
	return filePath
}

// ResolveGlobalPath exposes resolvePath for commands (e.g. /spawn) that
// need to read a "global/"-prefixed file themselves rather than through
// Push.
func (s *Stack) ResolveGlobalPath(filePath string) string {
	return s.resolvePath(filePath)
}

// Push snapshots the current transcript, pushes it onto the frame stack,
// and re-initializes the transcript with the original system prompt
// followed by a user message built from filePath's contents (if given)
// and text (if given). At least one of filePath/text is required.
func (s *Stack) Push(filePath, text string) (string, error) {
	if filePath == "" && strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("push_context requires a file path, text, or both")
	}

	var parts []string
	if filePath != "" {
		data, err := os.ReadFile(s.resolvePath(filePath))
		if err != nil {
			return "", fmt.Errorf("read context file %q: %w", filePath, err)
		}
		parts = append(parts, string(data))
	}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
	}
	userContent := strings.Join(parts, "\n\n")

	snapshotPath, err := s.store.Save("pushed_context", "")
	if err != nil {
		return "", fmt.Errorf("snapshot before push: %w", err)
	}
	s.frames = append(s.frames, snapshotPath)

	s.store.Reset([]transcript.Message{
		transcript.NewTextMessage(transcript.RoleSystem, s.originalSystem),
		transcript.NewTextMessage(transcript.RoleUser, userContent),
	})
	return fmt.Sprintf("Pushed context from %s. New context active.", filepath.Base(snapshotPath)), nil
}

// Pop snapshots the current transcript, then either restores the most
// recently pushed frame or, if the stack is empty, resets to the
// original system prompt. Either way it appends the synthetic
// return-value user message, per spec.md §4.7.
func (s *Stack) Pop(returnValue string) (string, error) {
	if _, err := s.store.Save("popped_context", returnValue); err != nil {
		return "", fmt.Errorf("snapshot before pop: %w", err)
	}

	synthetic := transcript.NewTextMessage(transcript.RoleUser, ReturnValuePrefix+returnValue)

	if len(s.frames) == 0 {
		s.store.Reset([]transcript.Message{
			transcript.NewTextMessage(transcript.RoleSystem, s.originalSystem),
			synthetic,
		})
		return fmt.Sprintf("No previous context to return to. Return value: %s", returnValue), nil
	}

	last := len(s.frames) - 1
	previousPath := s.frames[last]
	s.frames = s.frames[:last]

	messages, err := transcript.LoadSnapshot(previousPath)
	if err != nil {
		s.store.Reset([]transcript.Message{transcript.NewTextMessage(transcript.RoleSystem, s.originalSystem)})
	} else {
		s.store.Reset(messages)
	}
	s.store.Append(synthetic)
	return fmt.Sprintf("Restored previous context. Return value: %s", returnValue), nil
}
