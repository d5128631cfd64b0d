// Package agenttree manages the filesystem-backed agent tree: child id
// allocation, tmux pane layout, and the state/result/messages files each
// child agent reads and writes, per spec.md §4.8-§4.10.
package agenttree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eggchat/egg/internal/transcript"
)

// BaseDirName is the on-disk root for all agent-tree state, rooted at
// the process's working directory.
const BaseDirName = ".egg/agents"

var unsafeLabelChars = regexp.MustCompile(`[ /\\]`)
var childSuffix = regexp.MustCompile(`-(\d+)$`)

// Tree resolves ids and paths for one agent-tree root.
type Tree struct {
	baseDir string
}

// New returns a Tree rooted at baseDir (typically filepath.Join(cwd,
// BaseDirName)).
func New(baseDir string) *Tree {
	return &Tree{baseDir: baseDir}
}

// ResolveTreeID implements spec.md §4.8: EG_TREE_ID env var, else the
// `.current_tree` sentinel file, else a fresh unix-seconds id written to
// that sentinel.
func (t *Tree) ResolveTreeID() (string, error) {
	if v := os.Getenv("EG_TREE_ID"); v != "" {
		return v, nil
	}
	sentinel := filepath.Join(t.baseDir, ".current_tree")
	if data, err := os.ReadFile(sentinel); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	id := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create agents base dir: %w", err)
	}
	if err := os.WriteFile(sentinel, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("write .current_tree: %w", err)
	}
	return id, nil
}

// ResolveParentID implements spec.md §4.8: EG_AGENT_ID env var, else
// the literal "root".
func ResolveParentID() string {
	if v := os.Getenv("EG_AGENT_ID"); v != "" {
		return v
	}
	return "root"
}

// ChildrenDir returns the directory holding parentID's children within
// treeID.
func (t *Tree) ChildrenDir(treeID, parentID string) string {
	return filepath.Join(t.baseDir, treeID, parentID, "children")
}

// ChildDir returns one child's own directory.
func (t *Tree) ChildDir(treeID, parentID, childID string) string {
	return filepath.Join(t.ChildrenDir(treeID, parentID), childID)
}

// ParentStatePath returns parentID's own state.json path.
func (t *Tree) ParentStatePath(treeID, parentID string) string {
	return filepath.Join(t.baseDir, treeID, parentID, "state.json")
}

// childrenDirLocks serializes child-ID allocation per childrenDir so
// concurrent SpawnAgents goroutines racing on the same label (spec.md
// scenario 4: spawning two children both labeled "worker") can't both
// read the same NextChildID scan before either directory exists.
var childrenDirLocks sync.Map // map[string]*sync.Mutex

func lockChildrenDir(childrenDir string) func() {
	v, _ := childrenDirLocks.LoadOrStore(childrenDir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AllocateChildDir reserves the next child id under childrenDir for
// label and creates its directory, holding a per-childrenDir lock across
// the scan-then-create sequence so two concurrent callers can never
// compute and claim the same id, per spec.md:67's "unique and monotonic"
// guarantee. If an allocated directory somehow already exists (a
// directory left over from a prior crashed run, since os.Mkdir fails
// with ErrExist rather than silently succeeding like MkdirAll would), it
// retries with the next index instead of clobbering it.
func (t *Tree) AllocateChildDir(childrenDir, label string) (childID, childDir string, err error) {
	unlock := lockChildrenDir(childrenDir)
	defer unlock()

	if err := os.MkdirAll(childrenDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create children dir: %w", err)
	}

	for {
		childID = NextChildID(childrenDir, label)
		childDir = filepath.Join(childrenDir, childID)
		err = os.Mkdir(childDir, 0o755)
		if err == nil {
			return childID, childDir, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("create child dir: %w", err)
		}
		// Another process (not goroutine — this one's serialized by the
		// lock above) already holds this exact id; loop and allocate the
		// next one.
	}
}

// NextChildID sanitizes label (spaces, '/', '\' become '_'), scans
// childrenDir for siblings matching "<label>-NNN", and allocates the next
// zero-padded index, per spec.md §4.8.
func NextChildID(childrenDir, label string) string {
	normalized := unsafeLabelChars.ReplaceAllString(label, "_")
	maxIdx := 0
	entries, _ := os.ReadDir(childrenDir)
	prefix := normalized + "-"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		m := childSuffix.FindStringSubmatch(e.Name())
		if m == nil || e.Name() != prefix+m[1] {
			continue
		}
		if idx, err := strconv.Atoi(m[1]); err == nil && idx > maxIdx {
			maxIdx = idx
		}
	}
	return fmt.Sprintf("%s-%03d", normalized, maxIdx+1)
}

// State is the on-disk shape of a child (or root) agent's state.json.
type State struct {
	AgentID           string   `json:"agent_id"`
	ParentID          string   `json:"parent_id"`
	Status            string   `json:"status"`
	ModelKey          string   `json:"model_key,omitempty"`
	SpawnedAt         int64    `json:"spawned_at"`
	Children          []string `json:"children,omitempty"`
	CWD               string   `json:"cwd,omitempty"`
	PaneID            string   `json:"pane_id,omitempty"`
	RightColumnPaneID string   `json:"right_column_pane_id,omitempty"`
}

// ReadState reads and decodes a state.json file, returning a zero State
// (not an error) if the file doesn't exist yet.
func ReadState(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse %q: %w", path, err)
	}
	return st, nil
}

// WriteState writes st to path, creating parent directories as needed.
func WriteState(path string, st State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %q: %w", path, err)
	}
	data, err := transcript.MarshalIndent(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// Result is the on-disk shape of result.json, written by write_result
// and by popContext when exiting as a child agent, per spec.md §4.7 and
// §4.10's wait_agents contract.
type Result struct {
	Status      string `json:"status"`
	ReturnValue string `json:"return_value"`
	ShortRecap  string `json:"short_recap,omitempty"`
	FinishedAt  int64  `json:"finished_at"`
}

// WriteResult atomically writes result.json (write-then-rename, per the
// Design Notes' "no torn reads for a concurrent wait_agents poller"),
// flips state.json's status to "done", and touches notify/done.
func WriteResult(childDir string, res Result) error {
	data, err := transcript.MarshalIndent(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	finalPath := filepath.Join(childDir, "result.json")
	tmpPath := finalPath + ".tmp"
	if err := os.MkdirAll(childDir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write result tmp: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename result into place: %w", err)
	}

	statePath := filepath.Join(childDir, "state.json")
	st, _ := ReadState(statePath)
	st.Status = "done"
	if err := WriteState(statePath, st); err != nil {
		return err
	}

	notifyDir := filepath.Join(childDir, "notify")
	if err := os.MkdirAll(notifyDir, 0o755); err != nil {
		return fmt.Errorf("create notify dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(notifyDir, "done"), []byte("1"), 0o644); err != nil {
		return fmt.Errorf("touch notify/done: %w", err)
	}
	return nil
}

// ReadResult reads result.json if present; ok is false if it does not
// exist yet (the child is still running).
func ReadResult(childDir string) (res Result, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(childDir, "result.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, err
	}
	return res, true, nil
}

// WriteInitialMessages seeds a freshly spawned child's messages.json with
// a system prompt and the context_text as its opening user message.
func WriteInitialMessages(childDir, systemPrompt, contextText string) error {
	messages := []transcript.Message{
		transcript.NewTextMessage(transcript.RoleSystem, systemPrompt),
		transcript.NewTextMessage(transcript.RoleUser, contextText),
	}
	data, err := transcript.MarshalIndent(messages)
	if err != nil {
		return fmt.Errorf("marshal initial messages: %w", err)
	}
	if err := os.MkdirAll(childDir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	return os.WriteFile(filepath.Join(childDir, "messages.json"), data, 0o644)
}
