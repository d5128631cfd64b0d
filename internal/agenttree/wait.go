package agenttree

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitRequest mirrors wait_agents' argument object, per spec.md §4.10.
type WaitRequest struct {
	Which      []string `json:"which"`
	TimeoutSec int      `json:"timeout_sec"`
	AnyMode    bool     `json:"any_mode"`
}

// WaitResponse is wait_agents' returned JSON shape.
type WaitResponse struct {
	Completed []string          `json:"completed"`
	Results   map[string]Result `json:"results"`
	Pending   []string          `json:"pending"`
}

const pollInterval = time.Second

// listAllChildrenDirs scans every parent directory under the tree for a
// children/ subdirectory and returns child id -> child dir, matching
// original_source/tool_manager.py's _list_all_children_dirs.
func (t *Tree) listAllChildrenDirs(treeID string) map[string]string {
	out := map[string]string{}
	base := filepath.Join(t.baseDir, treeID)
	parents, err := os.ReadDir(base)
	if err != nil {
		return out
	}
	for _, parent := range parents {
		if !parent.IsDir() {
			continue
		}
		childrenRoot := filepath.Join(base, parent.Name(), "children")
		children, err := os.ReadDir(childrenRoot)
		if err != nil {
			continue
		}
		for _, c := range children {
			if c.IsDir() {
				out[c.Name()] = filepath.Join(childrenRoot, c.Name())
			}
		}
	}
	return out
}

// Wait implements the wait coordinator from spec.md §4.10: poll every
// second for result.json to appear for each pending id (re-scanning the
// child-directory map each cycle to pick up late-spawned siblings), with
// an fsnotify watch on each child directory that exists when the wait
// starts, so a child writing its result.json wakes the waiter sooner
// than the next poll tick. which=nil or
// empty means "all currently-known children".
func (t *Tree) Wait(treeID string, req WaitRequest) WaitResponse {
	allChildren := t.listAllChildrenDirs(treeID)

	var targetIDs []string
	if len(req.Which) == 0 {
		for id := range allChildren {
			targetIDs = append(targetIDs, id)
		}
	} else {
		targetIDs = req.Which
	}

	pending := map[string]bool{}
	for _, id := range targetIDs {
		pending[id] = true
	}
	results := map[string]Result{}
	if len(pending) == 0 {
		return WaitResponse{Completed: []string{}, Results: results, Pending: []string{}}
	}

	wake := newFastWake(filepath.Join(t.baseDir, treeID))
	defer wake.Close()

	start := time.Now()
	for len(pending) > 0 {
		for id := range pending {
			dir, ok := allChildren[id]
			if !ok {
				continue
			}
			res, done, err := ReadResult(dir)
			if err != nil || !done {
				continue
			}
			results[id] = res
			delete(pending, id)
			if req.AnyMode {
				st, _ := ReadState(filepath.Join(dir, "state.json"))
				KillPane(st.PaneID)
				return buildWaitResponse(results, pending)
			}
		}
		if len(pending) == 0 {
			break
		}
		if req.TimeoutSec > 0 && time.Since(start) > time.Duration(req.TimeoutSec)*time.Second {
			break
		}
		allChildren = t.listAllChildrenDirs(treeID)
		wake.WaitTick(pollInterval)
	}

	for id, dir := range allChildren {
		if _, ok := results[id]; !ok {
			continue
		}
		st, _ := ReadState(filepath.Join(dir, "state.json"))
		KillPane(st.PaneID)
	}
	return buildWaitResponse(results, pending)
}

func buildWaitResponse(results map[string]Result, pending map[string]bool) WaitResponse {
	completed := make([]string, 0, len(results))
	for id := range results {
		completed = append(completed, id)
	}
	pendingList := make([]string, 0, len(pending))
	for id := range pending {
		pendingList = append(pendingList, id)
	}
	return WaitResponse{Completed: completed, Results: results, Pending: pendingList}
}

// fastWake supplements the 1-second poll with an fsnotify watch so a
// child finishing mid-tick wakes the waiter immediately instead of
// waiting out the rest of the interval.
type fastWake struct {
	watcher *fsnotify.Watcher
}

func newFastWake(treeDir string) *fastWake {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &fastWake{}
	}
	// Best effort: watch every child directory that already exists
	// (<tree>/<parent>/children/<child>; fsnotify is not recursive). New
	// children created after this call are caught by the regular poll
	// tick, which rebuilds allChildren.
	parents, _ := os.ReadDir(treeDir)
	for _, p := range parents {
		if !p.IsDir() {
			continue
		}
		childrenRoot := filepath.Join(treeDir, p.Name(), "children")
		children, _ := os.ReadDir(childrenRoot)
		for _, c := range children {
			if c.IsDir() {
				_ = watcher.Add(filepath.Join(childrenRoot, c.Name()))
			}
		}
	}
	return &fastWake{watcher: watcher}
}

// WaitTick blocks until either d elapses or a filesystem event arrives.
func (f *fastWake) WaitTick(d time.Duration) {
	if f.watcher == nil {
		time.Sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-f.watcher.Events:
	case <-f.watcher.Errors:
	case <-timer.C:
	}
}

func (f *fastWake) Close() {
	if f.watcher != nil {
		_ = f.watcher.Close()
	}
}
