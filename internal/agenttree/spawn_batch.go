package agenttree

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SpawnSpec is one entry in spawn_agents' specs list: spawn a child with
// this label/context_text, count times.
type SpawnSpec struct {
	Label       string `json:"label"`
	ContextText string `json:"context_text"`
	Count       int    `json:"count"`
}

// SpawnAgentsRequest is the argument object for spawn_agents, per the
// Open Question resolution in spec.md §9: the /spawn command builds a
// call the registry never defined, so it is implemented here as "spawn
// each spec count times, respecting max_active concurrency".
type SpawnAgentsRequest struct {
	TreeID    string      `json:"tree_id"`
	ParentID  string      `json:"parent_id"`
	Specs     []SpawnSpec `json:"specs"`
	MaxActive int         `json:"max_active"`
}

// SpawnAgentsResult is one spawned child's outcome, success or failure.
type SpawnAgentsResult struct {
	Label    string        `json:"label"`
	Response SpawnResponse `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SpawnAgents implements spawn_agents: it expands every spec to `count`
// individual spawn calls and runs them with at most MaxActive concurrent
// launches (unbounded if MaxActive <= 0), matching the bounded-worker-pool
// idiom used throughout the pack for fan-out work. req.TreeID and
// req.ParentID are not read: each spawn resolves its tree and parent the
// same way SpawnAgent does (EG_TREE_ID / .current_tree, EG_AGENT_ID).
func (t *Tree) SpawnAgents(ctx context.Context, binaryPath string, req SpawnAgentsRequest) []SpawnAgentsResult {
	type job struct {
		idx   int
		label string
		spec  SpawnRequest
	}

	var jobs []job
	for _, spec := range req.Specs {
		count := spec.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			jobs = append(jobs, job{
				label: spec.Label,
				spec:  SpawnRequest{ContextText: spec.ContextText, Label: spec.Label},
			})
		}
	}
	for i := range jobs {
		jobs[i].idx = i
	}

	results := make([]SpawnAgentsResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	if req.MaxActive > 0 {
		g.SetLimit(req.MaxActive)
	}

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[j.idx] = SpawnAgentsResult{Label: j.label, Error: gctx.Err().Error()}
				return nil
			default:
			}
			resp, err := t.SpawnAgent(binaryPath, j.spec)
			if err != nil {
				results[j.idx] = SpawnAgentsResult{Label: j.label, Error: err.Error()}
				return nil
			}
			results[j.idx] = SpawnAgentsResult{Label: j.label, Response: resp}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
