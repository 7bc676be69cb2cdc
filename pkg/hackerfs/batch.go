package hackerfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// BatchError reports which step of a batch failed.
type BatchError struct {
	StepID string
	Path   string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch step %s (%s): %v", e.StepID, e.Path, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type batchStep struct {
	id      string
	path    string
	creates bool
	deps    []string
	run     func(ctx context.Context, id access.Identity) error
}

// Batch collects filesystem steps and applies them in dependency order:
// explicit DependsOn edges plus implicit edges from a step to the steps
// that create its ancestors (and, for non-creating steps, the step that
// creates the path itself). Steps with no edges keep insertion order.
//
// A batch is not transactional: Apply stops at the first failure and
// earlier steps stay applied.
type Batch struct {
	v        *VFS
	steps    []*batchStep
	byID     map[string]*batchStep
	creators map[string]string
	lastID   string
}

// NewBatch starts an empty batch against v.
func (v *VFS) NewBatch() *Batch {
	return &Batch{
		v:        v,
		byID:     make(map[string]*batchStep),
		creators: make(map[string]string),
	}
}

func (b *Batch) add(kind, path string, creates bool, run func(ctx context.Context, id access.Identity) error) *Batch {
	path = Normalize(path)
	s := &batchStep{
		id:      fmt.Sprintf("%s-%d-%s", kind, len(b.steps), path),
		path:    path,
		creates: creates,
		run:     run,
	}
	b.steps = append(b.steps, s)
	b.byID[s.id] = s
	if creates {
		b.creators[path] = s.id
	}
	b.lastID = s.id
	return b
}

// LastStepID returns the identifier of the most recently added step, for
// use with DependsOn.
func (b *Batch) LastStepID() string { return b.lastID }

// DependsOn adds an explicit ordering edge: the most recently added step
// runs after the step with the given id.
func (b *Batch) DependsOn(id string) *Batch {
	if b.lastID != "" {
		s := b.byID[b.lastID]
		s.deps = append(s.deps, id)
	}
	return b
}

// CreateDirectory queues a directory creation.
func (b *Batch) CreateDirectory(path string, mode perms.Permissions) *Batch {
	return b.add("mkdir", path, true, func(ctx context.Context, id access.Identity) error {
		return b.v.CreateDirectory(ctx, path, mode, id, false)
	})
}

// CreateFile queues a file creation.
func (b *Batch) CreateFile(path string, content []byte, mode perms.Permissions) *Batch {
	return b.add("create", path, true, func(ctx context.Context, id access.Identity) error {
		return b.v.CreateFile(ctx, path, content, mode, id)
	})
}

// WriteFile queues a write (create-if-absent with default mode).
func (b *Batch) WriteFile(path string, content []byte) *Batch {
	return b.add("write", path, false, func(ctx context.Context, id access.Identity) error {
		return b.v.WriteFile(ctx, path, content, id, false)
	})
}

// Symlink queues a symlink creation.
func (b *Batch) Symlink(target, linkPath string) *Batch {
	return b.add("symlink", linkPath, true, func(ctx context.Context, id access.Identity) error {
		return b.v.Symlink(ctx, target, linkPath, id)
	})
}

// SetPermissions queues a chmod.
func (b *Batch) SetPermissions(path string, mode perms.Permissions) *Batch {
	return b.add("chmod", path, false, func(ctx context.Context, id access.Identity) error {
		return b.v.SetPermissions(ctx, path, mode, id)
	})
}

// SetOwnership queues a chown.
func (b *Batch) SetOwnership(path string, uid, gid int) *Batch {
	return b.add("chown", path, false, func(ctx context.Context, id access.Identity) error {
		return b.v.SetOwnership(ctx, path, uid, gid, id)
	})
}

// Delete queues a recursive delete.
func (b *Batch) Delete(path string) *Batch {
	return b.add("delete", path, false, func(ctx context.Context, id access.Identity) error {
		return b.v.Delete(ctx, path, id, true)
	})
}

// resolve orders the steps. Implicit edges put ancestor-creating steps
// before their dependants; explicit DependsOn edges are added as given.
func (b *Batch) resolve() ([]*batchStep, error) {
	edges := make([]toposort.Edge, 0)
	for _, s := range b.steps {
		for _, dep := range s.deps {
			if _, ok := b.byID[dep]; !ok {
				return nil, fmt.Errorf("batch step %s depends on unknown step %s", s.id, dep)
			}
			edges = append(edges, toposort.Edge{dep, s.id})
		}
		for _, anc := range ancestorPaths(s.path) {
			if creator, ok := b.creators[anc]; ok && creator != s.id {
				edges = append(edges, toposort.Edge{creator, s.id})
			}
		}
		if !s.creates {
			if creator, ok := b.creators[s.path]; ok {
				edges = append(edges, toposort.Edge{creator, s.id})
			}
		}
	}

	sortedIDs, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("circular dependency in batch: %w", err)
	}

	ordered := make([]*batchStep, 0, len(b.steps))
	seen := make(map[string]bool, len(b.steps))
	for _, raw := range sortedIDs {
		id, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type in sort result: %T", raw)
		}
		if s, exists := b.byID[id]; exists && !seen[id] {
			ordered = append(ordered, s)
			seen[id] = true
		}
	}
	// Steps with no edges keep their insertion order.
	for _, s := range b.steps {
		if !seen[s.id] {
			ordered = append(ordered, s)
			seen[s.id] = true
		}
	}
	return ordered, nil
}

// Apply resolves the batch and runs each step as the given identity,
// stopping at the first failure.
func (b *Batch) Apply(ctx context.Context, id access.Identity) error {
	ordered, err := b.resolve()
	if err != nil {
		return err
	}
	b.v.logger.Debug().Int("steps", len(ordered)).Msg("applying batch")
	for _, s := range ordered {
		if err := s.run(ctx, id); err != nil {
			return &BatchError{StepID: s.id, Path: s.path, Err: err}
		}
	}
	return nil
}

// ancestorPaths returns the strict ancestors of path, nearest first,
// excluding the root.
func ancestorPaths(path string) []string {
	var out []string
	for {
		i := strings.LastIndexByte(path, '/')
		if i <= 0 {
			return out
		}
		path = path[:i]
		out = append(out, path)
	}
}
