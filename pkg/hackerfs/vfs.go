// Package hackerfs implements an in-memory virtual filesystem with
// Unix-style permission semantics: a single node tree guarded by one
// engine that resolves paths, authorizes every operation against a
// caller-supplied identity, and notifies subscribers after each
// successful mutation.
package hackerfs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// FileInfo is a value snapshot of a node's metadata. Read operations
// return these instead of live nodes so readers never observe a tree
// mid-mutation.
type FileInfo struct {
	Name       string
	Path       string
	Kind       node.Kind
	Size       int64
	Mode       perms.Permissions
	OwnerID    int
	GroupID    int
	Target     string
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time
}

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool { return fi.Kind == node.KindDirectory }

// ModeString renders the entry in ls -l form: type character plus the
// detailed permission string.
func (fi FileInfo) ModeString() string {
	var t byte
	switch fi.Kind {
	case node.KindDirectory:
		t = 'd'
	case node.KindSymlink:
		t = 'l'
	default:
		t = '-'
	}
	return string(t) + fi.Mode.Detailed()
}

func infoOf(n *node.Node) FileInfo {
	return FileInfo{
		Name:       n.Name,
		Path:       n.Path,
		Kind:       n.Kind,
		Size:       n.Size(),
		Mode:       n.Perms,
		OwnerID:    n.OwnerID,
		GroupID:    n.GroupID,
		Target:     n.Target,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
		AccessedAt: n.AccessedAt,
	}
}

// VFS is the authoritative owner of the node tree. All access goes
// through its operations; every operation takes a context and an acting
// identity and checks permissions before touching the tree.
type VFS struct {
	mu       sync.RWMutex
	root     *node.Node
	cfg      *Config
	resolver *Resolver
	events   *core.MemoryEventBus
	store    Store
	logger   zerolog.Logger
	mounts   []*MountPoint
}

// Option configures a VFS at construction time. Collaborators are
// injected explicitly; there is no ambient global state.
type Option func(*VFS)

// WithConfig sets the policy configuration.
func WithConfig(cfg *Config) Option {
	return func(v *VFS) { v.cfg = cfg }
}

// WithStore attaches a persistence backend used by Flush and LoadFrom.
func WithStore(s Store) Option {
	return func(v *VFS) { v.store = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(v *VFS) { v.logger = l }
}

// WithUserDirs wires the user-directory collaborator used for "~user"
// path expansion.
func WithUserDirs(u UserDirs) Option {
	return func(v *VFS) { v.resolver = NewResolver(u) }
}

// New creates an empty filesystem: a root directory owned by root with
// mode 755.
func New(opts ...Option) *VFS {
	v := &VFS{
		root:     node.NewRoot(),
		cfg:      DefaultConfig(),
		resolver: NewResolver(nil),
		logger:   DefaultLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.events = core.NewMemoryEventBus(NewLoggerAdapter(&v.logger))
	return v
}

// Resolver returns the path resolver, for callers that need to
// canonicalize shell input before issuing operations.
func (v *VFS) Resolver() *Resolver { return v.resolver }

// Subscribe registers a change handler for the given op kind
// (core.OpAny for all changes).
func (v *VFS) Subscribe(op string, h core.ChangeHandler) core.SubscriptionID {
	return v.events.Subscribe(op, h)
}

// Unsubscribe removes a previously registered change handler.
func (v *VFS) Unsubscribe(id core.SubscriptionID) {
	v.events.Unsubscribe(id)
}

// publish emits a change event. Called after the mutation lock is
// released so subscribers may call back into the filesystem.
func (v *VFS) publish(ctx context.Context, op, path, newPath string, id access.Identity) {
	v.events.Publish(ctx, core.ChangeEvent{
		Op:      op,
		Path:    path,
		NewPath: newPath,
		Actor:   id.UID,
		Time:    time.Now(),
	})
}

func denied(path string, d access.Decision) error {
	return &core.PermissionError{Path: path, Mode: d.Mode.String(), Class: d.Class.String()}
}

// require evaluates mode access on a node and converts a denial into a
// typed PermissionError. An invalid mode is a caller bug and surfaces as
// ErrUnsupportedMode rather than a denial.
func require(id access.Identity, n *node.Node, m access.Mode) error {
	if !m.Valid() {
		return &core.PathError{Op: "access", Path: n.Path, Err: core.ErrUnsupportedMode}
	}
	if d := access.Evaluate(id, n, m); !d.Allowed {
		return denied(n.Path, d)
	}
	return nil
}

// lookup resolves a normalized path to a node, following intermediate
// symlinks always and the leaf symlink when followLeaf is set. The
// caller must hold v.mu.
func (v *VFS) lookup(path string, followLeaf bool) (*node.Node, error) {
	visited := make(map[string]bool)
	return v.walkTo(Normalize(path), followLeaf, visited, 0)
}

func (v *VFS) walkTo(path string, followLeaf bool, visited map[string]bool, depth int) (*node.Node, error) {
	if depth > v.cfg.Filesystem.MaxSymlinkDepth {
		return nil, &core.PathError{Op: "lookup", Path: path, Err: core.ErrTooManyLinks}
	}
	cur := v.root
	if path == "/" {
		return cur, nil
	}
	segs := strings.Split(path[1:], "/")
	for i, seg := range segs {
		if !cur.IsDir() {
			return nil, &core.PathError{Op: "lookup", Path: cur.Path, Err: core.ErrNotADirectory}
		}
		child, ok := cur.Child(seg)
		if !ok {
			return nil, &core.PathError{Op: "lookup", Path: path, Err: core.ErrNotFound}
		}
		last := i == len(segs)-1
		if child.IsSymlink() && (!last || followLeaf) {
			if visited[child.Path] {
				return nil, &core.PathError{Op: "lookup", Path: child.Path, Err: core.ErrTooManyLinks}
			}
			visited[child.Path] = true

			target := child.Target
			if !strings.HasPrefix(target, "/") {
				target = node.Join(cur.Path, target)
			}
			target = Normalize(target)
			if rest := strings.Join(segs[i+1:], "/"); rest != "" {
				target = Normalize(target + "/" + rest)
			}
			return v.walkTo(target, followLeaf, visited, depth+1)
		}
		cur = child
	}
	return cur, nil
}

// lookupParent resolves the directory containing path's leaf entry,
// returning the directory node and the leaf name. The caller must hold
// v.mu.
func (v *VFS) lookupParent(path string) (*node.Node, string, error) {
	path = Normalize(path)
	if path == "/" {
		return nil, "", &core.PathError{Op: "lookup", Path: path, Err: core.ErrInvalidPath}
	}
	i := strings.LastIndexByte(path, '/')
	parentPath, leaf := path[:i], path[i+1:]
	if parentPath == "" {
		parentPath = "/"
	}
	parent, err := v.lookup(parentPath, true)
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", &core.PathError{Op: "lookup", Path: parent.Path, Err: core.ErrNotADirectory}
	}
	return parent, leaf, nil
}

// Stat returns metadata for the node at path, following a leaf symlink.
func (v *VFS) Stat(ctx context.Context, path string, id access.Identity) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	// The mount point itself is a host directory; only paths below it
	// are answered by the mounted backend.
	if mp, rel, ok := v.mountFor(path); ok && rel != "" {
		return mp.FS.Stat(ctx, rel)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	n, err := v.lookup(path, true)
	if err != nil {
		return FileInfo{}, err
	}
	return infoOf(n), nil
}

// Lstat is Stat without following a leaf symlink.
func (v *VFS) Lstat(ctx context.Context, path string, id access.Identity) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	if mp, rel, ok := v.mountFor(path); ok && rel != "" {
		return mp.FS.Stat(ctx, rel)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	n, err := v.lookup(path, false)
	if err != nil {
		return FileInfo{}, err
	}
	return infoOf(n), nil
}

// Exists reports whether path resolves to a node.
func (v *VFS) Exists(ctx context.Context, path string, id access.Identity) bool {
	_, err := v.Stat(ctx, path, id)
	return err == nil
}

// ReadFile returns the content of the file at path. Requires read access
// on the target.
func (v *VFS) ReadFile(ctx context.Context, path string, id access.Identity) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mp, rel, ok := v.mountFor(path); ok {
		return mp.FS.ReadFile(ctx, rel)
	}

	// Exclusive lock: reads may update AccessedAt.
	v.mu.Lock()
	defer v.mu.Unlock()

	n, err := v.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, &core.PathError{Op: "read", Path: n.Path, Err: core.ErrIsADirectory}
	}
	if err := require(id, n, access.Read); err != nil {
		return nil, err
	}
	if v.cfg.Filesystem.TrackAccessTime {
		n.AccessedAt = time.Now()
	}
	return append([]byte(nil), n.Content...), nil
}

// ReadLink returns the target of the symlink at path.
func (v *VFS) ReadLink(ctx context.Context, path string, id access.Identity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, err := v.lookup(path, false)
	if err != nil {
		return "", err
	}
	if !n.IsSymlink() {
		return "", &core.PathError{Op: "readlink", Path: n.Path, Err: core.ErrInvalidPath}
	}
	return n.Target, nil
}

// ListOptions controls directory listings.
type ListOptions struct {
	// IncludeHidden lists dot-prefixed entries.
	IncludeHidden bool
	// Less overrides the default name ordering.
	Less func(a, b FileInfo) bool
}

// ListDirectory returns the entries of the directory at path, sorted by
// name unless overridden. Requires read and execute access on the
// directory.
func (v *VFS) ListDirectory(ctx context.Context, path string, id access.Identity, opts ListOptions) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mp, rel, ok := v.mountFor(path); ok {
		return mp.FS.List(ctx, rel)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	n, err := v.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, &core.PathError{Op: "list", Path: n.Path, Err: core.ErrNotADirectory}
	}
	if err := require(id, n, access.ReadExec); err != nil {
		return nil, err
	}
	if v.cfg.Filesystem.TrackAccessTime {
		n.AccessedAt = time.Now()
	}

	var out []FileInfo
	for _, c := range n.Children() {
		if c.IsHidden() && !opts.IncludeHidden {
			continue
		}
		out = append(out, infoOf(c))
	}
	if opts.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return opts.Less(out[i], out[j]) })
	}
	return out, nil
}
