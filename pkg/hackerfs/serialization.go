package hackerfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// snapshotVersion is bumped when the on-disk record layout changes.
const snapshotVersion = 1

// nodeRecord is the serialized form of a node. Mode is the octal string
// of all twelve permission bits ("4755"), content is base64 via the
// standard []byte JSON encoding.
type nodeRecord struct {
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	Owner      int          `json:"owner"`
	Group      int          `json:"group"`
	Mode       string       `json:"mode"`
	CreatedAt  time.Time    `json:"created_at"`
	ModifiedAt time.Time    `json:"modified_at"`
	AccessedAt time.Time    `json:"accessed_at"`
	Content    []byte       `json:"content,omitempty"`
	Target     string       `json:"target,omitempty"`
	Children   []nodeRecord `json:"children,omitempty"`
}

type snapshot struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"saved_at"`
	Root    nodeRecord `json:"root"`
}

// Snapshot serializes the whole tree to JSON. The encoding preserves
// every permission bit, ownership and timestamp exactly.
func (v *VFS) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
		Root:    recordOf(v.root),
	}
	v.mu.RUnlock()
	return json.MarshalIndent(snap, "", "  ")
}

// Restore replaces the current tree with the one encoded in data.
func (v *VFS) Restore(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", core.ErrInvalidFormat, snap.Version)
	}
	if snap.Root.Kind != node.KindDirectory.String() {
		return fmt.Errorf("%w: snapshot root is not a directory", core.ErrInvalidFormat)
	}

	root, err := buildRoot(snap.Root)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.root = root
	v.mu.Unlock()

	v.logger.Info().Int("version", snap.Version).Msg("tree restored from snapshot")
	return nil
}

func recordOf(n *node.Node) nodeRecord {
	rec := nodeRecord{
		Name:       n.Name,
		Kind:       n.Kind.String(),
		Owner:      n.OwnerID,
		Group:      n.GroupID,
		Mode:       fmt.Sprintf("%04o", n.Perms.ToOctal()),
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
		AccessedAt: n.AccessedAt,
		Target:     n.Target,
	}
	if n.Kind == node.KindFile {
		rec.Content = n.Content
	}
	for _, c := range n.Children() {
		rec.Children = append(rec.Children, recordOf(c))
	}
	return rec
}

func buildRoot(rec nodeRecord) (*node.Node, error) {
	root := node.NewRoot()
	p, uid, gid, err := decodeMeta(rec)
	if err != nil {
		return nil, err
	}
	root.Perms = p
	root.OwnerID = uid
	root.GroupID = gid
	for _, c := range rec.Children {
		if err := attachRecord(root, c); err != nil {
			return nil, err
		}
	}
	root.CreatedAt = rec.CreatedAt
	root.ModifiedAt = rec.ModifiedAt
	root.AccessedAt = rec.AccessedAt
	return root, nil
}

func attachRecord(parent *node.Node, rec nodeRecord) error {
	p, uid, gid, err := decodeMeta(rec)
	if err != nil {
		return err
	}

	var n *node.Node
	switch rec.Kind {
	case node.KindFile.String():
		n = node.NewFile(rec.Name, rec.Content, p, uid, gid)
	case node.KindDirectory.String():
		n = node.NewDirectory(rec.Name, p, uid, gid)
	case node.KindSymlink.String():
		n = node.NewSymlink(rec.Name, rec.Target, uid, gid)
		n.Perms = p
	default:
		return fmt.Errorf("%w: unknown node kind %q", core.ErrInvalidFormat, rec.Kind)
	}
	if err := parent.AddChild(n); err != nil {
		return err
	}
	for _, c := range rec.Children {
		if err := attachRecord(n, c); err != nil {
			return err
		}
	}
	// Timestamps last: attaching children bumps directory ModifiedAt.
	n.CreatedAt = rec.CreatedAt
	n.ModifiedAt = rec.ModifiedAt
	n.AccessedAt = rec.AccessedAt
	return nil
}

func decodeMeta(rec nodeRecord) (perms.Permissions, int, int, error) {
	octal, err := strconv.ParseInt(rec.Mode, 8, 32)
	if err != nil {
		return perms.Permissions{}, 0, 0, fmt.Errorf("%w: bad mode %q", core.ErrInvalidFormat, rec.Mode)
	}
	p, err := perms.FromOctal(int(octal))
	if err != nil {
		return perms.Permissions{}, 0, 0, err
	}
	return p, rec.Owner, rec.Group, nil
}
