package hackerfs

import (
	"context"
	"strings"
	"time"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
)

// Move relocates the entry at src to dst (the full destination path,
// which must not exist). A same-parent move is a rename; otherwise the
// subtree is detached and reattached, rewriting every descendant path.
// Requires write+execute on both parents and honors the sticky rule on
// the source parent. A subtree holding a mount point fails with ErrBusy
// until the mount is detached.
func (v *VFS) Move(ctx context.Context, src, dst string, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(src); ok {
		return &core.PathError{Op: "move", Path: Normalize(src), Err: core.ErrUnsupported}
	}
	if _, _, ok := v.mountFor(dst); ok {
		return &core.PathError{Op: "move", Path: Normalize(dst), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.moveLocked(src, dst, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Debug().Str("from", Normalize(src)).Str("to", Normalize(dst)).Msg("moved")
	v.publish(ctx, core.OpMove, Normalize(src), Normalize(dst), id)
	return nil
}

func (v *VFS) moveLocked(src, dst string, id access.Identity) error {
	srcParent, srcLeaf, err := v.lookupParent(src)
	if err != nil {
		return err
	}
	entry, ok := srcParent.Child(srcLeaf)
	if !ok {
		return &core.PathError{Op: "move", Path: node.Join(srcParent.Path, srcLeaf), Err: core.ErrNotFound}
	}
	if v.mountWithin(entry.Path) {
		return &core.PathError{Op: "move", Path: entry.Path, Err: core.ErrBusy}
	}
	if err := require(id, srcParent, access.WriteExec); err != nil {
		return err
	}
	if !access.CanDeleteEntry(id, srcParent, entry) {
		d := access.Evaluate(id, entry, access.Write)
		return denied(entry.Path, access.Decision{Class: d.Class, Mode: access.Write})
	}

	dstParent, dstLeaf, err := v.lookupParent(dst)
	if err != nil {
		return err
	}
	if dstParent != srcParent {
		if err := require(id, dstParent, access.WriteExec); err != nil {
			return err
		}
	}
	if _, exists := dstParent.Child(dstLeaf); exists {
		return &core.PathError{Op: "move", Path: node.Join(dstParent.Path, dstLeaf), Err: core.ErrExist}
	}
	// A directory cannot be moved into its own subtree.
	if entry.IsDir() && (dstParent == entry || strings.HasPrefix(dstParent.Path+"/", entry.Path+"/")) {
		return &core.PathError{Op: "move", Path: entry.Path, Err: core.ErrInvalidPath}
	}

	if dstParent == srcParent {
		return entry.Rename(dstLeaf)
	}

	detached, err := srcParent.RemoveChild(srcLeaf)
	if err != nil {
		return err
	}
	if err := detached.Rename(dstLeaf); err != nil {
		_ = srcParent.AddChild(detached) // restore on failure
		return err
	}
	return dstParent.AddChild(detached)
}

// Copy duplicates the subtree at src to dst. The copy is owned by the
// acting identity unless the caller is root, in which case source
// ownership is preserved. Requires read access on every copied node
// (read+execute on directories) and write+execute on the destination
// parent. The subtree is cloned before attachment, so a failure or
// cancellation mid-validation leaves the tree untouched.
func (v *VFS) Copy(ctx context.Context, src, dst string, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(src); ok {
		return &core.PathError{Op: "copy", Path: Normalize(src), Err: core.ErrUnsupported}
	}
	if _, _, ok := v.mountFor(dst); ok {
		return &core.PathError{Op: "copy", Path: Normalize(dst), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.copyLocked(ctx, src, dst, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Debug().Str("from", Normalize(src)).Str("to", Normalize(dst)).Msg("copied")
	v.publish(ctx, core.OpCopy, Normalize(src), Normalize(dst), id)
	return nil
}

func (v *VFS) copyLocked(ctx context.Context, src, dst string, id access.Identity) error {
	srcNode, err := v.lookup(src, true)
	if err != nil {
		return err
	}
	if srcNode == v.root {
		return &core.PathError{Op: "copy", Path: "/", Err: core.ErrInvalidPath}
	}

	if err := srcNode.Walk(func(n *node.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mode := access.Read
		if n.IsDir() {
			mode = access.ReadExec
		}
		return require(id, n, mode)
	}); err != nil {
		return err
	}

	dstParent, dstLeaf, err := v.lookupParent(dst)
	if err != nil {
		return err
	}
	if err := require(id, dstParent, access.WriteExec); err != nil {
		return err
	}
	if _, exists := dstParent.Child(dstLeaf); exists {
		return &core.PathError{Op: "copy", Path: node.Join(dstParent.Path, dstLeaf), Err: core.ErrExist}
	}
	if srcNode.IsDir() && (dstParent == srcNode || strings.HasPrefix(dstParent.Path+"/", srcNode.Path+"/")) {
		return &core.PathError{Op: "copy", Path: srcNode.Path, Err: core.ErrInvalidPath}
	}

	clone := srcNode.CloneTree()
	now := time.Now()
	_ = clone.Walk(func(n *node.Node) error {
		if !id.IsRoot() {
			n.OwnerID = id.UID
			n.GroupID = id.GID
		}
		n.CreatedAt = now
		n.ModifiedAt = now
		n.AccessedAt = now
		return nil
	})
	if err := clone.Rename(dstLeaf); err != nil {
		return err
	}
	return dstParent.AddChild(clone)
}
