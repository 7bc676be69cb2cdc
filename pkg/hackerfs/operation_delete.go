package hackerfs

import (
	"context"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
)

// Delete removes the entry at path. A symlink leaf is removed, not
// followed. Non-empty directories require recursive. Requires write and
// execute access on the parent; inside a sticky directory only the
// entry's owner or root may delete (see access.CanDeleteEntry). A
// subtree holding a mount point fails with ErrBusy until the mount is
// detached.
//
// Recursive deletion validates the entire subtree before detaching it,
// so a failure (or cancellation) leaves the tree untouched.
func (v *VFS) Delete(ctx context.Context, path string, id access.Identity, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(path); ok {
		return &core.PathError{Op: "delete", Path: Normalize(path), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.deleteLocked(ctx, path, id, recursive)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Debug().Str("path", Normalize(path)).Bool("recursive", recursive).Msg("deleted")
	v.publish(ctx, core.OpDelete, Normalize(path), "", id)
	return nil
}

func (v *VFS) deleteLocked(ctx context.Context, path string, id access.Identity, recursive bool) error {
	parent, leaf, err := v.lookupParent(path)
	if err != nil {
		return err
	}
	entry, ok := parent.Child(leaf)
	if !ok {
		return &core.PathError{Op: "delete", Path: node.Join(parent.Path, leaf), Err: core.ErrNotFound}
	}
	if v.mountWithin(entry.Path) {
		return &core.PathError{Op: "delete", Path: entry.Path, Err: core.ErrBusy}
	}
	if err := require(id, parent, access.WriteExec); err != nil {
		return err
	}
	if !access.CanDeleteEntry(id, parent, entry) {
		d := access.Evaluate(id, entry, access.Write)
		return denied(entry.Path, access.Decision{Class: d.Class, Mode: access.Write})
	}

	if entry.IsDir() && entry.ChildCount() > 0 {
		if !recursive {
			return &core.PathError{Op: "delete", Path: entry.Path, Err: core.ErrDirectoryNotEmpty}
		}
		if err := v.validateRecursiveDelete(ctx, entry, id); err != nil {
			return err
		}
	}

	_, err = parent.RemoveChild(leaf)
	return err
}

// validateRecursiveDelete checks every directory in the subtree before
// any mutation: the caller needs write+execute on each populated
// directory to remove its entries, and sticky directories protect
// entries owned by others.
func (v *VFS) validateRecursiveDelete(ctx context.Context, dir *node.Node, id access.Identity) error {
	return dir.Walk(func(n *node.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !n.IsDir() || n.ChildCount() == 0 {
			return nil
		}
		if err := require(id, n, access.WriteExec); err != nil {
			return err
		}
		if n.Perms.Sticky {
			for _, c := range n.Children() {
				if !access.CanDeleteEntry(id, n, c) {
					d := access.Evaluate(id, c, access.Write)
					return denied(c.Path, access.Decision{Class: d.Class, Mode: access.Write})
				}
			}
		}
		return nil
	})
}
