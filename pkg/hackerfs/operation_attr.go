package hackerfs

import (
	"context"
	"time"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// SetPermissions changes the permission bits of the node at path. Only
// the current owner or root may chmod.
func (v *VFS) SetPermissions(ctx context.Context, path string, p perms.Permissions, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(path); ok {
		return &core.PathError{Op: "chmod", Path: Normalize(path), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.setPermissionsLocked(path, p, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.publish(ctx, core.OpChmod, Normalize(path), "", id)
	return nil
}

func (v *VFS) setPermissionsLocked(path string, p perms.Permissions, id access.Identity) error {
	n, err := v.lookup(path, true)
	if err != nil {
		return err
	}
	if !id.IsRoot() && id.UID != n.OwnerID {
		d := access.Evaluate(id, n, access.Write)
		return denied(n.Path, access.Decision{Class: d.Class, Mode: access.Write})
	}
	n.Perms = p
	n.ModifiedAt = time.Now()
	return nil
}

// KeepID leaves the corresponding owner or group unchanged in
// SetOwnership.
const KeepID = -1

// SetOwnership changes the owner and/or group of the node at path
// (KeepID leaves a field unchanged). Changing the owner always requires
// root: a non-root owner can never give a file away. Changing the group
// requires root unless the allow_owner_chgrp policy is enabled, in which
// case the owner may move the node to a group they belong to.
func (v *VFS) SetOwnership(ctx context.Context, path string, uid, gid int, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(path); ok {
		return &core.PathError{Op: "chown", Path: Normalize(path), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.setOwnershipLocked(path, uid, gid, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.publish(ctx, core.OpChown, Normalize(path), "", id)
	return nil
}

func (v *VFS) setOwnershipLocked(path string, uid, gid int, id access.Identity) error {
	n, err := v.lookup(path, true)
	if err != nil {
		return err
	}

	if !id.IsRoot() {
		if uid != KeepID && uid != n.OwnerID {
			return ownershipDenied(id, n)
		}
		if gid != KeepID && gid != n.GroupID {
			allowed := v.cfg.Filesystem.AllowOwnerChgrp &&
				id.UID == n.OwnerID &&
				id.InGroup(gid)
			if !allowed {
				return ownershipDenied(id, n)
			}
		}
		if id.UID != n.OwnerID {
			return ownershipDenied(id, n)
		}
	}

	if uid != KeepID {
		n.OwnerID = uid
	}
	if gid != KeepID {
		n.GroupID = gid
	}
	n.ModifiedAt = time.Now()
	return nil
}

func ownershipDenied(id access.Identity, n *node.Node) error {
	return &core.PermissionError{Path: n.Path, Mode: access.Write.String(), Class: access.Classify(id, n).String()}
}
