package hackerfs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// DefaultFileMode returns the configured default mode for new files.
func (v *VFS) DefaultFileMode() perms.Permissions { return v.cfg.Filesystem.FileMode() }

// DefaultDirMode returns the configured default mode for new directories.
func (v *VFS) DefaultDirMode() perms.Permissions { return v.cfg.Filesystem.DirMode() }

// childGroup applies setgid group inheritance: children of a setgid
// directory take the directory's group instead of the creator's primary
// group.
func childGroup(parent *node.Node, id access.Identity) int {
	if parent.Perms.SetGID {
		return parent.GroupID
	}
	return id.GID
}

// CreateFile creates a new file at path owned by the acting identity.
// Requires write and execute access on the parent directory; fails with
// ErrExist if the leaf already exists.
func (v *VFS) CreateFile(ctx context.Context, path string, content []byte, mode perms.Permissions, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mp, rel, ok := v.mountFor(path); ok {
		return mp.FS.WriteFile(ctx, rel, content)
	}

	v.mu.Lock()
	err := v.createFileLocked(path, content, mode, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Debug().Str("path", Normalize(path)).Int("uid", id.UID).Msg("file created")
	v.publish(ctx, core.OpCreate, Normalize(path), "", id)
	return nil
}

func (v *VFS) createFileLocked(path string, content []byte, mode perms.Permissions, id access.Identity) error {
	parent, leaf, err := v.lookupParent(path)
	if err != nil {
		return err
	}
	if err := require(id, parent, access.WriteExec); err != nil {
		return err
	}
	if _, exists := parent.Child(leaf); exists {
		return &core.PathError{Op: "create", Path: node.Join(parent.Path, leaf), Err: core.ErrExist}
	}
	f := node.NewFile(leaf, append([]byte(nil), content...), mode, id.UID, childGroup(parent, id))
	return parent.AddChild(f)
}

// CreateDirectory creates a directory at path. With recursive set,
// missing ancestors are created with the default directory mode
// (mkdir -p semantics: an existing directory at path is not an error).
func (v *VFS) CreateDirectory(ctx context.Context, path string, mode perms.Permissions, id access.Identity, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(path); ok {
		return &core.PathError{Op: "mkdir", Path: Normalize(path), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.createDirLocked(Normalize(path), mode, id, recursive)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Debug().Str("path", Normalize(path)).Bool("recursive", recursive).Msg("directory created")
	v.publish(ctx, core.OpCreate, Normalize(path), "", id)
	return nil
}

func (v *VFS) createDirLocked(path string, mode perms.Permissions, id access.Identity, recursive bool) error {
	if !recursive {
		parent, leaf, err := v.lookupParent(path)
		if err != nil {
			return err
		}
		if err := require(id, parent, access.WriteExec); err != nil {
			return err
		}
		if _, exists := parent.Child(leaf); exists {
			return &core.PathError{Op: "mkdir", Path: node.Join(parent.Path, leaf), Err: core.ErrExist}
		}
		return v.attachDir(parent, leaf, mode, id)
	}

	if path == "/" {
		return nil
	}
	cur := v.root
	segs := strings.Split(path[1:], "/")
	for i, seg := range segs {
		next, ok := cur.Child(seg)
		if ok {
			if !next.IsDir() {
				return &core.PathError{Op: "mkdir", Path: next.Path, Err: core.ErrNotADirectory}
			}
			cur = next
			continue
		}
		if err := require(id, cur, access.WriteExec); err != nil {
			return err
		}
		segMode := v.cfg.Filesystem.DirMode()
		if i == len(segs)-1 {
			segMode = mode
		}
		if err := v.attachDir(cur, seg, segMode, id); err != nil {
			return err
		}
		cur, _ = cur.Child(seg)
	}
	return nil
}

// attachDir creates and attaches a directory, applying setgid
// inheritance: the group and, for directories, the setgid bit itself
// propagate from a setgid parent.
func (v *VFS) attachDir(parent *node.Node, name string, mode perms.Permissions, id access.Identity) error {
	if parent.Perms.SetGID {
		mode.SetGID = true
	}
	d := node.NewDirectory(name, mode, id.UID, childGroup(parent, id))
	return parent.AddChild(d)
}

// WriteFile replaces or appends to the file at path, creating it with
// the default file mode when absent. Requires write access on the file,
// or write+execute on the parent when creating.
func (v *VFS) WriteFile(ctx context.Context, path string, content []byte, id access.Identity, appendTo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mp, rel, ok := v.mountFor(path); ok {
		return mp.FS.WriteFile(ctx, rel, content)
	}

	v.mu.Lock()
	created, err := v.writeFileLocked(path, content, id, appendTo)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	op := core.OpWrite
	if created {
		op = core.OpCreate
	}
	v.publish(ctx, op, Normalize(path), "", id)
	return nil
}

func (v *VFS) writeFileLocked(path string, content []byte, id access.Identity, appendTo bool) (created bool, err error) {
	n, err := v.lookup(path, true)
	if err != nil {
		if !isNotFound(err) {
			return false, err
		}
		return true, v.createFileLocked(path, content, v.cfg.Filesystem.FileMode(), id)
	}
	if n.IsDir() {
		return false, &core.PathError{Op: "write", Path: n.Path, Err: core.ErrIsADirectory}
	}
	if err := require(id, n, access.Write); err != nil {
		return false, err
	}
	if appendTo {
		n.Content = append(n.Content, content...)
	} else {
		n.Content = append([]byte(nil), content...)
	}
	n.ModifiedAt = time.Now()
	return false, nil
}

// Symlink creates a symbolic link at linkPath pointing to target. The
// target is stored verbatim and may dangle; it is resolved at lookup
// time.
func (v *VFS) Symlink(ctx context.Context, target, linkPath string, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, ok := v.mountFor(linkPath); ok {
		return &core.PathError{Op: "symlink", Path: Normalize(linkPath), Err: core.ErrUnsupported}
	}

	v.mu.Lock()
	err := v.symlinkLocked(target, linkPath, id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.publish(ctx, core.OpSymlink, Normalize(linkPath), "", id)
	return nil
}

func (v *VFS) symlinkLocked(target, linkPath string, id access.Identity) error {
	if target == "" {
		return &core.PathError{Op: "symlink", Path: linkPath, Err: core.ErrInvalidPath}
	}
	parent, leaf, err := v.lookupParent(linkPath)
	if err != nil {
		return err
	}
	if err := require(id, parent, access.WriteExec); err != nil {
		return err
	}
	if _, exists := parent.Child(leaf); exists {
		return &core.PathError{Op: "symlink", Path: node.Join(parent.Path, leaf), Err: core.ErrExist}
	}
	return parent.AddChild(node.NewSymlink(leaf, target, id.UID, childGroup(parent, id)))
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
