package hackerfs

import (
	"context"
	"strings"

	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
)

// MountableFS is the narrow contract a foreign filesystem implements to
// be attached below a mount point. Paths handed to it are relative to
// the mount point, normalized, without a leading slash ("" is the mount
// root). Only content and metadata reads plus file writes cross the
// boundary; structural operations (create directory, delete, move,
// copy, chmod, chown, symlink) stay within the host tree and fail with
// ErrUnsupported under a mount. Mounted backends have no symlink
// notion, so Lstat under a mount behaves like Stat.
type MountableFS interface {
	ReadFile(ctx context.Context, rel string) ([]byte, error)
	WriteFile(ctx context.Context, rel string, data []byte) error
	List(ctx context.Context, rel string) ([]FileInfo, error)
	Stat(ctx context.Context, rel string) (FileInfo, error)
}

// MountPoint attaches a MountableFS at a directory path. The handle is
// non-owning; unmounting never affects the mounted filesystem's state.
type MountPoint struct {
	Path string
	FS   MountableFS
}

// Mount attaches fs at path. The path must resolve to an existing
// directory and mounting requires root. File reads, writes and listings
// under the mount are delegated; structural operations across the
// boundary fail with ErrUnsupported.
func (v *VFS) Mount(ctx context.Context, path string, fs MountableFS, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !id.IsRoot() {
		return &core.PermissionError{Path: Normalize(path), Mode: access.Write.String(), Class: access.Classify(id, v.root).String()}
	}

	v.mu.Lock()
	err := v.mountLocked(path, fs)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Info().Str("path", Normalize(path)).Msg("mounted filesystem")
	v.publish(ctx, core.OpMount, Normalize(path), "", id)
	return nil
}

func (v *VFS) mountLocked(path string, fs MountableFS) error {
	path = Normalize(path)
	n, err := v.lookup(path, true)
	if err != nil {
		return err
	}
	if !n.IsDir() {
		return &core.PathError{Op: "mount", Path: path, Err: core.ErrNotADirectory}
	}
	for _, mp := range v.mounts {
		if mp.Path == path {
			return &core.PathError{Op: "mount", Path: path, Err: core.ErrExist}
		}
	}
	v.mounts = append(v.mounts, &MountPoint{Path: path, FS: fs})
	return nil
}

// Unmount detaches the mount at path. Requires root.
func (v *VFS) Unmount(ctx context.Context, path string, id access.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !id.IsRoot() {
		return &core.PermissionError{Path: Normalize(path), Mode: access.Write.String(), Class: access.Classify(id, v.root).String()}
	}

	path = Normalize(path)
	v.mu.Lock()
	found := false
	for i, mp := range v.mounts {
		if mp.Path == path {
			v.mounts = append(v.mounts[:i], v.mounts[i+1:]...)
			found = true
			break
		}
	}
	v.mu.Unlock()
	if !found {
		return &core.PathError{Op: "unmount", Path: path, Err: core.ErrNotFound}
	}

	v.publish(ctx, core.OpUnmount, path, "", id)
	return nil
}

// MountPoints returns the current mount table.
func (v *VFS) MountPoints() []MountPoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]MountPoint, 0, len(v.mounts))
	for _, mp := range v.mounts {
		out = append(out, *mp)
	}
	return out
}

// mountWithin reports whether a mount point lies at or under path. A
// subtree covering a mount cannot be deleted or moved out from under it;
// the mount must be detached first. The caller must hold v.mu.
func (v *VFS) mountWithin(path string) bool {
	for _, mp := range v.mounts {
		if mp.Path == path || strings.HasPrefix(mp.Path, path+"/") {
			return true
		}
	}
	return false
}

// mountFor finds the longest-prefix mount covering path, returning the
// mount and the path relative to it. Paths equal to the mount point
// itself are covered (rel "").
func (v *VFS) mountFor(path string) (*MountPoint, string, bool) {
	path = Normalize(path)
	v.mu.RLock()
	defer v.mu.RUnlock()

	var best *MountPoint
	for _, mp := range v.mounts {
		if path == mp.Path || strings.HasPrefix(path, mp.Path+"/") || mp.Path == "/" {
			if best == nil || len(mp.Path) > len(best.Path) {
				best = mp
			}
		}
	}
	if best == nil {
		return nil, "", false
	}
	rel := strings.TrimPrefix(path, best.Path)
	rel = strings.TrimPrefix(rel, "/")
	return best, rel, true
}
