// Package node holds the filesystem node model: a tagged union of file,
// directory and symlink sharing one metadata block, arranged as an
// exclusive-ownership tree. The engine in pkg/hackerfs is the only
// authorized mutator; parent pointers are non-owning back-references used
// for traversal convenience.
package node

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// Kind discriminates the node variants.
type Kind int

const (
	// KindFile is a regular file with content bytes.
	KindFile Kind = iota
	// KindDirectory owns a name -> child mapping.
	KindDirectory
	// KindSymlink stores a target path.
	KindSymlink
)

// String returns the kind name used in listings and serialization.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Node is a single entry in the tree. Path is always the canonical
// absolute path and Name its last segment; both are maintained by
// AddChild/RemoveChild/Rename, never written directly.
type Node struct {
	Path       string
	Name       string
	Kind       Kind
	OwnerID    int
	GroupID    int
	Perms      perms.Permissions
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time

	// Content is set for files, Target for symlinks.
	Content []byte
	Target  string

	parent   *Node
	children map[string]*Node
}

// NewRoot creates the root directory node. Exactly one node per tree has
// the path "/" and it never has a parent.
func NewRoot() *Node {
	now := time.Now()
	return &Node{
		Path:       "/",
		Kind:       KindDirectory,
		Perms:      perms.MustFromOctal(0o755),
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		children:   make(map[string]*Node),
	}
}

// NewFile creates a detached file node. Path is assigned when the node is
// attached to a directory.
func NewFile(name string, content []byte, p perms.Permissions, uid, gid int) *Node {
	now := time.Now()
	return &Node{
		Name:       name,
		Kind:       KindFile,
		OwnerID:    uid,
		GroupID:    gid,
		Perms:      p,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		Content:    content,
	}
}

// NewDirectory creates a detached directory node.
func NewDirectory(name string, p perms.Permissions, uid, gid int) *Node {
	now := time.Now()
	return &Node{
		Name:       name,
		Kind:       KindDirectory,
		OwnerID:    uid,
		GroupID:    gid,
		Perms:      p,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		children:   make(map[string]*Node),
	}
}

// NewSymlink creates a detached symlink node pointing at target. Links
// carry mode 0777 like Linux.
func NewSymlink(name, target string, uid, gid int) *Node {
	now := time.Now()
	return &Node{
		Name:       name,
		Kind:       KindSymlink,
		OwnerID:    uid,
		GroupID:    gid,
		Perms:      perms.MustFromOctal(0o777),
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		Target:     target,
	}
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.Kind == KindDirectory }

// IsSymlink reports whether the node is a symbolic link.
func (n *Node) IsSymlink() bool { return n.Kind == KindSymlink }

// IsHidden reports whether the node name starts with a dot.
func (n *Node) IsHidden() bool { return strings.HasPrefix(n.Name, ".") }

// Parent returns the non-owning parent back-reference, nil for root and
// detached nodes.
func (n *Node) Parent() *Node { return n.parent }

// Size returns the content length for files, the target length for
// symlinks, and the recursive sum of descendant file sizes for
// directories. Directory size is computed on demand so it can never go
// stale.
func (n *Node) Size() int64 {
	switch n.Kind {
	case KindFile:
		return int64(len(n.Content))
	case KindSymlink:
		return int64(len(n.Target))
	default:
		var total int64
		for _, c := range n.children {
			total += c.Size()
		}
		return total
	}
}

// Child looks up a direct child by name. Lookup is case-sensitive.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// Children returns the direct children sorted by name.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// AddChild attaches a detached node under this directory, assigning its
// canonical path (and those of its descendants, for reattached
// subtrees). The directory's ModifiedAt is updated.
func (n *Node) AddChild(c *Node) error {
	if !n.IsDir() {
		return &core.PathError{Op: "add", Path: n.Path, Err: core.ErrNotADirectory}
	}
	if c.Name == "" || strings.Contains(c.Name, "/") {
		return &core.PathError{Op: "add", Path: n.Path, Err: core.ErrInvalidPath}
	}
	if _, exists := n.children[c.Name]; exists {
		return &core.PathError{Op: "add", Path: Join(n.Path, c.Name), Err: core.ErrExist}
	}
	n.children[c.Name] = c
	c.parent = n
	c.setPath(Join(n.Path, c.Name))
	n.ModifiedAt = time.Now()
	return nil
}

// RemoveChild detaches and returns the named child. The detached subtree
// keeps its internal structure but loses its parent back-reference.
func (n *Node) RemoveChild(name string) (*Node, error) {
	if !n.IsDir() {
		return nil, &core.PathError{Op: "remove", Path: n.Path, Err: core.ErrNotADirectory}
	}
	c, ok := n.children[name]
	if !ok {
		return nil, &core.PathError{Op: "remove", Path: Join(n.Path, name), Err: core.ErrNotFound}
	}
	delete(n.children, name)
	c.parent = nil
	n.ModifiedAt = time.Now()
	return c, nil
}

// Rename changes the node's name in place and rewrites the canonical
// paths of the node and every descendant.
func (n *Node) Rename(newName string) error {
	if newName == "" || strings.Contains(newName, "/") {
		return &core.PathError{Op: "rename", Path: n.Path, Err: core.ErrInvalidPath}
	}
	if n.parent != nil {
		if _, exists := n.parent.children[newName]; exists && newName != n.Name {
			return &core.PathError{Op: "rename", Path: Join(n.parent.Path, newName), Err: core.ErrExist}
		}
		delete(n.parent.children, n.Name)
		n.parent.children[newName] = n
		n.Name = newName
		n.setPath(Join(n.parent.Path, newName))
	} else {
		n.Name = newName
		n.setPath("/" + newName)
	}
	n.ModifiedAt = time.Now()
	return nil
}

// setPath rewrites this node's path and cascades to all descendants.
func (n *Node) setPath(p string) {
	n.Path = p
	for _, c := range n.children {
		c.setPath(Join(p, c.Name))
	}
}

// Walk visits the node and every descendant in preorder. Returning an
// error from fn stops the walk.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.Children() {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// CloneTree deep-copies the node and its descendants. The copy is
// detached: no parent, paths rooted at the node's own name until it is
// reattached.
func (n *Node) CloneTree() *Node {
	c := &Node{
		Path:       n.Path,
		Name:       n.Name,
		Kind:       n.Kind,
		OwnerID:    n.OwnerID,
		GroupID:    n.GroupID,
		Perms:      n.Perms,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
		AccessedAt: n.AccessedAt,
		Target:     n.Target,
	}
	if n.Content != nil {
		c.Content = append([]byte(nil), n.Content...)
	}
	if n.children != nil {
		c.children = make(map[string]*Node, len(n.children))
		for name, child := range n.children {
			cc := child.CloneTree()
			cc.parent = c
			c.children[name] = cc
		}
	}
	return c
}

// Join concatenates a directory path and a child name into a canonical
// absolute path.
func Join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// Describe returns a short human-readable summary used in logs.
func (n *Node) Describe() string {
	return fmt.Sprintf("%s %s %04o uid=%d gid=%d", n.Kind, n.Path, n.Perms.ToOctal(), n.OwnerID, n.GroupID)
}
