// Package access implements the permission decision algorithm: given an
// acting identity, a node and a requested access mode, it classifies the
// identity as owner, group or other and answers allow/deny against the
// node's permission bits. The evaluator is pure and total — it never
// fails for a legitimate denial; the engine translates negative
// decisions into PermissionDenied errors.
package access

import (
	"github.com/hackeros/hackerfs/pkg/hackerfs/node"
)

// Identity is the acting principal for a single operation. The
// filesystem never stores identities; callers supply one per call.
type Identity struct {
	UID    int
	GID    int
	Groups []int // supplementary group IDs
}

// Root returns the superuser identity.
func Root() Identity { return Identity{UID: 0, GID: 0} }

// IsRoot reports whether the identity is the superuser (uid 0). Root
// bypasses every permission check unconditionally.
func (id Identity) IsRoot() bool { return id.UID == 0 }

// InGroup reports whether gid is the identity's primary group or one of
// its supplementary groups.
func (id Identity) InGroup(gid int) bool {
	if id.GID == gid {
		return true
	}
	for _, g := range id.Groups {
		if g == gid {
			return true
		}
	}
	return false
}

// Mode is a requested access mode: a combination of Read, Write and
// Exec. The bit values mirror the octal permission digits.
type Mode uint8

const (
	Exec  Mode = 1
	Write Mode = 2
	Read  Mode = 4

	ReadWrite Mode = Read | Write
	ReadExec  Mode = Read | Exec
	WriteExec Mode = Write | Exec
	All       Mode = Read | Write | Exec
)

// Valid reports whether the mode is a supported combination. Zero and
// out-of-range values are programming errors on the caller's side.
func (m Mode) Valid() bool { return m > 0 && m <= All }

// String renders the mode as an "rwx" triple, e.g. "rw-".
func (m Mode) String() string {
	buf := []byte("---")
	if m&Read != 0 {
		buf[0] = 'r'
	}
	if m&Write != 0 {
		buf[1] = 'w'
	}
	if m&Exec != 0 {
		buf[2] = 'x'
	}
	return string(buf)
}

// Class is the ownership relationship between an identity and a node.
type Class int

const (
	ClassOwner Class = iota
	ClassGroup
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassOwner:
		return "owner"
	case ClassGroup:
		return "group"
	default:
		return "other"
	}
}

// Decision is the outcome of an access evaluation, carrying the
// classification and requested mode for diagnostics.
type Decision struct {
	Allowed bool
	Class   Class
	Mode    Mode
	Reason  string
}

// Classify determines the ownership relationship: owner if the uid
// matches, else group if the node's group is any of the identity's
// groups, else other.
func Classify(id Identity, n *node.Node) Class {
	switch {
	case id.UID == n.OwnerID:
		return ClassOwner
	case id.InGroup(n.GroupID):
		return ClassGroup
	default:
		return ClassOther
	}
}

// Evaluate decides whether the identity may access the node with the
// requested mode. Root is always allowed. For everyone else the triple
// matching the classification is selected and every requested bit must
// be granted.
//
// The special bits never change this decision: setuid elevation is a
// process concern outside the filesystem, setgid on directories only
// steers group inheritance on create, and the sticky rule is enforced by
// the engine's delete and rename paths against the parent directory.
func Evaluate(id Identity, n *node.Node, m Mode) Decision {
	class := Classify(id, n)
	d := Decision{Class: class, Mode: m}

	if !m.Valid() {
		d.Reason = "unsupported access mode"
		return d
	}
	if id.IsRoot() {
		d.Allowed = true
		return d
	}

	r, w, x := triple(n, class)
	if m&Read != 0 && !r {
		d.Reason = "read not permitted for " + class.String()
		return d
	}
	if m&Write != 0 && !w {
		d.Reason = "write not permitted for " + class.String()
		return d
	}
	if m&Exec != 0 && !x {
		d.Reason = "execute not permitted for " + class.String()
		return d
	}
	d.Allowed = true
	return d
}

// CanAccess is the predicate form of Evaluate.
func CanAccess(id Identity, n *node.Node, m Mode) bool {
	return Evaluate(id, n, m).Allowed
}

// CanDeleteEntry applies the sticky-bit rule: inside a sticky directory
// only the entry's owner (or root) may delete or rename the entry, even
// with write access to the directory.
func CanDeleteEntry(id Identity, parent, entry *node.Node) bool {
	if id.IsRoot() {
		return true
	}
	if !parent.Perms.Sticky {
		return true
	}
	return entry.OwnerID == id.UID
}

func triple(n *node.Node, c Class) (r, w, x bool) {
	p := n.Perms
	switch c {
	case ClassOwner:
		return p.OwnerRead, p.OwnerWrite, p.OwnerExecute
	case ClassGroup:
		return p.GroupRead, p.GroupWrite, p.GroupExecute
	default:
		return p.OtherRead, p.OtherWrite, p.OtherExecute
	}
}
