package node

import (
	"errors"
	"testing"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

func buildTree(t *testing.T) *Node {
	t.Helper()
	root := NewRoot()
	a := NewDirectory("a", perms.MustFromOctal(0o755), 0, 0)
	b := NewDirectory("b", perms.MustFromOctal(0o755), 0, 0)
	x := NewDirectory("x", perms.MustFromOctal(0o755), 0, 0)
	y := NewFile("y", []byte("payload"), perms.MustFromOctal(0o644), 1000, 1000)
	for _, step := range []struct {
		parent *Node
		child  *Node
	}{{root, a}, {a, b}, {b, x}, {x, y}} {
		if err := step.parent.AddChild(step.child); err != nil {
			t.Fatalf("AddChild(%s): %v", step.child.Name, err)
		}
	}
	return root
}

func lookup(t *testing.T, n *Node, names ...string) *Node {
	t.Helper()
	for _, name := range names {
		c, ok := n.Child(name)
		if !ok {
			t.Fatalf("missing child %q under %s", name, n.Path)
		}
		n = c
	}
	return n
}

func TestAddChildAssignsPaths(t *testing.T) {
	root := buildTree(t)
	y := lookup(t, root, "a", "b", "x", "y")
	if y.Path != "/a/b/x/y" {
		t.Errorf("path = %q, want /a/b/x/y", y.Path)
	}
	if y.Name != "y" {
		t.Errorf("name = %q, want y", y.Name)
	}
	if y.Parent().Path != "/a/b/x" {
		t.Errorf("parent path = %q, want /a/b/x", y.Parent().Path)
	}
}

func TestAddChildDuplicateFails(t *testing.T) {
	root := buildTree(t)
	dup := NewFile("a", nil, perms.MustFromOctal(0o644), 0, 0)
	if err := root.AddChild(dup); !errors.Is(err, core.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
}

func TestAddChildToFileFails(t *testing.T) {
	root := buildTree(t)
	y := lookup(t, root, "a", "b", "x", "y")
	if err := y.AddChild(NewFile("z", nil, perms.MustFromOctal(0o644), 0, 0)); !errors.Is(err, core.ErrNotADirectory) {
		t.Errorf("expected ErrNotADirectory, got %v", err)
	}
}

func TestRenameCascade(t *testing.T) {
	root := buildTree(t)
	b := lookup(t, root, "a", "b")
	if err := b.Rename("c"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if b.Path != "/a/c" {
		t.Errorf("renamed path = %q, want /a/c", b.Path)
	}
	y := lookup(t, root, "a", "c", "x", "y")
	if y.Path != "/a/c/x/y" {
		t.Errorf("descendant path = %q, want /a/c/x/y", y.Path)
	}
	if _, ok := lookup(t, root, "a").Child("b"); ok {
		t.Error("old name still present after rename")
	}
}

func TestRenameCollision(t *testing.T) {
	root := buildTree(t)
	a := lookup(t, root, "a")
	sibling := NewFile("c", nil, perms.MustFromOctal(0o644), 0, 0)
	if err := a.AddChild(sibling); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	b := lookup(t, root, "a", "b")
	if err := b.Rename("c"); !errors.Is(err, core.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
	if err := b.Rename("with/slash"); !errors.Is(err, core.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestRemoveChildDetaches(t *testing.T) {
	root := buildTree(t)
	a := lookup(t, root, "a")
	b, err := a.RemoveChild("b")
	if err != nil {
		t.Fatalf("RemoveChild: %v", err)
	}
	if b.Parent() != nil {
		t.Error("detached subtree kept parent back-reference")
	}
	if _, ok := a.Child("b"); ok {
		t.Error("child still reachable after removal")
	}
	if _, err := a.RemoveChild("missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectorySize(t *testing.T) {
	root := buildTree(t)
	x := lookup(t, root, "a", "b", "x")
	extra := NewFile("more", []byte("123"), perms.MustFromOctal(0o644), 0, 0)
	if err := x.AddChild(extra); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if got := root.Size(); got != int64(len("payload")+3) {
		t.Errorf("root size = %d, want %d", got, len("payload")+3)
	}
}

func TestCloneTreeIsIndependent(t *testing.T) {
	root := buildTree(t)
	b := lookup(t, root, "a", "b")
	clone := b.CloneTree()
	if clone.Parent() != nil {
		t.Error("clone should be detached")
	}
	cy := lookup(t, clone, "x", "y")
	cy.Content[0] = 'X'
	orig := lookup(t, root, "a", "b", "x", "y")
	if orig.Content[0] == 'X' {
		t.Error("clone shares content storage with original")
	}
}

func TestHiddenAndKinds(t *testing.T) {
	dot := NewFile(".profile", nil, perms.MustFromOctal(0o644), 0, 0)
	if !dot.IsHidden() {
		t.Error(".profile should be hidden")
	}
	link := NewSymlink("l", "/target", 0, 0)
	if !link.IsSymlink() || link.Size() != int64(len("/target")) {
		t.Errorf("symlink kind/size wrong: %v %d", link.Kind, link.Size())
	}
	if KindDirectory.String() != "directory" || KindFile.String() != "file" {
		t.Error("kind names wrong")
	}
}

func TestWalkPreorder(t *testing.T) {
	root := buildTree(t)
	var seen []string
	err := root.Walk(func(n *Node) error {
		seen = append(seen, n.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/", "/a", "/a/b", "/a/b/x", "/a/b/x/y"}
	if len(seen) != len(want) {
		t.Fatalf("visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("visit %d = %q, want %q", i, seen[i], want[i])
		}
	}
}
