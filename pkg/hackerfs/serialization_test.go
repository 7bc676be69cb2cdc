package hackerfs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// buildSampleTree populates a filesystem with every node kind and the
// special permission bits.
func buildSampleTree(t *testing.T, v *VFS) {
	t.Helper()
	ctx := context.Background()

	steps := []func() error{
		func() error { return v.CreateDirectory(ctx, "/home/alice", perms.MustFromOctal(0o755), asRoot, true) },
		func() error { return v.SetOwnership(ctx, "/home/alice", 1000, 1000, asRoot) },
		func() error { return v.CreateDirectory(ctx, "/tmp", perms.MustFromOctal(0o1777), asRoot, false) },
		func() error {
			return v.CreateFile(ctx, "/home/alice/sudo", []byte("binary"), perms.MustFromOctal(0o4755), asAlice)
		},
		func() error {
			return v.CreateFile(ctx, "/home/alice/.profile", []byte("export PATH"), perms.MustFromOctal(0o600), asAlice)
		},
		func() error { return v.Symlink(ctx, "/home/alice/sudo", "/tmp/s", asAlice) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("build tree: %v", err)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	v := New(WithLogger(NewTestLogger(io.Discard, 0)))
	ctx := context.Background()
	buildSampleTree(t, v)

	origSudo, err := v.Stat(ctx, "/home/alice/sudo", asRoot)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	data, err := v.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := New(WithLogger(NewTestLogger(io.Discard, 0)))
	if err := restored.Restore(ctx, data); err != nil {
		t.Fatalf("restore: %v", err)
	}

	fi, err := restored.Stat(ctx, "/home/alice/sudo", asRoot)
	if err != nil {
		t.Fatalf("stat restored: %v", err)
	}
	if fi.Mode.ToOctal() != 0o4755 {
		t.Errorf("setuid mode = %04o, want 4755", fi.Mode.ToOctal())
	}
	if fi.OwnerID != 1000 || fi.GroupID != 1000 {
		t.Errorf("ownership = %d:%d, want 1000:1000", fi.OwnerID, fi.GroupID)
	}
	if !fi.CreatedAt.Equal(origSudo.CreatedAt) || !fi.ModifiedAt.Equal(origSudo.ModifiedAt) {
		t.Error("timestamps not preserved")
	}

	content, err := restored.ReadFile(ctx, "/home/alice/sudo", asRoot)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(content) != "binary" {
		t.Errorf("content = %q, want binary", content)
	}

	fi, err = restored.Stat(ctx, "/tmp", asRoot)
	if err != nil {
		t.Fatalf("stat /tmp: %v", err)
	}
	if !fi.Mode.Sticky {
		t.Error("sticky bit not preserved")
	}

	target, err := restored.ReadLink(ctx, "/tmp/s", asRoot)
	if err != nil {
		t.Fatalf("readlink restored: %v", err)
	}
	if target != "/home/alice/sudo" {
		t.Errorf("symlink target = %q", target)
	}

	// Hidden files survive too.
	if !restored.Exists(ctx, "/home/alice/.profile", asRoot) {
		t.Error("hidden file lost in round trip")
	}
}

func TestRestoreRejectsMalformed(t *testing.T) {
	v := New(WithLogger(NewTestLogger(io.Discard, 0)))
	ctx := context.Background()

	cases := map[string]string{
		"not json":     `{{{`,
		"bad version":  `{"version":99,"root":{"name":"","kind":"directory","mode":"755"}}`,
		"file root":    `{"version":1,"root":{"name":"","kind":"file","mode":"644"}}`,
		"bad mode":     `{"version":1,"root":{"name":"","kind":"directory","mode":"banana"}}`,
		"unknown kind": `{"version":1,"root":{"name":"","kind":"directory","mode":"755","children":[{"name":"x","kind":"socket","mode":"644"}]}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if err := v.Restore(ctx, []byte(raw)); !errors.Is(err, core.ErrInvalidFormat) {
				t.Errorf("Restore = %v, want invalid format", err)
			}
		})
	}

	// A failed restore leaves the current tree intact.
	if err := v.CreateFile(ctx, "/keep", nil, perms.MustFromOctal(0o644), asRoot); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = v.Restore(ctx, []byte(`{{{`))
	if !v.Exists(ctx, "/keep", asRoot) {
		t.Error("failed restore clobbered the tree")
	}
}
