package core

import (
	"errors"
	"testing"
)

func TestPathErrorUnwrap(t *testing.T) {
	err := &PathError{Op: "read", Path: "/etc/shadow", Err: ErrNotFound}
	if !errors.Is(err, ErrNotFound) {
		t.Error("PathError should unwrap to its sentinel")
	}
	want := "read /etc/shadow: no such file or directory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestPermissionErrorUnwrap(t *testing.T) {
	err := &PermissionError{Path: "/root/.ssh", Mode: "r-x", Class: "other"}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("PermissionError should unwrap to ErrPermissionDenied")
	}
	want := "permission denied: /root/.ssh (requested r-x as other)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var perr *PermissionError
	if !errors.As(error(err), &perr) {
		t.Error("errors.As should recover the typed error")
	}
}
