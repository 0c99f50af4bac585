package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWebDir(t *testing.T) {
	existing := t.TempDir()
	missing := filepath.Join(existing, "does-not-exist")

	if got := resolveWebDir(existing); got != existing {
		t.Fatalf("existing dir: got %q", got)
	}
	if got := resolveWebDir(missing); got != "" {
		t.Fatalf("missing dir: got %q", got)
	}
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	if !dirExists(dir) {
		t.Fatalf("expected %q to exist", dir)
	}
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if dirExists(file) {
		t.Fatalf("file misreported as directory")
	}
}
