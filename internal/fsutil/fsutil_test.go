package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.md")

	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic() error: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("content = %q, want two", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp files left behind)", len(entries))
	}
}

func TestExistsAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	if Exists(path) {
		t.Fatal("Exists() = true before the file was written")
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists() on missing file error: %v", err)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if !Exists(path) {
		t.Error("Exists() = false after write")
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists() error: %v", err)
	}
	if Exists(path) {
		t.Error("Exists() = true after remove")
	}
}
