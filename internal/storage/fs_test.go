package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	v, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return v
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("Buy milk\n")
	if err := s.Write("groceries.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("groceries.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q", got)
	}
}

func TestRead_MissingWrapsNotExist(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("nope.md")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestWrite_NoTempLeftovers(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("one"))
	if err := s.Write("a.md", []byte("two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("a.md")
	if string(got) != "two" {
		t.Errorf("content = %q, want two", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), tmpPattern))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestMove_IntoTrash(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("work/plan.md", []byte("plan"))
	if err := s.Move("work/plan.md", ".trash/work/plan.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if ok, _ := s.Exists("work/plan.md"); ok {
		t.Error("source still exists")
	}
	if ok, _ := s.Exists(".trash/work/plan.md"); !ok {
		t.Error("destination missing")
	}
}

func TestMove_DestinationExists(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("b.md", []byte("b"))
	err := s.Move("a.md", "b.md")
	if !errors.Is(err, fs.ErrExist) {
		t.Errorf("err = %v, want fs.ErrExist", err)
	}
	got, _ := s.Read("b.md")
	if string(got) != "b" {
		t.Error("destination was overwritten")
	}
}

func TestMove_MissingSource(t *testing.T) {
	s := tempVault(t)
	if err := s.Move("ghost.md", "x.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("b"))
	_ = s.Write(".trash/c.md", []byte("c"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	seen := map[string]string{}
	for _, m := range items {
		seen[m.Path] = m.Checksum
	}
	if seen["sub/b.md"] != Checksum([]byte("b")) {
		t.Errorf("checksum of sub/b.md = %q", seen["sub/b.md"])
	}

	trash, err := s.List(".trash")
	if err != nil || len(trash) != 1 {
		t.Errorf("List(.trash) = %v, %v", trash, err)
	}
}

func TestList_MissingDir(t *testing.T) {
	s := tempVault(t)
	items, err := s.List(".trash")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error reading %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error writing %q", p)
		}
		if _, err := s.Exists(p); err == nil {
			t.Errorf("expected error for Exists(%q)", p)
		}
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing dir")
	}
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(f); err == nil {
		t.Error("expected error when root is a file")
	}
}
