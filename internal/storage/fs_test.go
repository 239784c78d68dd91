package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	content := []byte("| Dm7 G7 | Cmaj7 |\n")
	if err := s.Write("ii-v-i.chart", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("ii-v-i.chart")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("standards/jazz/stella.chart", []byte("| Em7b5 | A7 |")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Read("standards/jazz/stella.chart"); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("del.chart", []byte("| C |"))
	if err := s.Delete("del.chart"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.chart"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList_OnlyCharts(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.chart", []byte("| C |"))
	_ = s.Write("sub/b.chart", []byte("| G |"))
	_ = s.Write("notes.md", []byte("not a chart"))
	_ = os.WriteFile(filepath.Join(s.Root(), TempPrefix+"x.chart"), []byte("tmp"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("missing checksum for %s", it.Path)
		}
	}
	if items[1].Path != "sub/b.chart" {
		t.Errorf("path = %q, want %q", items[1].Path, "sub/b.chart")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)
	for _, p := range []string{"../../etc/passwd", "../outside.chart", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestWrite_NoLeftoverTemp(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("atomic.chart", []byte("| C |"))
	if err := s.Write("atomic.chart", []byte("| F |")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.chart")
	if string(got) != "| F |" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestChecksum_Stable(t *testing.T) {
	a := Checksum([]byte("| C |"))
	if a != Checksum([]byte("| C |")) {
		t.Error("checksum differs for identical input")
	}
	if a == Checksum([]byte("| G |")) {
		t.Error("checksum equal for different input")
	}
	if len(a) != 64 {
		t.Errorf("len(checksum) = %d, want 64", len(a))
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
	f, _ := os.CreateTemp(t.TempDir(), "numeral-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
