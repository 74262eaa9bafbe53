package fim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	writeFile(t, path, "hello")

	rec, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	// sha256("hello")
	want := "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if rec.Hash != want {
		t.Errorf("hash = %s, want %s", rec.Hash, want)
	}
	if rec.Size != 5 {
		t.Errorf("size = %d, want 5", rec.Size)
	}
	if rec.Mode != 0644 {
		t.Errorf("mode = %o, want 644", rec.Mode)
	}
}

func TestHashFileUnreadable(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestScanWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "sub", "deep", "c.txt"), "c")

	s := NewScanner([]string{dir}, nil, nil)
	snap, stats, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.Files != 3 {
		t.Errorf("files = %d, want 3", stats.Files)
	}
	if stats.Dirs != 3 {
		t.Errorf("dirs = %d, want 3", stats.Dirs)
	}
	if stats.Partial {
		t.Error("unexpected partial flag")
	}
	if len(snap.Files) != 3 {
		t.Errorf("snapshot has %d files, want 3", len(snap.Files))
	}
	if _, ok := snap.Files[filepath.Join(dir, "sub", "deep", "c.txt")]; !ok {
		t.Error("deep file missing from snapshot")
	}
}

func TestScanExclusions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "k")
	writeFile(t, filepath.Join(dir, "cache", "skip.txt"), "s")
	writeFile(t, filepath.Join(dir, "keep-2.log"), "l")

	s := NewScanner([]string{dir}, []string{
		filepath.Join(dir, "cache"),
		filepath.Join(dir, "keep-2*"),
	}, nil)

	snap, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Files) != 1 {
		t.Fatalf("snapshot has %d files, want 1: %v", len(snap.Files), snap.Files)
	}
	if _, ok := snap.Files[filepath.Join(dir, "keep.txt")]; !ok {
		t.Error("keep.txt missing")
	}
}

func TestExcludedComponentBoundary(t *testing.T) {
	s := NewScanner(nil, []string{"/var/log"}, nil)
	if !s.Excluded("/var/log/syslog") {
		t.Error("/var/log/syslog should be excluded")
	}
	if !s.Excluded("/var/log") {
		t.Error("/var/log itself should be excluded")
	}
	if s.Excluded("/var/logical") {
		t.Error("/var/logical must not match the /var/log prefix")
	}
}

func TestScanSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	writeFile(t, target, "t")
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := NewScanner([]string{dir}, nil, nil)
	snap, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Files) != 1 {
		t.Fatalf("snapshot has %d files, want 1 (symlink must be skipped)", len(snap.Files))
	}
}

func TestScanUnreadableFileTolerated(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are advisory for root")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.txt"), "ok")
	locked := filepath.Join(dir, "locked.txt")
	writeFile(t, locked, "secret")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatal(err)
	}

	var skipped []string
	s := NewScanner([]string{dir}, nil, func(path string, err error) {
		skipped = append(skipped, path)
	})
	snap, stats, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan must not abort on unreadable files: %v", err)
	}
	if stats.Skipped != 1 || len(skipped) != 1 {
		t.Errorf("skipped = %d (logged %d), want 1", stats.Skipped, len(skipped))
	}
	if len(snap.Files) != 1 {
		t.Errorf("snapshot has %d files, want 1", len(snap.Files))
	}
}

func TestScanDeadlinePartial(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, "f"+strings.Repeat("x", i)+".txt"), "data")
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	s := NewScanner([]string{dir}, nil, nil)
	snap, stats, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("expired deadline must yield a partial pass, not an error: %v", err)
	}
	if !stats.Partial {
		t.Error("expected partial flag after deadline")
	}
	if len(snap.Files) != 0 {
		t.Errorf("expected no files hashed past the deadline, got %d", len(snap.Files))
	}
}

func TestScanMissingRootIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	s := NewScanner([]string{dir, filepath.Join(dir, "no-such-dir")}, nil, nil)
	snap, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("missing root must be tolerated: %v", err)
	}
	if len(snap.Files) != 1 {
		t.Errorf("snapshot has %d files, want 1", len(snap.Files))
	}
}

func TestScanSingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.txt")
	writeFile(t, path, "only")

	s := NewScanner([]string{path}, nil, nil)
	snap, stats, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.Files != 1 || len(snap.Files) != 1 {
		t.Fatalf("expected exactly the one monitored file, got %d", len(snap.Files))
	}
}
