package baseline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/driftwatch/internal/fim"
)

func testSnapshot() *fim.Snapshot {
	snap := fim.NewSnapshot(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	snap.Files["/etc/passwd"] = fim.FileRecord{
		Path: "/etc/passwd",
		Hash: "sha256:aabb",
		Size: 1234,
		Mode: 0644,
	}
	snap.Files["/etc/shadow"] = fim.FileRecord{
		Path: "/etc/shadow",
		Hash: "sha256:ccdd",
		Size: 567,
		Mode: 0600,
	}
	return snap
}

func TestLoadNotInitialized(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "baseline.json"))
	_, err := s.Load()
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	s := NewStore(path)

	want := testSnapshot()
	if err := s.Initialize(want); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.ScannedAt.Equal(want.ScannedAt) {
		t.Errorf("ScannedAt = %v, want %v", got.ScannedAt, want.ScannedAt)
	}
	if len(got.Files) != len(want.Files) {
		t.Fatalf("got %d files, want %d", len(got.Files), len(want.Files))
	}
	for p, w := range want.Files {
		g, ok := got.Files[p]
		if !ok {
			t.Errorf("missing %s after reload", p)
			continue
		}
		if g.Hash != w.Hash || g.Size != w.Size || g.Mode != w.Mode {
			t.Errorf("record %s differs: %+v vs %+v", p, g, w)
		}
	}
}

func TestSaveFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := NewStore(path).Initialize(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("baseline file mode = %o, want 600", perm)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "baseline.json"))
	if err := s.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "baseline.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only baseline.json, found %v", names)
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	s := NewStore(path)

	first := testSnapshot()
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}

	second := fim.NewSnapshot(time.Now().UTC())
	second.Files["/opt/app"] = fim.FileRecord{Path: "/opt/app", Hash: "sha256:ee"}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Files) != 1 {
		t.Fatalf("got %d files, want 1 (old baseline must be fully replaced)", len(got.Files))
	}
	if _, ok := got.Files["/opt/app"]; !ok {
		t.Error("replacement baseline missing /opt/app")
	}
}

func TestLoadRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	doc := map[string]any{
		"schema_version": SchemaVersion + 1,
		"scanned_at":     time.Now().UTC(),
		"files":          map[string]any{},
	}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(path).Load()
	if err == nil {
		t.Fatal("expected error for newer schema version")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
