package fim

import (
	"testing"
	"time"
)

func rec(path, hash string, uid, gid, mode uint32) FileRecord {
	return FileRecord{Path: path, Hash: "sha256:" + hash, Size: 1, UID: uid, GID: gid, Mode: mode}
}

func snap(records ...FileRecord) *Snapshot {
	s := NewSnapshot(time.Now().UTC())
	for _, r := range records {
		s.Files[r.Path] = r
	}
	return s
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	a := snap(rec("/etc/passwd", "aa", 0, 0, 0644), rec("/etc/hosts", "bb", 0, 0, 0644))
	b := snap(rec("/etc/passwd", "aa", 0, 0, 0644), rec("/etc/hosts", "bb", 0, 0, 0644))

	if events := Diff(a, b, time.Now()); len(events) != 0 {
		t.Fatalf("expected no events for identical snapshots, got %d", len(events))
	}
}

func TestDiffEmptySnapshots(t *testing.T) {
	if events := Diff(snap(), snap(), time.Now()); len(events) != 0 {
		t.Fatalf("expected no events for empty snapshots, got %d", len(events))
	}
}

func TestDiffClassification(t *testing.T) {
	tests := []struct {
		name     string
		baseline FileRecord
		current  FileRecord
		inBase   bool
		inCur    bool
		want     ChangeKind
	}{
		{
			name:    "created",
			current: rec("/etc/new.conf", "aa", 0, 0, 0644),
			inCur:   true,
			want:    Created,
		},
		{
			name:     "deleted",
			baseline: rec("/etc/old.conf", "aa", 0, 0, 0644),
			inBase:   true,
			want:     Deleted,
		},
		{
			name:     "modified by content",
			baseline: rec("/etc/passwd", "aa", 0, 0, 0644),
			current:  rec("/etc/passwd", "bb", 0, 0, 0644),
			inBase:   true,
			inCur:    true,
			want:     Modified,
		},
		{
			name:     "mode change only",
			baseline: rec("/usr/sbin/sshd", "aa", 0, 0, 0755),
			current:  rec("/usr/sbin/sshd", "aa", 0, 0, 0777),
			inBase:   true,
			inCur:    true,
			want:     PermissionChanged,
		},
		{
			name:     "owner change only",
			baseline: rec("/etc/shadow", "aa", 0, 0, 0600),
			current:  rec("/etc/shadow", "aa", 1000, 0, 0600),
			inBase:   true,
			inCur:    true,
			want:     PermissionChanged,
		},
		{
			name:     "group change only",
			baseline: rec("/etc/sudoers", "aa", 0, 0, 0440),
			current:  rec("/etc/sudoers", "aa", 0, 27, 0440),
			inBase:   true,
			inCur:    true,
			want:     PermissionChanged,
		},
		{
			name:     "content and mode both changed",
			baseline: rec("/etc/crontab", "aa", 0, 0, 0644),
			current:  rec("/etc/crontab", "bb", 0, 0, 0777),
			inBase:   true,
			inCur:    true,
			want:     Modified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, cur := snap(), snap()
			if tt.inBase {
				base.Files[tt.baseline.Path] = tt.baseline
			}
			if tt.inCur {
				cur.Files[tt.current.Path] = tt.current
			}

			events := Diff(base, cur, time.Now())
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Kind != tt.want {
				t.Errorf("kind = %s, want %s", events[0].Kind, tt.want)
			}
		})
	}
}

func TestDiffEventEndpoints(t *testing.T) {
	base := snap(rec("/etc/a", "aa", 0, 0, 0644), rec("/etc/b", "bb", 0, 0, 0644))
	cur := snap(rec("/etc/b", "b2", 0, 0, 0644), rec("/etc/c", "cc", 0, 0, 0644))

	events := Diff(base, cur, time.Now())
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	// Deterministic path order.
	wantPaths := []string{"/etc/a", "/etc/b", "/etc/c"}
	for i, p := range wantPaths {
		if events[i].Path != p {
			t.Errorf("events[%d].Path = %s, want %s", i, events[i].Path, p)
		}
	}

	if events[0].Kind != Deleted || events[0].Old == nil || events[0].New != nil {
		t.Errorf("deleted event malformed: %+v", events[0])
	}
	if events[1].Kind != Modified || events[1].Old == nil || events[1].New == nil {
		t.Errorf("modified event malformed: %+v", events[1])
	}
	if events[2].Kind != Created || events[2].Old != nil || events[2].New == nil {
		t.Errorf("created event malformed: %+v", events[2])
	}
}

func TestDiffInversion(t *testing.T) {
	// Swapping the snapshots inverts every event: Created and Deleted
	// trade places, Modified and PermissionChanged are symmetric.
	b := snap(
		rec("/etc/deleted", "aa", 0, 0, 0644),
		rec("/etc/modified", "bb", 0, 0, 0644),
		rec("/etc/chmod", "cc", 0, 0, 0755),
		rec("/etc/same", "dd", 0, 0, 0644),
	)
	c := snap(
		rec("/etc/created", "ee", 0, 0, 0644),
		rec("/etc/modified", "b2", 0, 0, 0644),
		rec("/etc/chmod", "cc", 0, 0, 0700),
		rec("/etc/same", "dd", 0, 0, 0644),
	)

	forward := Diff(b, c, time.Unix(100, 0))
	reverse := Diff(c, b, time.Unix(100, 0))
	if len(forward) != len(reverse) {
		t.Fatalf("forward has %d events, reverse %d", len(forward), len(reverse))
	}

	inverse := map[ChangeKind]ChangeKind{
		Created:           Deleted,
		Deleted:           Created,
		Modified:          Modified,
		PermissionChanged: PermissionChanged,
	}

	byPath := make(map[string]ChangeEvent, len(reverse))
	for _, ev := range reverse {
		byPath[ev.Path] = ev
	}
	for _, fw := range forward {
		rv, ok := byPath[fw.Path]
		if !ok {
			t.Errorf("%s present forward but absent reverse", fw.Path)
			continue
		}
		if rv.Kind != inverse[fw.Kind] {
			t.Errorf("%s: forward %s, reverse %s, want %s", fw.Path, fw.Kind, rv.Kind, inverse[fw.Kind])
		}
		// Endpoints swap with the direction.
		if fw.Kind == Modified || fw.Kind == PermissionChanged {
			if fw.Old == nil || rv.New == nil || fw.Old.Hash != rv.New.Hash || fw.Old.Mode != rv.New.Mode {
				t.Errorf("%s: forward Old does not match reverse New", fw.Path)
			}
			if fw.New == nil || rv.Old == nil || fw.New.Hash != rv.Old.Hash || fw.New.Mode != rv.Old.Mode {
				t.Errorf("%s: forward New does not match reverse Old", fw.Path)
			}
		}
	}
}

func TestDiffPure(t *testing.T) {
	base := snap(rec("/etc/a", "aa", 0, 0, 0644))
	cur := snap(rec("/etc/a", "bb", 0, 0, 0644))

	first := Diff(base, cur, time.Unix(100, 0))
	second := Diff(base, cur, time.Unix(100, 0))
	if len(first) != len(second) {
		t.Fatalf("repeated diff disagreed: %d vs %d events", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path || first[i].Kind != second[i].Kind {
			t.Errorf("event %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if len(base.Files) != 1 || len(cur.Files) != 1 {
		t.Error("diff mutated its input snapshots")
	}
}

func TestClassifierCritical(t *testing.T) {
	c := NewClassifier([]string{"/etc", "/usr/sbin"})

	tests := []struct {
		path string
		want bool
	}{
		{"/etc/passwd", true},
		{"/etc", true},
		{"/etcetera/file", false}, // prefix must end on a component boundary
		{"/usr/sbin/sshd", true},
		{"/usr/bin/ls", false},
		{"/home/user/.bashrc", false},
	}
	for _, tt := range tests {
		if got := c.Critical(tt.path); got != tt.want {
			t.Errorf("Critical(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassifierLabelAndReload(t *testing.T) {
	c := NewClassifier([]string{"/etc"})
	events := []ChangeEvent{
		{Path: "/etc/passwd", Kind: Modified},
		{Path: "/opt/app/config", Kind: Modified},
	}

	c.Label(events)
	if !events[0].Critical || events[1].Critical {
		t.Fatalf("labeling wrong: %v %v", events[0].Critical, events[1].Critical)
	}

	// Hot-reload swaps the prefix set without touching detection.
	c.SetPrefixes([]string{"/opt/app"})
	c.Label(events)
	if events[0].Critical || !events[1].Critical {
		t.Fatalf("labeling after reload wrong: %v %v", events[0].Critical, events[1].Critical)
	}
}
