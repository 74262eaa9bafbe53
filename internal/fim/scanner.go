package fim

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScanStats summarizes one scan pass.
type ScanStats struct {
	Files    int           `json:"files"`
	Dirs     int           `json:"dirs"`
	Skipped  int           `json:"skipped"` // unreadable files, logged and tolerated
	Duration time.Duration `json:"duration"`
	Partial  bool          `json:"partial"` // deadline hit, pass abandoned early
}

// Scanner walks a monitored path set and produces current snapshots.
// It does not persist anything; the baseline store owns durability.
type Scanner struct {
	paths   []string // explicit files and directory roots
	exclude []string // path prefixes, applied before descending
	skipLog func(path string, err error)
}

// NewScanner creates a scanner for the given monitored paths and
// exclusion prefixes. skipLog is called for each unreadable file;
// nil means skips are silent.
func NewScanner(paths, exclude []string, skipLog func(string, error)) *Scanner {
	if skipLog == nil {
		skipLog = func(string, error) {}
	}
	return &Scanner{paths: paths, exclude: exclude, skipLog: skipLog}
}

// Excluded reports whether a path matches any exclusion prefix.
// A prefix ending in '*' matches raw string prefixes; otherwise the
// prefix must match a whole path component boundary.
func (s *Scanner) Excluded(path string) bool {
	for _, p := range s.exclude {
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(p, "*")) {
				return true
			}
			continue
		}
		if path == p || strings.HasPrefix(path, p+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// Scan walks the monitored set depth-first in deterministic path order
// and returns the current snapshot. The ctx deadline is checked between
// files; on overrun the remainder of the pass is abandoned and the stats
// carry the partial indicator. Per-file unreadable errors never abort
// the pass. Symbolic links are never followed.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, ScanStats, error) {
	start := time.Now()
	snap := NewSnapshot(start.UTC())
	stats := ScanStats{}

	roots := append([]string(nil), s.paths...)
	sort.Strings(roots)

	for _, root := range roots {
		if stats.Partial {
			break
		}
		info, err := os.Lstat(root)
		if err != nil {
			// Monitored path absent on this host; not an error.
			continue
		}
		if s.Excluded(root) || info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if !info.IsDir() {
			s.visitFile(root, snap, &stats)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				stats.Skipped++
				s.skipLog(path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				stats.Partial = true
				return fs.SkipAll
			}
			if d.IsDir() {
				if s.Excluded(path) {
					return fs.SkipDir
				}
				stats.Dirs++
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
				return nil
			}
			if s.Excluded(path) {
				return nil
			}
			s.visitFile(path, snap, &stats)
			return nil
		})
		if err != nil {
			return nil, stats, err
		}
	}

	stats.Duration = time.Since(start)
	return snap, stats, nil
}

func (s *Scanner) visitFile(path string, snap *Snapshot, stats *ScanStats) {
	rec, err := HashFile(path)
	if err != nil {
		stats.Skipped++
		s.skipLog(path, err)
		return
	}
	snap.Files[path] = rec
	stats.Files++
}
