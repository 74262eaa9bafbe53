package fim

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Diff compares a baseline snapshot against a current one and returns
// the classified changes in deterministic path order. It is a pure
// function of its inputs: no hidden state, no I/O.
//
// Classification matrix:
//
//	absent in baseline, present current  -> Created
//	present in baseline, absent current  -> Deleted
//	both present, fingerprint differs    -> Modified
//	fingerprint equal, owner/mode differ -> PermissionChanged
func Diff(baseline, current *Snapshot, at time.Time) []ChangeEvent {
	paths := make(map[string]struct{}, len(baseline.Files)+len(current.Files))
	for p := range baseline.Files {
		paths[p] = struct{}{}
	}
	for p := range current.Files {
		paths[p] = struct{}{}
	}

	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var events []ChangeEvent
	for _, p := range ordered {
		old, inBase := baseline.Files[p]
		cur, inCur := current.Files[p]

		switch {
		case !inBase && inCur:
			c := cur
			events = append(events, ChangeEvent{Path: p, Kind: Created, New: &c, DetectedAt: at})
		case inBase && !inCur:
			o := old
			events = append(events, ChangeEvent{Path: p, Kind: Deleted, Old: &o, DetectedAt: at})
		case old.Hash != cur.Hash:
			o, c := old, cur
			events = append(events, ChangeEvent{Path: p, Kind: Modified, Old: &o, New: &c, DetectedAt: at})
		case old.Mode != cur.Mode || old.UID != cur.UID || old.GID != cur.GID:
			o, c := old, cur
			events = append(events, ChangeEvent{Path: p, Kind: PermissionChanged, Old: &o, New: &c, DetectedAt: at})
		}
	}
	return events
}

// Classifier labels paths as critical based on a configured prefix list.
// Applied after classification, for event labeling only; it never alters
// detection logic. Safe for concurrent use; prefixes are hot-reloadable.
type Classifier struct {
	mu       sync.RWMutex
	prefixes []string
}

// NewClassifier creates a classifier for the given critical path prefixes.
func NewClassifier(prefixes []string) *Classifier {
	c := &Classifier{}
	c.SetPrefixes(prefixes)
	return c
}

// SetPrefixes atomically replaces the critical prefix list.
func (c *Classifier) SetPrefixes(prefixes []string) {
	c.mu.Lock()
	c.prefixes = append([]string(nil), prefixes...)
	c.mu.Unlock()
}

// Critical reports whether the path falls under a critical prefix.
func (c *Classifier) Critical(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Label applies the critical flag to each event in place.
func (c *Classifier) Label(events []ChangeEvent) {
	for i := range events {
		events[i].Critical = c.Critical(events[i].Path)
	}
}
