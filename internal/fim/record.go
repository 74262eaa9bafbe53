// Package fim implements the file-integrity core: content fingerprinting,
// snapshot scanning, and drift classification against a trusted baseline.
package fim

import "time"

// FileRecord is the fingerprint and metadata snapshot of a single file.
// Immutable once computed for a scan pass.
type FileRecord struct {
	Path    string    `json:"path"`
	Hash    string    `json:"hash"` // "sha256:<hex>" over full content
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	UID     uint32    `json:"uid"`
	GID     uint32    `json:"gid"`
	Mode    uint32    `json:"mode"` // permission bits only
}

// Snapshot maps path to FileRecord for one scan pass.
type Snapshot struct {
	ScannedAt time.Time             `json:"scanned_at"`
	Files     map[string]FileRecord `json:"files"`
}

// NewSnapshot creates an empty snapshot stamped with the given time.
func NewSnapshot(at time.Time) *Snapshot {
	return &Snapshot{
		ScannedAt: at,
		Files:     make(map[string]FileRecord),
	}
}

// ChangeKind classifies one detected difference.
type ChangeKind string

const (
	Created           ChangeKind = "created"
	Modified          ChangeKind = "modified"
	Deleted           ChangeKind = "deleted"
	PermissionChanged ChangeKind = "permission_changed"
)

// ChangeEvent is one classified difference between baseline and current.
// Old is nil for Created, New is nil for Deleted.
type ChangeEvent struct {
	Path       string      `json:"path"`
	Kind       ChangeKind  `json:"kind"`
	Old        *FileRecord `json:"old,omitempty"`
	New        *FileRecord `json:"new,omitempty"`
	Critical   bool        `json:"critical"`
	DetectedAt time.Time   `json:"detected_at"`
}
