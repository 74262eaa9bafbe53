package fim

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// ErrUnreadable marks a per-file failure: permission denied, path vanished
// mid-read, or an I/O error. Callers treat it as skip-and-log, never fatal.
var ErrUnreadable = errors.New("file unreadable")

// HashFile computes the SHA-256 content fingerprint and metadata snapshot
// for a single path. The only side effect is reading the file.
func HashFile(path string) (FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: stat %s: %v", ErrUnreadable, path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return FileRecord{}, fmt.Errorf("%w: read %s: %v", ErrUnreadable, path, err)
	}

	rec := FileRecord{
		Path:    path,
		Hash:    "sha256:" + hex.EncodeToString(h.Sum(nil)),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Mode:    uint32(info.Mode().Perm()),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		rec.UID = st.Uid
		rec.GID = st.Gid
	}
	return rec, nil
}
