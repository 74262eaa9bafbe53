// Package audit implements the append-only, hash-chained audit trail.
// Every change event, received alert, and remediation outcome lands here;
// each entry's prev_hash is the SHA-256 of the previous line, so truncation,
// reordering, or in-place edits are detectable without a separate integrity
// subsystem. A failed append is fatal to the caller: an audit trail that
// silently stops recording is worse than a crash.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the wire format for entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Log is an append-only JSONL audit log with SHA-256 hash chaining.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	seq      uint64
	mu       sync.Mutex
}

// Open opens (or creates) an audit log file for appending.
// If the file already exists, it reads the last line to recover the
// chain tail and the next sequence number.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash
	var seq uint64

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			var last Entry
			if err := json.Unmarshal(lastLine, &last); err != nil {
				return nil, fmt.Errorf("audit: parse chain tail: %w", err)
			}
			prevHash = HashLine(lastLine)
			seq = last.Seq
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
		seq:      seq,
	}, nil
}

// Append serializes the payload, assigns the next sequence number,
// chains and persists the entry, then returns it. Safe for concurrent
// callers; entries interleave by arrival order. Any error here must be
// treated as fatal by the caller.
func (l *Log) Append(entryType EntryType, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Seq:       l.seq + 1,
		Timestamp: time.Now().UTC().Format(TimestampFormat),
		Type:      entryType,
		Payload:   raw,
		PrevHash:  l.prevHash,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	l.seq = entry.Seq
	return entry, nil
}

// Seq returns the sequence number of the last appended entry.
func (l *Log) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
