package audit

import "encoding/json"

// EntryType identifies what produced an audit entry.
type EntryType string

const (
	TypeChange              EntryType = "change"
	TypeAlertReceived       EntryType = "alert_received"
	TypeRemediationStarted  EntryType = "remediation_started"
	TypeRemediationFinished EntryType = "remediation_finished"
)

// Entry is one line in the hash-chained JSONL audit log. Sequence numbers
// are strictly increasing and gapless; entries from different sources
// interleave by arrival order, not by event semantic time. Payload is kept
// as raw JSON so the bytes hashed into the chain are exactly the bytes
// verified later.
type Entry struct {
	Seq       uint64          `json:"seq"`
	Timestamp string          `json:"ts"`
	Type      EntryType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
}
