// Package remed maps received alerts to remediation actions and runs them
// through the external orchestration tool, at most one in flight per
// (target, alert) key, with bounded retries and a full audit trail.
package remed

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a remediation task.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateSuppressed State = "suppressed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSuppressed
}

// Alert is a normalized alert notification received from the external
// alerting system. Never generated internally.
type Alert struct {
	Name     string    `json:"name"`
	Severity string    `json:"severity"`
	Target   string    `json:"target"`
	FiredAt  time.Time `json:"fired_at"`
	Evidence string    `json:"evidence"`
}

// Task is one remediation attempt sequence, keyed by (target, alert name).
type Task struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	AlertName string    `json:"alert_name"`
	Action    string    `json:"action"`
	State     State     `json:"state"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the dispatcher map key for a target and alert name.
func Key(target, alertName string) string {
	return target + "|" + alertName
}

func newTask(a Alert, action string, state State, reason string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Target:    a.Target,
		AlertName: a.Name,
		Action:    action,
		State:     state,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
