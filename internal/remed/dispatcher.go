package remed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/driftwatch/internal/audit"
)

// ErrUnknownAlertType is returned when no remediation action is mapped
// for an alert name. A configuration gap: logged and surfaced, never
// silently ignored and never defaulted to a destructive action.
var ErrUnknownAlertType = errors.New("unknown alert type")

// queueSize bounds the pending task backlog. A full queue during an
// incident storm suppresses new tasks instead of growing without bound.
const queueSize = 256

// Config holds dispatcher tuning.
type Config struct {
	RetryCeiling   int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	Workers        int
}

// startedPayload is the audit payload for a remediation_started entry.
type startedPayload struct {
	TaskID string `json:"task_id"`
	Target string `json:"target"`
	Alert  string `json:"alert"`
	Action string `json:"action"`
}

// finishedPayload is the audit payload for a remediation_finished entry.
// One entry is appended per attempt, not per task.
type finishedPayload struct {
	TaskID  string `json:"task_id"`
	Target  string `json:"target"`
	Alert   string `json:"alert"`
	Action  string `json:"action"`
	Attempt int    `json:"attempt"`
	Outcome string `json:"outcome"` // "succeeded", "failed", "suppressed"
	Error   string `json:"error,omitempty"`
}

// Dispatcher owns the authoritative (target, alert) -> task map and a
// bounded worker pool executing remediation actions. At most one task per
// key is ever Running; a duplicate alert arriving while one is in flight
// transitions directly to Suppressed.
type Dispatcher struct {
	mu    sync.Mutex
	table map[string]string // alert name -> playbook; closed, explicit
	tasks map[string]*Task  // Key(target, alert) -> latest task

	queue    chan *Task
	runner   Runner
	auditLog *audit.Log
	store    *Store // optional durable history
	logger   *slog.Logger
	cfg      Config
	notify   func(Task, string) // optional terminal-outcome hook
}

// NewDispatcher creates a dispatcher over the given action table.
// store may be nil; auditLog must not be.
func NewDispatcher(table map[string]string, runner Runner, auditLog *audit.Log, store *Store, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryCeiling < 1 {
		cfg.RetryCeiling = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Minute
	}
	t := make(map[string]string, len(table))
	for k, v := range table {
		t[k] = v
	}
	return &Dispatcher{
		table:    t,
		tasks:    make(map[string]*Task),
		queue:    make(chan *Task, queueSize),
		runner:   runner,
		auditLog: auditLog,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetNotify installs a hook called when a task reaches Succeeded or
// Failed, with the outcome name. Must be set before Run.
func (d *Dispatcher) SetNotify(fn func(Task, string)) {
	d.notify = fn
}

// UpdateTable atomically replaces the action table. Used by config
// hot-reload; in-flight tasks keep the action they were created with.
func (d *Dispatcher) UpdateTable(table map[string]string) {
	t := make(map[string]string, len(table))
	for k, v := range table {
		t[k] = v
	}
	d.mu.Lock()
	d.table = t
	d.mu.Unlock()
}

// Submit normalizes an accepted alert into a task and hands it to the
// worker pool. Returns the created task, or ErrUnknownAlertType when the
// alert name has no mapped action (no task is created). Never blocks on
// remediation work.
func (d *Dispatcher) Submit(a Alert) (*Task, error) {
	d.mu.Lock()
	playbook, ok := d.table[a.Name]
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlertType, a.Name)
	}

	key := Key(a.Target, a.Name)
	if existing := d.tasks[key]; existing != nil && !existing.State.Terminal() {
		task := newTask(a, playbook, StateSuppressed,
			fmt.Sprintf("remediation %s already %s for this target", existing.ID, existing.State))
		d.mu.Unlock()
		return task, d.recordSuppressed(task)
	}

	task := newTask(a, playbook, StatePending, "")
	d.tasks[key] = task
	d.mu.Unlock()

	if err := d.persist(task); err != nil {
		return task, err
	}

	select {
	case d.queue <- task:
		return task, nil
	default:
		// Backlog full; suppress rather than queue unboundedly.
		d.transition(task, StateSuppressed, "dispatcher queue full")
		return task, d.recordSuppressed(task)
	}
}

// Task returns the latest task for a (target, alert) key, or nil.
func (d *Dispatcher) Task(target, alertName string) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t := d.tasks[Key(target, alertName)]; t != nil {
		cp := *t
		return &cp
	}
	return nil
}

// Run consumes the task queue with the configured worker pool. Blocks
// until ctx is cancelled. Returns non-nil only on audit write failure,
// which is fatal to the process: the first failing worker cancels the
// rest of the pool so the error surfaces immediately.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, d.cfg.Workers)

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-d.queue:
					if err := d.execute(ctx, task); err != nil {
						errCh <- err
						cancel()
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// execute drives one task from Pending to a terminal state. Action
// failures are retried with exponential backoff up to the ceiling; each
// attempt leaves a remediation_finished audit entry. The returned error
// is non-nil only for audit write failures.
func (d *Dispatcher) execute(ctx context.Context, task *Task) error {
	d.transition(task, StateRunning, "")
	if err := d.persist(task); err != nil {
		return err
	}
	if _, err := d.auditLog.Append(audit.TypeRemediationStarted, startedPayload{
		TaskID: task.ID,
		Target: task.Target,
		Alert:  task.AlertName,
		Action: task.Action,
	}); err != nil {
		return err
	}

	extraVars := map[string]string{
		"alert_type": task.AlertName,
		"instance":   task.Target,
		"task_id":    task.ID,
		"timestamp":  task.CreatedAt.Format(time.RFC3339),
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryCeiling; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		err := d.runner.Run(attemptCtx, task.Action, task.Target, extraVars)
		cancel()

		d.mu.Lock()
		task.Attempts = attempt
		task.UpdatedAt = time.Now().UTC()
		d.mu.Unlock()

		if err == nil {
			d.transition(task, StateSucceeded, "")
			if perr := d.persist(task); perr != nil {
				return perr
			}
			d.notifyTerminal(task, "succeeded")
			_, aerr := d.auditLog.Append(audit.TypeRemediationFinished, finishedPayload{
				TaskID: task.ID, Target: task.Target, Alert: task.AlertName,
				Action: task.Action, Attempt: attempt, Outcome: "succeeded",
			})
			return aerr
		}

		lastErr = err
		d.logger.Warn("remediation attempt failed",
			"task_id", task.ID, "target", task.Target, "alert", task.AlertName,
			"attempt", attempt, "error", err)
		if _, aerr := d.auditLog.Append(audit.TypeRemediationFinished, finishedPayload{
			TaskID: task.ID, Target: task.Target, Alert: task.AlertName,
			Action: task.Action, Attempt: attempt, Outcome: "failed", Error: err.Error(),
		}); aerr != nil {
			return aerr
		}

		if ctx.Err() != nil || attempt == d.cfg.RetryCeiling {
			break
		}
		backoff := d.cfg.BackoffBase << (attempt - 1)
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}

	// Ceiling exceeded: Failed permanently; a new alert must re-trigger.
	d.transition(task, StateFailed, errString(lastErr))
	if err := d.persist(task); err != nil {
		return err
	}
	d.notifyTerminal(task, "failed")
	return nil
}

func (d *Dispatcher) notifyTerminal(task *Task, outcome string) {
	if d.notify == nil {
		return
	}
	d.mu.Lock()
	cp := *task
	d.mu.Unlock()
	d.notify(cp, outcome)
}

func (d *Dispatcher) transition(task *Task, state State, reason string) {
	d.mu.Lock()
	task.State = state
	task.Reason = reason
	task.UpdatedAt = time.Now().UTC()
	d.mu.Unlock()
}

func (d *Dispatcher) recordSuppressed(task *Task) error {
	if err := d.persist(task); err != nil {
		return err
	}
	_, err := d.auditLog.Append(audit.TypeRemediationFinished, finishedPayload{
		TaskID: task.ID, Target: task.Target, Alert: task.AlertName,
		Action: task.Action, Outcome: "suppressed", Error: task.Reason,
	})
	return err
}

func (d *Dispatcher) persist(task *Task) error {
	if d.store == nil {
		return nil
	}
	d.mu.Lock()
	cp := *task
	d.mu.Unlock()
	if err := d.store.Save(&cp); err != nil {
		// Task history is advisory; the audit log is the record of truth.
		d.logger.Error("task store write failed", "task_id", cp.ID, "error", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
