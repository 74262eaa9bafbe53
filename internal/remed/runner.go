package remed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrRemediationTimeout marks an attempt that exceeded its deadline.
// Counts as a failed attempt eligible for retry.
var ErrRemediationTimeout = errors.New("remediation attempt timed out")

// ErrActionFailed marks an attempt the orchestration tool reported as
// failed. Transient; retried up to the ceiling.
var ErrActionFailed = errors.New("remediation action failed")

// Runner invokes one remediation action against a target. The per-attempt
// deadline arrives via ctx.
type Runner interface {
	Run(ctx context.Context, playbook, target string, extraVars map[string]string) error
}

// PlaybookRunner executes actions through an orchestration command
// (ansible-playbook in the operational deployment), limited to the
// affected target host.
type PlaybookRunner struct {
	Command     string
	Inventory   string
	PlaybookDir string
}

// Run executes the playbook for the target. The command's exit status is
// the action outcome; stderr is folded into the returned error.
func (r *PlaybookRunner) Run(ctx context.Context, playbook, target string, extraVars map[string]string) error {
	args := []string{}
	if r.Inventory != "" {
		args = append(args, "-i", r.Inventory)
	}
	args = append(args, "--limit", target, filepath.Join(r.PlaybookDir, playbook))
	if len(extraVars) > 0 {
		vars, err := json.Marshal(extraVars)
		if err != nil {
			return fmt.Errorf("marshal extra vars: %w", err)
		}
		args = append(args, "--extra-vars", string(vars))
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s on %s", ErrRemediationTimeout, playbook, target)
	}
	detail := strings.TrimSpace(stderr.String())
	if len(detail) > 500 {
		detail = detail[:500]
	}
	if detail != "" {
		return fmt.Errorf("%w: %s on %s: %v: %s", ErrActionFailed, playbook, target, err, detail)
	}
	return fmt.Errorf("%w: %s on %s: %v", ErrActionFailed, playbook, target, err)
}
