package controller

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gofrs/flock"

	"github.com/vurm-project/vurm/internal/vurmerr"
)

// editMode selects whether updateSchedulerConfig inserts or removes a
// cluster's fragment.
type editMode int

const (
	editAdd editMode = iota
	editRemove
)

// updateSchedulerConfig performs the exclusive-locked read/modify/write
// cycle against the scheduler config file: remove the first occurrence of
// key (skipped when key is empty, as it is on add), then, on editAdd,
// append payload. The lock is acquired on a
// goroutine and awaited so the caller's context can still cancel the
// wait without blocking whatever else shares ctx.
//
// After writing, if notify, the reconfigure shell command runs; a nonzero
// exit becomes a ReconfigurationError.
func (c *Controller) updateSchedulerConfig(ctx context.Context, mode editMode, key, payload string, notify bool) error {
	type lockResult struct {
		lock *flock.Flock
		err  error
	}
	resultCh := make(chan lockResult, 1)

	lock := flock.New(c.schedulerConfigPath + ".lock")
	go func() {
		locked, err := lock.TryLockContext(ctx, lockRetryInterval)
		if err != nil {
			resultCh <- lockResult{err: fmt.Errorf("acquire scheduler config lock: %w", err)}
			return
		}
		if !locked {
			resultCh <- lockResult{err: fmt.Errorf("could not acquire scheduler config lock")}
			return
		}
		resultCh <- lockResult{lock: lock}
	}()

	var lr lockResult
	select {
	case lr = <-resultCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	if lr.err != nil {
		return lr.err
	}
	defer lock.Unlock()

	if err := c.rewriteSchedulerConfig(mode, key, payload); err != nil {
		return err
	}

	if notify {
		if err := c.runReconfigureHook(ctx); err != nil {
			return err
		}
	}

	return nil
}

// rewriteSchedulerConfig performs the actual read -> remove-key ->
// append-payload -> truncate+write, called only while holding the
// exclusive lock.
func (c *Controller) rewriteSchedulerConfig(mode editMode, key, payload string) error {
	contents, err := os.ReadFile(c.schedulerConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read scheduler config: %w", err)
	}

	text := string(contents)
	if key != "" {
		text = strings.Replace(text, key, "", 1)
	}

	if mode == editAdd {
		if !strings.HasSuffix(text, "\n") && text != "" {
			text += "\n"
		}
		text += payload
	}

	if err := os.WriteFile(c.schedulerConfigPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write scheduler config: %w", err)
	}

	return nil
}

// runReconfigureHook executes the configured reconfigure shell command and
// maps a nonzero exit to ReconfigurationError.
func (c *Controller) runReconfigureHook(ctx context.Context) error {
	if c.reconfigureCmd == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.reconfigureCmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		exitCode = exitErr.ExitCode()
	}

	c.metrics.IncReconfigureFailure()
	return &vurmerr.ReconfigurationError{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
