// Package async provides utilities for parallel task execution.
//
// This package contains generic helpers for running multiple operations concurrently,
// collecting results, and handling errors. It's used by the controller to fan
// out independent per-cluster teardown work concurrently.
package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes multiple tasks in parallel and returns every error encountered.
// All tasks are started concurrently, and the function waits for all to complete.
// Each failing task's error is wrapped with the task's name, and the wrapped errors
// are returned joined with errors.Join after all tasks finish (nil if none failed).
//
// Example:
//
//	tasks := []Task{
//	    {Name: "vc-a1b2c3d", Func: func(ctx context.Context) error { return destroy(ctx, "vc-a1b2c3d") }},
//	    {Name: "vc-e4f5a6b", Func: func(ctx context.Context) error { return destroy(ctx, "vc-e4f5a6b") }},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	// Start all tasks
	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	// Wait for all tasks to complete and collect every error
	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("failed to reconcile %s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}
