// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent bounds how many tasks run at once.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work. It receives the context it should stop on.
type Task func(ctx context.Context) error

// WorkerPool runs tasks with at most a fixed number in flight.
type WorkerPool struct {
	limit int
}

// NewWorkerPool creates a pool of limit workers; a non-positive limit means one.
func NewWorkerPool(limit int) *WorkerPool {
	if limit <= 0 {
		limit = 1
	}
	return &WorkerPool{limit: limit}
}

// Limit is the number of tasks allowed in flight.
func (wp *WorkerPool) Limit() int {
	return wp.limit
}

// Run executes the tasks and returns the first error. The context passed to the
// tasks is cancelled as soon as one fails, and tasks not yet started are skipped.
func (wp *WorkerPool) Run(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.limit)
	for _, task := range tasks {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return task(groupCtx)
		})
	}
	return g.Wait()
}

// RunAll executes every task regardless of failures and returns the errors in
// task order, nil entries removed. A task that could not start because ctx was
// done reports ctx.Err().
func (wp *WorkerPool) RunAll(ctx context.Context, tasks ...Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]error, len(tasks))
	g := new(errgroup.Group)
	g.SetLimit(wp.limit)
	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = task(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
