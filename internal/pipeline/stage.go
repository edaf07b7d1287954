// Package pipeline runs items through sequential stages whose steps execute
// in parallel. The cleaner runs each GPX job through it.
package pipeline

import (
	"context"
)

// Step is one operation on an item. Steps of the same stage run concurrently
// on the same item, so they must not write the same fields.
//
//	func load(ctx context.Context, job *Job) error { job.Points = ...; return nil }
type Step[T any] func(ctx context.Context, item *T) error

// Stage groups steps that are independent of each other. The pipeline waits
// for every step of a stage before starting the next one.
type Stage[T any] struct {
	name  string
	steps []Step[T]
}

// NewStage constructs a Stage from the provided steps. The name appears in
// the log line of a failing step.
func NewStage[T any](name string, steps ...Step[T]) Stage[T] {
	return Stage[T]{name: name, steps: steps}
}
