package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Pipeline applies a sequence of stages to every item received on a channel.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// Result counts the items that went through every stage and those halted by
// a failing step.
type Result struct {
	Processed int
	Failed    int
}

func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Process consumes items until in is closed. For each item:
//   - all steps in a stage start together and must finish before the next
//     stage begins;
//   - when any step fails its errors are logged and the remaining stages are
//     skipped for that item only.
//
// Cancelling ctx stops processing before the next item.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) Result {
	var res Result
	for item := range in {
		if ctx.Err() != nil {
			log.Printf("Pipeline stopped: %v", ctx.Err())
			break
		}
		if err := p.run(ctx, item); err != nil {
			res.Failed++
			continue
		}
		res.Processed++
	}
	return res
}

func (p *Pipeline[T]) run(ctx context.Context, item *T) error {
	for _, stage := range p.stages {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				if err := step(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(step)
		}
		wg.Wait() // stage barrier
		if err := errors.Join(errs...); err != nil {
			log.Printf("Step failed in stage %q: %v", stage.name, err)
			return err
		}
	}
	return nil
}
