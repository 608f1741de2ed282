package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyBatch is returned before any work when there are no items.
var ErrEmptyBatch = errors.New("batch has no items")

// Item is the outcome for one input. Err is nil on success.
type Item[T any] struct {
	Index int
	Value T
	Err   error
}

// Result holds one Item per input, in input order.
type Result[T any] struct {
	Items        []Item[T]
	SuccessCount int
}

// Summary is the "N/M completed" line shown to users.
func (r Result[T]) Summary() string {
	return fmt.Sprintf("%d/%d completed", r.SuccessCount, len(r.Items))
}

// Options controls a Run.
type Options[In, Out any] struct {
	// Name labels log lines.
	Name string

	// Parallelism is the number of items in flight. Values below 1 mean
	// sequential processing.
	Parallelism int

	// Persist, when set, is called right after an item succeeds. Its return
	// value replaces the op result so large buffers can be released before
	// the next item starts. A Persist error fails the item.
	Persist func(ctx context.Context, index int, v Out) (Out, error)

	// OnError is called for every failed item.
	OnError func(index int, in In, err error)

	Log *zap.Logger
}

// Run calls op for every item. A failing item is recorded and never stops
// its siblings; only an empty input aborts the batch.
func Run[In, Out any](ctx context.Context, items []In, op func(ctx context.Context, index int, in In) (Out, error), opts Options[In, Out]) (Result[Out], error) {
	if len(items) == 0 {
		return Result[Out]{}, ErrEmptyBatch
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Name != "" {
		log = log.With(zap.String("batch", opts.Name))
	}

	res := Result[Out]{Items: make([]Item[Out], len(items))}

	var g errgroup.Group
	g.SetLimit(max(1, opts.Parallelism))
	for i := range items {
		g.Go(func() error {
			res.Items[i] = runOne(ctx, i, items[i], op, opts)
			return nil
		})
	}
	_ = g.Wait()

	for i, it := range res.Items {
		if it.Err == nil {
			res.SuccessCount++
			continue
		}
		log.Warn("item failed", zap.Int("index", i), zap.Error(it.Err))
		if opts.OnError != nil {
			opts.OnError(i, items[i], it.Err)
		}
	}
	log.Info(res.Summary())
	return res, nil
}

func runOne[In, Out any](ctx context.Context, i int, in In, op func(context.Context, int, In) (Out, error), opts Options[In, Out]) (it Item[Out]) {
	it.Index = i
	defer func() {
		if r := recover(); r != nil {
			var zero Out
			it.Value = zero
			it.Err = fmt.Errorf("item %d panicked: %v", i, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		it.Err = err
		return it
	}
	v, err := op(ctx, i, in)
	if err != nil {
		it.Err = err
		return it
	}
	if opts.Persist != nil {
		v, err = opts.Persist(ctx, i, v)
		if err != nil {
			it.Err = fmt.Errorf("persist item %d: %w", i, err)
			return it
		}
	}
	it.Value = v
	return it
}
