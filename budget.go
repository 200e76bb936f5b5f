package dotliquid

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"
)

// budget bounds the work of one render: the number of loop iterations,
// the wall-clock time and the lifetime of the render's context.Context.
type budget struct {
	initial   int64
	remaining atomic.Int64
	timeout   time.Duration
	started   atomic.Int64 // unix nanoseconds
	ctx       context.Context
}

func newBudget(ctx context.Context, maxIterations int, timeout time.Duration) *budget {
	if ctx == nil {
		ctx = context.Background()
	}
	limit := int64(maxIterations)
	if maxIterations <= 0 {
		limit = math.MaxInt64
	}
	b := &budget{initial: limit, timeout: timeout, ctx: ctx}
	b.remaining.Store(limit)
	b.restart()
	return b
}

// consume takes amount iterations from the budget.
func (b *budget) consume(amount int64) error {
	if amount == 0 || b.initial == math.MaxInt64 {
		return nil
	}
	if b.remaining.Add(-amount) < 0 {
		return NewError(ErrMaximumIterations, "Render Error - Maximum number of iterations exceeded")
	}
	return nil
}

// left returns the iterations still available, or -1 when the budget is
// unbounded.
func (b *budget) left() int64 {
	if b.initial == math.MaxInt64 {
		return -1
	}
	return max(b.remaining.Load(), 0)
}

func (b *budget) consumed() int64 {
	remaining := b.remaining.Load()
	if remaining <= 0 {
		return b.initial
	}
	return b.initial - remaining
}

func (b *budget) restart() {
	b.started.Store(time.Now().UnixNano())
}

// check fails once the timeout has elapsed since the last restart, or
// when the render's context is done.
func (b *budget) check() error {
	switch err := b.ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTimeout, "The operation has timed out.").WithCause(err)
	case err != nil:
		return NewError(ErrCancelled, "The operation was canceled.").WithCause(err)
	}
	if b.timeout <= 0 {
		return nil
	}
	if time.Since(time.Unix(0, b.started.Load())) > b.timeout {
		return NewError(ErrTimeout, "The operation has timed out.").WithCause(context.DeadlineExceeded)
	}
	return nil
}
