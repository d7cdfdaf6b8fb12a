package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// Parallelism returns the number of invokers matching the host.
func Parallelism() (int, error) {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 0, model.ErrNoParallelism
	}
	return n, nil
}

// Pool owns a fixed set of invokers and drives them in lockstep bursts.
// Burst and Close must be called from a single goroutine.
type Pool struct {
	invokers    []*invoker
	completions chan model.Completion
	closeOnce   sync.Once
	broken      error // set by the first failed burst
}

// NewPool starts size invokers of cmd. The invokers live until Close or
// until ctx is done; a done ctx also kills programs still running.
func NewPool(ctx context.Context, size int, cmd Command) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size %d: %w", size, model.ErrNoParallelism)
	}
	p := &Pool{
		invokers:    make([]*invoker, 0, size),
		completions: make(chan model.Completion, size),
	}
	for slot := range size {
		p.invokers = append(p.invokers, newInvoker(ctx, slot, cmd, p.completions))
	}
	return p, nil
}

func (p *Pool) Size() int {
	return len(p.invokers)
}

// Burst triggers every invoker, then waits until each has reported one
// completion. Completions are returned in arrival order. Any invoker
// unable to run the program aborts the burst with model.ErrInvokerGone.
//
// A failed burst may leave completions in flight, so it breaks the pool and
// every later Burst fails at once with the same error.
func (p *Pool) Burst(ctx context.Context) ([]model.Completion, error) {
	if p.broken != nil {
		return nil, p.broken
	}
	ret, err := p.burst(ctx)
	if err != nil {
		p.broken = err
	}
	return ret, err
}

func (p *Pool) burst(ctx context.Context) ([]model.Completion, error) {
	for _, inv := range p.invokers {
		if err := inv.fire(); err != nil {
			return nil, err
		}
	}

	ret := make([]model.Completion, 0, len(p.invokers))
	for range p.invokers {
		select {
		case <-ctx.Done():
			return ret, ctx.Err()
		case c := <-p.completions:
			if c.Err != nil {
				return ret, fmt.Errorf("invoker %d: %w: %w", c.Slot, model.ErrInvokerGone, c.Err)
			}
			ret = append(ret, c)
		}
	}
	return ret, nil
}

// Close stops the invokers and waits for them to exit.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		for _, inv := range p.invokers {
			close(inv.trigger)
		}
		for _, inv := range p.invokers {
			<-inv.exited
		}
	})
}
