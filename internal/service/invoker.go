package service

import (
	"context"
	"fmt"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// invoker is a persistent worker executing the target once per trigger.
//
// The trigger channel has room for exactly one pending trigger and only the
// Pool sends on it. Completions go to the channel shared by the Pool, sized
// so that a send never blocks while the Pool respects the protocol.
type invoker struct {
	slot    int
	cmd     Command
	trigger chan struct{}
	exited  chan struct{}
	err     error // written before exited is closed
}

func newInvoker(ctx context.Context, slot int, cmd Command, completions chan<- model.Completion) *invoker {
	inv := &invoker{
		slot:    slot,
		cmd:     cmd,
		trigger: make(chan struct{}, 1),
		exited:  make(chan struct{}),
	}
	go inv.loop(ctx, completions)
	return inv
}

func (i *invoker) loop(ctx context.Context, completions chan<- model.Completion) {
	for range i.trigger {
		res := Run(ctx, i.cmd)
		c := model.Completion{
			Slot:    i.slot,
			Started: res.Started,
			Elapsed: res.Elapsed(),
			State:   res.State,
			Err:     res.Err,
		}
		if res.Err != nil {
			// gone before reporting, so no trigger lands in a dead buffer
			i.err = fmt.Errorf("running %s: %w", i.cmd.Path, res.Err)
			close(i.exited)
			completions <- c
			return
		}
		completions <- c
	}
	close(i.exited)
}

// fire hands one trigger to the worker without blocking.
func (i *invoker) fire() error {
	select {
	case <-i.exited:
		if i.err != nil {
			return fmt.Errorf("invoker %d: %w: %w", i.slot, model.ErrInvokerGone, i.err)
		}
		return fmt.Errorf("invoker %d: %w", i.slot, model.ErrInvokerGone)
	default:
	}

	select {
	case i.trigger <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("invoker %d: %w", i.slot, model.ErrTriggerPending)
	}
}
