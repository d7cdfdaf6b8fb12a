package service

import (
	"errors"
	"testing"

	"github.com/CZERTAINLY/schedrace/internal/model"
	"github.com/stretchr/testify/require"
)

func TestInvokerFire(t *testing.T) {
	t.Parallel()
	inv := &invoker{
		slot:    3,
		trigger: make(chan struct{}, 1),
		exited:  make(chan struct{}),
	}

	require.NoError(t, inv.fire())
	err := inv.fire()
	require.ErrorIs(t, err, model.ErrTriggerPending)
	require.EqualError(t, err, "invoker 3: invoker already has a pending trigger")

	<-inv.trigger
	inv.err = errors.New("permission denied")
	close(inv.exited)
	err = inv.fire()
	require.ErrorIs(t, err, model.ErrInvokerGone)
	require.EqualError(t, err, "invoker 3: invoker is gone: permission denied")
}

func TestInvokerLoop_GoneBeforeReport(t *testing.T) {
	t.Parallel()
	completions := make(chan model.Completion, 1)
	inv := newInvoker(t.Context(), 0, Command{Path: "does-not-exist-typo3"}, completions)

	require.NoError(t, inv.fire())
	c := <-completions
	require.Error(t, c.Err)

	select {
	case <-inv.exited:
	default:
		require.FailNow(t, "invoker reported its failure before exiting")
	}
	err := inv.fire()
	require.ErrorIs(t, err, model.ErrInvokerGone)
	require.Empty(t, inv.trigger)
}
