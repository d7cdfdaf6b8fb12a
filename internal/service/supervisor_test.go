package service_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/schedrace/internal/model"
	"github.com/CZERTAINLY/schedrace/internal/service"

	"github.com/stretchr/testify/require"
)

type fakePool struct {
	size    int
	bursts  int
	err     error
	onBurst func()
}

func (p *fakePool) Size() int { return p.size }

func (p *fakePool) Burst(_ context.Context) ([]model.Completion, error) {
	p.bursts++
	if p.onBurst != nil {
		p.onBurst()
	}
	if p.err != nil {
		return nil, p.err
	}
	ret := make([]model.Completion, 0, p.size)
	for slot := p.size - 1; slot >= 0; slot-- {
		ret = append(ret, model.Completion{Slot: slot, Elapsed: time.Duration(slot+1) * time.Millisecond})
	}
	return ret, nil
}

// checkerFunc returns its results in order and repeats the last one.
type checkerFunc func(ctx context.Context) ([]model.TaskRow, error)

func (f checkerFunc) Check(ctx context.Context) ([]model.TaskRow, error) { return f(ctx) }

func script(results ...[]model.TaskRow) (service.Checker, *int) {
	var calls int
	return checkerFunc(func(context.Context) ([]model.TaskRow, error) {
		r := results[min(calls, len(results)-1)]
		calls++
		return r, nil
	}), &calls
}

func TestSupervisor(t *testing.T) {
	t.Parallel()

	t.Run("clean round advances", func(t *testing.T) {
		t.Parallel()
		pool := &fakePool{size: 4}
		checker, calls := script(nil)
		var stdout, stderr bytes.Buffer
		sup := service.NewSupervisor(pool, checker).
			WithOutput(&stdout, &stderr).
			WithMaxRounds(1)

		require.NoError(t, sup.Do(t.Context()))
		require.Equal(t, uint64(2), sup.Round())
		require.Equal(t, 1, pool.bursts)
		require.Equal(t, 1, *calls)
		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		require.Len(t, lines, 5)
		require.Equal(t, "starting round 1", lines[0])
		require.Equal(t, "\tinvocation complete with status unknown after 4 ms", lines[1])
		require.Empty(t, stderr.String())
	})

	t.Run("rounds increase by one", func(t *testing.T) {
		t.Parallel()
		var rounds []uint64
		checker, _ := script(nil)
		sup := service.NewSupervisor(&fakePool{size: 1}, checker).
			WithOutput(&bytes.Buffer{}, &bytes.Buffer{}).
			WithFirstRound(5).
			WithMaxRounds(3).
			WithObserver(func(_ context.Context, o model.RoundOutcome) {
				require.Len(t, o.Completions, 1)
				rounds = append(rounds, o.Round)
			})
		require.NoError(t, sup.Do(t.Context()))
		require.Equal(t, []uint64{5, 6, 7}, rounds)
		require.Equal(t, uint64(8), sup.Round())
	})

	t.Run("counter wraps", func(t *testing.T) {
		t.Parallel()
		checker, _ := script(nil)
		var stdout bytes.Buffer
		sup := service.NewSupervisor(&fakePool{size: 1}, checker).
			WithOutput(&stdout, &bytes.Buffer{}).
			WithFirstRound(math.MaxUint64).
			WithMaxRounds(2)
		require.NoError(t, sup.Do(t.Context()))
		require.Equal(t, uint64(1), sup.Round())
		require.Contains(t, stdout.String(), "starting round 18446744073709551615\n")
		require.Contains(t, stdout.String(), "starting round 0\n")
	})

	t.Run("violation", func(t *testing.T) {
		t.Parallel()
		pool := &fakePool{size: 2}
		checker, calls := script(nil, nil, []model.TaskRow{{ID: 17, InFlight: true}, {ID: 42, InFlight: true}})
		var stdout, stderr bytes.Buffer
		sup := service.NewSupervisor(pool, checker).WithOutput(&stdout, &stderr)

		err := sup.Do(t.Context())
		require.ErrorIs(t, err, model.ErrViolation)
		require.EqualError(t, err, "round 3: 2 task(s): task left in executing state")
		require.Equal(t, 3, pool.bursts)
		require.Equal(t, 3, *calls)
		require.Equal(t, uint64(3), sup.Round())
		require.Equal(t,
			"Found task that is still being executed: 17\nFound task that is still being executed: 42\n",
			stderr.String())
	})

	t.Run("query failure aborts", func(t *testing.T) {
		t.Parallel()
		pool := &fakePool{size: 2}
		checker := checkerFunc(func(context.Context) ([]model.TaskRow, error) {
			return nil, errors.Join(model.ErrQueryFailed, errors.New("connection refused"))
		})
		sup := service.NewSupervisor(pool, checker).WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
		err := sup.Do(t.Context())
		require.ErrorIs(t, err, model.ErrQueryFailed)
		require.Contains(t, err.Error(), "connection refused")
		require.NotErrorIs(t, err, model.ErrViolation)
		require.Equal(t, 1, pool.bursts)
	})

	t.Run("broken pool aborts", func(t *testing.T) {
		t.Parallel()
		pool := &fakePool{size: 2, err: model.ErrInvokerGone}
		checker, calls := script(nil)
		sup := service.NewSupervisor(pool, checker).WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
		err := sup.Do(t.Context())
		require.ErrorIs(t, err, model.ErrInvokerGone)
		require.Zero(t, *calls)
	})

	t.Run("interrupt", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		pool := &fakePool{size: 2}
		pool.onBurst = func() {
			if pool.bursts == 3 {
				cancel()
				pool.err = context.Canceled
			}
		}
		checker, _ := script(nil)
		sup := service.NewSupervisor(pool, checker).WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, sup.Do(ctx))
		require.Equal(t, 3, pool.bursts)
		require.Equal(t, uint64(3), sup.Round())
	})
}

func TestSupervisor_Pool(t *testing.T) {
	t.Parallel()
	cmd, _ := rendezvousCmd(t, 4)
	pool, err := service.NewPool(t.Context(), 4, cmd)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	checker, calls := script(nil)
	var stdout bytes.Buffer
	var outcomes []model.RoundOutcome
	sup := service.NewSupervisor(pool, checker).
		WithOutput(&stdout, &bytes.Buffer{}).
		WithMaxRounds(2).
		WithObserver(func(_ context.Context, o model.RoundOutcome) {
			outcomes = append(outcomes, o)
		})
	require.NoError(t, sup.Do(t.Context()))
	require.Equal(t, 2, *calls)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.Len(t, o.Completions, pool.Size())
		require.True(t, o.Clean())
		// no invocation finished before the last one started
		var longest time.Duration
		for _, c := range o.Completions {
			require.False(t, c.Started.IsZero())
			longest = max(longest, c.Elapsed)
		}
		require.Less(t, o.StartSpread(), longest)
	}
	require.Equal(t, 2, strings.Count(stdout.String(), "starting round"))
	require.Equal(t, 8, strings.Count(stdout.String(), "complete with status exit status 0"))
}
