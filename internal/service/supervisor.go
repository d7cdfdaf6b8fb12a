package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/schedrace/internal/log"
	"github.com/CZERTAINLY/schedrace/internal/model"
)

// Burster runs one synchronized burst of target invocations.
type Burster interface {
	Size() int
	Burst(ctx context.Context) ([]model.Completion, error)
}

// Checker reports tasks left in flight in the persisted state.
type Checker interface {
	Check(ctx context.Context) ([]model.TaskRow, error)
}

type ObserverFunc func(ctx context.Context, outcome model.RoundOutcome)

// Supervisor runs rounds of burst followed by a consistency check until a
// violation shows up, the context is done or the optional round limit is
// reached. The round counter is owned by Do and wraps around on overflow.
type Supervisor struct {
	pool      Burster
	checker   Checker
	stdout    io.Writer
	stderr    io.Writer
	round     uint64
	maxRounds uint64
	observer  ObserverFunc
}

func NewSupervisor(pool Burster, checker Checker) *Supervisor {
	return &Supervisor{
		pool:    pool,
		checker: checker,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		round:   1,
	}
}

// WithOutput redirects the progress report and the violation report.
func (s *Supervisor) WithOutput(stdout, stderr io.Writer) *Supervisor {
	s.stdout = stdout
	s.stderr = stderr
	return s
}

func (s *Supervisor) WithFirstRound(round uint64) *Supervisor {
	s.round = round
	return s
}

// WithMaxRounds makes Do return nil after n clean rounds, 0 means never.
func (s *Supervisor) WithMaxRounds(n uint64) *Supervisor {
	s.maxRounds = n
	return s
}

func (s *Supervisor) WithObserver(f ObserverFunc) *Supervisor {
	s.observer = f
	return s
}

// Round returns the number of the next round to run.
func (s *Supervisor) Round() uint64 {
	return s.round
}

// Do runs the round loop.
//
// Returns:
//   - an error wrapping model.ErrViolation when a task is left in flight,
//   - any infrastructure failure as is, without attempting another round,
//   - nil once ctx is done or the round limit is reached.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "workers", s.pool.Size(), "round", s.round)
	var clean uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		outcome, err := s.RunRound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.InfoContext(ctx, "interrupted", "round", s.round)
				return nil
			}
			return err
		}
		if !outcome.Clean() {
			return fmt.Errorf("round %d: %d task(s): %w", outcome.Round, len(outcome.Violations), model.ErrViolation)
		}

		s.round++ // wraps to 0 after math.MaxUint64
		clean++
		if s.maxRounds != 0 && clean >= s.maxRounds {
			slog.InfoContext(ctx, "round limit reached", "rounds", clean)
			return nil
		}
	}
}

// RunRound runs a single burst and check and reports both.
func (s *Supervisor) RunRound(ctx context.Context) (model.RoundOutcome, error) {
	outcome := model.RoundOutcome{Round: s.round}
	ctx = log.ContextAttrs(ctx, slog.Uint64("round", s.round))

	if _, err := fmt.Fprintf(s.stdout, "starting round %d\n", s.round); err != nil {
		return outcome, fmt.Errorf("writing to stdout: %w", err)
	}

	completions, err := s.pool.Burst(ctx)
	if err != nil {
		return outcome, fmt.Errorf("burst: %w", err)
	}
	outcome.Completions = completions
	for _, c := range completions {
		_, err := fmt.Fprintf(s.stdout, "\tinvocation complete with status %s after %d ms\n",
			c.Status(), c.Elapsed.Milliseconds())
		if err != nil {
			return outcome, fmt.Errorf("writing to stdout: %w", err)
		}
		slog.DebugContext(ctx, "invocation complete",
			"slot", c.Slot,
			"status", c.Status(),
			"success", c.Success(),
			"started", c.Started,
			"elapsed", c.Elapsed,
		)
	}

	violations, err := s.checker.Check(ctx)
	if err != nil {
		return outcome, fmt.Errorf("check: %w", err)
	}
	outcome.Violations = violations
	for _, v := range violations {
		if _, err := fmt.Fprintf(s.stderr, "Found task that is still being executed: %d\n", v.ID); err != nil {
			return outcome, fmt.Errorf("writing to stderr: %w", err)
		}
	}
	slog.DebugContext(ctx, "round done",
		"completions", len(completions),
		"start_spread", outcome.StartSpread(),
		"violations", len(violations),
	)

	if s.observer != nil {
		s.observer(ctx, outcome)
	}
	return outcome, nil
}
