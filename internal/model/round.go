package model

import (
	"os"
	"time"
)

// Completion is the outcome of one target invocation. Err is set only when
// the program could not be started or waited on; a program exiting with a
// non-zero code still yields a nil Err and a State describing the exit.
type Completion struct {
	Slot    int
	Started time.Time
	Elapsed time.Duration
	State   *os.ProcessState
	Err     error
}

// Status renders the exit status the way it is reported per round.
func (c Completion) Status() string {
	switch {
	case c.Err != nil:
		return "error: " + c.Err.Error()
	case c.State == nil:
		return "unknown"
	default:
		return c.State.String()
	}
}

// Success reports whether the program ran and exited with code 0.
func (c Completion) Success() bool {
	return c.Err == nil && c.State != nil && c.State.Success()
}

// TaskRow is one task as seen by the state query.
type TaskRow struct {
	ID       uint64
	InFlight bool // serialized execution state is present
}

// RoundOutcome summarizes one burst plus the check following it.
type RoundOutcome struct {
	Round       uint64
	Completions []Completion // arrival order
	Violations  []TaskRow
}

func (o RoundOutcome) Clean() bool {
	return len(o.Violations) == 0
}

// StartSpread is the time between the first and the last invocation start
// of the burst. A wide spread means the invocations barely overlapped.
func (o RoundOutcome) StartSpread() time.Duration {
	if len(o.Completions) == 0 {
		return 0
	}
	first, last := o.Completions[0].Started, o.Completions[0].Started
	for _, c := range o.Completions[1:] {
		if c.Started.Before(first) {
			first = c.Started
		}
		if c.Started.After(last) {
			last = c.Started
		}
	}
	return last.Sub(first)
}
