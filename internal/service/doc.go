// Package service reproduces scheduler races by running the target command
// in synchronized bursts and checking the persisted state after each one.
//
// Overview
// The Supervisor owns the round loop. Every round it asks the Pool for one
// burst, waits for all completions, then asks a Checker whether any task was
// left in the executing state. The loop ends on the first violation, on an
// infrastructure failure, on cancellation or after an optional round limit.
//
// A Pool keeps N persistent invokers. Each invoker owns a trigger channel with
// room for one pending trigger and reports into a completion channel shared by
// the whole pool, so completions arrive in the order the processes finished.
//
// Runner is a thin wrapper around os/exec:
//   - Run starts the process with stdin bound to the null device
//   - Feed writes input to stdin and captures stdout and stderr
//   - a non-zero exit is a result, only a failed start or wait is an error
//
// Data flow:
//
//	Supervisor             Pool                 invoker{slot}
//	    |                    |                       |
//	    | Burst() ---------->| fire() x N ---------->| Run()
//	    |                    |<----- Completion -----| (process exits)
//	    |<-- []Completion ---|                       |
//	    | Check() -> Checker |                       |
//
// Invariants:
//   - A burst triggers every invoker exactly once.
//   - A round reports N completions before the state is checked.
//   - An invoker that fails to start its process is gone for good and the
//     next burst fails with model.ErrInvokerGone.
package service
