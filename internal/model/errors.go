package model

import (
	"errors"
)

var (
	// ErrViolation is returned once a task is found still executing after
	// a full burst. It is the finding the harness exists for, not a fault.
	ErrViolation = errors.New("task left in executing state")

	ErrNoParallelism  = errors.New("cannot determine available parallelism")
	ErrInvokerGone    = errors.New("invoker is gone")
	ErrTriggerPending = errors.New("invoker already has a pending trigger")
	ErrQueryFailed    = errors.New("state query failed")
	ErrMalformedRow   = errors.New("malformed state row")
)
