package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// Command describes one execution of an external program.
type Command struct {
	Path    string
	Args    []string
	Env     []string // appended to the inherited environment
	Timeout time.Duration
	Stdout  io.Writer // nil discards
	Stderr  io.Writer // nil discards
}

type Result struct {
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Stdout  *bytes.Buffer // captured by Feed only
	Stderr  *bytes.Buffer // captured by Feed only
	// Err is set when the program could not be started or waited on.
	// Exiting with a non-zero code or on a signal is reported in State.
	Err error
	// InputErr is set when Feed failed to deliver the whole input.
	InputErr error
}

func (r Result) Elapsed() time.Duration {
	return r.Stopped.Sub(r.Started)
}

// Run executes c to completion with stdin attached to the null device.
func Run(ctx context.Context, c Command) Result {
	ctx, cancel := c.context(ctx)
	defer cancel()

	cmd := c.cmd(ctx)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	var res Result
	res.Started = time.Now()
	err := cmd.Run()
	res.Stopped = time.Now()
	res.State = cmd.ProcessState
	res.Err = runErr(err)
	return res
}

// Feed executes c, writes input to its stdin and closes it, then drains
// stdout and stderr until the program exits.
func Feed(ctx context.Context, c Command, input []byte) Result {
	ctx, cancel := c.context(ctx)
	defer cancel()

	cmd := c.cmd(ctx)
	res := Result{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}
	cmd.Stdout = res.Stdout
	cmd.Stderr = res.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		res.Err = err
		return res
	}

	res.Started = time.Now()
	if err := cmd.Start(); err != nil {
		res.Stopped = time.Now()
		res.Err = err
		return res
	}

	// stdin is fed concurrently: a client failing early never reads it
	var g errgroup.Group
	g.Go(func() error {
		_, err := stdin.Write(input)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("writing stdin of %s: %w", c.Path, err)
		}
		return nil
	})
	err = cmd.Wait()
	res.InputErr = g.Wait()
	res.Stopped = time.Now()
	res.State = cmd.ProcessState
	res.Err = runErr(err)
	return res
}

func (c Command) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c Command) cmd(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

// runErr drops errors describing how a program that did run has exited.
func runErr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
