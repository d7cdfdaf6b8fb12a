package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// TargetCommand builds the command every invoker runs on trigger.
func TargetCommand(t model.Target) (Command, error) {
	if t.Path == "" {
		return Command{}, fmt.Errorf("target.path is empty")
	}
	timeout, err := t.TimeoutDuration()
	if err != nil {
		return Command{}, err
	}
	cmd := Command{
		Path:    t.Path,
		Args:    append([]string(nil), t.Args...),
		Env:     expandEnv(t.Env),
		Timeout: timeout,
	}
	switch t.Output {
	case "", model.OutputInherit:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case model.OutputDiscard:
	default:
		return Command{}, fmt.Errorf("target.output %q is not supported", t.Output)
	}
	return cmd, nil
}

// ClientCommand builds the query client invocation. Its output is always
// captured, so Stdout and Stderr stay unset.
func ClientCommand(c model.Client) Command {
	return Command{
		Path: c.Path,
		Args: append([]string(nil), c.Args...),
	}
}

// expandEnv expands values starting with $ from the harness environment,
// so a config may pass HOME=$HOME through.
func expandEnv(env []string) []string {
	if len(env) == 0 {
		return nil
	}
	ret := make([]string, 0, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		if !ok {
			ret = append(ret, kv)
			continue
		}
		ret = append(ret, k+"="+v)
	}
	return ret
}
