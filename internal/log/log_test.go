package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/CZERTAINLY/schedrace/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx, id := log.WithRun(t.Context(), "run")
	require.NotEmpty(t, id)
	ctx = log.ContextAttrs(ctx, slog.Uint64("round", 3))

	logger.DebugContext(ctx, "hidden")
	logger.With("component", "pool").InfoContext(ctx, "burst done")

	var got struct {
		Msg       string `json:"msg"`
		Component string `json:"component"`
		Round     uint64 `json:"round"`
		Run       struct {
			ID  string `json:"id"`
			Cmd string `json:"cmd"`
			PID int    `json:"pid"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "burst done", got.Msg)
	require.Equal(t, "pool", got.Component)
	require.Equal(t, uint64(3), got.Round)
	require.Equal(t, id, got.Run.ID)
	require.Equal(t, "run", got.Run.Cmd)
	require.NotZero(t, got.Run.PID)
}

func TestContextAttrs_NoSharing(t *testing.T) {
	t.Parallel()
	base := log.ContextAttrs(context.Background(), slog.String("a", "1"))
	one := log.ContextAttrs(base, slog.String("b", "2"))
	two := log.ContextAttrs(base, slog.String("c", "3"))

	var buf bytes.Buffer
	logger := log.New(&buf, true)
	logger.DebugContext(one, "one")
	logger.DebugContext(two, "two")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	require.Contains(t, string(lines[0]), `"b":"2"`)
	require.NotContains(t, string(lines[0]), `"c":"3"`)
	require.Contains(t, string(lines[1]), `"c":"3"`)
	require.NotContains(t, string(lines[1]), `"b":"2"`)
}
