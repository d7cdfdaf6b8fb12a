package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/CZERTAINLY/schedrace/internal/model"
	"github.com/CZERTAINLY/schedrace/internal/service"
)

// ClientSource obtains task rows from an external query client.
type ClientSource struct {
	cmd       service.Command
	statement string
}

func NewClientSource(cfg model.Client) ClientSource {
	return ClientSource{
		cmd:       service.ClientCommand(cfg),
		statement: cfg.Statement,
	}
}

func (s ClientSource) Rows(ctx context.Context) ([]model.TaskRow, error) {
	res := service.Feed(ctx, s.cmd, []byte(s.statement))
	if res.Err != nil {
		return nil, fmt.Errorf("running query client %s: %w", s.cmd.Path, res.Err)
	}
	if !res.State.Success() {
		return nil, fmt.Errorf("%w: %s %s: %s",
			model.ErrQueryFailed, s.cmd.Path, res.State, strings.TrimSpace(res.Stderr.String()))
	}
	if res.InputErr != nil {
		return nil, res.InputErr
	}
	return ParseTable(res.Stdout)
}
