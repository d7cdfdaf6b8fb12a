package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// Source returns every task known to the store.
type Source interface {
	Rows(ctx context.Context) ([]model.TaskRow, error)
}

// Checker classifies the rows of a Source.
type Checker struct {
	source Source
}

func NewChecker(source Source) *Checker {
	return &Checker{source: source}
}

// Open creates a Checker for the configured source.
func Open(cfg model.State) (*Checker, error) {
	switch cfg.Source {
	case "", model.SourceClient:
		if cfg.Client == nil {
			return nil, fmt.Errorf("state.client is not configured")
		}
		return NewChecker(NewClientSource(*cfg.Client)), nil
	case model.SourceSQL:
		if cfg.SQL == nil {
			return nil, fmt.Errorf("state.sql is not configured")
		}
		source, err := OpenSQL(*cfg.SQL)
		if err != nil {
			return nil, err
		}
		return NewChecker(source), nil
	default:
		return nil, fmt.Errorf("state.source %q is not supported", cfg.Source)
	}
}

// Check returns the tasks still in flight, none when the state is clean.
func (c *Checker) Check(ctx context.Context) ([]model.TaskRow, error) {
	rows, err := c.source.Rows(ctx)
	if err != nil {
		return nil, err
	}
	violations := InFlight(rows)
	slog.DebugContext(ctx, "state checked", "tasks", len(rows), "in_flight", len(violations))
	return violations, nil
}

func (c *Checker) Close() error {
	if closer, ok := c.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
