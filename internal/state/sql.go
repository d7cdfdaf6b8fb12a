package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// SQLSource obtains task rows with a direct database connection. The
// statement must select the task id and the serialized state, in that order.
type SQLSource struct {
	db        *sql.DB
	statement string
}

// OpenSQL opens a connection pool for cfg. The driver must be registered;
// mysql is.
func OpenSQL(cfg model.SQL) (*SQLSource, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = model.DriverMySQL
	}
	if driver == model.DriverMySQL {
		if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
			return nil, fmt.Errorf("parsing state.sql.dsn: %w", err)
		}
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return NewSQLSource(db, cfg.Statement), nil
}

func NewSQLSource(db *sql.DB, statement string) *SQLSource {
	return &SQLSource{db: db, statement: statement}
}

func (s *SQLSource) Rows(ctx context.Context) ([]model.TaskRow, error) {
	rows, err := s.db.QueryContext(ctx, s.statement)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrQueryFailed, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrQueryFailed, err)
	}
	if len(cols) != 2 {
		return nil, fmt.Errorf("expected 2 columns, got %d: %w", len(cols), model.ErrMalformedRow)
	}

	var ret []model.TaskRow
	for rows.Next() {
		var id uint64
		var serialized []byte
		if err := rows.Scan(&id, &serialized); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrMalformedRow, err)
		}
		ret = append(ret, model.TaskRow{
			ID:       id,
			InFlight: len(serialized) > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrQueryFailed, err)
	}
	return ret, nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
