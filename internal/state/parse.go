package state

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/schedrace/internal/model"
)

// maxLine bounds a single row; serialized executions may be long.
const maxLine = 16 * 1024 * 1024

// ParseTable parses whitespace delimited query output. The first line is a
// header and is skipped.
func ParseTable(r io.Reader) ([]model.TaskRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var rows []model.TaskRow
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if lineNo == 1 {
			continue
		}
		row, err := parseRow(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading query output: %w", err)
	}
	return rows, nil
}

func parseRow(line string) (model.TaskRow, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.TaskRow{}, fmt.Errorf("empty line: %w", model.ErrMalformedRow)
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return model.TaskRow{}, fmt.Errorf("task id %q: %w", fields[0], model.ErrMalformedRow)
	}
	return model.TaskRow{
		ID:       id,
		InFlight: len(fields) > 1,
	}, nil
}

// InFlight returns the rows with serialized execution state present.
func InFlight(rows []model.TaskRow) []model.TaskRow {
	var ret []model.TaskRow
	for _, row := range rows {
		if row.InFlight {
			ret = append(ret, row)
		}
	}
	return ret
}
