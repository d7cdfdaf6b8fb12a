// Package state reads the persisted scheduler task state and finds tasks
// still marked as executing.
//
// A Checker asks a Source for every task row. Two sources exist:
//
//   - ClientSource launches a query client (the mysql command line client by
//     default), writes the statement to its stdin and parses the tabular text
//     it prints. The first line is a header. Every other line starts with the
//     task id; any further token means serialized execution state is present.
//   - SQLSource runs the statement through database/sql. A non-NULL,
//     non-empty second column means serialized execution state is present.
//
// Any failure to observe the state is returned as an error and must stop the
// harness: a round whose state cannot be read proves nothing.
package state
