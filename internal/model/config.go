package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	SourceClient = "client"
	SourceSQL    = "sql"

	OutputInherit = "inherit"
	OutputDiscard = "discard"

	DriverMySQL = "mysql"

	// DefaultStatement lists every scheduler task together with its
	// serialized executions column.
	DefaultStatement = "select uid, serialized_executions from tx_scheduler_task;"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int      `json:"version" yaml:"version"` // fixed 0 for now
	Target  Target   `json:"target" yaml:"target"`
	State   State    `json:"state" yaml:"state"`
	Pool    *Pool    `json:"pool,omitempty" yaml:"pool,omitempty"`
	Rounds  *Rounds  `json:"rounds,omitempty" yaml:"rounds,omitempty"`
	Service *Service `json:"service,omitempty" yaml:"service,omitempty"`
}

// Target is the task-execution program hammered by every burst.
type Target struct {
	Path    string   `json:"path" yaml:"path"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`         // KEY=value, appended to the inherited environment
	Timeout string   `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Go or ISO 8601 duration, empty => no timeout
	Output  string   `json:"output,omitempty" yaml:"output,omitempty"`   // "inherit" | "discard"
}

// TimeoutDuration returns the parsed timeout, zero when none is set.
func (t Target) TimeoutDuration() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	d, err := ParseDuration(t.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing target.timeout: %w", err)
	}
	return d, nil
}

// State selects where the persisted task state is read from.
type State struct {
	Source string  `json:"source" yaml:"source"` // "client" | "sql"
	Client *Client `json:"client,omitempty" yaml:"client,omitempty"`
	SQL    *SQL    `json:"sql,omitempty" yaml:"sql,omitempty"`
}

// Client is an external query client fed with the statement on stdin.
type Client struct {
	Path      string   `json:"path" yaml:"path"`
	Args      []string `json:"args,omitempty" yaml:"args,omitempty"`
	Statement string   `json:"statement" yaml:"statement"`
}

// SQL talks to the store directly through database/sql.
type SQL struct {
	Driver    string `json:"driver" yaml:"driver"`
	DSN       string `json:"dsn" yaml:"dsn"`
	Statement string `json:"statement" yaml:"statement"`
}

type Pool struct {
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"` // 0 => host parallelism
}

type Rounds struct {
	Start uint64 `json:"start,omitempty" yaml:"start,omitempty"` // 0 => 1
	Max   uint64 `json:"max,omitempty" yaml:"max,omitempty"`     // 0 => unbounded
}

type Service struct {
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// DefaultConfig reproduces the TYPO3 scheduler setup the harness was
// written for: vendor/bin/typo3 scheduler:run checked through the mysql
// command line client.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Target: Target{
			Path:   "vendor/bin/typo3",
			Args:   []string{"scheduler:run"},
			Output: OutputInherit,
		},
		State: State{
			Source: SourceClient,
			Client: &Client{
				Path:      "mysql",
				Statement: DefaultStatement,
			},
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	if out.Target.Output == "" {
		out.Target.Output = OutputInherit
	}
	return out, nil
}

// Workers returns the configured pool size, 0 meaning host parallelism.
func (c Config) Workers() int {
	if c.Pool == nil {
		return 0
	}
	return c.Pool.Workers
}

// FirstRound returns the number the round counter starts at.
func (c Config) FirstRound() uint64 {
	if c.Rounds == nil || c.Rounds.Start == 0 {
		return 1
	}
	return c.Rounds.Start
}

// MaxRounds returns how many clean rounds to run, 0 meaning forever.
func (c Config) MaxRounds() uint64 {
	if c.Rounds == nil {
		return 0
	}
	return c.Rounds.Max
}

func (c Config) Verbose() bool {
	return c.Service != nil && c.Service.Verbose
}
