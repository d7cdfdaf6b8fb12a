package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/CZERTAINLY/schedrace/internal/log"
	"github.com/CZERTAINLY/schedrace/internal/model"
	"github.com/CZERTAINLY/schedrace/internal/service"
	"github.com/CZERTAINLY/schedrace/internal/state"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	exitViolation = 1
	exitFault     = 2
)

var (
	userConfigPath string // /default/config/path/schedrace on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "schedrace")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context) int {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is schedrace.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")
	runCmd.Flags().Int("workers", 0, "number of concurrent invokers - default is the host parallelism")
	runCmd.Flags().Uint64("max-rounds", 0, "stop after this many clean rounds - default is to run until a violation")

	mustBind("service.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	mustBind("pool.workers", runCmd.Flags().Lookup("workers"))
	mustBind("rounds.max", runCmd.Flags().Lookup("max-rounds"))
	viper.SetEnvPrefix("SCHEDRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initSchedrace

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrViolation):
		slog.Error("violation found", "err", err)
		return exitViolation
	default:
		slog.Error("schedrace failed", "err", err)
		return exitFault
	}
}

var rootCmd = &cobra.Command{
	Use:          "schedrace",
	Short:        "Reproduces scheduler races by bursting concurrent task runs",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run bursts the target and checks the task state until a task is left executing",
	RunE:  doRun,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check queries the task state once and reports tasks left executing",
	RunE:  doCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a schedrace",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("schedrace: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:    %s\n", configPath)
		}
		fmt.Printf("schedrace: %s\n", info.Main.Version)
		fmt.Printf("go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:     %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx, runID := log.WithRun(cmd.Context(), "run")

	workers := config.Workers()
	if workers == 0 {
		var err error
		workers, err = service.Parallelism()
		if err != nil {
			return err
		}
	}

	target, err := service.TargetCommand(config.Target)
	if err != nil {
		return err
	}

	checker, err := state.Open(config.State)
	if err != nil {
		return fmt.Errorf("initializing state checker: %w", err)
	}
	defer func() {
		if err := checker.Close(); err != nil {
			slog.ErrorContext(ctx, "closing state checker has failed", "error", err)
		}
	}()

	pool, err := service.NewPool(ctx, workers, target)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.InfoContext(ctx, "starting harness",
		"run_id", runID,
		"workers", workers,
		"target", target.Path,
		"source", config.State.Source,
		"round", config.FirstRound(),
	)
	supervisor := service.NewSupervisor(pool, checker).
		WithFirstRound(config.FirstRound()).
		WithMaxRounds(config.MaxRounds())
	return supervisor.Do(ctx)
}

func doCheck(cmd *cobra.Command, _ []string) error {
	ctx, _ := log.WithRun(cmd.Context(), "check")

	checker, err := state.Open(config.State)
	if err != nil {
		return fmt.Errorf("initializing state checker: %w", err)
	}
	defer func() {
		if err := checker.Close(); err != nil {
			slog.ErrorContext(ctx, "closing state checker has failed", "error", err)
		}
	}()

	violations, err := checker.Check(ctx)
	if err != nil {
		return err
	}
	for _, v := range violations {
		fmt.Fprintf(cmd.ErrOrStderr(), "Found task that is still being executed: %d\n", v.ID)
	}
	if len(violations) > 0 {
		return fmt.Errorf("%d task(s): %w", len(violations), model.ErrViolation)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "no task is being executed")
	return nil
}

func initSchedrace(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("SCHEDRACECONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "schedrace.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "schedrace.yaml")
		if err := storeConfig(configPath, config); err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	applyOverrides(&config)

	slog.SetDefault(log.New(os.Stderr, config.Verbose()))

	slog.Debug("schedrace", "configPath", configPath)
	slog.Debug("schedrace", "config", config)
	return nil
}

// applyOverrides copies values set by a flag or a SCHEDRACE_* variable over
// the config file.
func applyOverrides(cfg *model.Config) {
	if viper.IsSet("service.verbose") {
		cfg.Service = &model.Service{Verbose: viper.GetBool("service.verbose")}
	}
	if viper.IsSet("pool.workers") {
		cfg.Pool = &model.Pool{Workers: viper.GetInt("pool.workers")}
	}
	if viper.IsSet("rounds.max") {
		if cfg.Rounds == nil {
			cfg.Rounds = &model.Rounds{}
		}
		cfg.Rounds.Max = viper.GetUint64("rounds.max")
	}
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
