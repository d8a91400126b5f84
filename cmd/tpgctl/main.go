package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tpg/internal/config"
	"tpg/internal/logging"
	"tpg/pkg/tpg"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state resolved once per invocation by the root command.
type app struct {
	configPath string
	seed       int64
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	client *tpg.Client
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(&app{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tpgctl",
		Short:         "Inspect, execute and mutate tangled-program-graph learners",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "optional YAML config path")
	root.PersistentFlags().Int64Var(&a.seed, "seed", 0, "rng seed (overrides config; 0 keeps config value)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	root.AddCommand(
		newNewCommand(a),
		newTraceCommand(a),
		newBidCommand(a),
		newMutateCommand(a),
		newOperatorsCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.seed != 0 {
		cfg.Learner.Seed = a.seed
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.NewConsole(cmd.ErrOrStderr(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	client, err := tpg.New(tpg.Options{Seed: cfg.Learner.Seed, Logger: logger})
	if err != nil {
		return err
	}
	logger.Debug("tpgctl configured",
		zap.String("command", cmd.Name()),
		zap.Int64("seed", client.Seed()),
		zap.Int("max_program_size", cfg.Learner.MaxProgramSize),
	)

	a.cfg = cfg
	a.logger = logger
	a.client = client
	return nil
}
