package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	ConfigPath string
	LogLevel   string
}

// app is the state loaded before a subcommand runs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "queryroute",
		Short: "Decompose queries and route each part to a retrieval strategy",
		Long: `queryroute splits a natural-language query into sub-queries, routes each
sub-query to one of the retrieval strategies (no_rag, naive_rag, graph_rag),
executes them and combines the answers.

The decomposer, router and backends are configured in queryroute.yml; every
key can be overridden with a QUERYROUTE_* environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.flags.ConfigPath, "config", "", "path to queryroute.yml (default ./queryroute.yml)")
	root.PersistentFlags().StringVar(&a.flags.LogLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newQueryCmd(a),
		newRouteCmd(a),
		newIndexCmd(a),
		newStatusCmd(a),
		newDiagramCmd(a),
		newServeCmd(a),
		newPreprocessCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger.
func (a *app) load() error {
	cfg, err := config.Load(a.flags.ConfigPath)
	if err != nil {
		return err
	}
	if a.flags.LogLevel != "" {
		cfg.Log.Level = a.flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
