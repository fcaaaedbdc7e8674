package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/webtaxon/internal/bootstrap"
	"github.com/bryanwahyu/webtaxon/internal/config"
	"github.com/bryanwahyu/webtaxon/internal/logging"
)

// cli carries the persistent flags and what PersistentPreRunE builds from them.
type cli struct {
	configPath string
	dbPath     string
	oracle     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "webtaxon",
		Short: "Classify web resources and browse them as a taxonomy tree",
		Long: `webtaxon fetches web pages, asks a language model what they are, and files
the answers into a case-insensitive hierarchical index.

Without --db, history lives in memory for the duration of one command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", os.Getenv("CONFIG_PATH"), "config file (yaml)")
	pf.StringVar(&c.dbPath, "db", "", "sqlite history file")
	pf.StringVar(&c.oracle, "oracle", "", "oracle provider: heuristic, openai or gemini")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newClassifyCmd(c), newTreeCmd(c))
	return root
}

func (c *cli) init() error {
	cfg, err := config.Read(c.configPath)
	if err != nil {
		return err
	}
	if c.oracle != "" {
		cfg.UseProvider(c.oracle)
	}
	if c.dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.logger, err = logging.New(level, false)
	return err
}

func (c *cli) openHistory(ctx context.Context) (bootstrap.History, func() error, error) {
	return bootstrap.OpenHistory(ctx, c.cfg)
}

// output opens path for writing, or returns stdout when path is empty.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
