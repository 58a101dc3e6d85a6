package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/config"
	logpkg "github.com/kailas-cloud/docchat/internal/logger"
)

type rootOptions struct {
	env        string
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with your PDF documents",
		Long: `docchat ingests a PDF into a per-session vector index and answers
questions about it with a history-aware retrieval chain.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment (selects config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file, overrides --env lookup")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(o.env)
}

// bootstrap loads config, builds the logger and wires the application.
// The caller owns the returned app and must Close it.
func (o *rootOptions) bootstrap(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logpkg.NewLogger(o.env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.closers = append([]func(){func() { _ = logger.Sync() }}, a.closers...)
	logger.Debug("configuration loaded", zap.String("env", o.env))
	return a, nil
}
