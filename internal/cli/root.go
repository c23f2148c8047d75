// Package cli implements codecheckctl, the operator command line for running
// migrations, roster imports and assessment pipelines without the HTTP server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/erikwilensky/codecheck/internal/app"
	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/observability"
)

// BuildFunc assembles the service container for one command invocation.
type BuildFunc func(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app.Container, error)

// Options customise the root command.
type Options struct {
	Out    io.Writer
	Build  BuildFunc
	Config func() (config.Config, error)
}

type runner struct {
	opts Options
}

// NewRootCommand returns the codecheckctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Build == nil {
		opts.Build = app.Build
	}
	if opts.Config == nil {
		opts.Config = config.Load
	}
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:           "codecheckctl",
		Short:         "Operate the codecheck assessment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}

	root.AddCommand(r.migrateCmd())
	root.AddCommand(r.importRosterCmd())
	root.AddCommand(r.analyzeCmd())
	root.AddCommand(r.quizCmd())
	root.AddCommand(r.bulkQuizCmd())
	root.AddCommand(r.overviewCmd())
	root.AddCommand(r.generateIDsCmd())
	return root
}

// withContainer loads configuration, builds the container and runs fn against it.
func (r *runner) withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := r.opts.Config()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closer := observability.NewLogger(observability.LoggerConfig{
		Service:    cfg.AppName + "ctl",
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, err := r.opts.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(ctx, container)
}

func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid identifier %q", value)
	}
	return uint(id), nil
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
