package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/animus-labs/animus-prune/internal/config"
	"github.com/animus-labs/animus-prune/internal/prune"
)

type options struct {
	dryRun          bool
	configPath      string
	continueOnError bool
	logFormat       string
	logLevel        string
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "animus-prune",
		Short: "Delete stale runs and model versions from a tracking server",
		Long: `animus-prune removes model versions that were never staged and have not been
updated within MLFLOW_TRACKING_ENTITY_TTL days, and finished or failed runs that
ended before the same cutoff and are not the origin of any registered model
version.

Without --dry-run=false nothing is deleted; the pass only reports what it would do.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, opts, stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.Error{Setting: "flags", Err: err}
	})

	flags := cmd.Flags()
	flags.BoolVar(&opts.dryRun, "dry-run", true, "report deletions without performing them")
	flags.StringVar(&opts.configPath, "config", "", "optional YAML config file; environment variables take precedence")
	flags.BoolVar(&opts.continueOnError, "continue-on-error", false, "keep deleting after a failed delete and report every failure at the end")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json or text (default from config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default from config)")
	return cmd
}

func runPrune(cmd *cobra.Command, opts *options, stdout io.Writer) error {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("continue-on-error") {
		cfg.ContinueOnError = opts.continueOnError
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := config.NewLogger(stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return &config.Error{Setting: "--log-format/--log-level", Err: err}
	}

	client, closeClient, err := newTrackingClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeClient() }()

	recorder, err := newRecorder(ctx, cfg.ReportSettings(), logger)
	if err != nil {
		return err
	}

	logger.Info("prune starting", "backend", string(cfg.Backend), "dry_run", opts.dryRun, "continue_on_error", cfg.ContinueOnError)
	orchestrator := prune.NewOrchestrator(client, cfg.Policy(), logger, recorder)
	runErr := orchestrator.Execute(ctx, opts.dryRun)
	if err := recorder.Close(ctx); err != nil {
		logger.Error("report close failed", "error", err)
		return errors.Join(runErr, err)
	}
	return runErr
}
