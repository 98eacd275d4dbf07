package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stravafeed-go/internal/config"
	"stravafeed-go/internal/metrics"
	"stravafeed-go/internal/runner"
	"stravafeed-go/internal/strava"
	"stravafeed-go/internal/util"
)

var version = "dev"

type options struct {
	configPath      string
	envFile         string
	out             string
	tokenFile       string
	perPage         int
	maxPages        int
	logLevel        string
	pretty          bool
	dryRun          bool
	metricsTextfile string
	metricsAddr     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "stravafeed",
		Short:         "Refresh the Strava token and write the activities feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}
	bindFetchFlags(root, opts)

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Same as running stravafeed without a subcommand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}
	root.AddCommand(fetch)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func bindFetchFlags(cmd *cobra.Command, opts *options) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Optional YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Optional .env file loaded before reading the environment")
	flags.StringVar(&opts.out, "out", "", "Feed output path (default assets/strava.json)")
	flags.StringVar(&opts.tokenFile, "token-file", "", "File that stores a rotated refresh token between runs")
	flags.IntVar(&opts.perPage, "per-page", 0, "Activities per page (1-200)")
	flags.IntVar(&opts.maxPages, "max-pages", 0, "Maximum number of pages to fetch")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Print the feed to stdout instead of writing it")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file when done")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics on this address while running")
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadDotEnv(opts.envFile)
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.FeedPath = opts.out
	}
	if flags.Changed("token-file") {
		cfg.Output.TokenFile = opts.tokenFile
	}
	if flags.Changed("per-page") {
		cfg.Strava.PerPage = opts.perPage
	}
	if flags.Changed("max-pages") {
		cfg.Strava.MaxPages = opts.maxPages
	}
	if flags.Changed("log-level") {
		cfg.App.LogLevel = opts.logLevel
	}
	if flags.Changed("pretty") {
		cfg.App.PrettyLogs = opts.pretty
	}
	if flags.Changed("metrics-textfile") {
		cfg.App.MetricsTextfile = opts.metricsTextfile
	}
	if flags.Changed("metrics-addr") {
		cfg.App.MetricsAddr = opts.metricsAddr
	}
	return cfg, nil
}

func runFetch(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		log := util.NewLogger("info", opts.pretty)
		log.Error().Err(err).Msg("load config")
		return err
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.PrettyLogs)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := runner.New(cfg, log)
	if opts.dryRun {
		r.DryRun = cmd.OutOrStdout()
	}
	n, runErr := r.Run(ctx)

	if cfg.App.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.App.MetricsTextfile); err != nil {
			log.Warn().Err(err).Msg("metrics textfile not written")
		}
	}

	switch {
	case runErr == nil:
		log.Info().Int("activities", n).Bool("dry_run", opts.dryRun).Msg("strava feed refreshed")
		return nil
	case errors.Is(runErr, strava.ErrUnauthorized):
		log.Error().Err(runErr).Msg("strava rejected the credentials; verify the configured secrets")
	case errors.Is(runErr, context.Canceled):
		log.Warn().Msg("interrupted")
	default:
		log.Error().Err(runErr).Msg("feed refresh failed")
	}
	return runErr
}
