package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/go-shop-probe/config"
	"github.com/aluiziolira/go-shop-probe/mercadolibre"
	"github.com/aluiziolira/go-shop-probe/probe"
	"github.com/aluiziolira/go-shop-probe/targets"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	targets     []string
	targetsFile string
	timeout     time.Duration
	sample      int
	output      string
	format      string
	verbose     bool
	metricsAddr string
	envFile     string
	userAgent   string
	apiBaseURL  string
	siteID      string
}

// app carries what every subcommand needs once the root command has
// resolved configuration.
type app struct {
	flags   rootFlags
	cfg     *config.Config
	targets []targets.Target
	metrics *probe.Metrics

	out    io.Writer
	report io.Writer

	// transport replaces the network for the prober when set.
	transport http.RoundTripper

	metricsServer *http.Server
}

func newApp() *app {
	return &app{}
}

func newRootCmd(a *app) *cobra.Command {
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:   "shop-probe",
		Short: "shop-probe checks whether retail search results can be read as JSON or HTML.",
		Long: "shop-probe tries candidate search endpoints of department-store and marketplace sites, " +
			"guesses where the product list lives in whatever answers, and prints normalized samples.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringSliceVarP(&a.flags.targets, "target", "t", defaults.Targets, "Targets to probe (name or \"all\")")
	f.StringVar(&a.flags.targetsFile, "targets-file", "", "JSON5 file with extra or overriding targets")
	f.DurationVar(&a.flags.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	f.IntVar(&a.flags.sample, "sample", defaults.SampleSize, "Records to keep per search")
	f.StringVarP(&a.flags.output, "output", "o", "", "Write records to this file as well")
	f.StringVar(&a.flags.format, "format", defaults.OutputFormat, "Output format: console, json, or csv")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable verbose logging")
	f.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	f.StringVar(&a.flags.envFile, "env-file", ".env", "Environment file loaded before reading PROBE_* variables")
	f.StringVar(&a.flags.userAgent, "user-agent", defaults.UserAgent, "User-Agent sent to the sites")

	root.AddCommand(newSearchCmd(a), newDiscoverCmd(a), newAPICmd(a), newTargetsCmd(a))
	return root
}

// setup resolves configuration in the order defaults, .env, PROBE_*
// variables, then flags given on the command line.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.flags.envFile); err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("target") {
		cfg.Targets = a.flags.targets
	}
	if f.Changed("targets-file") {
		cfg.TargetsFile = a.flags.targetsFile
	}
	if f.Changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if f.Changed("sample") {
		cfg.SampleSize = a.flags.sample
	}
	if f.Changed("output") {
		cfg.OutputFile = a.flags.output
	}
	if f.Changed("format") {
		cfg.OutputFormat = strings.ToLower(a.flags.format)
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = a.flags.metricsAddr
	}
	if f.Changed("user-agent") {
		cfg.UserAgent = a.flags.userAgent
	}
	if f.Changed("api-base-url") {
		cfg.APIBaseURL = a.flags.apiBaseURL
	}
	if f.Changed("site") {
		cfg.SiteID = a.flags.siteID
	}
	cfg.Verbose = cfg.Verbose || a.flags.verbose

	logger, level := newLogger(cfg.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	known := targets.Builtin()
	if cfg.TargetsFile != "" {
		loaded, err := targets.Load(cfg.TargetsFile)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		known = targets.Merge(known, loaded)
	}

	a.cfg = cfg
	a.targets = known
	a.metrics = probe.NewMetrics()
	a.out = cmd.OutOrStdout()
	a.report = a.out
	if cfg.OutputFormat == "json" && cfg.OutputFile == "" {
		a.report = cmd.ErrOrStderr()
	}

	if cfg.MetricsAddr != "" {
		a.startMetricsServer()
	}
	return nil
}

func (a *app) startMetricsServer() {
	a.metricsServer = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))
}

func (a *app) shutdown() {
	if a.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func (a *app) selectedTargets() ([]targets.Target, error) {
	selected, err := targets.Select(a.targets, a.cfg.Targets)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return selected, nil
}

func (a *app) newProber(timeout time.Duration) *probe.Prober {
	return probe.New(probe.Options{
		UserAgent: a.cfg.UserAgent,
		Headers:   map[string]string{"Accept-Language": a.cfg.AcceptLanguage},
		Timeout:   timeout,
		Transport: a.transport,
		Metrics:   a.metrics,
	})
}

func (a *app) newAPIClient() *mercadolibre.Client {
	return mercadolibre.New(mercadolibre.Options{
		BaseURL:   a.cfg.APIBaseURL,
		SiteID:    a.cfg.SiteID,
		UserAgent: a.cfg.UserAgent,
		Timeout:   a.cfg.Timeout,
		Metrics:   a.metrics,
	})
}
