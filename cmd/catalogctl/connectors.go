package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-sspm/catalogctl/internal/catalog"
	"github.com/open-sspm/catalogctl/internal/config"
	"github.com/open-sspm/catalogctl/internal/metrics"
	"github.com/open-sspm/catalogctl/internal/output"
	"github.com/open-sspm/catalogctl/internal/transport"
	"github.com/spf13/cobra"
)

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Inspect connectors installed on the catalog.",
}

type connectorsListOptions struct {
	host        string
	tokenHeader string
	tokenStdin  bool
	insecure    bool
	timeout     time.Duration
	output      string
	query       string
	metricsAddr string
	watch       time.Duration
}

var listOpts connectorsListOptions

var connectorsListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List the connectors installed on the catalog.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotation(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnectorsList(cmd, listOpts)
	},
}

func runConnectorsList(cmd *cobra.Command, opts connectorsListOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{RequireHost: false})
	if err != nil {
		return configError(err)
	}
	applyListFlags(cmd, &cfg, opts)
	if cfg.CatalogHost == "" {
		return configError(errors.New("CATALOG_HOST or --host is required"))
	}

	renderer, err := output.NewRenderer(opts.output, opts.query)
	if err != nil {
		return configError(err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	token, err := resolveToken(ctx, cmd, cfg, opts.tokenStdin)
	if err != nil {
		return configError(err)
	}

	client, err := transport.NewClient(transport.Options{
		Timeout:       cfg.HTTPTimeout,
		TLSSkipVerify: cfg.TLSSkipVerify,
		CACertFile:    cfg.CACertFile,
	})
	if err != nil {
		return configError(err)
	}
	session, err := catalog.New(token, metrics.InstrumentClient(client), cfg.CatalogHost,
		catalog.WithTokenHeader(cfg.TokenHeader),
		catalog.WithUserAgent("catalogctl/"+version),
		catalog.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	endpoint := catalog.NewConnectorEndpoint(session)

	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr)

	listOnce := func() error {
		connectors, err := endpoint.ListConnectors(ctx)
		if err != nil {
			return err
		}
		metrics.ConnectorsListed.Set(float64(len(connectors)))
		slog.Debug("connectors listed", "host", session.Host(), "count", len(connectors))
		return renderer.Render(ctx, cmd.OutOrStdout(), connectors)
	}

	if opts.watch <= 0 {
		return listOnce()
	}

	// Cancellation ends a watch cleanly, mid-request or between ticks.
	ticker := time.NewTicker(opts.watch)
	defer ticker.Stop()
	for {
		if err := listOnce(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("connector listing failed", "host", session.Host(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-metricsErrCh:
			return fmt.Errorf("metrics server: %w", err)
		case <-ticker.C:
		}
	}
}

func applyListFlags(cmd *cobra.Command, cfg *config.Config, opts connectorsListOptions) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.CatalogHost = opts.host
	}
	if flags.Changed("token-header") {
		cfg.TokenHeader = opts.tokenHeader
	}
	if flags.Changed("insecure") {
		cfg.TLSSkipVerify = opts.insecure
	}
	if flags.Changed("timeout") {
		cfg.HTTPTimeout = opts.timeout
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
}

func init() {
	connectorsCmd.AddCommand(connectorsListCmd)

	flags := connectorsListCmd.Flags()
	flags.StringVar(&listOpts.host, "host", "", "Catalog base URL (overrides CATALOG_HOST)")
	flags.StringVar(&listOpts.tokenHeader, "token-header", "", "Header carrying the access token (overrides CATALOG_TOKEN_HEADER)")
	flags.BoolVar(&listOpts.tokenStdin, "token-stdin", false, "Read the access token from stdin; takes precedence over CATALOG_ACCESS_TOKEN and Vault")
	flags.BoolVar(&listOpts.insecure, "insecure", false, "Skip TLS certificate validation")
	flags.DurationVar(&listOpts.timeout, "timeout", 0, "HTTP client timeout; 0 disables it (overrides CATALOG_HTTP_TIMEOUT)")
	flags.StringVarP(&listOpts.output, "output", "o", output.FormatTable, "Output format: table, json, or yaml")
	flags.StringVarP(&listOpts.query, "query", "q", "", "jq expression applied to the JSON listing")
	flags.StringVar(&listOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides METRICS_ADDR)")
	flags.DurationVar(&listOpts.watch, "watch", 0, "Repeat the listing at this interval until interrupted")
}
