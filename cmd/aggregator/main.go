// Package main is the entry point for the order book aggregator server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/torcoste/orderbook-aggregator/internal/aggregator"
	"github.com/torcoste/orderbook-aggregator/internal/apm"
	"github.com/torcoste/orderbook-aggregator/internal/config"
	"github.com/torcoste/orderbook-aggregator/internal/fanout"
	"github.com/torcoste/orderbook-aggregator/internal/health"
	"github.com/torcoste/orderbook-aggregator/internal/ingest/binance"
	"github.com/torcoste/orderbook-aggregator/internal/ingest/bitstamp"
	"github.com/torcoste/orderbook-aggregator/internal/logger"
	"github.com/torcoste/orderbook-aggregator/internal/metrics"
	"github.com/torcoste/orderbook-aggregator/internal/model"
	"github.com/torcoste/orderbook-aggregator/internal/rpc"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("orderbook-aggregator %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting order book aggregator",
		"version", version,
		"symbol", cfg.Pipeline.Symbol,
		"depth", cfg.Pipeline.Depth,
	)

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}

		var opt apm.TracerOption
		switch cfg.Telemetry.TraceExporter {
		case "zipkin":
			opt = apm.WithProvider(apm.ZipkinProvider, cfg.Telemetry.ZipkinEndpoint, nil, log)
		case "otlp-grpc":
			opt = apm.WithProvider(apm.OTLPGRPCProvider, cfg.Telemetry.OTLPEndpoint, nil, log)
		case "otlp-http":
			opt = apm.WithProvider(apm.OTLPHTTPProvider, cfg.Telemetry.OTLPEndpoint, nil, log)
		default:
			opt = apm.WithProvider(apm.ConsoleProvider, "", nil, log)
		}
		traceProvider = apm.NewTraceProvider(cfg.Telemetry.ServiceName, opt)
		log.Info(ctx, "tracing initialized", "exporter", cfg.Telemetry.TraceExporter)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	agg := aggregator.New(aggregator.Config{
		Depth:          cfg.Pipeline.Depth,
		DataLifetimeMS: cfg.Pipeline.DataLifetimeMS,
	}, log)

	registry := fanout.New(log)
	healthServer.RegisterCheck("fanout", func(ctx context.Context) (bool, string) {
		return true, fmt.Sprintf("%d subscribers", registry.Count())
	})

	binanceAdapter := binance.New(binance.Config{
		BaseURL: cfg.Pipeline.BinanceBaseURL,
		Symbol:  cfg.Pipeline.Symbol,
		Depth:   cfg.Pipeline.Depth,
	}, log.With("venue", "binance"))

	bitstampAdapter := bitstamp.New(bitstamp.Config{
		URL:    cfg.Pipeline.BitstampURL,
		Symbol: cfg.Pipeline.Symbol,
		Depth:  cfg.Pipeline.Depth,
	}, log.With("venue", "bitstamp"))

	errCh := make(chan error, 4)

	go forward(ctx, binanceAdapter.Snapshots(), agg.Ingest())
	go forward(ctx, bitstampAdapter.Snapshots(), agg.Ingest())

	go func() { errCh <- binanceAdapter.Run(ctx) }()
	go func() { errCh <- bitstampAdapter.Run(ctx) }()
	go func() { errCh <- agg.Run(ctx) }()
	go func() { errCh <- registry.Run(ctx, agg.Out()) }()

	addr := fmt.Sprintf("[::1]:%d", cfg.Pipeline.Port)
	go func() {
		if err := rpc.ListenAndServe(ctx, addr, registry, log); err != nil {
			errCh <- err
		}
	}()
	log.Info(ctx, "rpc server starting", "addr", addr)

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			log.Error(ctx, "pipeline stage failed", "error", err)
			return err
		}
		return nil
	}
}

// forward copies snapshots from a venue adapter's output into the
// aggregator's shared ingest channel until ctx is canceled.
func forward(ctx context.Context, in <-chan model.ExchangeSnapshot, out chan<- model.ExchangeSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}
