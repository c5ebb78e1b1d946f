package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/download"
	"github.com/aluiziolira/go-maps-images/models"
	"github.com/aluiziolira/go-maps-images/probe"
	"github.com/aluiziolira/go-maps-images/record"
	"github.com/aluiziolira/go-maps-images/scraper"
)

const defaultQuery = "restaurants in Berkeley"

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()

	queryDefault := ""
	if value, ok := config.EnvString("MAPS_QUERY"); ok {
		queryDefault = value
	}
	limitDefault := defaultCfg.MaxPlaces
	if value, ok, err := config.EnvInt("MAPS_LIMIT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MAPS_LIMIT: %v\n", err)
		os.Exit(1)
	} else if ok {
		limitDefault = value
	}
	concurrencyDefault := defaultCfg.Concurrency
	if value, ok, err := config.EnvInt("MAPS_CONCURRENCY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MAPS_CONCURRENCY: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrencyDefault = value
	}
	outDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("MAPS_OUTPUT_DIR"); ok {
		outDefault = value
	}
	recordDefault := defaultCfg.RecordFile
	if value, ok := config.EnvString("MAPS_RECORD_FILE"); ok {
		recordDefault = value
	}
	headlessDefault := defaultCfg.Headless
	if value, ok, err := config.EnvBool("MAPS_HEADLESS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MAPS_HEADLESS: %v\n", err)
		os.Exit(1)
	} else if ok {
		headlessDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("MAPS_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	query := flag.String("query", queryDefault, "Search query (prompted for when empty)")
	limit := flag.Int("limit", limitDefault, "Maximum places to process")
	concurrency := flag.Int("concurrency", concurrencyDefault, "Parallel image downloads")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Download retries after the first attempt")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	scanDepth := flag.Int("scan-depth", defaultCfg.MaxScanDepth, "Gallery re-scan rounds per place")
	outDir := flag.String("out", outDefault, "Directory for downloaded images")
	recordFile := flag.String("record", recordDefault, "Path of the JSON run record")
	headless := flag.Bool("headless", headlessDefault, "Run the browser headless")
	debug := flag.Bool("debug", defaultCfg.DebugEnabled, "Write screenshots and HTML snapshots on failures")
	debugDir := flag.String("debug-dir", defaultCfg.DebugDir, "Directory for debug artifacts")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.Query = resolveQuery(*query, flag.Args())
	cfg.MaxPlaces = *limit
	cfg.Concurrency = *concurrency
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.MaxScanDepth = *scanDepth
	cfg.OutputDir = *outDir
	cfg.RecordFile = *recordFile
	cfg.Headless = *headless
	cfg.DebugEnabled = *debug
	cfg.DebugDir = *debugDir
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting run",
		slog.String("query", cfg.Query),
		slog.Int("limit", cfg.MaxPlaces),
		slog.Int("concurrency", cfg.Concurrency),
		slog.String("out", cfg.OutputDir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight work")
	}()

	browser, err := probe.NewChrome(ctx, probe.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		slog.Error("launching browser", slog.Any("error", err))
		os.Exit(1)
	}
	defer browser.Close()

	manager, err := download.NewManager(cfg)
	if err != nil {
		slog.Error("initialising download manager", slog.Any("error", err))
		os.Exit(1)
	}

	recorder, err := record.NewRecorder(cfg.RecordFile, cfg.Query)
	if err != nil {
		slog.Error("initialising recorder", slog.Any("error", err))
		os.Exit(1)
	}

	var debugSink *record.DebugSink
	if cfg.DebugEnabled {
		debugSink, err = record.NewDebugSink(cfg.DebugDir)
		if err != nil {
			slog.Error("initialising debug sink", slog.Any("error", err))
			os.Exit(1)
		}
	}

	s := scraper.New(cfg, browser, manager, recorder, debugSink)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		gatherers := prometheus.Gatherers{s.Metrics.Registry, manager.Metrics.Registry}
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	summary, err := s.Run(ctx)
	manager.Wait()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		if summary != nil {
			printSummary(summary)
		}
		os.Exit(1)
	}
	printSummary(summary)
}

// resolveQuery picks the query from the flag, a positional argument, or an
// interactive prompt, in that order.
func resolveQuery(flagQuery string, args []string) string {
	if q := strings.TrimSpace(flagQuery); q != "" {
		return q
	}
	if len(args) > 0 {
		if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
			return q
		}
	}

	fmt.Printf("Search query [%s]: ", defaultQuery)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return defaultQuery
	}
	if q := strings.TrimSpace(line); q != "" {
		return q
	}
	return defaultQuery
}

func printSummary(summary *models.RunSummary) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")
	fmt.Printf("  Query:             %s\n", summary.Query)
	fmt.Printf("  Places found:      %d\n", summary.PlacesFound)
	fmt.Printf("  Places extracted:  %d\n", summary.PlacesExtracted)
	fmt.Printf("  Places failed:     %d\n", summary.PlacesFailed)
	fmt.Printf("  Images resolved:   %d\n", summary.ImagesResolved)
	fmt.Printf("  Images downloaded: %d\n", summary.ImagesDownloaded)
	fmt.Printf("  Images failed:     %d\n", summary.ImagesFailed)
	if summary.Partial {
		fmt.Println("  Partial results:   yes")
	}
	if len(summary.ErrorsByType) > 0 {
		fmt.Printf("  Error types:       %v\n", summary.ErrorsByType)
	}
	fmt.Printf("  Duration:          %v\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
	fmt.Printf("  Record file:       %s\n", summary.RecordFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
