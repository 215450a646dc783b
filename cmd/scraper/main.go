package main

import (
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-books-api/config"
	"github.com/aluiziolira/go-books-api/models"
	"github.com/aluiziolira/go-books-api/pipeline"
	"github.com/aluiziolira/go-books-api/scraper"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	baseURL := flag.String("base-url", "", "Base URL to crawl (overrides config)")
	maxPages := flag.Int("pages", 0, "Maximum catalog pages to crawl (overrides config)")
	delayMs := flag.Int("delay", -1, "Delay between page fetches (milliseconds, overrides config)")
	outputFile := flag.String("output", "", "Output file path (overrides config)")
	outputFormat := flag.String("format", "", "Output format: csv, json, or dual (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	applyFlags(cfg, *baseURL, *maxPages, *delayMs, *outputFile, *outputFormat, *metricsAddr, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.Crawler.BaseURL),
		slog.Int("max_pages", cfg.Crawler.MaxPages),
		slog.Duration("delay", cfg.Crawler.Delay),
	)

	c, err := scraper.NewCrawler(cfg)
	if err != nil {
		slog.Error("initialising crawler", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.Output.Format, cfg.Output.File)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	var metricsServer *http.Server
	if cfg.Crawler.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.Crawler.MetricsAddr,
			Handler: promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.Crawler.MetricsAddr))
	}

	p := pipeline.NewPipeline(writer, cfg)
	p.Start(1)
	if cfg.Crawler.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := c.Run(ctx, p)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.Output.File, p.GetMetrics())
}

func applyFlags(cfg *config.Config, baseURL string, maxPages, delayMs int, outputFile, outputFormat, metricsAddr string, verbose bool) {
	if baseURL != "" {
		cfg.Crawler.BaseURL = baseURL
	}
	if maxPages > 0 {
		cfg.Crawler.MaxPages = maxPages
	}
	if delayMs >= 0 {
		cfg.Crawler.Delay = time.Duration(delayMs) * time.Millisecond
	}
	if outputFile != "" {
		cfg.Output.File = outputFile
	}
	if outputFormat != "" {
		cfg.Output.Format = strings.ToLower(outputFormat)
	}
	if metricsAddr != "" {
		cfg.Crawler.MetricsAddr = metricsAddr
	}
	if verbose {
		cfg.Crawler.Verbose = true
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.CrawlResult, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Aborted {
		fmt.Println("Crawl aborted, partial results kept")
	} else {
		fmt.Println("Crawl complete")
	}

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}

	fmt.Printf("  Records:       %d\n", len(result.Records))
	fmt.Printf("  Written:       %d\n", written)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if len(result.FailedURLs) > 0 {
		fmt.Printf("  Failed URLs:   %v\n", result.FailedURLs)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", outputFile)
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
