package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-books-api/api"
	"github.com/aluiziolira/go-books-api/config"
	"github.com/aluiziolira/go-books-api/dataset"
	"github.com/aluiziolira/go-books-api/query"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dataFile := flag.String("data", "", "Dataset CSV path (overrides config)")
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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataFile != "" {
		cfg.Server.DataFile = *dataFile
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// A missing or broken dataset file is not fatal: the service starts
	// with the empty snapshot and every data endpoint reports unavailable
	// until a crawl produces the file and a reload swaps it in.
	d, err := dataset.Load(cfg.Server.DataFile)
	if err != nil {
		slog.Warn("dataset not loaded, serving unavailable",
			slog.String("file", cfg.Server.DataFile),
			slog.Any("error", err),
		)
	} else {
		slog.Info("dataset loaded",
			slog.String("file", cfg.Server.DataFile),
			slog.Int("records", d.Len()),
		)
	}

	store := dataset.NewStore(d)
	engine := query.NewEngine(store)
	server := api.NewServer(engine, store, cfg.Server)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("api listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("api server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
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
