// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/anieflix/internal/config"
	alog "github.com/ManuGH/anieflix/internal/log"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = time.Hour
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	alog.Configure(alog.Config{Level: "info", Service: "anieflix", Version: version})
	logger := alog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = config.ParseString("ANIEFLIX_CONFIG", "")
	}
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}
	alog.Configure(alog.Config{Level: cfg.LogLevel, Service: "anieflix", Version: version})

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Str("listen", cfg.Listen).
		Str("media_root", cfg.Media.Root).
		Msg("configuration loaded")

	if err := run(ctx, cfg, config.NewHolder(cfg, loader)); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon stopped with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig, holder *config.Holder) error {
	logger := alog.WithComponent("daemon")

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Ingest.StagingRetention > 0 {
		a.pruneStaging()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("event", "server.start").
			Str("addr", cfg.Listen).
			Str("version", version).
			Msg("starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str("event", "server.shutdown").Msg("shutting down, waiting for in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if cfg.Ingest.StagingRetention > 0 {
		g.Go(func() error {
			t := time.NewTicker(pruneInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					a.pruneStaging()
				}
			}
		})
	}

	if err := holder.Watch(gctx); err != nil {
		logger.Warn().Err(err).Msg("config hot reload disabled")
	}

	return g.Wait()
}
