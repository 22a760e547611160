// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/anieflix/internal/api"
	"github.com/ManuGH/anieflix/internal/catalog"
	"github.com/ManuGH/anieflix/internal/config"
	"github.com/ManuGH/anieflix/internal/images"
	"github.com/ManuGH/anieflix/internal/ingest"
	"github.com/ManuGH/anieflix/internal/layout"
	"github.com/ManuGH/anieflix/internal/lock"
	alog "github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/playback"
	"github.com/ManuGH/anieflix/internal/telemetry"
	"github.com/ManuGH/anieflix/internal/transcode"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds the wired components and what must be closed on exit.
type app struct {
	cfg      config.AppConfig
	server   *http.Server
	pipeline *ingest.Pipeline
	closers  []func() error
}

func build(ctx context.Context, cfg config.AppConfig) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "anieflix",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })

	store, err := catalog.Open(cfg.Catalog.Path, catalog.Config{
		BusyTimeout:  cfg.Catalog.BusyTimeout,
		MaxOpenConns: cfg.Catalog.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	l, err := layout.New(layout.Config{MediaRoot: cfg.Media.Root, ScratchRoot: cfg.Media.Scratch})
	if err != nil {
		return nil, err
	}

	img, err := images.New(images.Config{Root: cfg.Images.Root, Exts: cfg.Ingest.ImageExts, MaxBytes: cfg.Images.MaxBytes})
	if err != nil {
		return nil, err
	}

	locker, err := newLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, err
	}
	if rl, isRedis := locker.(*lock.RedisLocker); isRedis {
		a.closers = append(a.closers, rl.Close)
	}

	tr := transcode.New(&transcode.FFmpegEncoder{Bin: cfg.FFmpeg.Bin, KillGrace: cfg.FFmpeg.KillGrace}, cfg.FFmpeg.Timeout)
	a.pipeline = ingest.New(l, tr, locker, ingest.Config{
		VideoExts:     cfg.Ingest.VideoExts,
		MaxConcurrent: int64(cfg.Ingest.MaxConcurrent),
	})

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = "anieflix"
	}
	srv := api.New(api.Config{
		MaxUploadBytes:  cfg.Ingest.MaxUploadBytes,
		UploadPerMinute: cfg.RateLimit.UploadPerMinute,
		TracingService:  tracing,
		Metrics:         promhttp.Handler(),
	}, api.Deps{
		Catalog:  store,
		Ingest:   a.pipeline,
		Resolver: playback.NewResolver(store, l, nil),
		Images:   img,
		FFmpeg:   tr,
	})

	a.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	ok = true
	return a, nil
}

func newLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		logger := alog.WithComponent("daemon")
		logger.Info().Str("backend", "memory").Msg("folder locks are process-local")
		return lock.NewKeyedMutex(), nil
	}
	rl, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	}, alog.WithComponent("lock"))
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	return rl, nil
}

func (a *app) pruneStaging() {
	logger := alog.WithComponent("daemon")
	n, err := a.pipeline.PruneStaging(a.cfg.Ingest.StagingRetention)
	if err != nil {
		logger.Warn().Err(err).Msg("staging prune failed")
		return
	}
	if n > 0 {
		logger.Info().Str("event", "staging.pruned").Int("removed", n).Msg("pruned stale staging entries")
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	logger := alog.WithComponent("daemon")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("shutdown step failed")
		}
	}
	a.closers = nil
}
