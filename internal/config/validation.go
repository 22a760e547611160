// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Validate reports every problem in cfg at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		add("listen", "invalid address %q", cfg.Listen)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("log_level", "unknown level %q", cfg.LogLevel)
	}

	if cfg.Media.Root == "" {
		add("media.root", "must be set")
	}
	if cfg.Media.Scratch == "" {
		add("media.scratch", "must be set")
	}
	if cfg.Media.Root != "" && cfg.Media.Scratch != "" && within(cfg.Media.Root, cfg.Media.Scratch) {
		add("media.scratch", "must not be inside media.root")
	}
	if cfg.Images.MaxBytes <= 0 {
		add("images.max_bytes", "must be positive")
	}

	if cfg.Catalog.MaxOpenConns <= 0 {
		add("catalog.max_open_conns", "must be positive")
	}
	if cfg.Catalog.BusyTimeout < 0 {
		add("catalog.busy_timeout", "must not be negative")
	}

	if strings.TrimSpace(cfg.FFmpeg.Bin) == "" {
		add("ffmpeg.bin", "must be set")
	}
	if cfg.FFmpeg.Timeout <= 0 {
		add("ffmpeg.timeout", "must be positive")
	}
	if cfg.FFmpeg.KillGrace <= 0 {
		add("ffmpeg.kill_grace", "must be positive")
	}

	if cfg.Ingest.MaxConcurrent <= 0 {
		add("ingest.max_concurrent", "must be positive")
	}
	if cfg.Ingest.MaxUploadBytes <= 0 {
		add("ingest.max_upload_bytes", "must be positive")
	}
	if cfg.Ingest.StagingRetention < 0 {
		add("ingest.staging_retention", "must not be negative")
	}
	if len(cfg.Ingest.VideoExts) == 0 {
		add("ingest.video_exts", "must not be empty")
	}
	if len(cfg.Ingest.ImageExts) == 0 {
		add("ingest.image_exts", "must not be empty")
	}

	if cfg.Lock.TTL <= 0 {
		add("lock.ttl", "must be positive")
	}
	if cfg.RateLimit.UploadPerMinute < 0 {
		add("ratelimit.upload_per_minute", "must not be negative")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter", "unsupported %q (supported: grpc, http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint", "must be set when telemetry is enabled")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.sampling_rate", "must be within [0, 1]")
		}
	}

	return errors.Join(errs...)
}

// within reports whether child is root or below it.
func within(root, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
