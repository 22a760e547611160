// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from defaults, an optional
// YAML file and ANIEFLIX_* environment variables, in that order of precedence.
package config

import (
	"time"
)

// AppConfig is the fully resolved daemon configuration. Components receive
// the sub-structs they need at construction time and never read the
// environment themselves.
type AppConfig struct {
	Listen   string `yaml:"listen"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Media     MediaConfig     `yaml:"media"`
	Images    ImagesConfig    `yaml:"images"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Lock      LockConfig      `yaml:"lock"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type MediaConfig struct {
	// Root holds published asset folders. Defaults to {data_dir}/videos.
	Root string `yaml:"root"`
	// Scratch holds raw uploads while they are transcoded. Defaults to {data_dir}/scratch.
	Scratch string `yaml:"scratch"`
}

type ImagesConfig struct {
	Root     string `yaml:"root"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type CatalogConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

type FFmpegConfig struct {
	Bin       string        `yaml:"bin"`
	Timeout   time.Duration `yaml:"timeout"`
	KillGrace time.Duration `yaml:"kill_grace"`
}

type IngestConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	StagingRetention time.Duration `yaml:"staging_retention"`
	VideoExts        []string      `yaml:"video_exts"`
	ImageExts        []string      `yaml:"image_exts"`
}

// LockConfig selects the folder lock backend. An empty RedisAddr uses the
// in-process keyed mutex, which is only correct for a single daemon.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	// UploadPerMinute limits admin uploads per client IP. Zero disables the limit.
	UploadPerMinute int `yaml:"upload_per_minute"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Default returns the built-in configuration. Paths left empty are derived
// from DataDir during Load.
func Default() AppConfig {
	return AppConfig{
		Listen:   ":5000",
		DataDir:  "data",
		LogLevel: "info",
		Images: ImagesConfig{
			MaxBytes: 20 << 20,
		},
		Catalog: CatalogConfig{
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 8,
		},
		FFmpeg: FFmpegConfig{
			Bin:       "ffmpeg",
			Timeout:   time.Hour,
			KillGrace: 5 * time.Second,
		},
		Ingest: IngestConfig{
			MaxConcurrent:    1,
			MaxUploadBytes:   8 << 30,
			StagingRetention: 24 * time.Hour,
			VideoExts:        []string{"mp4", "avi", "mkv", "mov", "wmv", "flv"},
			ImageExts:        []string{"png", "jpg", "jpeg", "gif", "webp"},
		},
		Lock: LockConfig{
			TTL: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			UploadPerMinute: 10,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 0.1,
			Environment:  "production",
		},
	}
}
