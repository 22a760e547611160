// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "ANIEFLIX_"

// Loader builds an AppConfig from defaults, an optional YAML file and the
// environment.
type Loader struct {
	configPath string
}

// NewLoader returns a loader for configPath. An empty path means
// environment-only configuration.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Path is the watched config file, or "".
func (l *Loader) Path() string { return l.configPath }

// Load loads configuration with precedence: ENV > File > Defaults, then
// derives unset paths from data_dir and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)

	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}
	cfg.Ingest.VideoExts = normalizeExts(cfg.Ingest.VideoExts)
	cfg.Ingest.ImageExts = normalizeExts(cfg.Ingest.ImageExts)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg with strict parsing: unknown fields and
// trailing documents are errors.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func env(name string) string { return envPrefix + name }

func mergeEnv(cfg *AppConfig) {
	cfg.Listen = ParseString(env("LISTEN"), cfg.Listen)
	cfg.DataDir = ParseString(env("DATA_DIR"), cfg.DataDir)
	cfg.LogLevel = ParseString(env("LOG_LEVEL"), cfg.LogLevel)

	cfg.Media.Root = ParseString(env("MEDIA_ROOT"), cfg.Media.Root)
	cfg.Media.Scratch = ParseString(env("MEDIA_SCRATCH"), cfg.Media.Scratch)

	cfg.Images.Root = ParseString(env("IMAGES_ROOT"), cfg.Images.Root)
	cfg.Images.MaxBytes = ParseInt64(env("IMAGES_MAX_BYTES"), cfg.Images.MaxBytes)

	cfg.Catalog.Path = ParseString(env("CATALOG_PATH"), cfg.Catalog.Path)
	cfg.Catalog.BusyTimeout = ParseDuration(env("CATALOG_BUSY_TIMEOUT"), cfg.Catalog.BusyTimeout)
	cfg.Catalog.MaxOpenConns = ParseInt(env("CATALOG_MAX_OPEN_CONNS"), cfg.Catalog.MaxOpenConns)

	cfg.FFmpeg.Bin = ParseString(env("FFMPEG_BIN"), cfg.FFmpeg.Bin)
	cfg.FFmpeg.Timeout = ParseDuration(env("FFMPEG_TIMEOUT"), cfg.FFmpeg.Timeout)
	cfg.FFmpeg.KillGrace = ParseDuration(env("FFMPEG_KILL_GRACE"), cfg.FFmpeg.KillGrace)

	cfg.Ingest.MaxConcurrent = ParseInt(env("INGEST_MAX_CONCURRENT"), cfg.Ingest.MaxConcurrent)
	cfg.Ingest.MaxUploadBytes = ParseInt64(env("INGEST_MAX_UPLOAD_BYTES"), cfg.Ingest.MaxUploadBytes)
	cfg.Ingest.StagingRetention = ParseDuration(env("INGEST_STAGING_RETENTION"), cfg.Ingest.StagingRetention)
	cfg.Ingest.VideoExts = ParseList(env("INGEST_VIDEO_EXTS"), cfg.Ingest.VideoExts)
	cfg.Ingest.ImageExts = ParseList(env("INGEST_IMAGE_EXTS"), cfg.Ingest.ImageExts)

	cfg.Lock.RedisAddr = ParseString(env("LOCK_REDIS_ADDR"), cfg.Lock.RedisAddr)
	cfg.Lock.RedisPassword = ParseString(env("LOCK_REDIS_PASSWORD"), cfg.Lock.RedisPassword)
	cfg.Lock.RedisDB = ParseInt(env("LOCK_REDIS_DB"), cfg.Lock.RedisDB)
	cfg.Lock.TTL = ParseDuration(env("LOCK_TTL"), cfg.Lock.TTL)

	cfg.RateLimit.UploadPerMinute = ParseInt(env("RATELIMIT_UPLOAD_PER_MINUTE"), cfg.RateLimit.UploadPerMinute)

	cfg.Telemetry.Enabled = ParseBool(env("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(env("TELEMETRY_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(env("TELEMETRY_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(env("TELEMETRY_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(env("TELEMETRY_ENVIRONMENT"), cfg.Telemetry.Environment)
}

// resolvePaths makes DataDir absolute and fills derived directories.
func resolvePaths(cfg *AppConfig) error {
	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data_dir: %w", err)
	}
	cfg.DataDir = abs

	derive := func(p *string, def string) {
		if *p == "" {
			*p = filepath.Join(abs, def)
		} else if !filepath.IsAbs(*p) {
			*p = filepath.Join(abs, *p)
		}
	}
	derive(&cfg.Media.Root, "videos")
	derive(&cfg.Media.Scratch, "scratch")
	derive(&cfg.Images.Root, "static")
	derive(&cfg.Catalog.Path, "anieflix.db")
	return nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
