// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANIEFLIX_DATA_DIR", dir)

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Listen)
	assert.Equal(t, filepath.Join(dir, "videos"), cfg.Media.Root)
	assert.Equal(t, filepath.Join(dir, "scratch"), cfg.Media.Scratch)
	assert.Equal(t, filepath.Join(dir, "static"), cfg.Images.Root)
	assert.Equal(t, filepath.Join(dir, "anieflix.db"), cfg.Catalog.Path)
	assert.Equal(t, time.Hour, cfg.FFmpeg.Timeout)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, []string{"mp4", "avi", "mkv", "mov", "wmv", "flv"}, cfg.Ingest.VideoExts)
	assert.Equal(t, 1, cfg.Ingest.MaxConcurrent)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "anieflix.yaml", `
data_dir: `+dir+`
log_level: debug
media:
  root: media
ffmpeg:
  bin: /usr/local/bin/ffmpeg
  timeout: 90m
ingest:
  max_concurrent: 2
  video_exts: [".MP4", mkv]
lock:
  redis_addr: redis:6379
`)
	t.Setenv("ANIEFLIX_FFMPEG_TIMEOUT", "2h")
	t.Setenv("ANIEFLIX_INGEST_MAX_CONCURRENT", "4")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "media"), cfg.Media.Root, "relative paths resolve under data_dir")
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, 2*time.Hour, cfg.FFmpeg.Timeout, "env wins over file")
	assert.Equal(t, 4, cfg.Ingest.MaxConcurrent)
	assert.Equal(t, []string{"mp4", "mkv"}, cfg.Ingest.VideoExts)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
}

func TestLoad_InvalidEnvKeepsLowerLayer(t *testing.T) {
	t.Setenv("ANIEFLIX_DATA_DIR", t.TempDir())
	t.Setenv("ANIEFLIX_FFMPEG_TIMEOUT", "soon")
	t.Setenv("ANIEFLIX_INGEST_MAX_CONCURRENT", "many")
	t.Setenv("ANIEFLIX_TELEMETRY_ENABLED", "maybe")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.FFmpeg.Timeout)
	assert.Equal(t, 1, cfg.Ingest.MaxConcurrent)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_StrictFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANIEFLIX_DATA_DIR", dir)

	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown field", "a.yaml", "media:\n  rooot: /x\n", "strict config parse error"},
		{"multiple documents", "b.yaml", "listen: ':1'\n---\nlisten: ':2'\n", "multiple documents"},
		{"wrong extension", "c.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeFile(t, dir, tt.file, tt.body)).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANIEFLIX_DATA_DIR", dir)
	cfg, err := NewLoader(writeFile(t, dir, "empty.yml", "")).Load()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Media.Root = "/srv/videos"
	base.Media.Scratch = "/srv/scratch"
	base.Images.Root = "/srv/static"
	base.Catalog.Path = "/srv/anieflix.db"
	require.NoError(t, Validate(base))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"listen", func(c *AppConfig) { c.Listen = "5000" }, "listen"},
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "log_level"},
		{"scratch in root", func(c *AppConfig) { c.Media.Scratch = "/srv/videos/tmp" }, "media.scratch"},
		{"timeout", func(c *AppConfig) { c.FFmpeg.Timeout = 0 }, "ffmpeg.timeout"},
		{"no exts", func(c *AppConfig) { c.Ingest.VideoExts = nil }, "ingest.video_exts"},
		{"concurrency", func(c *AppConfig) { c.Ingest.MaxConcurrent = 0 }, "ingest.max_concurrent"},
		{"lock ttl", func(c *AppConfig) { c.Lock.TTL = 0 }, "lock.ttl"},
		{"exporter", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "zipkin" }, "telemetry.exporter"},
		{"sampling", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.SamplingRate = 2 }, "telemetry.sampling_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Ingest.VideoExts = append([]string(nil), base.Ingest.VideoExts...)
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Media.Root = "/srv/videos"
	cfg.Media.Scratch = "/srv/scratch"
	cfg.FFmpeg.Bin = " "
	cfg.Ingest.MaxUploadBytes = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg.bin")
	assert.Contains(t, err.Error(), "ingest.max_upload_bytes")
}

func TestParseList(t *testing.T) {
	t.Setenv("ANIEFLIX_TEST_LIST", " mp4, ,mkv ")
	assert.Equal(t, []string{"mp4", "mkv"}, ParseList("ANIEFLIX_TEST_LIST", nil))

	t.Setenv("ANIEFLIX_TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, ParseList("ANIEFLIX_TEST_LIST", []string{"x"}))
}

func TestParseBool(t *testing.T) {
	for v, want := range map[string]bool{"YES": true, "1": true, "no": false, "False": false} {
		t.Setenv("ANIEFLIX_TEST_BOOL", v)
		assert.Equal(t, want, ParseBool("ANIEFLIX_TEST_BOOL", !want), v)
	}
}
