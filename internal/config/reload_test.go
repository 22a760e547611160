// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func loadHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ANIEFLIX_DATA_DIR", dir)
	path := writeFile(t, dir, "anieflix.yaml", body)
	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestHolder_ReloadAppliesLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	h, path := loadHolder(t, "log_level: info\n")
	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
	require.NoError(t, h.Reload())

	assert.Equal(t, "warn", h.Get().LogLevel)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	select {
	case got := <-updates:
		assert.Equal(t, "warn", got.LogLevel)
	default:
		t.Fatal("subscriber was not notified")
	}
}

func TestHolder_InvalidReloadKeepsCurrent(t *testing.T) {
	h, path := loadHolder(t, "ffmpeg:\n  bin: ffmpeg\n")

	require.NoError(t, os.WriteFile(path, []byte("ffmpeg:\n  binary: ffmpeg\n"), 0o600))
	require.Error(t, h.Reload())
	assert.Equal(t, "ffmpeg", h.Get().FFmpeg.Bin)
}

func TestHolder_NotifyDoesNotBlock(t *testing.T) {
	h, _ := loadHolder(t, "listen: ':5000'\n")
	full := make(chan AppConfig)
	h.Subscribe(full)
	require.NoError(t, h.Reload())
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	h, path := loadHolder(t, "log_level: info\n")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0o600))
	assert.Eventually(t, func() bool { return h.Get().LogLevel == "error" }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestHolder_WatchWithoutFile(t *testing.T) {
	h := NewHolder(Default(), NewLoader(""))
	require.NoError(t, h.Watch(context.Background()))
	<-h.Done()
}

func TestHolder_WatchMissingDir(t *testing.T) {
	h := NewHolder(Default(), NewLoader(filepath.Join(t.TempDir(), "gone", "anieflix.yaml")))
	require.Error(t, h.Watch(context.Background()))
	<-h.Done()
}
