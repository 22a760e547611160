// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/anieflix/internal/config"
	"github.com/ManuGH/anieflix/internal/lock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	t.Setenv("ANIEFLIX_DATA_DIR", t.TempDir())
	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)
	return cfg
}

func TestBuild_WiresServer(t *testing.T) {
	cfg := testConfig(t)
	a, err := build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anieflix_http_requests_in_flight")

	assert.DirExists(t, cfg.Media.Root)
	assert.DirExists(t, filepath.Join(cfg.Images.Root, "posters"))
	assert.FileExists(t, cfg.Catalog.Path)
}

func TestBuild_RedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Lock.RedisAddr = mr.Addr()

	locker, err := newLocker(context.Background(), cfg.Lock)
	require.NoError(t, err)
	rl, ok := locker.(*lock.RedisLocker)
	require.True(t, ok)
	require.NoError(t, rl.Close())

	cfg.Lock.RedisAddr = "127.0.0.1:1"
	_, err = build(context.Background(), cfg)
	require.Error(t, err)
}

func TestPruneStagingAtStart(t *testing.T) {
	cfg := testConfig(t)
	a, err := build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	stale := filepath.Join(cfg.Media.Root, ".staging", "Old-m1-abcd")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	old := time.Now().Add(-2 * cfg.Ingest.StagingRetention)
	require.NoError(t, os.Chtimes(stale, old, old))

	a.pruneStaging()
	assert.NoDirExists(t, stale)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, config.NewHolder(cfg, config.NewLoader(""))) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestHealthcheck(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ok.Close()
	assert.Equal(t, 0, healthcheck(ok.URL, time.Second))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	assert.Equal(t, 1, healthcheck(down.URL, time.Second))
}
