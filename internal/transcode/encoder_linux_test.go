// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/anieflix/internal/domain/media"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755)) // #nosec G306
	return p
}

func waitGroupGone(t *testing.T, pgid int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pgid, syscall.Signal(0)); errors.Is(err, syscall.ESRCH) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	t.Fatalf("process group %d survived", pgid)
}

func TestFFmpegEncoder_CapturesStderrAndExitCode(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	enc := &FFmpegEncoder{Bin: "sh"}
	res, err := enc.Run(context.Background(), []string{"-c", "echo out; echo boom >&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Code)
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "boom", res.Stderr)
}

func TestFFmpegEncoder_MissingBinary(t *testing.T) {
	enc := &FFmpegEncoder{Bin: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := enc.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestFFmpegEncoder_CancelKillsProcessTree(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pidFile := filepath.Join(t.TempDir(), "pid")
	enc := &FFmpegEncoder{Bin: "sh", KillGrace: 100 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// $0 is the pid file; the shell leaves a background grandchild behind.
	script := `echo $$ > "$0"; trap "" TERM; sleep 100 & sleep 100`
	_, err := enc.Run(ctx, []string{"-c", script, pidFile})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pgid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	waitGroupGone(t, pgid)
}

func TestTranscoder_TimeoutWithRealProcess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bin := fakeFFmpeg(t, "sleep 100 & sleep 100")
	tr := New(&FFmpegEncoder{Bin: bin, KillGrace: 100 * time.Millisecond}, 200*time.Millisecond)
	j := newJob(t)

	start := time.Now()
	_, err := tr.Transcode(context.Background(), j)
	assert.ErrorIs(t, err, media.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.FileExists(t, j.Input)
}

func TestTranscoder_SuccessWithRealProcess(t *testing.T) {
	// The last argument is the playlist path.
	bin := fakeFFmpeg(t, `for a; do last=$a; done; echo "#EXTM3U" > "$last"`)
	tr := New(&FFmpegEncoder{Bin: bin}, time.Minute)
	j := newJob(t)

	playlist, err := tr.Transcode(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, j.PlaylistPath(), playlist)
}
