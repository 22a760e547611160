// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode converts a source video into an HLS playlist plus
// segments by driving an external encoder.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/metrics"
)

// DefaultTimeout bounds a single transcode.
const DefaultTimeout = time.Hour

const versionTimeout = 10 * time.Second

// Transcoder turns Jobs into published-ready output directories.
type Transcoder struct {
	enc     Encoder
	timeout time.Duration
}

// New returns a Transcoder. A zero timeout means DefaultTimeout.
func New(enc Encoder, timeout time.Duration) *Transcoder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transcoder{enc: enc, timeout: timeout}
}

// Transcode runs the encoder for j and returns the absolute playlist path.
// The input file is never modified or removed.
func (t *Transcoder) Transcode(ctx context.Context, j Job) (string, error) {
	const op = "transcode"
	if err := os.MkdirAll(j.OutputDir, 0o750); err != nil {
		return "", media.E(op, media.KindStorage, fmt.Errorf("create output dir: %w", err))
	}

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := log.WithComponentFromContext(ctx, "transcode")
	logger.Info().
		Str(log.FieldEvent, "transcode.started").
		Str("input", j.Input).
		Str("output_dir", j.OutputDir).
		Dur("timeout", timeout).
		Msg("encoder run started")

	start := time.Now()
	res, err := t.enc.Run(runCtx, BuildHLSArgs(j))
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			metrics.ObserveTranscode("timeout", elapsed)
			logger.Error().
				Str(log.FieldEvent, "transcode.timeout").
				Dur("elapsed", elapsed).
				Str("stderr", res.Stderr).
				Msg("encoder exceeded its time limit")
			e := media.EReason(op, media.KindTranscode, media.ReasonTimeout, fmt.Errorf("exceeded %s", timeout))
			e.Detail = res.Stderr
			return "", e
		}
		metrics.ObserveTranscode("error", elapsed)
		logger.Error().Str(log.FieldEvent, "transcode.failed").Err(err).Msg("encoder could not run")
		e := media.EReason(op, media.KindTranscode, media.ReasonEncoderFailed, err)
		e.Detail = res.Stderr
		return "", e
	}

	if res.Code != 0 {
		metrics.ObserveTranscode("encoder_failed", elapsed)
		logger.Error().
			Str(log.FieldEvent, "transcode.failed").
			Int(log.FieldExitCode, res.Code).
			Str("stderr", res.Stderr).
			Msg("encoder exited with error")
		e := media.EReason(op, media.KindTranscode, media.ReasonEncoderFailed, fmt.Errorf("exit status %d", res.Code))
		e.Detail = res.Stderr
		return "", e
	}

	playlist := j.PlaylistPath()
	if _, err := os.Stat(playlist); err != nil {
		metrics.ObserveTranscode("encoder_failed", elapsed)
		logger.Error().Str(log.FieldEvent, "transcode.failed").Str(log.FieldPlaylistPath, playlist).Msg("encoder produced no playlist")
		return "", media.EReason(op, media.KindTranscode, media.ReasonEncoderFailed, fmt.Errorf("no playlist produced: %w", err))
	}

	metrics.ObserveTranscode("ok", elapsed)
	logger.Info().
		Str(log.FieldEvent, "transcode.finished").
		Str(log.FieldPlaylistPath, playlist).
		Dur("elapsed", elapsed).
		Msg("encoder run finished")
	return playlist, nil
}

// Version reports the first line of `ffmpeg -version`.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	res, err := t.enc.Run(ctx, []string{"-version"})
	if err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("exit status %d: %s", res.Code, res.Stderr)
	}
	first, _, _ := strings.Cut(res.Stdout, "\n")
	return strings.TrimSpace(first), nil
}
