// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback maps media keys to files on disk for streaming.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/layout"
	"github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/metrics"
)

// Catalog is the lookup the resolver needs.
type Catalog interface {
	LookupStoredPath(ctx context.Context, key media.Key) (string, error)
}

// Resolver turns media keys into absolute playlist and segment paths.
type Resolver struct {
	catalog Catalog
	layout  *layout.Manager
	fs      layout.FS
}

// NewResolver returns a Resolver. A nil fs means the real filesystem.
func NewResolver(c Catalog, l *layout.Manager, fs layout.FS) *Resolver {
	if fs == nil {
		fs = layout.OSFS{}
	}
	return &Resolver{catalog: c, layout: l, fs: fs}
}

// ResolvePlaylist returns the absolute playlist path of key.
func (r *Resolver) ResolvePlaylist(ctx context.Context, key media.Key) (string, error) {
	abs, err := r.playlist(ctx, key)
	if err != nil {
		return "", r.fail(ctx, key, "playlist", err)
	}
	if err := r.exists(abs); err != nil {
		return "", r.fail(ctx, key, "playlist", err)
	}
	metrics.IncPlaybackResolve(string(key.Type), "ok")
	return abs, nil
}

// ResolveSegment returns the absolute path of segment name of key. The name
// is validated before the catalog or the filesystem is consulted.
func (r *Resolver) ResolveSegment(ctx context.Context, key media.Key, name string) (string, error) {
	if err := layout.ValidateSegmentName(name); err != nil {
		return "", r.fail(ctx, key, "segment", media.E("playback.segment", media.KindInvalidPath, err))
	}
	playlist, err := r.playlist(ctx, key)
	if err != nil {
		return "", r.fail(ctx, key, "segment", err)
	}
	abs, err := r.layout.SegmentPath(playlist, name)
	if err != nil {
		return "", r.fail(ctx, key, "segment", err)
	}
	if err := r.exists(abs); err != nil {
		return "", r.fail(ctx, key, "segment", err)
	}
	metrics.IncPlaybackResolve(string(key.Type), "ok")
	return abs, nil
}

func (r *Resolver) playlist(ctx context.Context, key media.Key) (string, error) {
	rel, err := r.catalog.LookupStoredPath(ctx, key)
	if err != nil {
		var me *media.Error
		if errors.As(err, &me) {
			return "", err
		}
		return "", media.E("playback.lookup", media.KindStorage, err)
	}
	if rel == "" {
		return "", media.EReason("playback.lookup", media.KindNotFound, media.ReasonNoRecord, fmt.Errorf("no stored path for %s", key))
	}
	return r.layout.Resolve(rel)
}

func (r *Resolver) exists(abs string) error {
	fi, err := r.fs.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return media.EReason("playback.stat", media.KindNotFound, media.ReasonFileMissing, fmt.Errorf("%s: %w", filepath.Base(abs), err))
	case err != nil:
		return media.E("playback.stat", media.KindStorage, err)
	case fi.IsDir():
		return media.EReason("playback.stat", media.KindNotFound, media.ReasonFileMissing, fmt.Errorf("%s is a directory", filepath.Base(abs)))
	}
	return nil
}

// fail logs which case occurred. NoRecord and FileMissing both surface as 404
// but call for different operator action.
func (r *Resolver) fail(ctx context.Context, key media.Key, what string, err error) error {
	result := "error"
	switch {
	case errors.Is(err, media.ErrNoRecord):
		result = "no_record"
	case errors.Is(err, media.ErrFileMissing):
		result = "file_missing"
	case errors.Is(err, media.ErrInvalidPath):
		result = "invalid_path"
	}
	metrics.IncPlaybackResolve(string(key.Type), result)

	logger := log.WithComponentFromContext(ctx, "playback")
	ev := logger.Warn()
	if result == "error" {
		ev = logger.Error()
	}
	ev.Err(err).
		Str(log.FieldEvent, "playback.not_resolved").
		Str(log.FieldMediaKey, key.String()).
		Str(log.FieldKind, string(media.KindOf(err))).
		Str(log.FieldReason, result).
		Str("target", what).
		Msg("playback resolution failed")
	return err
}
