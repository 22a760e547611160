// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest turns an uploaded video into a published HLS asset folder.
//
// An ingest never mixes generations: output is produced in a staging
// directory and swapped into place with renames only after the encoder
// succeeded. The swap is provisional: the previous generation and the folder
// lock are kept by the returned Publication until the caller has recorded the
// new playlist (Commit) or given up on it (Abort).
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/layout"
	"github.com/ManuGH/anieflix/internal/lock"
	"github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/metrics"
	"github.com/ManuGH/anieflix/internal/transcode"
)

// DefaultVideoExts are the accepted upload extensions.
var DefaultVideoExts = []string{"mp4", "avi", "mkv", "mov", "wmv", "flv"}

// Transcoder is the capability the pipeline needs from internal/transcode.
type Transcoder interface {
	Transcode(ctx context.Context, j transcode.Job) (string, error)
}

// Config controls admission and resource limits.
type Config struct {
	VideoExts     []string // lower-case, without dot
	MaxConcurrent int64    // simultaneous encoder runs
}

// Request is one upload to ingest.
type Request struct {
	Key         media.Key // zero for keyless ingests
	Upload      io.Reader
	Filename    string // original client filename
	DisplayName string
}

// Result describes a published asset.
type Result struct {
	RelativePath     string // "{folder}/{base}.m3u8", "/" separated
	Folder           string
	AbsolutePlaylist string
}

// Pipeline runs ingests.
type Pipeline struct {
	layout *layout.Manager
	fs     layout.FS
	tr     Transcoder
	locker lock.Locker
	slots  *semaphore.Weighted
	exts   []string

	mu     sync.Mutex
	active map[string]struct{} // staging entries PruneStaging must not touch
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFS replaces the filesystem used for publish and removal.
func WithFS(fs layout.FS) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// New creates a Pipeline.
func New(l *layout.Manager, tr Transcoder, locker lock.Locker, cfg Config, opts ...Option) *Pipeline {
	exts := cfg.VideoExts
	if len(exts) == 0 {
		exts = DefaultVideoExts
	}
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		norm = append(norm, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	p := &Pipeline{
		layout: l,
		fs:     layout.OSFS{},
		tr:     tr,
		locker: locker,
		slots:  semaphore.NewWeighted(cfg.MaxConcurrent),
		exts:   norm,
		active: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Accepts reports whether filename has an allowed video extension.
func (p *Pipeline) Accepts(filename string) bool {
	return slices.Contains(p.exts, layout.Ext(filename))
}

// Ingest stores the upload, transcodes it and publishes the asset folder.
// Once the upload has been read, the remaining work is detached from ctx
// cancellation and bounded only by the encoder timeout.
//
// On success the caller owns the returned Publication and must call Commit or
// Abort on it; the folder stays locked until then.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Publication, error) {
	const op = "ingest"
	logger := log.WithComponentFromContext(ctx, "ingest").With().
		Str(log.FieldMediaKey, req.Key.String()).
		Logger()

	if !p.Accepts(req.Filename) {
		metrics.IncIngest("unsupported_format")
		logger.Info().Str(log.FieldEvent, "ingest.rejected").Str("filename", req.Filename).Msg("unsupported video format")
		return nil, media.E(op, media.KindUnsupportedFormat, fmt.Errorf("extension %q not allowed", layout.Ext(req.Filename)))
	}

	folder := p.layout.AssetFolder(req.Key, req.DisplayName, req.Filename)
	base := p.layout.BaseName(req.DisplayName, req.Filename)
	logger = logger.With().Str(log.FieldFolder, folder).Logger()

	lease, err := p.locker.TryLock(ctx, folder)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			metrics.IncIngest("busy")
			logger.Warn().Str(log.FieldEvent, "ingest.busy").Msg("asset folder is being ingested")
			return nil, media.E(op, media.KindBusy, fmt.Errorf("folder %s: %w", folder, err))
		}
		metrics.IncIngest("storage_error")
		return nil, media.E(op, media.KindStorage, err)
	}
	handedOff := false
	defer func() {
		if !handedOff {
			lease.Release()
		}
	}()

	scratch, err := p.writeScratch(req)
	if scratch != "" {
		defer p.removeScratch(logger, scratch)
	}
	if err != nil {
		metrics.IncIngest("storage_error")
		logger.Error().Err(err).Str(log.FieldEvent, "ingest.scratch_failed").Msg("could not store upload")
		return nil, err
	}

	work := context.WithoutCancel(ctx)
	if err := p.slots.Acquire(work, 1); err != nil {
		metrics.IncIngest("storage_error")
		return nil, media.E(op, media.KindStorage, err)
	}
	metrics.IngestInFlight.Inc()
	pub, err := p.transcodeAndPublish(work, logger, lease, folder, base, scratch)
	metrics.IngestInFlight.Dec()
	p.slots.Release(1)
	if err != nil {
		metrics.IncIngest(outcome(err))
		return nil, err
	}

	handedOff = true
	metrics.IncIngest("published")
	logger.Info().
		Str(log.FieldEvent, "ingest.published").
		Str(log.FieldPlaylistPath, pub.RelativePath).
		Msg("asset published")
	return pub, nil
}

func (p *Pipeline) writeScratch(req Request) (string, error) {
	f, err := p.layout.CreateScratchFile(req.Filename)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := io.Copy(f, req.Upload); err != nil {
		_ = f.Close()
		return name, media.E("ingest.scratch", media.KindStorage, err)
	}
	if err := f.Close(); err != nil {
		return name, media.E("ingest.scratch", media.KindStorage, err)
	}
	return name, nil
}

func (p *Pipeline) removeScratch(logger zerolog.Logger, name string) {
	if err := p.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str(log.FieldScratchPath, name).Msg("failed to remove scratch file")
	}
}

func (p *Pipeline) transcodeAndPublish(ctx context.Context, logger zerolog.Logger, lease *lock.Lease, folder, base, scratch string) (*Publication, error) {
	staging, err := p.layout.StagingDir(folder)
	if err != nil {
		return nil, err
	}
	p.track(staging)
	defer p.untrack(staging)

	if _, err := p.tr.Transcode(ctx, transcode.Job{Input: scratch, OutputDir: staging, BaseName: base}); err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "ingest.transcode_failed").
			Str(log.FieldKind, string(media.KindOf(err))).
			Str(log.FieldReason, string(media.ReasonOf(err))).
			Str("staging_dir", staging).
			Msg("transcode failed; staging output kept")
		var me *media.Error
		if !errors.As(err, &me) {
			err = media.EReason("ingest.transcode", media.KindTranscode, media.ReasonEncoderFailed, err)
		}
		return nil, err
	}

	// The folder may belong to someone else once a shared lease is gone.
	if err := lease.Err(); err != nil {
		logger.Error().Err(err).
			Str(log.FieldEvent, "ingest.lease_lost").
			Str("staging_dir", staging).
			Msg("folder lock lost before publish; staging output kept")
		return nil, media.E("ingest.publish", media.KindBusy, fmt.Errorf("folder %s: %w", folder, err))
	}

	dst, retired, err := p.swap(logger, folder, staging)
	if err != nil {
		return nil, err
	}
	if retired != "" {
		p.track(retired)
	}

	return &Publication{
		Result: Result{
			RelativePath:     path.Join(folder, base+".m3u8"),
			Folder:           folder,
			AbsolutePlaylist: filepath.Join(dst, base+".m3u8"),
		},
		p:       p,
		lease:   lease,
		logger:  logger,
		dst:     dst,
		retired: retired,
	}, nil
}

// swap moves staging into place. A previous generation is moved aside and
// its path returned; it is restored if the swap fails.
func (p *Pipeline) swap(logger zerolog.Logger, folder, staging string) (dst, retired string, err error) {
	const op = "ingest.publish"
	dst, err = p.layout.FolderPath(folder)
	if err != nil {
		return "", "", err
	}

	if _, err := p.fs.Stat(dst); err == nil {
		if retired, err = p.layout.RetiredPath(folder); err != nil {
			return "", "", err
		}
		if err := p.fs.Rename(dst, retired); err != nil {
			return "", "", media.E(op, media.KindStorage, fmt.Errorf("retire previous generation: %w", err))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", "", media.E(op, media.KindStorage, err)
	}

	if err := p.fs.Rename(staging, dst); err != nil {
		if retired != "" {
			if rbErr := p.fs.Rename(retired, dst); rbErr != nil {
				logger.Error().Err(rbErr).Str("retired", retired).Msg("failed to restore previous generation")
			}
		}
		return "", "", media.E(op, media.KindStorage, fmt.Errorf("publish: %w", err))
	}
	return dst, retired, nil
}

func (p *Pipeline) track(dir string) {
	p.mu.Lock()
	p.active[filepath.Base(dir)] = struct{}{}
	p.mu.Unlock()
}

func (p *Pipeline) untrack(dir string) {
	if dir == "" {
		return
	}
	p.mu.Lock()
	delete(p.active, filepath.Base(dir))
	p.mu.Unlock()
}

func (p *Pipeline) isActive(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[name]
	return ok
}

// Cleanup removes a published asset folder. The caller must hold the folder
// lock.
func (p *Pipeline) Cleanup(folder string) error {
	dst, err := p.layout.FolderPath(folder)
	if err != nil {
		return err
	}
	if err := p.fs.RemoveAll(dst); err != nil {
		return media.E("ingest.cleanup", media.KindStorage, err)
	}
	return nil
}

// Remove deletes the asset folder that holds the catalog-relative playlist rel.
func (p *Pipeline) Remove(ctx context.Context, key media.Key, rel string) error {
	const op = "ingest.remove"
	if _, err := p.layout.Resolve(rel); err != nil {
		return err
	}
	folder, _, ok := strings.Cut(path.Clean(rel), "/")
	if !ok {
		return media.E(op, media.KindInvalidPath, fmt.Errorf("%q has no asset folder", rel))
	}

	lease, err := p.locker.TryLock(ctx, folder)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return media.E(op, media.KindBusy, err)
		}
		return media.E(op, media.KindStorage, err)
	}
	defer lease.Release()

	if err := p.Cleanup(folder); err != nil {
		return err
	}
	logger := log.WithComponentFromContext(ctx, "ingest")
	logger.Info().
		Str(log.FieldEvent, "ingest.removed").
		Str(log.FieldMediaKey, key.String()).
		Str(log.FieldFolder, folder).
		Msg("asset folder removed")
	return nil
}

// PruneStaging removes staging entries last modified before olderThan ago,
// skipping entries of running ingests and uncommitted publications. It returns
// the number of removed entries.
func (p *Pipeline) PruneStaging(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(p.layout.StagingRoot())
	if err != nil {
		return 0, media.E("ingest.prune", media.KindStorage, err)
	}
	logger := log.WithComponent("ingest")
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if p.isActive(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := p.fs.RemoveAll(filepath.Join(p.layout.StagingRoot(), e.Name())); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, e.Name()).Msg("failed to prune staging entry")
			continue
		}
		removed++
	}
	return removed, nil
}

func outcome(err error) string {
	switch media.KindOf(err) {
	case media.KindTranscode:
		if media.ReasonOf(err) == media.ReasonTimeout {
			return "timeout"
		}
		return "transcode_error"
	case media.KindStorage:
		return "storage_error"
	case media.KindInvalidPath:
		return "invalid_path"
	default:
		return "error"
	}
}
