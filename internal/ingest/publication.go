// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/lock"
	"github.com/ManuGH/anieflix/internal/log"
)

// ErrSettled is returned by Commit or Abort on a Publication that was already
// committed or aborted the other way.
var ErrSettled = errors.New("ingest: publication already settled")

// Publication is a swapped-in asset folder awaiting its catalog write. Until
// Commit or Abort it holds the folder lock and the previous generation, so an
// abort can put the folder back exactly as it was.
type Publication struct {
	Result

	p       *Pipeline
	lease   *lock.Lease
	logger  zerolog.Logger
	dst     string
	retired string // previous generation, "" for a first publish

	mu      sync.Mutex
	settled string // "commit" or "abort"
	err     error
}

// Superseded reports whether the publication replaced an earlier generation
// of the same folder.
func (pub *Publication) Superseded() bool { return pub.retired != "" }

// Commit makes the publication final: the previous generation is deleted and
// the folder lock released. Failing to delete the old generation is not an
// error; PruneStaging collects it later.
func (pub *Publication) Commit() error {
	return pub.settle("commit", func() error {
		if pub.retired == "" {
			return nil
		}
		pub.p.untrack(pub.retired)
		if err := pub.p.fs.RemoveAll(pub.retired); err != nil {
			pub.logger.Warn().Err(err).Str("retired", pub.retired).Msg("failed to remove previous generation")
			return nil
		}
		pub.logger.Info().Str(log.FieldEvent, "ingest.superseded").Msg("previous generation removed")
		return nil
	})
}

// Abort undoes the publication: the new folder is removed and the previous
// generation, if any, moved back into place before the folder lock is
// released. When the lease has been lost the folder is left alone.
func (pub *Publication) Abort() error {
	const op = "ingest.abort"
	return pub.settle("abort", func() error {
		if err := pub.lease.Err(); err != nil {
			pub.p.untrack(pub.retired)
			return media.E(op, media.KindBusy, fmt.Errorf("folder %s: %w", pub.Folder, err))
		}
		if err := pub.p.fs.RemoveAll(pub.dst); err != nil {
			return media.E(op, media.KindStorage, err)
		}
		if pub.retired == "" {
			pub.logger.Info().Str(log.FieldEvent, "ingest.aborted").Msg("unpublished asset folder")
			return nil
		}
		pub.p.untrack(pub.retired)
		if err := pub.p.fs.Rename(pub.retired, pub.dst); err != nil {
			return media.E(op, media.KindStorage, fmt.Errorf("restore previous generation: %w", err))
		}
		pub.logger.Info().Str(log.FieldEvent, "ingest.aborted").Msg("restored previous generation")
		return nil
	})
}

func (pub *Publication) settle(how string, fn func() error) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.settled != "" {
		if pub.settled != how {
			return ErrSettled
		}
		return pub.err
	}
	pub.settled = how
	pub.err = fn()
	pub.lease.Release()
	return pub.err
}
