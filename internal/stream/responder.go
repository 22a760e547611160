// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream writes HLS playlists and segments to HTTP clients.
package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/log"
)

const (
	ContentTypePlaylist = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
)

// ServePlaylist writes the playlist at path. Playlists are never cached by
// clients so a re-ingest is picked up on the next request.
func ServePlaylist(w http.ResponseWriter, r *http.Request, path string) error {
	f, info, err := open(path)
	if err != nil {
		return err
	}
	defer closeFile(f, path)

	h := w.Header()
	h.Set("Content-Type", ContentTypePlaylist)
	h.Set("Cache-Control", "no-cache")
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, f)
	}
	return nil
}

// ServeSegment writes the segment at path, honoring a single byte range.
func ServeSegment(w http.ResponseWriter, r *http.Request, path string) error {
	f, info, err := open(path)
	if err != nil {
		return err
	}
	defer closeFile(f, path)
	size := info.Size()
	isHead := r.Method == http.MethodHead

	h := w.Header()
	h.Set("Content-Type", ContentTypeSegment)
	h.Set("Cache-Control", "public, max-age=60")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	if notModified(r, info.ModTime()) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	var rng Range
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		rng, err = ParseRange(rangeHeader, size)
	}
	if rangeHeader == "" || errors.Is(err, ErrUnknownUnit) {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if !isHead {
			_, _ = io.Copy(w, f)
		}
		return nil
	}
	if err != nil {
		h.Set("Content-Range", Format416ContentRange(size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	h.Set("Content-Range", FormatContentRange(rng, size))
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if isHead {
		return nil
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		return nil
	}
	_, _ = io.CopyN(w, f, rng.Length())
	return nil
}

func open(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path) // #nosec G304 -- path is resolved and confined by the playback resolver
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, media.EReason("stream.open", media.KindNotFound, media.ReasonFileMissing, err)
		}
		return nil, nil, media.E("stream.open", media.KindStorage, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, media.E("stream.open", media.KindStorage, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, media.EReason("stream.open", media.KindNotFound, media.ReasonFileMissing, fmt.Errorf("%s is a directory", path))
	}
	return f, info, nil
}

func closeFile(f *os.File, path string) {
	if err := f.Close(); err != nil {
		log.L().Debug().Err(err).Str(log.FieldPath, path).Msg("failed to close media file")
	}
}

// notModified evaluates If-Modified-Since at one-second resolution.
func notModified(r *http.Request, modTime time.Time) bool {
	if r.Header.Get("Range") != "" {
		return false
	}
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(t)
}
