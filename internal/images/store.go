// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package images stores poster and backdrop uploads.
package images

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/layout"
	"github.com/ManuGH/anieflix/internal/log"
)

// Kind is the image category; each kind has its own directory.
type Kind string

const (
	Poster     Kind = "posters"
	Backdrop   Kind = "backdrops"
	ShowPoster Kind = "show-posters"
)

// ParseKind validates a kind taken from a URL.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	switch k {
	case Poster, Backdrop, ShowPoster:
		return k, true
	}
	return "", false
}

// DefaultExts are the accepted image extensions.
var DefaultExts = []string{"png", "jpg", "jpeg", "gif", "webp"}

// DefaultMaxBytes caps a single image upload.
const DefaultMaxBytes = 20 << 20

// Config configures a Store.
type Config struct {
	Root     string
	Exts     []string
	MaxBytes int64
}

// Store writes images atomically under Root/{kind}/.
type Store struct {
	root     string
	exts     []string
	maxBytes int64
}

// New creates the kind directories under cfg.Root.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("images: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	for _, k := range []Kind{Poster, Backdrop, ShowPoster} {
		if err := os.MkdirAll(filepath.Join(root, string(k)), 0o750); err != nil {
			return nil, fmt.Errorf("images: create %s dir: %w", k, err)
		}
	}
	exts := cfg.Exts
	if len(exts) == 0 {
		exts = DefaultExts
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Store{root: root, exts: exts, maxBytes: cfg.MaxBytes}, nil
}

// Accepts reports whether filename has an allowed image extension.
func (s *Store) Accepts(filename string) bool {
	return slices.Contains(s.exts, layout.Ext(filename))
}

// Save stores an uploaded image and returns the generated file name,
// "{sanitized}_{8 hex}.{ext}". The upload must decode as an image; images
// larger than the kind's bounding box are scaled down to fit it and may be
// re-encoded under a different extension.
func (s *Store) Save(ctx context.Context, kind Kind, filename string, r io.Reader) (string, error) {
	const op = "images.save"
	if !s.Accepts(filename) {
		return "", media.E(op, media.KindUnsupportedFormat, fmt.Errorf("extension %q not allowed", layout.Ext(filename)))
	}

	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	if ct := http.DetectContentType(head); !strings.HasPrefix(ct, "image/") {
		return "", media.E(op, media.KindUnsupportedFormat, fmt.Errorf("content is %s, not an image", ct))
	}

	data, err := io.ReadAll(io.LimitReader(br, s.maxBytes+1))
	if err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", media.E(op, media.KindUnsupportedFormat, fmt.Errorf("image exceeds %d bytes", s.maxBytes))
	}

	out, ext, err := fitImage(data, layout.Ext(filename), BoundsFor(kind))
	if err != nil {
		return "", media.E(op, media.KindUnsupportedFormat, err)
	}

	name, dst, err := s.freshName(kind, filename, ext)
	if err != nil {
		return "", err
	}

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o640))
	if err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := log.WithComponentFromContext(ctx, "images")
			logger.Debug().Err(err).Msg("cleanup pending image")
		}
	}()

	if _, err := pending.Write(out); err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	return name, nil
}

func (s *Store) freshName(kind Kind, filename, ext string) (string, string, error) {
	base := layout.DeriveAssetFolder("", filename)
	for range 3 {
		token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		name := base + "_" + token + "." + ext
		dst := filepath.Join(s.root, string(kind), name)
		if _, err := os.Lstat(dst); errors.Is(err, os.ErrNotExist) {
			return name, dst, nil
		}
	}
	return "", "", media.E("images.save", media.KindStorage, errors.New("could not allocate a unique image name"))
}

// Path returns the absolute path of a stored image.
func (s *Store) Path(kind Kind, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `\`+"\x00") || strings.HasPrefix(name, ".") {
		return "", media.E("images.path", media.KindInvalidPath, fmt.Errorf("bad image name %q", name))
	}
	return filepath.Join(s.root, string(kind), name), nil
}

// Remove deletes a stored image. Removing a missing image is not an error.
func (s *Store) Remove(kind Kind, name string) error {
	if name == "" {
		return nil
	}
	p, err := s.Path(kind, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return media.E("images.remove", media.KindStorage, err)
	}
	return nil
}
