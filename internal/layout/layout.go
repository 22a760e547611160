// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package layout derives and confines every on-disk path of the media store:
// scratch uploads, staging output and published asset folders.
//
// Published layout, relative to the media root:
//
//	{assetFolder}/{baseName}.m3u8
//	{assetFolder}/{baseName}_{NNN}.ts
package layout

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ManuGH/anieflix/internal/domain/media"
)

// StagingDirName holds in-flight transcodes and retired generations. It lives
// under the media root so publishing is a same-filesystem rename.
const StagingDirName = ".staging"

// Config is the subset of application config the layout needs.
type Config struct {
	MediaRoot   string
	ScratchRoot string
}

// Manager owns the media root and the scratch directory.
type Manager struct {
	root    string // symlink-resolved absolute media root
	scratch string
	staging string
}

// New creates the root, scratch and staging directories if needed.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.MediaRoot) == "" {
		return nil, errors.New("layout: media root is required")
	}
	if strings.TrimSpace(cfg.ScratchRoot) == "" {
		return nil, errors.New("layout: scratch root is required")
	}

	root, err := prepareDir(cfg.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("layout: media root: %w", err)
	}
	scratch, err := prepareDir(cfg.ScratchRoot)
	if err != nil {
		return nil, fmt.Errorf("layout: scratch root: %w", err)
	}
	staging := filepath.Join(root, StagingDirName)
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return nil, fmt.Errorf("layout: staging dir: %w", err)
	}

	return &Manager{root: root, scratch: scratch, staging: staging}, nil
}

func prepareDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Root returns the absolute media root.
func (m *Manager) Root() string { return m.root }

// ScratchRoot returns the absolute scratch directory.
func (m *Manager) ScratchRoot() string { return m.scratch }

// StagingRoot returns the directory holding staging and retired folders.
func (m *Manager) StagingRoot() string { return m.staging }

// AssetFolder returns the folder name for an asset. Known keys qualify the name
// with the asset id so two assets with the same title never share a folder.
func (m *Manager) AssetFolder(key media.Key, displayName, fallbackFilename string) string {
	name := DeriveAssetFolder(displayName, fallbackFilename)
	if key.IsZero() {
		return name
	}
	return name + "-" + key.Slug()
}

// BaseName returns the playlist and segment prefix. It is never id-qualified.
func (m *Manager) BaseName(displayName, fallbackFilename string) string {
	return DeriveAssetFolder(displayName, fallbackFilename)
}

// FolderPath returns the absolute path of a published asset folder.
func (m *Manager) FolderPath(folder string) (string, error) {
	if folder == "" || strings.ContainsAny(folder, "/\\\x00") || strings.HasPrefix(folder, ".") {
		return "", media.E("layout.folder", media.KindInvalidPath, fmt.Errorf("bad folder name %q", folder))
	}
	return filepath.Join(m.root, folder), nil
}

// Resolve maps a catalog-relative path to an absolute path under the media root.
// Anything that would escape the root, lexically or through symlinks, is
// rejected with InvalidPath.
func (m *Manager) Resolve(rel string) (string, error) {
	const op = "layout.resolve"
	if rel == "" {
		return "", media.E(op, media.KindInvalidPath, errors.New("empty path"))
	}
	if strings.ContainsAny(rel, "\\\x00") {
		return "", media.E(op, media.KindInvalidPath, fmt.Errorf("illegal character in %q", rel))
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", media.E(op, media.KindInvalidPath, fmt.Errorf("path must be relative: %q", rel))
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", media.E(op, media.KindInvalidPath, fmt.Errorf("path traversal: %q", rel))
	}
	if first, _, _ := strings.Cut(clean, "/"); strings.HasPrefix(first, ".") {
		return "", media.E(op, media.KindInvalidPath, fmt.Errorf("hidden top-level entry: %q", rel))
	}

	resolved, err := m.confine(filepath.Join(m.root, filepath.FromSlash(clean)))
	if err != nil {
		return "", media.E(op, media.KindInvalidPath, err)
	}
	return resolved, nil
}

// Relative is the inverse of Resolve. The result always uses "/" separators.
func (m *Manager) Relative(abs string) (string, error) {
	rel, err := filepath.Rel(m.root, filepath.Clean(abs))
	if err != nil {
		return "", media.E("layout.relative", media.KindInvalidPath, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", media.E("layout.relative", media.KindInvalidPath, fmt.Errorf("%q is outside the media root", abs))
	}
	return filepath.ToSlash(rel), nil
}

// SegmentPath resolves a segment name as a direct child of the playlist's
// directory. The name is validated before the filesystem is touched.
func (m *Manager) SegmentPath(playlistAbs, name string) (string, error) {
	const op = "layout.segment"
	if err := ValidateSegmentName(name); err != nil {
		return "", media.E(op, media.KindInvalidPath, err)
	}
	dir := filepath.Dir(playlistAbs)
	p := filepath.Join(dir, name)
	if filepath.Dir(p) != dir {
		return "", media.E(op, media.KindInvalidPath, fmt.Errorf("segment %q is not a direct child", name))
	}
	resolved, err := m.confine(p)
	if err != nil {
		return "", media.E(op, media.KindInvalidPath, err)
	}
	return resolved, nil
}

// CreateScratchFile opens a new, exclusively created scratch file for an upload.
// The name carries a 128-bit random token so concurrent uploads never collide.
func (m *Manager) CreateScratchFile(originalName string) (*os.File, error) {
	base := DeriveAssetFolder("", originalName)
	ext := Ext(originalName)
	if ext != "" && !isAlnum(ext) {
		ext = ""
	}
	token, err := randomToken(16)
	if err != nil {
		return nil, media.E("layout.scratch", media.KindStorage, err)
	}
	name := base + "_" + token
	if ext != "" {
		name += "." + ext
	}
	f, err := os.OpenFile(filepath.Join(m.scratch, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, media.E("layout.scratch", media.KindStorage, err)
	}
	return f, nil
}

// StagingDir creates a fresh working directory for one transcode of folder.
func (m *Manager) StagingDir(folder string) (string, error) {
	dir, err := os.MkdirTemp(m.staging, folder+"-")
	if err != nil {
		return "", media.E("layout.staging", media.KindStorage, err)
	}
	return dir, nil
}

// RetiredPath returns an unused path to which a superseded generation of folder
// can be moved before it is removed.
func (m *Manager) RetiredPath(folder string) (string, error) {
	token, err := randomToken(8)
	if err != nil {
		return "", media.E("layout.retire", media.KindStorage, err)
	}
	return filepath.Join(m.staging, folder+"-retired-"+token), nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
