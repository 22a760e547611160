// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// confine resolves symlinks of fullPath (or of its parent when it does not exist
// yet) and verifies the result is still under the media root.
func (m *Manager) confine(fullPath string) (string, error) {
	realPath := fullPath
	if _, err := os.Lstat(fullPath); err == nil {
		rp, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", fullPath, err)
		}
		realPath = rp
	} else if errors.Is(err, os.ErrNotExist) {
		dir := filepath.Dir(fullPath)
		if rp, err := filepath.EvalSymlinks(dir); err == nil {
			realPath = filepath.Join(rp, filepath.Base(fullPath))
		} else if _, statErr := os.Stat(dir); statErr == nil {
			// Parent exists but cannot be resolved: fail closed.
			return "", fmt.Errorf("resolve parent of %s: %w", fullPath, err)
		}
	} else {
		return "", fmt.Errorf("lstat %s: %w", fullPath, err)
	}

	rel, err := filepath.Rel(m.root, realPath)
	if err != nil {
		return "", fmt.Errorf("rel: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes media root: %s", realPath)
	}
	return realPath, nil
}
