// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// untitled is used when a name sanitizes to nothing.
const untitled = "untitled"

// nonWord matches every run of characters that are not letters, digits, marks,
// underscore or hyphen. Whitespace is included.
var nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_-]+`)

// SanitizeName turns an arbitrary title into a deterministic, filesystem-safe name.
// "Test Movie 2024!" becomes "Test_Movie_2024_".
func SanitizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = nonWord.ReplaceAllString(name, "_")
	if name == "" {
		return untitled
	}
	return name
}

// DeriveAssetFolder derives the folder base name from the display name, or from
// the original filename without its extension when no display name is given.
func DeriveAssetFolder(displayName, fallbackFilename string) string {
	if strings.TrimSpace(displayName) != "" {
		return SanitizeName(displayName)
	}
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(fallbackFilename, "\\", "/")))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return SanitizeName(base)
}

// Ext returns the lower-cased extension of filename without the dot.
func Ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ValidateSegmentName accepts only a single path element naming a .ts segment.
func ValidateSegmentName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errSegment(name, "empty or dot name")
	case len(name) > 255:
		return errSegment(name, "name too long")
	case strings.ContainsAny(name, "/\\\x00"):
		return errSegment(name, "path separator")
	case strings.Contains(name, ".."):
		return errSegment(name, "traversal sequence")
	case strings.HasPrefix(name, "."):
		return errSegment(name, "hidden file")
	case strings.ToLower(filepath.Ext(name)) != ".ts":
		return errSegment(name, "not a .ts segment")
	}
	return nil
}

func errSegment(name, why string) error {
	return fmt.Errorf("invalid segment name %q: %s", name, why)
}
