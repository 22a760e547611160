// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange = errors.New("invalid range")
	ErrMultiRange   = errors.New("multi-range not supported")
	// ErrUnknownUnit marks a Range header in a unit other than bytes; such
	// headers are ignored and the full representation is served.
	ErrUnknownUnit = errors.New("unknown range unit")
)

// Range is a byte range [Start, End], both inclusive.
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by r.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single-range "Range" header against a resource of size
// bytes. Multi-range requests are rejected with ErrMultiRange.
func ParseRange(header string, size int64) (Range, error) {
	unit, spec, ok := strings.Cut(header, "=")
	if !ok || !isToken(unit) {
		return Range{}, ErrInvalidRange
	}
	if !strings.EqualFold(unit, "bytes") {
		return Range{}, ErrUnknownUnit
	}
	if strings.Contains(spec, ",") {
		return Range{}, ErrMultiRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return Range{}, ErrInvalidRange
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	var r Range
	if startStr == "" {
		// Suffix range: bytes=-500 is the last 500 bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return Range{}, ErrInvalidRange
		}
		if n > size {
			n = size
		}
		return Range{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return Range{}, ErrInvalidRange
	}
	r.Start = start
	r.End = size - 1
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return Range{}, ErrInvalidRange
		}
		if end < r.End {
			r.End = end
		}
	}
	return r, nil
}

// FormatContentRange formats the Content-Range header of a 206 response.
func FormatContentRange(r Range, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Format416ContentRange formats the Content-Range header of a 416 response.
func Format416ContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// isToken reports whether s is a non-empty RFC 9110 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", c):
		default:
			return false
		}
	}
	return true
}
