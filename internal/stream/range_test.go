// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 1000
	tests := []struct {
		header string
		want   Range
		err    error
	}{
		{"bytes=0-499", Range{0, 499}, nil},
		{"bytes=500-", Range{500, 999}, nil},
		{"bytes=-200", Range{800, 999}, nil},
		{"bytes=-5000", Range{0, 999}, nil},
		{"bytes=900-5000", Range{900, 999}, nil},
		{"bytes= 10 - 20 ", Range{10, 20}, nil},
		{"bytes=1000-", Range{}, ErrInvalidRange},
		{"bytes=20-10", Range{}, ErrInvalidRange},
		{"bytes=-0", Range{}, ErrInvalidRange},
		{"bytes=-", Range{}, ErrInvalidRange},
		{"bytes=abc-", Range{}, ErrInvalidRange},
		{"items=0-1", Range{}, ErrUnknownUnit},
		{"Bytes=0-1", Range{0, 1}, nil},
		{"0-1", Range{}, ErrInvalidRange},
		{"bad unit=0-1", Range{}, ErrInvalidRange},
		{"", Range{}, ErrInvalidRange},
		{"bytes=0-1,5-6", Range{}, ErrMultiRange},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseRange(tt.header, size)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_EmptyResource(t *testing.T) {
	_, err := ParseRange("bytes=-10", 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseRange("bytes=0-", 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFormatContentRange(t *testing.T) {
	assert.Equal(t, "bytes 0-499/1000", FormatContentRange(Range{0, 499}, 1000))
	assert.Equal(t, "bytes */1000", Format416ContentRange(1000))
}
