// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesKindAndReason(t *testing.T) {
	err := EReason("playback.resolve", KindNotFound, ReasonFileMissing, os.ErrNotExist)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrFileMissing)
	assert.NotErrorIs(t, err, ErrNoRecord, "FileMissing must stay distinguishable from NoRecord")
	assert.ErrorIs(t, err, os.ErrNotExist, "underlying cause stays reachable")
}

func TestErrorIs_ThroughWrapping(t *testing.T) {
	inner := EReason("transcode.run", KindTranscode, ReasonTimeout, nil)
	wrapped := fmt.Errorf("ingest: %w", inner)

	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.ErrorIs(t, wrapped, ErrTranscode)
	assert.NotErrorIs(t, wrapped, ErrEncoderFailed)
	assert.Equal(t, KindTranscode, KindOf(wrapped))
	assert.Equal(t, ReasonTimeout, ReasonOf(wrapped))
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestErrorString(t *testing.T) {
	err := EReason("ingest.transcode", KindTranscode, ReasonEncoderFailed, errors.New("exit status 1"))
	assert.Equal(t, "ingest.transcode: TranscodeError{EncoderFailed}: exit status 1", err.Error())
}
