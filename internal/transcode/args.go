// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"path/filepath"
	"time"
)

// SegmentDuration is the target HLS segment length in seconds.
const SegmentDuration = 10

// Job describes one input-to-HLS conversion.
type Job struct {
	Input     string        // absolute path of the source video
	OutputDir string        // directory receiving the playlist and segments
	BaseName  string        // prefix of the playlist and segment files
	Timeout   time.Duration // zero means the transcoder default
}

// PlaylistPath returns the playlist the job produces.
func (j Job) PlaylistPath() string {
	return filepath.Join(j.OutputDir, j.BaseName+".m3u8")
}

// SegmentPattern returns the printf pattern ffmpeg uses for segment files.
func (j Job) SegmentPattern() string {
	return filepath.Join(j.OutputDir, j.BaseName+"_%03d.ts")
}

// BuildHLSArgs builds the encoder arguments for a VOD HLS rendition:
// H.264 baseline 3.0 video, stereo AAC audio, 10s segments numbered from 0,
// and a complete (non-rolling) playlist.
func BuildHLSArgs(j Job) []string {
	return []string{
		"-y",
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", j.Input,
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-c:a", "aac",
		"-ac", "2",
		"-start_number", "0",
		"-hls_time", "10",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", j.SegmentPattern(),
		"-f", "hls",
		j.PlaylistPath(),
	}
}
