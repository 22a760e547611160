// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the identifiers and error taxonomy shared by the ingest,
// playback and catalog layers.
package media

import (
	"fmt"
)

// AssetType distinguishes the two encodable units of the catalog.
type AssetType string

const (
	AssetMovie   AssetType = "movie"
	AssetEpisode AssetType = "episode"
)

// Key identifies one MediaAsset: a movie, or a single episode of a show.
// The zero Key is valid only for ingestion without a catalog record.
type Key struct {
	Type      AssetType
	MovieID   int64
	ShowID    int64
	EpisodeID int64
}

// MovieKey returns the key of a movie row.
func MovieKey(id int64) Key {
	return Key{Type: AssetMovie, MovieID: id}
}

// EpisodeKey returns the key of a show episode row.
func EpisodeKey(showID, episodeID int64) Key {
	return Key{Type: AssetEpisode, ShowID: showID, EpisodeID: episodeID}
}

// IsZero reports whether k carries no identity.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Validate checks that the ids required by the key type are positive.
func (k Key) Validate() error {
	switch k.Type {
	case AssetMovie:
		if k.MovieID <= 0 {
			return fmt.Errorf("invalid movie id %d", k.MovieID)
		}
	case AssetEpisode:
		if k.ShowID <= 0 || k.EpisodeID <= 0 {
			return fmt.Errorf("invalid episode key show=%d episode=%d", k.ShowID, k.EpisodeID)
		}
	default:
		return fmt.Errorf("unknown asset type %q", k.Type)
	}
	return nil
}

// Slug is the short, filesystem-safe form used to qualify asset folders.
func (k Key) Slug() string {
	switch k.Type {
	case AssetMovie:
		return fmt.Sprintf("m%d", k.MovieID)
	case AssetEpisode:
		return fmt.Sprintf("s%de%d", k.ShowID, k.EpisodeID)
	}
	return ""
}

func (k Key) String() string {
	switch k.Type {
	case AssetMovie:
		return fmt.Sprintf("movie:%d", k.MovieID)
	case AssetEpisode:
		return fmt.Sprintf("show:%d/episode:%d", k.ShowID, k.EpisodeID)
	}
	return "none"
}
