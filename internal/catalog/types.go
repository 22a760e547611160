// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import "time"

// Movie is a catalog movie row.
type Movie struct {
	ID               int64
	Title            string
	OriginalTitle    string
	Overview         string
	ReleaseDate      string // YYYY-MM-DD
	GenreIDs         string
	OriginalLanguage string
	VoteAverage      float64
	VoteCount        int
	Runtime          int
	PosterPath       string // image file name, empty if none
	BackdropPath     string
	VideoPath        string // media-root relative playlist, empty until published
	Tag              string
	CastJSON         string
	CreatedAt        time.Time
}

// NewMovie holds the fields accepted when creating a movie.
type NewMovie struct {
	Title            string
	OriginalTitle    string
	Overview         string
	ReleaseDate      string
	GenreIDs         string
	OriginalLanguage string
	VoteAverage      float64
	VoteCount        int
	Runtime          int
	PosterPath       string
	BackdropPath     string
	Tag              string
	CastJSON         string
}

// Show is a catalog show row.
type Show struct {
	ID          int64
	Title       string
	Description string
	Genre       string
	Year        int
	ShowPoster  string
	CreatedAt   time.Time
}

// NewShow holds the fields accepted when creating a show.
type NewShow struct {
	Title       string
	Description string
	Genre       string
	Year        int
	ShowPoster  string
}

// Episode is a catalog episode row.
type Episode struct {
	ID            int64
	ShowID        int64
	Title         string
	EpisodeNumber int
	ThumbnailURL  string
	VideoPath     string
	CreatedAt     time.Time
}

// NewEpisode holds the fields accepted when creating an episode.
type NewEpisode struct {
	ShowID        int64
	Title         string
	EpisodeNumber int
	ThumbnailURL  string
}

// VideoInfo summarizes the playable video of an asset.
type VideoInfo struct {
	Duration *int64
	Quality  string
	FileSize *int64
	HasVideo bool
}

// ListQuery selects a page of movies.
type ListQuery struct {
	Page   int // 1-based
	Limit  int
	Search string // substring of title or original title
}

// MoviePage is one page of ListMovies.
type MoviePage struct {
	Movies []Movie
	Total  int
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	TotalMovies     int
	TotalShows      int
	TotalEpisodes   int
	MoviesWithVideo int
	MoviesByTag     map[string]int
	RecentUploads   int // movies created in the last 7 days
}
