// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"time"

	"github.com/ManuGH/anieflix/internal/catalog"
	"github.com/ManuGH/anieflix/internal/images"
)

func staticURL(kind images.Kind, name string) *string {
	if name == "" {
		return nil
	}
	u := "/static/" + string(kind) + "/" + name
	return &u
}

type movieView struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
	Tag           string  `json:"tag"`
	HasVideo      bool    `json:"has_video"`
	StreamURL     *string `json:"stream_url"`
	CreatedAt     string  `json:"created_at"`
}

func newMovieView(m catalog.Movie) movieView {
	v := movieView{
		ID:            m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		PosterPath:    staticURL(images.Poster, m.PosterPath),
		BackdropPath:  staticURL(images.Backdrop, m.BackdropPath),
		ReleaseDate:   m.ReleaseDate,
		VoteAverage:   m.VoteAverage,
		Tag:           m.Tag,
		HasVideo:      m.VideoPath != "",
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.HasVideo {
		u := fmt.Sprintf("/stream/movie/%d", m.ID)
		v.StreamURL = &u
	}
	return v
}

type paginationView struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPagination(page, limit, total int) paginationView {
	pages := 1
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return paginationView{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type movieListView struct {
	Movies     []movieView    `json:"movies"`
	Pagination paginationView `json:"pagination"`
}

type statsView struct {
	TotalMovies     int            `json:"total_movies"`
	TotalShows      int            `json:"total_shows"`
	TotalEpisodes   int            `json:"total_episodes"`
	MoviesWithVideo int            `json:"movies_with_video"`
	MoviesByTag     map[string]int `json:"movies_by_tag"`
	RecentUploads   int            `json:"recent_uploads"`
}

type episodeView struct {
	ID            int64   `json:"id"`
	ShowID        int64   `json:"show_id"`
	Title         string  `json:"title"`
	EpisodeNumber int     `json:"episode_number"`
	ThumbnailURL  string  `json:"thumbnail_url,omitempty"`
	HasVideo      bool    `json:"has_video"`
	StreamURL     *string `json:"stream_url"`
}

func newEpisodeView(e catalog.Episode) episodeView {
	v := episodeView{
		ID:            e.ID,
		ShowID:        e.ShowID,
		Title:         e.Title,
		EpisodeNumber: e.EpisodeNumber,
		ThumbnailURL:  e.ThumbnailURL,
		HasVideo:      e.VideoPath != "",
	}
	if v.HasVideo {
		u := fmt.Sprintf("/stream/show/%d/episode/%d", e.ShowID, e.ID)
		v.StreamURL = &u
	}
	return v
}

type showView struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Genre       string        `json:"genre"`
	Year        int           `json:"year,omitempty"`
	ShowPoster  *string       `json:"show_poster"`
	Episodes    []episodeView `json:"episodes"`
}

type videoInfoView struct {
	Duration *int64 `json:"duration"`
	Quality  string `json:"quality"`
	FileSize *int64 `json:"file_size"`
	HasVideo bool   `json:"has_video"`
	Type     string `json:"type"`
}

func newVideoInfoView(vi catalog.VideoInfo) videoInfoView {
	q := vi.Quality
	if q == "" {
		q = "1080p"
	}
	return videoInfoView{Duration: vi.Duration, Quality: q, FileSize: vi.FileSize, HasVideo: vi.HasVideo, Type: "hls"}
}

type uploadMovieResponse struct {
	Message       string  `json:"message"`
	MovieID       int64   `json:"movie_id"`
	Poster        string  `json:"poster"`
	Backdrop      *string `json:"backdrop"`
	VideoPlaylist *string `json:"video_playlist"`
	VideoFolder   *string `json:"video_folder"`
}

type episodeVideoResponse struct {
	ShowID        int64  `json:"show_id"`
	EpisodeID     int64  `json:"episode_id"`
	VideoPlaylist string `json:"video_playlist"`
	VideoFolder   string `json:"video_folder"`
}
