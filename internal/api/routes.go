// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/anieflix/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "NotFound", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	r.Get("/healthz", s.handleHealthz)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Route("/stream", func(r chi.Router) {
		r.Get("/movie/{movieId}", s.handleMoviePlaylist)
		r.Head("/movie/{movieId}", s.handleMoviePlaylist)
		// Segment routes take the whole remainder so that multi-element
		// names reach segment validation instead of the 404 handler.
		r.Get("/movie/{movieId}/*", s.handleMovieSegment)
		r.Head("/movie/{movieId}/*", s.handleMovieSegment)
		r.Get("/show/{showId}/episode/{episodeId}", s.handleEpisodePlaylist)
		r.Head("/show/{showId}/episode/{episodeId}", s.handleEpisodePlaylist)
		r.Get("/show/{showId}/episode/{episodeId}/*", s.handleEpisodeSegment)
		r.Head("/show/{showId}/episode/{episodeId}/*", s.handleEpisodeSegment)
	})

	r.Route("/video-info", func(r chi.Router) {
		r.Get("/movie/{movieId}", s.handleMovieVideoInfo)
		r.Get("/show/{showId}/episode/{episodeId}", s.handleEpisodeVideoInfo)
	})

	r.Get("/shows/{showId}", s.handleGetShow)
	r.Get("/static/{kind}/{name}", s.handleStatic)

	r.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.UploadPerMinute, time.Minute))
			r.Post("/upload-movie", s.handleUploadMovie)
			r.Post("/shows/{showId}/episodes/{episodeId}/video", s.handleUploadEpisodeVideo)
		})
		r.Post("/shows", s.handleCreateShow)
		r.Post("/shows/{showId}/episodes", s.handleCreateEpisode)
		r.Get("/movies", s.handleListMovies)
		r.Delete("/movies/{movieId}", s.handleDeleteMovie)
		r.Get("/stats", s.handleStats)
		r.Get("/check-ffmpeg", s.handleCheckFFmpeg)
	})

	return r
}
