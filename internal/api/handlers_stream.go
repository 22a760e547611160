// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"net/url"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/stream"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleMoviePlaylist(w http.ResponseWriter, r *http.Request) {
	if key, ok := movieKey(w, r); ok {
		s.servePlaylist(w, r, key)
	}
}

func (s *Server) handleMovieSegment(w http.ResponseWriter, r *http.Request) {
	if key, ok := movieKey(w, r); ok {
		s.serveSegment(w, r, key)
	}
}

func (s *Server) handleEpisodePlaylist(w http.ResponseWriter, r *http.Request) {
	if key, ok := episodeKey(w, r); ok {
		s.servePlaylist(w, r, key)
	}
}

func (s *Server) handleEpisodeSegment(w http.ResponseWriter, r *http.Request) {
	if key, ok := episodeKey(w, r); ok {
		s.serveSegment(w, r, key)
	}
}

func (s *Server) servePlaylist(w http.ResponseWriter, r *http.Request, key media.Key) {
	path, err := s.resolver.ResolvePlaylist(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := stream.ServePlaylist(w, r, path); err != nil {
		writeError(w, r, err)
	}
}

func (s *Server) serveSegment(w http.ResponseWriter, r *http.Request, key media.Key) {
	// chi matches on the raw path, so an encoded separator arrives escaped.
	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		writeBadRequest(w, r, "invalid segment name")
		return
	}
	path, err := s.resolver.ResolveSegment(r.Context(), key, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := stream.ServeSegment(w, r, path); err != nil {
		writeError(w, r, err)
	}
}
