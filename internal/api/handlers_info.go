// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/images"
	"github.com/ManuGH/anieflix/internal/log"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.catalog.Ping(ctx); err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMovieVideoInfo(w http.ResponseWriter, r *http.Request) {
	if key, ok := movieKey(w, r); ok {
		s.writeVideoInfo(w, r, key)
	}
}

func (s *Server) handleEpisodeVideoInfo(w http.ResponseWriter, r *http.Request) {
	if key, ok := episodeKey(w, r); ok {
		s.writeVideoInfo(w, r, key)
	}
}

func (s *Server) writeVideoInfo(w http.ResponseWriter, r *http.Request, key media.Key) {
	vi, err := s.catalog.VideoInfo(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVideoInfoView(vi))
}

func (s *Server) handleGetShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "showId")
	if !ok {
		return
	}
	sh, err := s.catalog.GetShow(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	eps, err := s.catalog.ListEpisodes(r.Context(), id)
	if err != nil {
		writeError(w, r, media.E("api.get_show", media.KindStorage, err))
		return
	}
	out := showView{
		ID:          sh.ID,
		Title:       sh.Title,
		Description: sh.Description,
		Genre:       sh.Genre,
		Year:        sh.Year,
		ShowPoster:  staticURL(images.ShowPoster, sh.ShowPoster),
		Episodes:    make([]episodeView, 0, len(eps)),
	}
	for _, e := range eps {
		out.Episodes = append(out.Episodes, newEpisodeView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatic serves stored posters and backdrops.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	const op = "api.static"
	kind, ok := images.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, r, media.E(op, media.KindNotFound, fmt.Errorf("unknown image kind")))
		return
	}
	p, err := s.images.Path(kind, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := os.Open(p) // #nosec G304 -- name is validated by images.Path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = media.EReason(op, media.KindNotFound, media.ReasonFileMissing, err)
		} else {
			err = media.E(op, media.KindStorage, err)
		}
		writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, r, media.EReason(op, media.KindNotFound, media.ReasonFileMissing, fmt.Errorf("%s is not a file", p)))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
