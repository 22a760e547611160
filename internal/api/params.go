// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/go-chi/chi/v5"
)

// pathID parses a positive integer URL parameter, answering 400 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, r, "invalid "+name)
		return 0, false
	}
	return id, true
}

func movieKey(w http.ResponseWriter, r *http.Request) (media.Key, bool) {
	id, ok := pathID(w, r, "movieId")
	if !ok {
		return media.Key{}, false
	}
	return media.MovieKey(id), true
}

func episodeKey(w http.ResponseWriter, r *http.Request) (media.Key, bool) {
	showID, ok := pathID(w, r, "showId")
	if !ok {
		return media.Key{}, false
	}
	episodeID, ok := pathID(w, r, "episodeId")
	if !ok {
		return media.Key{}, false
	}
	return media.EpisodeKey(showID, episodeID), true
}

// queryInt reads a positive query integer or returns def.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
