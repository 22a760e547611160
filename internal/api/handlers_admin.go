// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/anieflix/internal/catalog"
	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/images"
	"github.com/ManuGH/anieflix/internal/log"
)

const maxPageLimit = 100

// newMovieFromForm reads the movie metadata fields. Numeric fields that do
// not parse are rejected rather than silently zeroed.
func newMovieFromForm(form *multipart.Form) (catalog.NewMovie, error) {
	m := catalog.NewMovie{
		Title:            formValue(form, "title"),
		OriginalTitle:    formValue(form, "original_title"),
		Overview:         formValue(form, "overview"),
		ReleaseDate:      formValue(form, "release_date"),
		GenreIDs:         formValue(form, "genre_ids"),
		OriginalLanguage: formValue(form, "original_language"),
		Tag:              formValue(form, "tag"),
		CastJSON:         formValue(form, "cast"),
	}
	if m.Title == "" {
		return m, fmt.Errorf("title is required")
	}
	if m.ReleaseDate != "" {
		if _, err := time.Parse("2006-01-02", m.ReleaseDate); err != nil {
			return m, fmt.Errorf("release_date must be YYYY-MM-DD")
		}
	}
	if m.CastJSON != "" && !json.Valid([]byte(m.CastJSON)) {
		return m, fmt.Errorf("cast must be JSON")
	}
	var err error
	if v := formValue(form, "vote_average"); v != "" {
		if m.VoteAverage, err = strconv.ParseFloat(v, 64); err != nil {
			return m, fmt.Errorf("vote_average must be a number")
		}
	}
	if v := formValue(form, "vote_count"); v != "" {
		if m.VoteCount, err = strconv.Atoi(v); err != nil {
			return m, fmt.Errorf("vote_count must be an integer")
		}
	}
	if v := formValue(form, "runtime"); v != "" {
		if m.Runtime, err = strconv.Atoi(v); err != nil {
			return m, fmt.Errorf("runtime must be an integer")
		}
	}
	return m, nil
}

// handleUploadMovie creates a movie with its images and, optionally, its
// video. The catalog row is reserved before ingest so the asset folder can be
// qualified with the movie id; any failure removes everything created so far.
func (s *Server) handleUploadMovie(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_movie"
	form, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer removeForm(r)

	nm, err := newMovieFromForm(form)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	poster := formFile(form, "poster")
	if poster == nil {
		writeBadRequest(w, r, "poster is required")
		return
	}
	backdrop := formFile(form, "backdrop")
	video := formFile(form, "video")

	for _, fh := range []*multipart.FileHeader{poster, backdrop} {
		if fh != nil && !s.images.Accepts(fh.Filename) {
			writeError(w, r, media.E(op, media.KindUnsupportedFormat, fmt.Errorf("image type of %q not allowed", fh.Filename)))
			return
		}
	}
	if video != nil && !s.ingest.Accepts(video.Filename) {
		writeError(w, r, media.E(op, media.KindUnsupportedFormat, fmt.Errorf("video type of %q not allowed", video.Filename)))
		return
	}

	ctx := r.Context()
	// Compensation must finish even if the client goes away.
	cleanupCtx := context.WithoutCancel(ctx)
	saved := map[images.Kind]string{}

	if nm.PosterPath, err = s.saveImage(ctx, images.Poster, poster); err != nil {
		writeError(w, r, err)
		return
	}
	saved[images.Poster] = nm.PosterPath
	if backdrop != nil {
		if nm.BackdropPath, err = s.saveImage(ctx, images.Backdrop, backdrop); err != nil {
			s.removeImages(cleanupCtx, saved)
			writeError(w, r, err)
			return
		}
		saved[images.Backdrop] = nm.BackdropPath
	}

	id, err := s.catalog.CreateMovie(ctx, nm)
	if err != nil {
		s.removeImages(cleanupCtx, saved)
		writeError(w, r, media.E(op, media.KindStorage, err))
		return
	}
	ctx = log.ContextWithJobID(ctx, fmt.Sprintf("movie-%d", id))

	resp := uploadMovieResponse{
		Message:  "Movie uploaded successfully",
		MovieID:  id,
		Poster:   nm.PosterPath,
		Backdrop: optional(nm.BackdropPath),
	}
	if video != nil {
		key := media.MovieKey(id)
		pub, err := s.ingestUpload(ctx, key, nm.Title, video)
		if err == nil {
			err = s.recordStoredPath(cleanupCtx, key, pub)
		}
		if err != nil {
			s.discardMovie(cleanupCtx, id, saved)
			writeError(w, r, err)
			return
		}
		resp.VideoPlaylist = optional(pub.RelativePath)
		resp.VideoFolder = optional(pub.Folder)
	}

	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldEvent, "movie.created").
		Int64("movie_id", id).
		Bool("has_video", video != nil).
		Msg("movie uploaded")
	writeJSON(w, http.StatusCreated, resp)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// discardMovie removes a reserved movie row and its images after a failed upload.
func (s *Server) discardMovie(ctx context.Context, id int64, saved map[images.Kind]string) {
	if _, err := s.catalog.DeleteMovie(ctx, id); err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).
			Int64("movie_id", id).
			Msg("failed to delete reserved movie row after failed upload")
	}
	s.removeImages(ctx, saved)
}

// handleUploadEpisodeVideo ingests the video of an existing episode. A
// previous generation in a different folder is removed after the new path
// is recorded.
func (s *Server) handleUploadEpisodeVideo(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_episode_video"
	key, ok := episodeKey(w, r)
	if !ok {
		return
	}
	ep, err := s.catalog.GetEpisode(r.Context(), key.ShowID, key.EpisodeID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	form, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer removeForm(r)

	video := formFile(form, "video")
	if video == nil {
		writeBadRequest(w, r, "video is required")
		return
	}
	if !s.ingest.Accepts(video.Filename) {
		writeError(w, r, media.E(op, media.KindUnsupportedFormat, fmt.Errorf("video type of %q not allowed", video.Filename)))
		return
	}

	ctx := log.ContextWithJobID(r.Context(), fmt.Sprintf("episode-%d-%d", key.ShowID, key.EpisodeID))
	cleanupCtx := context.WithoutCancel(ctx)
	pub, err := s.ingestUpload(ctx, key, ep.Title, video)
	if err == nil {
		err = s.recordStoredPath(cleanupCtx, key, pub)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if prev := ep.VideoPath; prev != "" && assetFolder(prev) != pub.Folder {
		if err := s.ingest.Remove(cleanupCtx, key, prev); err != nil {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Error().Err(err).
				Str(log.FieldPath, prev).
				Msg("previous episode folder left orphaned")
		}
	}

	writeJSON(w, http.StatusOK, episodeVideoResponse{
		ShowID:        key.ShowID,
		EpisodeID:     key.EpisodeID,
		VideoPlaylist: pub.RelativePath,
		VideoFolder:   pub.Folder,
	})
}

func assetFolder(rel string) string {
	folder, _, _ := strings.Cut(path.Clean(rel), "/")
	return folder
}

func (s *Server) handleCreateShow(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseUpload(w, r)
	if !ok {
		return
	}
	defer removeForm(r)

	sh := catalog.NewShow{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Genre:       formValue(form, "genre"),
	}
	if sh.Title == "" {
		writeBadRequest(w, r, "title is required")
		return
	}
	if v := formValue(form, "year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 0 {
			writeBadRequest(w, r, "year must be a positive integer")
			return
		}
		sh.Year = year
	}

	saved := map[images.Kind]string{}
	if fh := formFile(form, "show_poster"); fh != nil {
		name, err := s.saveImage(r.Context(), images.ShowPoster, fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sh.ShowPoster = name
		saved[images.ShowPoster] = name
	}

	id, err := s.catalog.CreateShow(r.Context(), sh)
	if err != nil {
		s.removeImages(context.WithoutCancel(r.Context()), saved)
		writeError(w, r, media.E("api.create_show", media.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"show_id": id, "show_poster": staticURL(images.ShowPoster, sh.ShowPoster)})
}

type createEpisodeRequest struct {
	Title         string `json:"title"`
	EpisodeNumber int    `json:"episode_number"`
	ThumbnailURL  string `json:"thumbnail_url"`
}

func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathID(w, r, "showId")
	if !ok {
		return
	}
	var req createEpisodeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid JSON body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.EpisodeNumber <= 0 {
		writeBadRequest(w, r, "title and a positive episode_number are required")
		return
	}

	id, err := s.catalog.CreateEpisode(r.Context(), catalog.NewEpisode{
		ShowID:        showID,
		Title:         req.Title,
		EpisodeNumber: req.EpisodeNumber,
		ThumbnailURL:  req.ThumbnailURL,
	})
	if err != nil {
		if media.KindOf(err) == "" {
			err = media.E("api.create_episode", media.KindStorage, err)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"show_id": showID, "episode_id": id})
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := min(queryInt(r, "limit", 20), maxPageLimit)

	res, err := s.catalog.ListMovies(r.Context(), catalog.ListQuery{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, r, media.E("api.list_movies", media.KindStorage, err))
		return
	}

	out := movieListView{Movies: make([]movieView, 0, len(res.Movies)), Pagination: newPagination(page, limit, res.Total)}
	for _, m := range res.Movies {
		out.Movies = append(out.Movies, newMovieView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteMovie deletes the row first. Files are removed only after the
// row is gone; a removal failure leaves an orphan that is logged, never a
// dangling catalog entry.
func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	key, ok := movieKey(w, r)
	if !ok {
		return
	}
	m, err := s.catalog.DeleteMovie(r.Context(), key.MovieID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	logger := log.WithComponentFromContext(ctx, "api")
	if m.VideoPath != "" {
		if err := s.ingest.Remove(ctx, key, m.VideoPath); err != nil {
			logger.Error().Err(err).
				Str(log.FieldEvent, "movie.orphaned_folder").
				Str(log.FieldMediaKey, key.String()).
				Str(log.FieldPath, m.VideoPath).
				Msg("asset folder left orphaned after movie deletion")
		}
	}
	s.removeImages(ctx, map[images.Kind]string{images.Poster: m.PosterPath, images.Backdrop: m.BackdropPath})

	logger.Info().Str(log.FieldEvent, "movie.deleted").Str(log.FieldMediaKey, key.String()).Msg("movie deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Movie deleted successfully"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, r, media.E("api.stats", media.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusOK, statsView{
		TotalMovies:     st.TotalMovies,
		TotalShows:      st.TotalShows,
		TotalEpisodes:   st.TotalEpisodes,
		MoviesWithVideo: st.MoviesWithVideo,
		MoviesByTag:     st.MoviesByTag,
		RecentUploads:   st.RecentUploads,
	})
}

func (s *Server) handleCheckFFmpeg(w http.ResponseWriter, r *http.Request) {
	v, err := s.ffmpeg.Version(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("ffmpeg check failed")
		writeJSON(w, http.StatusOK, map[string]any{"ffmpeg_available": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ffmpeg_available": true, "version_info": v})
}
