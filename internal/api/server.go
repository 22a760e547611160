// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the catalog, admin and streaming HTTP surface.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/anieflix/internal/catalog"
	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/images"
	"github.com/ManuGH/anieflix/internal/ingest"
	"github.com/ManuGH/anieflix/internal/playback"
	"github.com/go-chi/chi/v5"
)

// Catalog is the subset of the catalog store used by handlers.
type Catalog interface {
	playback.Catalog
	WriteStoredPath(ctx context.Context, key media.Key, rel string) error
	VideoInfo(ctx context.Context, key media.Key) (catalog.VideoInfo, error)
	CreateMovie(ctx context.Context, m catalog.NewMovie) (int64, error)
	GetMovie(ctx context.Context, id int64) (catalog.Movie, error)
	ListMovies(ctx context.Context, q catalog.ListQuery) (catalog.MoviePage, error)
	DeleteMovie(ctx context.Context, id int64) (catalog.Movie, error)
	Stats(ctx context.Context) (catalog.Stats, error)
	CreateShow(ctx context.Context, sh catalog.NewShow) (int64, error)
	GetShow(ctx context.Context, id int64) (catalog.Show, error)
	CreateEpisode(ctx context.Context, e catalog.NewEpisode) (int64, error)
	GetEpisode(ctx context.Context, showID, episodeID int64) (catalog.Episode, error)
	ListEpisodes(ctx context.Context, showID int64) ([]catalog.Episode, error)
	Ping(ctx context.Context) error
}

// Ingester publishes uploaded videos as HLS asset folders.
type Ingester interface {
	Accepts(filename string) bool
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Publication, error)
	Remove(ctx context.Context, key media.Key, rel string) error
}

// VersionProber reports the installed encoder version.
type VersionProber interface {
	Version(ctx context.Context) (string, error)
}

// Config holds HTTP-level limits.
type Config struct {
	MaxUploadBytes  int64
	UploadPerMinute int
	// TracingService names the otelhttp spans; empty disables HTTP tracing.
	TracingService string
	// Metrics mounts /metrics when set.
	Metrics http.Handler
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Catalog  Catalog
	Ingest   Ingester
	Resolver *playback.Resolver
	Images   *images.Store
	FFmpeg   VersionProber
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg      Config
	catalog  Catalog
	ingest   Ingester
	resolver *playback.Resolver
	images   *images.Store
	ffmpeg   VersionProber
	router   chi.Router
}

const defaultMaxUploadBytes = 8 << 30

// New builds the server and its routes.
func New(cfg Config, d Deps) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		cfg:      cfg,
		catalog:  d.Catalog,
		ingest:   d.Ingest,
		resolver: d.Resolver,
		images:   d.Images,
		ffmpeg:   d.FFmpeg,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
