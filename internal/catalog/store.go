// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog persists movies, shows and episodes in SQLite and records
// where each asset's published playlist lives under the media root.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/anieflix/internal/domain/media"
)

// timeLayout sorts lexicographically, which the recent-uploads query relies on.
const timeLayout = "2006-01-02T15:04:05Z"

// Store provides SQLite persistence for the catalog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dbPath and runs migrations.
func Open(dbPath string, cfg Config) (*Store, error) {
	db, err := openDB(dbPath, cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func noRecord(op string, key media.Key) error {
	return media.EReason(op, media.KindNotFound, media.ReasonNoRecord, fmt.Errorf("no record for %s", key))
}

// assetQuery returns the table and WHERE clause addressing key.
func assetQuery(key media.Key) (table, where string, args []any, err error) {
	if err := key.Validate(); err != nil {
		return "", "", nil, err
	}
	switch key.Type {
	case media.AssetMovie:
		return "movies", "id = ?", []any{key.MovieID}, nil
	default:
		return "show_episodes", "show_id = ? AND id = ?", []any{key.ShowID, key.EpisodeID}, nil
	}
}

// LookupStoredPath returns the playlist path recorded for key. A missing row
// and a row without a published video are both NoRecord.
func (s *Store) LookupStoredPath(ctx context.Context, key media.Key) (string, error) {
	const op = "catalog.lookup"
	table, where, args, err := assetQuery(key)
	if err != nil {
		return "", media.E(op, media.KindInvalidPath, err)
	}
	var p sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT video_path FROM "+table+" WHERE "+where, args...).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (!p.Valid || p.String == "")) {
		return "", noRecord(op, key)
	}
	if err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	return p.String, nil
}

// WriteStoredPath records rel as the published playlist of key.
func (s *Store) WriteStoredPath(ctx context.Context, key media.Key, rel string) error {
	const op = "catalog.write"
	table, where, args, err := assetQuery(key)
	if err != nil {
		return media.E(op, media.KindCatalogWriteFailed, err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET video_path = ? WHERE "+where, append([]any{rel}, args...)...)
	if err != nil {
		return media.E(op, media.KindCatalogWriteFailed, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return media.E(op, media.KindCatalogWriteFailed, fmt.Errorf("no record for %s", key))
	}
	return nil
}

// DeleteAsset clears the published path of key and returns the previous value.
func (s *Store) DeleteAsset(ctx context.Context, key media.Key) (string, error) {
	const op = "catalog.delete_asset"
	table, where, args, err := assetQuery(key)
	if err != nil {
		return "", media.E(op, media.KindInvalidPath, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT video_path FROM "+table+" WHERE "+where, args...).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", noRecord(op, key)
	}
	if err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET video_path = NULL WHERE "+where, args...); err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return "", media.E(op, media.KindStorage, err)
	}
	return prev.String, nil
}

// VideoInfo returns the video summary of key.
func (s *Store) VideoInfo(ctx context.Context, key media.Key) (VideoInfo, error) {
	const op = "catalog.video_info"
	table, where, args, err := assetQuery(key)
	if err != nil {
		return VideoInfo{}, media.E(op, media.KindInvalidPath, err)
	}
	var (
		p        sql.NullString
		duration sql.NullInt64
		quality  sql.NullString
		size     sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, "SELECT video_path, duration, quality, file_size FROM "+table+" WHERE "+where, args...).
		Scan(&p, &duration, &quality, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return VideoInfo{}, noRecord(op, key)
	}
	if err != nil {
		return VideoInfo{}, media.E(op, media.KindStorage, err)
	}
	info := VideoInfo{Quality: quality.String, HasVideo: p.Valid && p.String != ""}
	if duration.Valid {
		info.Duration = &duration.Int64
	}
	if size.Valid {
		info.FileSize = &size.Int64
	}
	return info, nil
}

// CreateMovie inserts a movie without a video and returns its id.
func (s *Store) CreateMovie(ctx context.Context, m NewMovie) (int64, error) {
	if strings.TrimSpace(m.Title) == "" {
		return 0, errors.New("catalog: movie title is required")
	}
	if m.OriginalLanguage == "" {
		m.OriginalLanguage = "vi"
	}
	if m.Tag == "" {
		m.Tag = "trending"
	}
	if m.CastJSON == "" {
		m.CastJSON = "[]"
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO movies (
		title, original_title, overview, release_date, genre_ids, original_language,
		vote_average, vote_count, runtime, poster_path, backdrop_path, tag, cast_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Title, m.OriginalTitle, m.Overview, m.ReleaseDate, m.GenreIDs, m.OriginalLanguage,
		m.VoteAverage, m.VoteCount, m.Runtime, nullable(m.PosterPath), nullable(m.BackdropPath),
		m.Tag, m.CastJSON, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("insert movie: %w", err)
	}
	return res.LastInsertId()
}

const movieColumns = `id, title, original_title, overview, release_date, genre_ids, original_language,
	vote_average, vote_count, runtime, poster_path, backdrop_path, video_path, tag, cast_json, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(r rowScanner) (Movie, error) {
	var (
		m                      Movie
		poster, backdrop, path sql.NullString
		created                string
	)
	if err := r.Scan(&m.ID, &m.Title, &m.OriginalTitle, &m.Overview, &m.ReleaseDate, &m.GenreIDs,
		&m.OriginalLanguage, &m.VoteAverage, &m.VoteCount, &m.Runtime, &poster, &backdrop, &path,
		&m.Tag, &m.CastJSON, &created); err != nil {
		return Movie{}, err
	}
	m.PosterPath, m.BackdropPath, m.VideoPath = poster.String, backdrop.String, path.String
	m.CreatedAt = parseTime(created)
	return m, nil
}

// GetMovie returns one movie.
func (s *Store) GetMovie(ctx context.Context, id int64) (Movie, error) {
	m, err := scanMovie(s.db.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, noRecord("catalog.get_movie", media.MovieKey(id))
	}
	if err != nil {
		return Movie{}, media.E("catalog.get_movie", media.KindStorage, err)
	}
	return m, nil
}

// ListMovies returns a page of movies, newest first.
func (s *Store) ListMovies(ctx context.Context, q ListQuery) (MoviePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	where := "1=1"
	var args []any
	if search := strings.TrimSpace(q.Search); search != "" {
		where += ` AND (title LIKE ? ESCAPE '\' OR original_title LIKE ? ESCAPE '\')`
		pattern := "%" + escapeLike(search) + "%"
		args = append(args, pattern, pattern)
	}

	var page MoviePage
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies WHERE "+where, args...).Scan(&page.Total); err != nil {
		return MoviePage{}, fmt.Errorf("count movies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, q.Limit, (q.Page-1)*q.Limit)...)
	if err != nil {
		return MoviePage{}, fmt.Errorf("list movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page.Movies = []Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return MoviePage{}, err
		}
		page.Movies = append(page.Movies, m)
	}
	return page, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DeleteMovie removes a movie row and returns what it held, so the caller
// can remove the files it referenced.
func (s *Store) DeleteMovie(ctx context.Context, id int64) (Movie, error) {
	const op = "catalog.delete_movie"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Movie{}, media.E(op, media.KindStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMovie(tx.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, noRecord(op, media.MovieKey(id))
	}
	if err != nil {
		return Movie{}, media.E(op, media.KindStorage, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM movies WHERE id = ?", id); err != nil {
		return Movie{}, media.E(op, media.KindStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return Movie{}, media.E(op, media.KindStorage, err)
	}
	return m, nil
}

// Stats returns dashboard counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{MoviesByTag: map[string]int{}}
	cutoff := s.now().Add(-7 * 24 * time.Hour).UTC().Format(timeLayout)

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.TotalMovies, "SELECT COUNT(*) FROM movies", nil},
		{&st.TotalShows, "SELECT COUNT(*) FROM shows", nil},
		{&st.TotalEpisodes, "SELECT COUNT(*) FROM show_episodes", nil},
		{&st.MoviesWithVideo, "SELECT COUNT(*) FROM movies WHERE video_path IS NOT NULL AND video_path != ''", nil},
		{&st.RecentUploads, "SELECT COUNT(*) FROM movies WHERE created_at >= ?", []any{cutoff}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT tag, COUNT(*) FROM movies GROUP BY tag")
	if err != nil {
		return Stats{}, fmt.Errorf("stats by tag: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return Stats{}, err
		}
		st.MoviesByTag[tag] = n
	}
	return st, rows.Err()
}

// CreateShow inserts a show and returns its id.
func (s *Store) CreateShow(ctx context.Context, sh NewShow) (int64, error) {
	if strings.TrimSpace(sh.Title) == "" {
		return 0, errors.New("catalog: show title is required")
	}
	var year sql.NullInt64
	if sh.Year > 0 {
		year = sql.NullInt64{Int64: int64(sh.Year), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO shows (title, description, genre, year, show_poster, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		sh.Title, sh.Description, sh.Genre, year, nullable(sh.ShowPoster), s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("insert show: %w", err)
	}
	return res.LastInsertId()
}

// GetShow returns one show.
func (s *Store) GetShow(ctx context.Context, id int64) (Show, error) {
	var (
		sh      Show
		year    sql.NullInt64
		poster  sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, description, genre, year, show_poster, created_at FROM shows WHERE id = ?", id).
		Scan(&sh.ID, &sh.Title, &sh.Description, &sh.Genre, &year, &poster, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Show{}, media.EReason("catalog.get_show", media.KindNotFound, media.ReasonNoRecord, fmt.Errorf("no show %d", id))
	}
	if err != nil {
		return Show{}, media.E("catalog.get_show", media.KindStorage, err)
	}
	sh.Year = int(year.Int64)
	sh.ShowPoster = poster.String
	sh.CreatedAt = parseTime(created)
	return sh, nil
}

// CreateEpisode inserts an episode of an existing show and returns its id.
func (s *Store) CreateEpisode(ctx context.Context, e NewEpisode) (int64, error) {
	if _, err := s.GetShow(ctx, e.ShowID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO show_episodes (show_id, title, episode_number, thumbnail_url, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ShowID, e.Title, e.EpisodeNumber, nullable(e.ThumbnailURL), s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("insert episode: %w", err)
	}
	return res.LastInsertId()
}

const episodeColumns = "id, show_id, title, episode_number, thumbnail_url, video_path, created_at"

func scanEpisode(r rowScanner) (Episode, error) {
	var (
		e           Episode
		thumb, path sql.NullString
		created     string
	)
	if err := r.Scan(&e.ID, &e.ShowID, &e.Title, &e.EpisodeNumber, &thumb, &path, &created); err != nil {
		return Episode{}, err
	}
	e.ThumbnailURL, e.VideoPath = thumb.String, path.String
	e.CreatedAt = parseTime(created)
	return e, nil
}

// GetEpisode returns one episode of a show.
func (s *Store) GetEpisode(ctx context.Context, showID, episodeID int64) (Episode, error) {
	e, err := scanEpisode(s.db.QueryRowContext(ctx,
		"SELECT "+episodeColumns+" FROM show_episodes WHERE show_id = ? AND id = ?", showID, episodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, noRecord("catalog.get_episode", media.EpisodeKey(showID, episodeID))
	}
	if err != nil {
		return Episode{}, media.E("catalog.get_episode", media.KindStorage, err)
	}
	return e, nil
}

// ListEpisodes returns the episodes of a show ordered by episode number.
func (s *Store) ListEpisodes(ctx context.Context, showID int64) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+episodeColumns+" FROM show_episodes WHERE show_id = ? ORDER BY episode_number, id", showID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	episodes := []Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}
