package library

import (
	"fmt"
	"strings"
	"time"
)

const movieColumns = `id, imdb_id, title, overview, release_date, original_language,
	popularity, vote_average, poster_url, poster_url_small, backdrop_url, backdrop_url_small,
	genre_ids, duration, raw_info, is_ready, created_at, updated_at`

func scanMovie(row interface{ Scan(...any) error }) (*Movie, error) {
	m := &Movie{}
	err := row.Scan(&m.ID, &m.IMDBID, &m.Title, &m.Overview, &m.ReleaseDate, &m.OriginalLanguage,
		&m.Popularity, &m.VoteAverage, &m.PosterURL, &m.PosterURLSmall, &m.BackdropURL,
		&m.BackdropURLSmall, &m.GenreIDs, &m.Duration, &m.RawInfo, &m.IsReady,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func addMovie(q querier, m *Movie) error {
	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO movies (imdb_id, title, overview, release_date, original_language,
			popularity, vote_average, poster_url, poster_url_small, backdrop_url,
			backdrop_url_small, genre_ids, duration, raw_info, is_ready, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.IMDBID, m.Title, m.Overview, m.ReleaseDate, m.OriginalLanguage,
		m.Popularity, m.VoteAverage, m.PosterURL, m.PosterURLSmall, m.BackdropURL,
		m.BackdropURLSmall, m.GenreIDs, m.Duration, m.RawInfo, m.IsReady, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert movie: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// AddMovie inserts a new movie into the database.
// Sets ID, CreatedAt, and UpdatedAt on the struct.
func (s *Store) AddMovie(m *Movie) error { return addMovie(s.db, m) }

// AddMovie inserts a new movie within a transaction.
func (t *Tx) AddMovie(m *Movie) error { return addMovie(t.tx, m) }

func getMovie(q querier, id int64) (*Movie, error) {
	m, err := scanMovie(q.QueryRow(
		"SELECT "+movieColumns+" FROM movies WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, mapSQLiteError(err))
	}
	return m, nil
}

// GetMovie retrieves a movie by ID.
// Returns ErrNotFound if the movie does not exist.
func (s *Store) GetMovie(id int64) (*Movie, error) { return getMovie(s.db, id) }

// GetMovie retrieves a movie by ID within a transaction.
func (t *Tx) GetMovie(id int64) (*Movie, error) { return getMovie(t.tx, id) }

// GetMovieByIMDB finds a movie by its IMDB identifier.
// Returns nil, nil if not found.
func (s *Store) GetMovieByIMDB(imdbID string) (*Movie, error) {
	m, err := scanMovie(s.db.QueryRow(
		"SELECT "+movieColumns+" FROM movies WHERE imdb_id = ? LIMIT 1", imdbID))
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get movie by imdb id: %w", mapSQLiteError(err))
	}
	return m, nil
}

func listMovies(q querier, f MovieFilter) ([]*Movie, int, error) {
	var conditions []string
	var args []any

	if f.IMDBID != nil {
		conditions = append(conditions, "imdb_id = ?")
		args = append(args, *f.IMDBID)
	}
	if f.IsReady != nil {
		conditions = append(conditions, "is_ready = ?")
		args = append(args, *f.IsReady)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.QueryRow("SELECT COUNT(*) FROM movies "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	query := "SELECT " + movieColumns + " FROM movies " + whereClause + " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan movie: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate movies: %w", err)
	}

	return results, total, nil
}

// ListMovies returns movies matching the filter with pagination.
// Returns (results, totalCount, error).
func (s *Store) ListMovies(f MovieFilter) ([]*Movie, int, error) { return listMovies(s.db, f) }

// ListMovies returns movies matching the filter within a transaction.
func (t *Tx) ListMovies(f MovieFilter) ([]*Movie, int, error) { return listMovies(t.tx, f) }

func updateMovie(q querier, m *Movie) error {
	now := time.Now()
	result, err := q.Exec(`
		UPDATE movies SET imdb_id = ?, title = ?, overview = ?, release_date = ?,
			original_language = ?, popularity = ?, vote_average = ?, poster_url = ?,
			poster_url_small = ?, backdrop_url = ?, backdrop_url_small = ?, genre_ids = ?,
			duration = ?, raw_info = ?, is_ready = ?, updated_at = ?
		WHERE id = ?`,
		m.IMDBID, m.Title, m.Overview, m.ReleaseDate,
		m.OriginalLanguage, m.Popularity, m.VoteAverage, m.PosterURL,
		m.PosterURLSmall, m.BackdropURL, m.BackdropURLSmall, m.GenreIDs,
		m.Duration, m.RawInfo, m.IsReady, now, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update movie %d: %w", m.ID, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update movie %d: %w", m.ID, ErrNotFound)
	}
	m.UpdatedAt = now
	return nil
}

// UpdateMovie updates an existing movie.
// Sets UpdatedAt on the struct.
// Returns ErrNotFound if the movie does not exist.
func (s *Store) UpdateMovie(m *Movie) error { return updateMovie(s.db, m) }

// UpdateMovie updates an existing movie within a transaction.
func (t *Tx) UpdateMovie(m *Movie) error { return updateMovie(t.tx, m) }

func deleteMovie(q querier, id int64) error {
	_, err := q.Exec("DELETE FROM movies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete movie %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// DeleteMovie removes a movie by ID.
// This operation is idempotent - no error is returned if the movie does not exist.
func (s *Store) DeleteMovie(id int64) error { return deleteMovie(s.db, id) }

// DeleteMovie removes a movie by ID within a transaction.
func (t *Tx) DeleteMovie(id int64) error { return deleteMovie(t.tx, id) }
