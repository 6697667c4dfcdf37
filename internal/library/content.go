package library

import (
	"fmt"
	"strings"
	"time"
)

const contentColumns = `id, movie_id, source, state, title_hint, imdb_hint,
	full_path, relative_path, main_folder,
	file_name, file_extension, source_file_name, source_file_extension,
	width, height, duration, raw_info, is_ready, created_at, updated_at`

func scanContent(row interface{ Scan(...any) error }) (*Content, error) {
	c := &Content{}
	err := row.Scan(&c.ID, &c.MovieID, &c.Source, &c.State, &c.TitleHint, &c.IMDBHint,
		&c.FullPath, &c.RelativePath,
		&c.MainFolder, &c.FileName, &c.FileExtension, &c.SourceFileName, &c.SourceFileExtension,
		&c.Width, &c.Height, &c.Duration, &c.RawInfo, &c.IsReady, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func addContent(q querier, c *Content) error {
	now := time.Now()
	if c.State == "" {
		c.State = StatePending
	}
	result, err := q.Exec(`
		INSERT INTO contents (movie_id, source, state, title_hint, imdb_hint,
			full_path, relative_path, main_folder,
			file_name, file_extension, source_file_name, source_file_extension,
			width, height, duration, raw_info, is_ready, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.MovieID, c.Source, c.State, c.TitleHint, c.IMDBHint,
		c.FullPath, c.RelativePath, c.MainFolder,
		c.FileName, c.FileExtension, c.SourceFileName, c.SourceFileExtension,
		c.Width, c.Height, c.Duration, c.RawInfo, c.IsReady, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// AddContent inserts a new content item into the database.
// Sets ID, CreatedAt, and UpdatedAt on the struct.
func (s *Store) AddContent(c *Content) error { return addContent(s.db, c) }

// AddContent inserts a new content item within a transaction.
func (t *Tx) AddContent(c *Content) error { return addContent(t.tx, c) }

func getContent(q querier, id int64) (*Content, error) {
	c, err := scanContent(q.QueryRow(
		"SELECT "+contentColumns+" FROM contents WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", id, mapSQLiteError(err))
	}
	return c, nil
}

// GetContent retrieves a content item by ID.
// Returns ErrNotFound if the content does not exist.
func (s *Store) GetContent(id int64) (*Content, error) { return getContent(s.db, id) }

// GetContent retrieves a content item by ID within a transaction.
func (t *Tx) GetContent(id int64) (*Content, error) { return getContent(t.tx, id) }

// GetContentBySource finds the content most recently created for a source.
// Returns nil, nil if not found.
func (s *Store) GetContentBySource(source string) (*Content, error) {
	c, err := scanContent(s.db.QueryRow(
		"SELECT "+contentColumns+" FROM contents WHERE source = ? ORDER BY id DESC LIMIT 1", source))
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get content by source: %w", mapSQLiteError(err))
	}
	return c, nil
}

func listContent(q querier, f ContentFilter) ([]*Content, int, error) {
	var conditions []string
	var args []any

	if f.MovieID != nil {
		conditions = append(conditions, "movie_id = ?")
		args = append(args, *f.MovieID)
	}
	if f.State != nil {
		conditions = append(conditions, "state = ?")
		args = append(args, *f.State)
	}
	if f.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, *f.Source)
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
	if err := q.QueryRow("SELECT COUNT(*) FROM contents "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contents: %w", err)
	}

	query := "SELECT " + contentColumns + " FROM contents " + whereClause + " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan content: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contents: %w", err)
	}

	return results, total, nil
}

// ListContent returns content items matching the filter with pagination.
// Returns (results, totalCount, error).
func (s *Store) ListContent(f ContentFilter) ([]*Content, int, error) { return listContent(s.db, f) }

// ListContent returns content items matching the filter within a transaction.
func (t *Tx) ListContent(f ContentFilter) ([]*Content, int, error) { return listContent(t.tx, f) }

func updateContent(q querier, c *Content) error {
	now := time.Now()
	result, err := q.Exec(`
		UPDATE contents SET movie_id = ?, source = ?, state = ?, title_hint = ?, imdb_hint = ?,
			full_path = ?, relative_path = ?,
			main_folder = ?, file_name = ?, file_extension = ?, source_file_name = ?,
			source_file_extension = ?, width = ?, height = ?, duration = ?, raw_info = ?, is_ready = ?, updated_at = ?
		WHERE id = ?`,
		c.MovieID, c.Source, c.State, c.TitleHint, c.IMDBHint,
		c.FullPath, c.RelativePath,
		c.MainFolder, c.FileName, c.FileExtension, c.SourceFileName,
		c.SourceFileExtension, c.Width, c.Height, c.Duration, c.RawInfo, c.IsReady, now, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update content %d: %w", c.ID, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update content %d: %w", c.ID, ErrNotFound)
	}
	c.UpdatedAt = now
	return nil
}

// UpdateContent updates an existing content item.
// Sets UpdatedAt on the struct.
// Returns ErrNotFound if the content does not exist.
func (s *Store) UpdateContent(c *Content) error { return updateContent(s.db, c) }

// UpdateContent updates an existing content item within a transaction.
func (t *Tx) UpdateContent(c *Content) error { return updateContent(t.tx, c) }

func transitionContent(q querier, id int64, next ContentState) (*Content, error) {
	c, err := getContent(q, id)
	if err != nil {
		return nil, err
	}
	if !c.State.CanTransitionTo(next) {
		return nil, fmt.Errorf("content %d: %s -> %s: %w", id, c.State, next, ErrBadTransition)
	}
	now := time.Now()
	if _, err := q.Exec(
		"UPDATE contents SET state = ?, updated_at = ? WHERE id = ?",
		next, now, id,
	); err != nil {
		return nil, fmt.Errorf("transition content %d: %w", id, mapSQLiteError(err))
	}
	c.State = next
	c.UpdatedAt = now
	return c, nil
}

// TransitionContent moves a content item to the next pipeline state,
// validating the move against the state machine.
// Returns ErrBadTransition if the move is not allowed.
func (s *Store) TransitionContent(id int64, next ContentState) (*Content, error) {
	return transitionContent(s.db, id, next)
}

// TransitionContent moves a content item within a transaction.
func (t *Tx) TransitionContent(id int64, next ContentState) (*Content, error) {
	return transitionContent(t.tx, id, next)
}

func deleteContent(q querier, id int64) error {
	_, err := q.Exec("DELETE FROM contents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete content %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// DeleteContent removes a content item by ID.
// This operation is idempotent - no error is returned if the content does not exist.
func (s *Store) DeleteContent(id int64) error { return deleteContent(s.db, id) }

// DeleteContent removes a content item by ID within a transaction.
func (t *Tx) DeleteContent(id int64) error { return deleteContent(t.tx, id) }

// MovieContentCount reports how many content items reference a movie.
func (s *Store) MovieContentCount(movieID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM contents WHERE movie_id = ?", movieID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count movie contents: %w", err)
	}
	return n, nil
}
