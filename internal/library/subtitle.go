package library

import (
	"fmt"
	"time"
)

const subtitleColumns = `id, full_path, relative_path, file_name, suffix, lang_three, created_at, updated_at`

func scanSubtitle(row interface{ Scan(...any) error }) (*Subtitle, error) {
	s := &Subtitle{}
	err := row.Scan(&s.ID, &s.FullPath, &s.RelativePath, &s.FileName, &s.Suffix,
		&s.LangThree, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func addSubtitle(q querier, sub *Subtitle) error {
	now := time.Now()
	if sub.LangThree == "" {
		sub.LangThree = "eng"
	}
	result, err := q.Exec(`
		INSERT INTO subtitles (full_path, relative_path, file_name, suffix, lang_three, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.FullPath, sub.RelativePath, sub.FileName, sub.Suffix, sub.LangThree, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert subtitle: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

// AddSubtitle inserts a new subtitle into the database.
// Sets ID, CreatedAt, and UpdatedAt on the struct.
func (s *Store) AddSubtitle(sub *Subtitle) error { return addSubtitle(s.db, sub) }

// AddSubtitle inserts a new subtitle within a transaction.
func (t *Tx) AddSubtitle(sub *Subtitle) error { return addSubtitle(t.tx, sub) }

func getSubtitle(q querier, id int64) (*Subtitle, error) {
	sub, err := scanSubtitle(q.QueryRow(
		"SELECT "+subtitleColumns+" FROM subtitles WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get subtitle %d: %w", id, mapSQLiteError(err))
	}
	return sub, nil
}

// GetSubtitle retrieves a subtitle by ID.
// Returns ErrNotFound if the subtitle does not exist.
func (s *Store) GetSubtitle(id int64) (*Subtitle, error) { return getSubtitle(s.db, id) }

// GetSubtitle retrieves a subtitle by ID within a transaction.
func (t *Tx) GetSubtitle(id int64) (*Subtitle, error) { return getSubtitle(t.tx, id) }

func linkSubtitle(q querier, contentID, subtitleID int64) error {
	_, err := q.Exec(`
		INSERT OR IGNORE INTO content_subtitles (content_id, subtitle_id) VALUES (?, ?)`,
		contentID, subtitleID,
	)
	if err != nil {
		return fmt.Errorf("link subtitle %d to content %d: %w", subtitleID, contentID, mapSQLiteError(err))
	}
	return nil
}

// LinkSubtitle associates a subtitle with a content item.
// Linking the same pair twice is a no-op.
func (s *Store) LinkSubtitle(contentID, subtitleID int64) error {
	return linkSubtitle(s.db, contentID, subtitleID)
}

// LinkSubtitle associates a subtitle with a content item within a transaction.
func (t *Tx) LinkSubtitle(contentID, subtitleID int64) error {
	return linkSubtitle(t.tx, contentID, subtitleID)
}

func contentSubtitles(q querier, contentID int64) ([]*Subtitle, error) {
	rows, err := q.Query(`
		SELECT s.id, s.full_path, s.relative_path, s.file_name, s.suffix, s.lang_three, s.created_at, s.updated_at
		FROM subtitles s
		JOIN content_subtitles cs ON cs.subtitle_id = s.id
		WHERE cs.content_id = ?
		ORDER BY s.id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list content subtitles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Subtitle
	for rows.Next() {
		sub, err := scanSubtitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		results = append(results, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtitles: %w", err)
	}
	return results, nil
}

// ContentSubtitles returns all subtitles linked to a content item.
func (s *Store) ContentSubtitles(contentID int64) ([]*Subtitle, error) {
	return contentSubtitles(s.db, contentID)
}

// ContentSubtitles returns linked subtitles within a transaction.
func (t *Tx) ContentSubtitles(contentID int64) ([]*Subtitle, error) {
	return contentSubtitles(t.tx, contentID)
}

// HasSubtitlePath reports whether a content item already has a subtitle
// registered at the given path.
func (s *Store) HasSubtitlePath(contentID int64, fullPath string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM subtitles s
		JOIN content_subtitles cs ON cs.subtitle_id = s.id
		WHERE cs.content_id = ? AND s.full_path = ?`, contentID, fullPath,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check subtitle path: %w", err)
	}
	return n > 0, nil
}

func deleteContentSubtitles(q querier, contentID int64) error {
	_, err := q.Exec(`
		DELETE FROM subtitles WHERE id IN
			(SELECT subtitle_id FROM content_subtitles WHERE content_id = ?)`, contentID)
	if err != nil {
		return fmt.Errorf("delete subtitles for content %d: %w", contentID, mapSQLiteError(err))
	}
	if _, err := q.Exec("DELETE FROM content_subtitles WHERE content_id = ?", contentID); err != nil {
		return fmt.Errorf("unlink subtitles for content %d: %w", contentID, mapSQLiteError(err))
	}
	return nil
}

// DeleteContentSubtitles removes all subtitles linked to a content item
// along with the links themselves.
func (s *Store) DeleteContentSubtitles(contentID int64) error {
	return deleteContentSubtitles(s.db, contentID)
}

// DeleteContentSubtitles removes linked subtitles within a transaction.
func (t *Tx) DeleteContentSubtitles(contentID int64) error {
	return deleteContentSubtitles(t.tx, contentID)
}
