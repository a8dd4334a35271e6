package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/starford/notesearch/internal/apperr"
	"github.com/starford/notesearch/internal/models"
	"github.com/starford/notesearch/internal/predicate"
)

const noteColumns = `id, path, content, tags, system_tags, deleted, created_at, modified_at, checksum`

// unavailable marks a storage failure so callers can tell it apart from a
// missing note.
func unavailable(op string, err error) error {
	return fmt.Errorf("corpus: %s: %w: %w", op, apperr.ErrUnavailable, err)
}

// Upsert inserts or replaces the note with n.ID.
func (db *DB) Upsert(ctx context.Context, n models.Note) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path        = excluded.path,
			content     = excluded.content,
			tags        = excluded.tags,
			system_tags = excluded.system_tags,
			deleted     = excluded.deleted,
			created_at  = excluded.created_at,
			modified_at = excluded.modified_at,
			checksum    = excluded.checksum
	`, n.ID, n.Path, n.Content, n.Tags, n.SystemTags, n.Deleted,
		toNanos(n.CreatedAt), toNanos(n.ModifiedAt), n.Checksum)
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Delete removes the note with id. Deleting a missing note is not an error.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// deleteAt removes id only while it is still stored under path, so a stale
// filesystem event cannot drop a note that has since moved.
func (db *DB) deleteAt(ctx context.Context, id, path string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND path = ?`, id, path)
	if err != nil {
		return false, unavailable("delete", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns the note with id or an error wrapping apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, fmt.Errorf("corpus: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Note{}, unavailable("get", err)
	}
	return n, nil
}

// States returns the path and checksum of every stored note keyed by ID.
func (db *DB) States(ctx context.Context) (map[string]State, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, path, checksum FROM notes`)
	if err != nil {
		return nil, unavailable("states", err)
	}
	defer rows.Close()

	out := make(map[string]State)
	for rows.Next() {
		var id string
		var s State
		if err := rows.Scan(&id, &s.Path, &s.Checksum); err != nil {
			return nil, unavailable("states", err)
		}
		out[id] = s
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("states", err)
	}
	return out, nil
}

// Fetch returns every note matching p, ordered by ID. A deleted-status
// constraint at the top of p is evaluated by SQLite; everything else is
// evaluated by p.Matches so matching behaves the same in every backend.
func (db *DB) Fetch(ctx context.Context, p predicate.Predicate) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if deleted, ok := predicate.StatusOf(p); ok {
		query += ` WHERE deleted = ?`
		args = append(args, deleted)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("fetch", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, unavailable("fetch", err)
		}
		if p.Matches(n) {
			out = append(out, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch", err)
	}
	return out, nil
}

// Tags returns the sorted, distinct user tags of the non-deleted notes.
// Notes with malformed tag data contribute nothing.
func (db *DB) Tags(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT tags FROM notes WHERE deleted = 0`)
	if err != nil {
		return nil, unavailable("tags", err)
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("tags", err)
		}
		if tags, ok := models.DecodeTags(raw); ok {
			all = append(all, tags...)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("tags", err)
	}
	out := lo.Uniq(all)
	slices.Sort(out)
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var n models.Note
	var created, modified int64
	err := s.Scan(&n.ID, &n.Path, &n.Content, &n.Tags, &n.SystemTags, &n.Deleted,
		&created, &modified, &n.Checksum)
	if err != nil {
		return models.Note{}, err
	}
	n.CreatedAt = fromNanos(created)
	n.ModifiedAt = fromNanos(modified)
	return n, nil
}

// Timestamps are stored as Unix nanoseconds; 0 stands for the zero time.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
