// Package storage persists creator profiles.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS profiles (
  id              TEXT PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  description     TEXT,
  logo_url        TEXT,
  twitch_username TEXT,
  twitch_channel  TEXT,
  x_username      TEXT,
  search_terms    TEXT,
  created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS profile_changes (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  profile_id  TEXT NOT NULL,
  path        TEXT NOT NULL,
  change_type TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON profile_changes(occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

const profileColumns = "id, path, name, description, logo_url, twitch_username, twitch_channel, x_username, search_terms"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (creator.Profile, error) {
	var p creator.Profile
	var desc, logo, tu, tc, xu, terms sql.NullString
	if err := r.Scan(&p.ID, &p.Path, &p.Name, &desc, &logo, &tu, &tc, &xu, &terms); err != nil {
		return p, err
	}
	p.Description = desc.String
	p.LogoURL = logo.String
	p.TwitchUsername = tu.String
	p.TwitchChannel = tc.String
	p.XUsername = xu.String
	p.SearchTerms = terms.String
	return p, nil
}

// ListProfiles returns up to limit profiles in insertion order. A limit <= 0
// returns all of them.
func (d *DB) ListProfiles(ctx context.Context, limit int) ([]creator.Profile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY rowid LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []creator.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile looks a profile up by id or path.
func (d *DB) GetProfile(ctx context.Context, idOrPath string) (creator.Profile, error) {
	return d.getProfile(ctx, d.sql, idOrPath)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) getProfile(ctx context.Context, q queryer, idOrPath string) (creator.Profile, error) {
	row := q.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ? OR path = ? LIMIT 1", idOrPath, NormalizePath(idOrPath))
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", ErrNotFound, idOrPath)
	}
	return p, err
}

// UpsertProfile inserts p, or updates the profile with the same id or path.
// A known id wins over the path, so sending an existing id with a new path
// renames that profile. The returned Change has an empty ChangeType when
// nothing changed.
func (d *DB) UpsertProfile(ctx context.Context, p creator.Profile) (creator.Profile, Change, error) {
	byID := p.ID != ""
	p, err := NormalizeProfile(p)
	if err != nil {
		return p, Change{}, err
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return p, Change{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, found, err := findExisting(ctx, tx, p, byID)
	if err != nil {
		return p, Change{}, err
	}
	if found {
		p.ID = existing.ID
	}

	change := Change{OccurredAt: time.Now().UTC(), ProfileID: p.ID, Path: p.Path}
	if found {
		if existing == p {
			err = tx.Commit()
			return p, Change{}, err
		}
		_, err = tx.ExecContext(ctx, `UPDATE profiles SET path = ?, name = ?, description = ?, logo_url = ?, twitch_username = ?, twitch_channel = ?, x_username = ?, search_terms = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			p.Path, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.LogoURL), nullIfEmpty(p.TwitchUsername), nullIfEmpty(p.TwitchChannel), nullIfEmpty(p.XUsername), nullIfEmpty(p.SearchTerms), p.ID)
		change.ChangeType = "updated"
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO profiles(`+profileColumns+`) VALUES(?,?,?,?,?,?,?,?,?)`,
			p.ID, p.Path, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.LogoURL), nullIfEmpty(p.TwitchUsername), nullIfEmpty(p.TwitchChannel), nullIfEmpty(p.XUsername), nullIfEmpty(p.SearchTerms))
		change.ChangeType = "added"
	}
	if err != nil {
		return p, Change{}, err
	}

	if err = logChange(ctx, tx, change); err != nil {
		return p, Change{}, err
	}
	if err = tx.Commit(); err != nil {
		return p, Change{}, err
	}
	return p, change, nil
}

// findExisting returns the stored profile an upsert of p targets: the one
// with p.ID when byID is set and that id exists, otherwise the one at p.Path.
func findExisting(ctx context.Context, tx *sql.Tx, p creator.Profile, byID bool) (creator.Profile, bool, error) {
	if byID {
		existing, err := scanProfile(tx.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", p.ID))
		switch {
		case err == nil:
			other, err := scanProfile(tx.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE path = ? AND id <> ?", p.Path, p.ID))
			if err == nil {
				return existing, false, fmt.Errorf("%w: path %q belongs to profile %s", ErrInvalidInput, p.Path, other.ID)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return existing, false, err
			}
			return existing, true, nil
		case !errors.Is(err, sql.ErrNoRows):
			return existing, false, err
		}
	}

	existing, err := scanProfile(tx.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE path = ?", p.Path))
	if errors.Is(err, sql.ErrNoRows) {
		return existing, false, nil
	}
	return existing, err == nil, err
}

// DeleteProfile removes the profile with the given id or path.
func (d *DB) DeleteProfile(ctx context.Context, idOrPath string) (change Change, err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Change{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err := d.getProfile(ctx, tx, idOrPath)
	if err != nil {
		return Change{}, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", p.ID); err != nil {
		return Change{}, err
	}

	change = Change{OccurredAt: time.Now().UTC(), ProfileID: p.ID, Path: p.Path, ChangeType: "removed"}
	if err = logChange(ctx, tx, change); err != nil {
		return Change{}, err
	}
	if err = tx.Commit(); err != nil {
		return Change{}, err
	}
	return change, nil
}

func logChange(ctx context.Context, tx *sql.Tx, c Change) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profile_changes(occurred_at, profile_id, path, change_type) VALUES(CURRENT_TIMESTAMP, ?, ?, ?)`, c.ProfileID, c.Path, c.ChangeType)
	return err
}

// ListRecentChanges returns the most recent N profile changes.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, profile_id, path, change_type FROM profile_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		if err := rows.Scan(&occurredAtStr, &c.ProfileID, &c.Path, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTimestamp(occurredAtStr)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP values, falling back to
// RFC3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
