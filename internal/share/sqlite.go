package share

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database. It honors the same
// whole-mapping contract as the JSON store: Load reads every row and
// Save replaces the table contents in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open share database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shares (
		token TEXT PRIMARY KEY,
		link_name TEXT NOT NULL,
		item_name TEXT NOT NULL,
		is_directory INTEGER NOT NULL DEFAULT 0,
		creation_date INTEGER NOT NULL,
		expiry_date INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shares_expiry ON shares(expiry_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads all rows. Unlike the JSON store there is no tolerant-parse
// path to worry about: a broken database surfaces as an empty mapping.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]*Record, error) {
	records := make(map[string]*Record)

	rows, err := s.db.QueryContext(ctx, `SELECT token, link_name, item_name, is_directory, creation_date, expiry_date FROM shares`)
	if err != nil {
		return records, nil
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		var isDir int
		var created, expires int64
		if err := rows.Scan(&r.Token, &r.LinkName, &r.ItemPath, &isDir, &created, &expires); err != nil {
			continue
		}
		r.IsDirectory = isDir != 0
		r.CreatedAt = time.Unix(created, 0).UTC()
		r.ExpiresAt = time.Unix(expires, 0).UTC()
		records[r.Token] = &r
	}
	return records, nil
}

// Save replaces the table contents with the given mapping.
func (s *SQLiteStore) Save(ctx context.Context, records map[string]*Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shares`); err != nil {
		return err
	}

	for _, r := range records {
		isDir := 0
		if r.IsDirectory {
			isDir = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shares (token, link_name, item_name, is_directory, creation_date, expiry_date) VALUES (?, ?, ?, ?, ?, ?)`,
			r.Token, r.LinkName, r.ItemPath, isDir, r.CreatedAt.Unix(), r.ExpiresAt.Unix(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
