package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"
)

// SQLiteStorage keeps the blob in a single-row table of a SQLite database.
type SQLiteStorage struct {
	*sql.DB

	path string
}

// NewSQLiteStorage opens (or creates) the database at path and makes sure the
// snapshot table exists. The database is closed when the process exits
// through atexit.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{DB: db, path: path}

	err = s.init()
	if err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() { s.Close() })

	return s, nil
}

func (s *SQLiteStorage) init() error {
	_, err := s.Exec(`CREATE TABLE IF NOT EXISTS registry_snapshot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       BLOB NOT NULL,
	written_at TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}

	return nil
}

// Location returns the database path.
func (s *SQLiteStorage) Location() string {
	return s.path
}

// Read returns the stored blob.
func (s *SQLiteStorage) Read() ([]byte, error) {
	var data []byte

	err := s.QueryRow(`SELECT data FROM registry_snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, s.path)
	}

	if err != nil {
		return nil, err
	}

	return data, nil
}

// Write replaces the stored blob inside a transaction.
func (s *SQLiteStorage) Write(blob []byte) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO registry_snapshot (id, data, written_at)
VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, written_at = excluded.written_at`,
		blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
