package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions    = 0750
	filePermissions   = 0600
	connectionTimeout = 5 * time.Second
)

const schema = `CREATE TABLE IF NOT EXISTS eeprom (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data BLOB NOT NULL
)`

// SQLite keeps the image as a single row in a SQLite database. Writes are
// staged in memory and Commit replaces the stored blob in one statement.
type SQLite struct {
	image
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and loads the
// image. A stored image of a different size is truncated or padded with
// erased bytes.
func OpenSQLite(path string, size int) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("creating eeprom table: %w", err)
	}
	_ = os.Chmod(path, filePermissions) //nolint:errcheck // file may be created lazily

	s := &SQLite{image: newImage(size), db: db}

	var stored []byte
	err = db.QueryRowContext(ctx, `SELECT data FROM eeprom WHERE id = 1`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh database: image stays erased.
	case err != nil:
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("loading eeprom image: %w", err)
	default:
		copy(s.buf, stored)
	}
	return s, nil
}

// ReadBlock returns a copy of size bytes at addr.
func (s *SQLite) ReadBlock(addr, size int) ([]byte, error) { return s.read(addr, size) }

// WriteBlock stages data at addr.
func (s *SQLite) WriteBlock(addr int, data []byte) error { return s.write(addr, data) }

// Commit writes the whole image.
func (s *SQLite) Commit() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO eeprom (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, s.buf)
	if err != nil {
		return fmt.Errorf("committing eeprom image: %w", err)
	}
	return nil
}

// Close closes the database. Uncommitted writes are lost.
func (s *SQLite) Close() error {
	return s.db.Close()
}
