package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"
)

// dialect is the driver name passed to dbutil.NewWithDB throughout this
// package (go.mau.fi/util/dbutil wraps a *sql.DB plus a dialect tag it uses
// to pick placeholder/feature quirks; sqlite3 is the only dialect ChatLab
// ships).
const dialect = "sqlite3"

// dsn builds the sqlite3 driver DSN for a file-backed store: WAL
// journaling with NORMAL sync and foreign keys enforced (member_id/
// sender_id references).
func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
}

// SessionStore is one session's embedded relational store; each session
// owns exactly one store file.
type SessionStore struct {
	DB   *dbutil.Database
	Path string
}

// CreateSession opens a brand-new session store at path, failing if a
// file already exists there, and applies the base schema. Secondary
// indexes are deliberately absent until the bulk import finishes.
func CreateSession(ctx context.Context, path string) (*SessionStore, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("session store already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	s, err := openSessionFile(path)
	if err != nil {
		return nil, err
	}
	if err := applySessionSchema(ctx, s.DB); err != nil {
		s.Close()
		os.Remove(path)
		return nil, err
	}
	if _, err := s.DB.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, SchemaVersion); err != nil {
		s.Close()
		os.Remove(path)
		return nil, err
	}
	return s, nil
}

// OpenSession opens an existing session store for read or write use. It
// does not run migrations; callers route through pkg/chatlab/migrate first.
func OpenSession(path string) (*SessionStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return openSessionFile(path)
}

func openSessionFile(path string) (*SessionStore, error) {
	raw, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	// SQLite allows exactly one writer; a single pooled connection keeps
	// the whole store (reads and writes) serialized through it, which is
	// the same single-in-flight-transaction-per-session discipline the
	// worker host enforces at a higher level.
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	db, err := dbutil.NewWithDB(raw, dialect)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &SessionStore{DB: db, Path: path}, nil
}

// Close releases the underlying connection pool.
func (s *SessionStore) Close() error {
	return s.DB.RawDB.Close()
}

// Delete closes the store and removes its file and WAL/SHM sidecars.
func (s *SessionStore) Delete() error {
	_ = s.Close()
	return DeleteSessionFiles(s.Path)
}

// DeleteSessionFiles removes a session's db file and sidecars without
// requiring an open handle; used to clean up a partially-created store on
// import failure.
func DeleteSessionFiles(path string) error {
	var firstErr error
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Checkpoint truncates the write-ahead log; issued every CheckpointEvery
// messages during import, and once more at the end.
func (s *SessionStore) Checkpoint(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}
