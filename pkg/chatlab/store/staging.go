package store

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"
)

// StagingStore is one source's temporary store used during merge and
// incremental import.
type StagingStore struct {
	DB   *dbutil.Database
	Path string
}

// CreateStaging creates (or truncates, if somehow left over) a staging
// store at path and applies its minimal schema.
func CreateStaging(ctx context.Context, path string) (*StagingStore, error) {
	_ = os.Remove(path)
	raw, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	db, err := dbutil.NewWithDB(raw, dialect)
	if err != nil {
		raw.Close()
		return nil, err
	}
	s := &StagingStore{DB: db, Path: path}
	if err := applyStagingSchema(ctx, db); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *StagingStore) Close() error {
	return s.DB.RawDB.Close()
}

// Delete closes and removes the staging store file. Staging stores carry
// no WAL sidecars worth preserving between runs since they're swept on
// every application start.
func (s *StagingStore) Delete() error {
	_ = s.Close()
	var firstErr error
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(s.Path + suffix); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SweepStagingDir deletes every staging store file in dir; called once on
// application start and again by the merge.clearCache operation.
func SweepStagingDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(dir + string(os.PathSeparator) + e.Name()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
