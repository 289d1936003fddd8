package store

import (
	"context"
	"database/sql"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// InsertMeta writes the single meta row for a freshly created session.
func InsertMeta(ctx context.Context, s *SessionStore, name string, platform model.Platform, kind model.Kind, importedAt int64, groupID, groupAvatar string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO meta (name, platform, type, imported_at, group_id, group_avatar)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		name, string(platform), string(kind), importedAt, groupID, groupAvatar)
	return err
}

// GetMeta reads the session's single meta row.
func GetMeta(ctx context.Context, s *SessionStore, sessionID string) (model.Session, error) {
	var sess model.Session
	var platform, kind string
	row := s.DB.QueryRow(ctx, `SELECT name, platform, type, imported_at, group_id, group_avatar FROM meta`)
	if err := row.Scan(&sess.Name, &platform, &kind, &sess.ImportedAt, &sess.GroupID, &sess.GroupAvatar); err != nil {
		return model.Session{}, err
	}
	sess.ID = sessionID
	sess.Platform = model.Platform(platform)
	sess.Kind = model.Kind(kind)
	return sess, nil
}

// Rename mutates the session's display name.
func Rename(ctx context.Context, s *SessionStore, name string) error {
	_, err := s.DB.Exec(ctx, `UPDATE meta SET name = $1`, name)
	return err
}

// SetOwner records the session's owning member id in a sidecar table
// created lazily, so older stores need not carry the column from day one.
func SetOwner(ctx context.Context, s *SessionStore, memberID int64) error {
	if _, err := s.DB.Exec(ctx, `CREATE TABLE IF NOT EXISTS session_owner (member_id INTEGER NOT NULL)`); err != nil {
		return err
	}
	if _, err := s.DB.Exec(ctx, `DELETE FROM session_owner`); err != nil {
		return err
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO session_owner (member_id) VALUES ($1)`, memberID)
	return err
}

// Owner returns the session's owning member id, if one has been set.
func Owner(ctx context.Context, s *SessionStore) (int64, bool, error) {
	var id int64
	row := s.DB.QueryRow(ctx, `SELECT member_id FROM session_owner`)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		// session_owner may not exist yet on a store no owner was ever
		// assigned to.
		return 0, false, nil
	}
	return id, true, nil
}

// SetGapThreshold records the session's preferred gap threshold, used as
// the default when session.generateIndex is invoked without an explicit
// override. Stored the same
// lazy-sidecar way as session_owner, distinct from session_index_meta's
// gap_threshold column, which instead records what the *persisted index*
// was last built with.
func SetGapThreshold(ctx context.Context, s *SessionStore, seconds int) error {
	if _, err := s.DB.Exec(ctx, `CREATE TABLE IF NOT EXISTS session_gap_threshold (seconds INTEGER NOT NULL)`); err != nil {
		return err
	}
	if _, err := s.DB.Exec(ctx, `DELETE FROM session_gap_threshold`); err != nil {
		return err
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO session_gap_threshold (seconds) VALUES ($1)`, seconds)
	return err
}

// GapThreshold returns the session's preferred gap threshold, if one has
// been explicitly set.
func GapThreshold(ctx context.Context, s *SessionStore) (int, bool, error) {
	var seconds int
	row := s.DB.QueryRow(ctx, `SELECT seconds FROM session_gap_threshold`)
	if err := row.Scan(&seconds); err != nil {
		return 0, false, nil
	}
	return seconds, true, nil
}
