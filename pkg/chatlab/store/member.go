package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// UpsertMember inserts a member by platform id if absent, or updates its
// account name / nickname / avatar when a non-empty value is provided.
func UpsertMember(ctx context.Context, s *SessionStore, m model.Member) (int64, error) {
	aliases, err := json.Marshal(m.Aliases)
	if err != nil {
		return 0, err
	}
	if len(m.Aliases) == 0 {
		aliases = []byte("[]")
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO member (platform_id, account_name, group_nickname, aliases, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (platform_id) DO UPDATE SET
			account_name = CASE WHEN excluded.account_name != '' THEN excluded.account_name ELSE member.account_name END,
			group_nickname = CASE WHEN excluded.group_nickname != '' THEN excluded.group_nickname ELSE member.group_nickname END,
			avatar = CASE WHEN excluded.avatar != '' THEN excluded.avatar ELSE member.avatar END
	`, m.PlatformID, m.AccountName, m.GroupNickname, string(aliases), m.Avatar)
	if err != nil {
		return 0, err
	}
	var id int64
	row := s.DB.QueryRow(ctx, `SELECT id FROM member WHERE platform_id = $1`, m.PlatformID)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// MemberIDByPlatformID looks up a member's internal id, returning
// (0, false, nil) when absent.
func MemberIDByPlatformID(ctx context.Context, s *SessionStore, platformID string) (int64, bool, error) {
	var id int64
	row := s.DB.QueryRow(ctx, `SELECT id FROM member WHERE platform_id = $1`, platformID)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// GetMember fetches a member by internal id.
func GetMember(ctx context.Context, s *SessionStore, id int64) (model.Member, bool, error) {
	var m model.Member
	var aliasesJSON string
	row := s.DB.QueryRow(ctx, `
		SELECT id, platform_id, account_name, group_nickname, aliases, avatar
		FROM member WHERE id = $1`, id)
	if err := row.Scan(&m.ID, &m.PlatformID, &m.AccountName, &m.GroupNickname, &aliasesJSON, &m.Avatar); err != nil {
		if err == sql.ErrNoRows {
			return model.Member{}, false, nil
		}
		return model.Member{}, false, err
	}
	_ = json.Unmarshal([]byte(aliasesJSON), &m.Aliases)
	return m, true, nil
}

// ListMembers returns every member in the session, ordered by internal id.
func ListMembers(ctx context.Context, s *SessionStore) ([]model.Member, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, platform_id, account_name, group_nickname, aliases, avatar
		FROM member ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Member
	for rows.Next() {
		var m model.Member
		var aliasesJSON string
		if err := rows.Scan(&m.ID, &m.PlatformID, &m.AccountName, &m.GroupNickname, &aliasesJSON, &m.Avatar); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(aliasesJSON), &m.Aliases)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetAliases overwrites a member's user-defined alias list.
func SetAliases(ctx context.Context, s *SessionStore, memberID int64, aliases []string) error {
	if aliases == nil {
		aliases = []string{}
	}
	b, err := json.Marshal(aliases)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `UPDATE member SET aliases = $1 WHERE id = $2`, string(b), memberID)
	return err
}

// DeleteMember removes a member and its name history. Callers are
// responsible for invalidating any session-index built over messages
// this affects.
func DeleteMember(ctx context.Context, s *SessionStore, memberID int64) error {
	return s.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := s.DB.Exec(ctx, `DELETE FROM member_name_history WHERE member_id = $1`, memberID); err != nil {
			return err
		}
		_, err := s.DB.Exec(ctx, `DELETE FROM member WHERE id = $1`, memberID)
		return err
	})
}

// InsertNameHistory appends one closed-or-open interval entry.
func InsertNameHistory(ctx context.Context, s *SessionStore, e model.NameHistoryEntry) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO member_name_history (member_id, name_type, name, start_ts, end_ts)
		VALUES ($1, $2, $3, $4, $5)`,
		e.MemberID, string(e.Kind), e.Name, e.Start, e.End)
	return err
}

// NameHistory returns every entry for a member, most recent first.
func NameHistory(ctx context.Context, s *SessionStore, memberID int64) ([]model.NameHistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, member_id, name_type, name, start_ts, end_ts
		FROM member_name_history WHERE member_id = $1 ORDER BY start_ts DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.NameHistoryEntry
	for rows.Next() {
		var e model.NameHistoryEntry
		var kind string
		var end sql.NullInt64
		if err := rows.Scan(&e.ID, &e.MemberID, &kind, &e.Name, &e.Start, &end); err != nil {
			return nil, err
		}
		e.Kind = model.NameKind(kind)
		if end.Valid {
			e.End = &end.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
