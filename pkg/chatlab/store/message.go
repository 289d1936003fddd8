package store

import (
	"context"
	"database/sql"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// InsertMessage inserts one message row, returning its internal id.
// Ids are monotone in insertion order, not timestamp order.
func InsertMessage(ctx context.Context, s *SessionStore, senderID int64, senderAccountName, senderGroupNickname string, ts int64, typ model.MessageType, content *string) (int64, error) {
	res, err := s.DB.Exec(ctx, `
		INSERT INTO message (sender_id, sender_account_name, sender_group_nickname, ts, type, content)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		senderID, senderAccountName, senderGroupNickname, ts, int(typ), content)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetMessage fetches a single message by internal id.
func GetMessage(ctx context.Context, s *SessionStore, id int64) (model.Message, bool, error) {
	var m model.Message
	row := s.DB.QueryRow(ctx, `
		SELECT id, sender_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message WHERE id = $1`, id)
	if err := scanMessage(row, &m); err != nil {
		if err == sql.ErrNoRows {
			return model.Message{}, false, nil
		}
		return model.Message{}, false, err
	}
	return m, true, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner, m *model.Message) error {
	var typ int
	if err := row.Scan(&m.ID, &m.SenderID, &m.SenderAccountName, &m.SenderGroupNickname, &m.TS, &typ, &m.Content); err != nil {
		return err
	}
	m.Type = model.MessageType(typ)
	return nil
}

// MessageCount returns the total row count in message, ignoring any filter;
// used for import-summary reporting.
func MessageCount(ctx context.Context, s *SessionStore) (int64, error) {
	var n int64
	row := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM message`)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// TimeRange returns (min ts, max ts) across every message matching
// filter, or (nil, nil) when the filter matches nothing.
func TimeRange(ctx context.Context, s *SessionStore, f model.Filter) (*int64, *int64, error) {
	where, args := f.Where(0, false)
	query := `SELECT MIN(ts), MAX(ts) FROM message WHERE 1=1` + where
	row := s.DB.QueryRow(ctx, query, args...)
	var min, max sql.NullInt64
	if err := row.Scan(&min, &max); err != nil {
		return nil, nil, err
	}
	if !min.Valid || !max.Valid {
		return nil, nil, nil
	}
	return &min.Int64, &max.Int64, nil
}
