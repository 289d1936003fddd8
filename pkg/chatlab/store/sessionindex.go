package store

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// ReplaceSessionIndex atomically replaces the persisted session-index
// with entries and records the gap threshold used to build it.
func ReplaceSessionIndex(ctx context.Context, s *SessionStore, gapThreshold int, entries []model.SessionIndexEntry) error {
	return s.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := s.DB.Exec(ctx, `DELETE FROM session_index`); err != nil {
			return err
		}
		if _, err := s.DB.Exec(ctx, `DELETE FROM session_index_meta`); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := s.DB.Exec(ctx, `
				INSERT INTO session_index (start_ts, end_ts, message_count, first_message_id)
				VALUES ($1, $2, $3, $4)`,
				e.StartTS, e.EndTS, e.MessageCount, e.FirstMessageID); err != nil {
				return err
			}
		}
		_, err := s.DB.Exec(ctx, `INSERT INTO session_index_meta (gap_threshold) VALUES ($1)`, gapThreshold)
		return err
	})
}

// SessionIndex returns the persisted session-index entries in order.
func SessionIndex(ctx context.Context, s *SessionStore) ([]model.SessionIndexEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, start_ts, end_ts, message_count, first_message_id
		FROM session_index ORDER BY start_ts ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionIndexEntry
	for rows.Next() {
		var e model.SessionIndexEntry
		if err := rows.Scan(&e.ID, &e.StartTS, &e.EndTS, &e.MessageCount, &e.FirstMessageID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearSessionIndex removes the persisted index and its threshold marker
// entirely, leaving the session with no index. Distinct from
// ReplaceSessionIndex(0, nil), which would still leave a threshold-0
// meta row behind.
func ClearSessionIndex(ctx context.Context, s *SessionStore) error {
	return s.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := s.DB.Exec(ctx, `DELETE FROM session_index`); err != nil {
			return err
		}
		_, err := s.DB.Exec(ctx, `DELETE FROM session_index_meta`)
		return err
	})
}

// IndexGapThreshold returns the threshold the persisted index was built
// with, if any has been built yet.
func IndexGapThreshold(ctx context.Context, s *SessionStore) (int, bool, error) {
	var threshold int
	row := s.DB.QueryRow(ctx, `SELECT gap_threshold FROM session_index_meta LIMIT 1`)
	err := row.Scan(&threshold)
	if err != nil {
		return 0, false, nil
	}
	return threshold, true, nil
}
