package query

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// BuildSessionIndex scans every message in timestamp order and emits a
// new entry whenever the inter-message gap exceeds gapThreshold seconds,
// replacing any prior index atomically. Distinct from
// store.ReplaceSessionIndex, which only persists entries already
// computed; this is where they're computed.
func BuildSessionIndex(ctx context.Context, s *store.SessionStore, gapThreshold int) ([]model.SessionIndexEntry, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, ts FROM message ORDER BY ts ASC, id ASC`)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var entries []model.SessionIndexEntry
	var cur *model.SessionIndexEntry
	var lastTS int64
	for rows.Next() {
		var id, ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		if cur == nil {
			cur = &model.SessionIndexEntry{StartTS: ts, EndTS: ts, MessageCount: 1, FirstMessageID: id}
		} else if ts-lastTS > int64(gapThreshold) {
			entries = append(entries, *cur)
			cur = &model.SessionIndexEntry{StartTS: ts, EndTS: ts, MessageCount: 1, FirstMessageID: id}
		} else {
			cur.EndTS = ts
			cur.MessageCount++
		}
		lastTS = ts
	}
	if err := rows.Err(); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	if cur != nil {
		entries = append(entries, *cur)
	}

	if err := store.ReplaceSessionIndex(ctx, s, gapThreshold, entries); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return entries, nil
}

// IndexStats summarizes the persisted session index.
type IndexStats struct {
	EntryCount   int
	GapThreshold int
	HasIndex     bool
}

// Stats reports whether an index exists and its current threshold.
func Stats(ctx context.Context, s *store.SessionStore) (IndexStats, error) {
	entries, err := store.SessionIndex(ctx, s)
	if err != nil {
		return IndexStats{}, chatlaberrors.Classify(err)
	}
	threshold, has, err := store.IndexGapThreshold(ctx, s)
	if err != nil {
		return IndexStats{}, chatlaberrors.Classify(err)
	}
	return IndexStats{EntryCount: len(entries), GapThreshold: threshold, HasIndex: has}, nil
}

// Clear removes the persisted session index entirely.
func Clear(ctx context.Context, s *store.SessionStore) error {
	if err := store.ClearSessionIndex(ctx, s); err != nil {
		return chatlaberrors.Classify(err)
	}
	return nil
}
