package importpipeline

import (
	"context"
	"time"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/parser"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// Summary is returned on successful import.
type Summary struct {
	SessionID       string
	MessageCount    int64
	MessagesDropped int64
	MemberCount     int
}

// importSink drives parser events into a freshly created session store.
// It buffers messages between the parser's own batch size
// and the pipeline's commit cadence, wrapping each commit-sized group in
// one db.DoTxn call — the practical equivalent of "commit every N
// messages, then begin a new transaction" against an API (dbutil.DoTxn)
// that models a transaction as a closure rather than explicit
// begin/commit calls.
type importSink struct {
	cfg        config.Config
	db         *store.SessionStore
	tracker    *nicknameTracker
	onProgress func(model.Progress) error

	platformIDToMemberID map[string]int64
	pendingRows          []pendingMessage
	sinceCheckpoint      int64
	processed            int64
	dropped              int64
}

type pendingMessage struct {
	platformID          string
	senderAccountName   string
	senderGroupNickname string
	ts                  int64
	typ                 model.MessageType
	content             *string
}

func newImportSink(cfg config.Config, db *store.SessionStore, onProgress func(model.Progress) error) *importSink {
	return &importSink{
		cfg:                  cfg,
		db:                   db,
		tracker:              newNicknameTracker(),
		onProgress:           onProgress,
		platformIDToMemberID: make(map[string]int64),
	}
}

func (s *importSink) OnMeta(ctx context.Context, meta parser.Meta) error {
	return store.InsertMeta(ctx, s.db, meta.Name, meta.Platform, meta.Kind, time.Now().Unix(), meta.GroupID, meta.GroupAvatar)
}

func (s *importSink) OnMembers(ctx context.Context, members []parser.SenderInfo) error {
	for _, m := range members {
		id, err := store.UpsertMember(ctx, s.db, model.Member{
			PlatformID:    m.PlatformID,
			AccountName:   m.AccountName,
			GroupNickname: m.GroupNickname,
			Avatar:        m.Avatar,
		})
		if err != nil {
			return err
		}
		s.platformIDToMemberID[m.PlatformID] = id
	}
	return nil
}

func (s *importSink) OnMessages(ctx context.Context, batch []parser.ParsedMessage) error {
	for _, m := range batch {
		if m.SenderPlatformID == "" || m.TS < 0 {
			s.dropped++
			continue
		}
		s.tracker.Observe(m.SenderPlatformID, m.AccountName, m.GroupNickname, m.TS)
		s.pendingRows = append(s.pendingRows, pendingMessage{
			platformID:          m.SenderPlatformID,
			senderAccountName:   m.AccountName,
			senderGroupNickname: m.GroupNickname,
			ts:                  m.TS,
			typ:                 m.Type,
			content:             m.Content,
		})
	}
	commitEvery := s.cfg.CommitEvery
	if commitEvery <= 0 {
		commitEvery = config.Default().CommitEvery
	}
	if len(s.pendingRows) >= commitEvery {
		return s.flush(ctx)
	}
	return nil
}

func (s *importSink) flush(ctx context.Context) error {
	if len(s.pendingRows) == 0 {
		return nil
	}
	rows := s.pendingRows
	s.pendingRows = nil
	err := s.db.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		for _, r := range rows {
			memberID, ok := s.platformIDToMemberID[r.platformID]
			if !ok {
				id, err := store.UpsertMember(ctx, s.db, model.Member{PlatformID: r.platformID})
				if err != nil {
					return err
				}
				memberID = id
				s.platformIDToMemberID[r.platformID] = memberID
			}
			if _, err := store.InsertMessage(ctx, s.db, memberID, r.senderAccountName, r.senderGroupNickname, r.ts, r.typ, r.content); err != nil {
				return err
			}
			s.processed++
			s.sinceCheckpoint++
		}
		return nil
	})
	if err != nil {
		return err
	}

	checkpointEvery := int64(s.cfg.CheckpointEvery)
	if checkpointEvery <= 0 {
		checkpointEvery = int64(config.Default().CheckpointEvery)
	}
	if s.sinceCheckpoint >= checkpointEvery {
		if err := s.db.Checkpoint(ctx); err != nil {
			return err
		}
		s.sinceCheckpoint = 0
	}
	return nil
}

func (s *importSink) OnProgress(ctx context.Context, p model.Progress) error {
	if s.onProgress == nil {
		return nil
	}
	p.MessagesProcessed = s.processed
	p.MessagesDropped = s.dropped
	return s.onProgress(p)
}

func (s *importSink) OnDone(ctx context.Context, err error) error {
	return err
}

// finalize flushes the tail batch, persists the compacted nickname
// history, creates the deferred secondary indexes, and checkpoints.
// Called by the pipeline only when parsing completed without error.
func (s *importSink) finalize(ctx context.Context) error {
	if err := s.flush(ctx); err != nil {
		return chatlaberrors.Classify(err)
	}
	if err := s.db.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		for _, platformID := range s.tracker.PlatformIDs() {
			memberID, ok := s.platformIDToMemberID[platformID]
			if !ok {
				continue
			}
			accountEntries, nicknameEntries, latestAccount, latestNickname := s.tracker.PerMember(platformID)
			for _, e := range accountEntries {
				if err := store.InsertNameHistory(ctx, s.db, model.NameHistoryEntry{MemberID: memberID, Kind: e.Kind, Name: e.Name, Start: e.Start, End: e.End}); err != nil {
					return err
				}
			}
			for _, e := range nicknameEntries {
				if err := store.InsertNameHistory(ctx, s.db, model.NameHistoryEntry{MemberID: memberID, Kind: e.Kind, Name: e.Name, Start: e.Start, End: e.End}); err != nil {
					return err
				}
			}
			if latestAccount != "" || latestNickname != "" {
				m, found, err := store.GetMember(ctx, s.db, memberID)
				if err != nil {
					return err
				}
				if found {
					if latestAccount != "" {
						m.AccountName = latestAccount
					}
					if latestNickname != "" {
						m.GroupNickname = latestNickname
					}
					if _, err := store.UpsertMember(ctx, s.db, m); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}); err != nil {
		return chatlaberrors.Classify(err)
	}

	if err := store.CreateSessionIndexes(ctx, s.db.DB); err != nil {
		return chatlaberrors.Classify(err)
	}
	return s.db.Checkpoint(ctx)
}
