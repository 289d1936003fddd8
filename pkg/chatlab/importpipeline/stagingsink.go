package importpipeline

import (
	"context"
	"path/filepath"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/parser"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// stagingSink drives one source file's parser events into a staging
// store, used by both the incremental-import path in this package and
// the merge package's per-source staging step. Unlike importSink it
// keeps no nickname history and performs no deferred indexing: staging
// stores are scratch space, read once and discarded.
type stagingSink struct {
	db         *store.StagingStore
	source     string
	onProgress func(model.Progress) error
	platform   *model.Platform

	processed int64
}

func (s *stagingSink) OnMeta(ctx context.Context, meta parser.Meta) error {
	if s.platform != nil {
		*s.platform = meta.Platform
	}
	return store.InsertStagingMeta(ctx, s.db, meta.Name, string(meta.Platform), string(meta.Kind), filepath.Base(s.source))
}

func (s *stagingSink) OnMembers(ctx context.Context, members []parser.SenderInfo) error {
	for _, m := range members {
		if err := store.UpsertStagingMember(ctx, s.db, store.SenderRow{
			PlatformID:    m.PlatformID,
			AccountName:   m.AccountName,
			GroupNickname: m.GroupNickname,
			Avatar:        m.Avatar,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *stagingSink) OnMessages(ctx context.Context, batch []parser.ParsedMessage) error {
	return s.db.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		for _, m := range batch {
			if m.SenderPlatformID == "" || m.TS < 0 {
				continue
			}
			if err := store.UpsertStagingMember(ctx, s.db, store.SenderRow{
				PlatformID:    m.SenderPlatformID,
				AccountName:   m.AccountName,
				GroupNickname: m.GroupNickname,
			}); err != nil {
				return err
			}
			if err := store.InsertStagingMessage(ctx, s.db, m.SenderPlatformID, m.AccountName, m.GroupNickname, m.TS, int(m.Type), m.Content); err != nil {
				return err
			}
			s.processed++
		}
		return nil
	})
}

func (s *stagingSink) OnProgress(ctx context.Context, p model.Progress) error {
	if s.onProgress == nil {
		return nil
	}
	p.MessagesProcessed = s.processed
	return s.onProgress(p)
}

func (s *stagingSink) OnDone(ctx context.Context, err error) error {
	return err
}
