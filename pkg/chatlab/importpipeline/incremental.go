package importpipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlabid"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/format"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/parser"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// IncrementalCounts is the (new, duplicate, total) breakdown returned by
// AnalyzeIncremental without writing and by Incremental after writing.
type IncrementalCounts struct {
	New       int
	Duplicate int
	Total     int
}

// dedupeKey is the (timestamp, sender platform id, content-length)
// triple used as a cheap duplicate proxy: exact content equality would
// require holding every existing message's content for comparison, while
// length is a bounded, order-independent stand-in.
type dedupeKey struct {
	ts         int64
	platformID string
	length     int
}

// StageSource runs sourcePath through the sniffer and its parser into a
// fresh staging store, returning the staging store (caller deletes it) and
// the detected platform. Used both by incremental import below and by
// the merge package's per-source staging step.
func StageSource(ctx context.Context, cfg config.Config, sourcePath string, onProgress func(model.Progress) error) (*store.StagingStore, model.Platform, error) {
	stat, err := os.Stat(sourcePath)
	if err != nil {
		return nil, "", chatlaberrors.Newf(chatlaberrors.CodeIOError, "stat source: %v", err)
	}
	prefix, err := ReadDetectPrefix(sourcePath, cfg.SnifferPrefixBytes)
	if err != nil {
		return nil, "", chatlaberrors.Newf(chatlaberrors.CodeIOError, "read prefix: %v", err)
	}
	descriptor, diagnosis := format.Default().Detect(prefix, ExtOf(sourcePath))
	if descriptor == nil {
		return nil, "", chatlaberrors.UnrecognizedFormat(diagnosis)
	}
	p, ok := parser.ForFormat(descriptor.ID)
	if !ok {
		return nil, "", chatlaberrors.Newf(chatlaberrors.CodeUnrecognizedFormat, "no parser registered for format %q", descriptor.ID)
	}

	if err := os.MkdirAll(cfg.TempDir(), 0o755); err != nil {
		return nil, "", chatlaberrors.Classify(err)
	}
	stagingPath := filepath.Join(cfg.TempDir(), chatlabid.NewStagingID()+".db")
	staging, err := store.CreateStaging(ctx, stagingPath)
	if err != nil {
		return nil, "", chatlaberrors.Classify(err)
	}

	var platform model.Platform
	sink := &stagingSink{db: staging, source: sourcePath, onProgress: onProgress, platform: &platform}
	if err := p.Parse(ctx, sourcePath, stat.Size(), sink); err != nil {
		staging.Delete()
		return nil, "", chatlaberrors.Classify(err)
	}
	return staging, platform, nil
}

// AnalyzeIncremental parses newSourcePath into a staging store and reports
// how many of its messages are new versus already present in the existing
// session, without writing anything to the session.
func AnalyzeIncremental(ctx context.Context, cfg config.Config, sessionID, newSourcePath string) (IncrementalCounts, error) {
	staging, _, err := StageSource(ctx, cfg, newSourcePath, nil)
	if err != nil {
		return IncrementalCounts{}, err
	}
	defer staging.Delete()

	existing, err := existingKeys(ctx, cfg, sessionID)
	if err != nil {
		return IncrementalCounts{}, err
	}

	rows, err := staging.DB.Query(ctx, `SELECT sender_platform_id, ts, content FROM message`)
	if err != nil {
		return IncrementalCounts{}, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var counts IncrementalCounts
	for rows.Next() {
		var platformID string
		var ts int64
		var content *string
		if err := rows.Scan(&platformID, &ts, &content); err != nil {
			return IncrementalCounts{}, chatlaberrors.Classify(err)
		}
		key := dedupeKey{ts: ts, platformID: platformID, length: contentLength(content)}
		counts.Total++
		if existing[key] {
			counts.Duplicate++
		} else {
			counts.New++
		}
	}
	return counts, rows.Err()
}

// Incremental parses newSourcePath into a staging store, then copies
// only messages whose dedupe key is not already present in the session,
// preserving the session's monotone ids. The session-index is left
// stale; callers re-build it afterward.
func Incremental(ctx context.Context, cfg config.Config, sessionID, newSourcePath string, onProgress func(model.Progress) error) (IncrementalCounts, error) {
	staging, _, err := StageSource(ctx, cfg, newSourcePath, onProgress)
	if err != nil {
		return IncrementalCounts{}, err
	}
	defer staging.Delete()

	sess, err := store.OpenSession(cfg.SessionDBPath(sessionID))
	if err != nil {
		return IncrementalCounts{}, chatlaberrors.Classify(err)
	}
	defer sess.Close()

	existing, err := keysFromStore(ctx, sess)
	if err != nil {
		return IncrementalCounts{}, err
	}

	rows, err := staging.DB.Query(ctx, `
		SELECT sender_platform_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message ORDER BY id`)
	if err != nil {
		return IncrementalCounts{}, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	platformIDToMemberID := map[string]int64{}
	var counts IncrementalCounts
	err = sess.DB.DoTxn(ctx, nil, func(ctx context.Context) error {
		for rows.Next() {
			var platformID, accountName, nickname string
			var ts int64
			var typ int
			var content *string
			if err := rows.Scan(&platformID, &accountName, &nickname, &ts, &typ, &content); err != nil {
				return err
			}
			key := dedupeKey{ts: ts, platformID: platformID, length: contentLength(content)}
			counts.Total++
			if existing[key] {
				counts.Duplicate++
				continue
			}
			counts.New++
			existing[key] = true

			memberID, ok := platformIDToMemberID[platformID]
			if !ok {
				id, known, err := store.MemberIDByPlatformID(ctx, sess, platformID)
				if err != nil {
					return err
				}
				if !known {
					id, err = store.UpsertMember(ctx, sess, model.Member{PlatformID: platformID, AccountName: accountName, GroupNickname: nickname})
					if err != nil {
						return err
					}
				}
				memberID = id
				platformIDToMemberID[platformID] = memberID
			}
			if _, err := store.InsertMessage(ctx, sess, memberID, accountName, nickname, ts, model.NormalizeMessageType(typ), content); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return IncrementalCounts{}, chatlaberrors.Classify(err)
	}
	return counts, nil
}

func contentLength(content *string) int {
	if content == nil {
		return 0
	}
	return len(*content)
}

func existingKeys(ctx context.Context, cfg config.Config, sessionID string) (map[dedupeKey]bool, error) {
	sess, err := store.OpenSession(cfg.SessionDBPath(sessionID))
	if err != nil {
		return nil, chatlaberrors.Classify(fmt.Errorf("open session %s: %w", sessionID, err))
	}
	defer sess.Close()
	return keysFromStore(ctx, sess)
}

func keysFromStore(ctx context.Context, sess *store.SessionStore) (map[dedupeKey]bool, error) {
	rows, err := sess.DB.Query(ctx, `
		SELECT member.platform_id, message.ts, message.content
		FROM message JOIN member ON member.id = message.sender_id`)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	keys := make(map[dedupeKey]bool)
	for rows.Next() {
		var platformID string
		var ts int64
		var content *string
		if err := rows.Scan(&platformID, &ts, &content); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		keys[dedupeKey{ts: ts, platformID: platformID, length: contentLength(content)}] = true
	}
	return keys, rows.Err()
}
