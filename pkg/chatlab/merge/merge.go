// Package merge implements the staging-store merger: one staging store
// per source, conflict detection across sources sharing a (timestamp,
// sender) bucket, a first-processed-wins dedup merge, and a canonical
// JSON export writer.
package merge

import (
	"context"
	"regexp"
	"sort"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/importpipeline"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/parser"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// pureImagePattern matches a message whose entire content is a bracketed
// image placeholder, the one content variant treated as auto-dedupable
// even when the exact text differs byte-for-byte (exporters name the
// same image differently per export).
var pureImagePattern = regexp.MustCompile(`^\[图片:\s*.+\]$`)

// Source is one input file to be merged, already staged.
type Source struct {
	Path    string
	staging *store.StagingStore
	meta    parser.Meta
}

// Conflict is one cross-source content disagreement at the same
// (timestamp, sender) bucket.
type Conflict struct {
	Timestamp  int64
	PlatformID string
	Contents   []string
}

// ConflictReport is the result of CheckConflicts.
type ConflictReport struct {
	Conflicts     []Conflict
	DedupedCount  int
	TotalMessages int
}

// stagedMessage is one row read back out of a staging store, tagged with
// which source it came from for first-processed-wins ordering.
type stagedMessage struct {
	sourceIndex   int
	platformID    string
	accountName   string
	groupNickname string
	ts            int64
	typ           int
	content       *string
}

// stageAll opens a fresh staging store per path and parses each source
// into it, rejecting the set outright if more than one platform is
// reported.
func stageAll(ctx context.Context, cfg config.Config, paths []string) ([]*Source, error) {
	sources := make([]*Source, 0, len(paths))
	cleanup := func() {
		for _, s := range sources {
			if s.staging != nil {
				s.staging.Delete()
			}
		}
	}

	var platform model.Platform
	for _, path := range paths {
		staging, sourcePlatform, err := importpipeline.StageSource(ctx, cfg, path, nil)
		if err != nil {
			cleanup()
			return nil, err
		}
		if platform == "" {
			platform = sourcePlatform
		} else if sourcePlatform != "" && sourcePlatform != platform {
			staging.Delete()
			cleanup()
			return nil, chatlaberrors.MixedPlatforms
		}

		sources = append(sources, &Source{Path: path, staging: staging, meta: parser.Meta{Platform: sourcePlatform}})
	}
	return sources, nil
}

// CheckConflicts stages every path and reports cross-source content
// disagreements without writing a merged export.
func CheckConflicts(ctx context.Context, cfg config.Config, paths []string) (ConflictReport, error) {
	sources, err := stageAll(ctx, cfg, paths)
	if err != nil {
		return ConflictReport{}, err
	}
	defer releaseSources(sources)

	messages, err := loadAllMessages(ctx, sources)
	if err != nil {
		return ConflictReport{}, err
	}
	return detectConflicts(messages), nil
}

func loadAllMessages(ctx context.Context, sources []*Source) ([]stagedMessage, error) {
	var all []stagedMessage
	for i, s := range sources {
		rows, err := s.staging.DB.Query(ctx, `
			SELECT sender_platform_id, sender_account_name, sender_group_nickname, ts, type, content
			FROM message`)
		if err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		for rows.Next() {
			var m stagedMessage
			m.sourceIndex = i
			if err := rows.Scan(&m.platformID, &m.accountName, &m.groupNickname, &m.ts, &m.typ, &m.content); err != nil {
				rows.Close()
				return nil, chatlaberrors.Classify(err)
			}
			all = append(all, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, chatlaberrors.Classify(err)
		}
		rows.Close()
	}
	return all, nil
}

// detectConflicts buckets by (ts, sender) then by exact content. A
// bucket whose messages all came from one source is never a conflict; a
// multi-source bucket with a single content variant (or only pure-image
// variants) counts as auto-deduplicated.
func detectConflicts(messages []stagedMessage) ConflictReport {
	type bucketKey struct {
		ts         int64
		platformID string
	}
	buckets := make(map[bucketKey][]stagedMessage)
	for _, m := range messages {
		k := bucketKey{ts: m.ts, platformID: m.platformID}
		buckets[k] = append(buckets[k], m)
	}

	report := ConflictReport{TotalMessages: len(messages)}
	deduped := 0
	for _, bucket := range buckets {
		sourceSet := make(map[int]bool)
		for _, m := range bucket {
			sourceSet[m.sourceIndex] = true
		}
		if len(sourceSet) < 2 {
			continue
		}
		byContent := make(map[string][]stagedMessage)
		for _, m := range bucket {
			byContent[contentKey(m.content)] = append(byContent[contentKey(m.content)], m)
		}
		if len(byContent) <= 1 {
			deduped += len(bucket) - 1
			continue
		}
		if allPureImage(byContent) {
			deduped += len(bucket) - 1
			continue
		}
		var contents []string
		for c := range byContent {
			contents = append(contents, c)
		}
		sort.Strings(contents)
		report.Conflicts = append(report.Conflicts, Conflict{
			Timestamp:  bucket[0].ts,
			PlatformID: bucket[0].platformID,
			Contents:   contents,
		})
		deduped += len(bucket) - 1
	}
	report.DedupedCount = deduped
	sort.Slice(report.Conflicts, func(i, j int) bool {
		if report.Conflicts[i].Timestamp != report.Conflicts[j].Timestamp {
			return report.Conflicts[i].Timestamp < report.Conflicts[j].Timestamp
		}
		return report.Conflicts[i].PlatformID < report.Conflicts[j].PlatformID
	})
	return report
}

func allPureImage(byContent map[string][]stagedMessage) bool {
	for c := range byContent {
		if !pureImagePattern.MatchString(c) {
			return false
		}
	}
	return true
}

func contentKey(content *string) string {
	if content == nil {
		return ""
	}
	return *content
}

func releaseSources(sources []*Source) {
	for _, s := range sources {
		if s.staging != nil {
			s.staging.Delete()
		}
	}
}
