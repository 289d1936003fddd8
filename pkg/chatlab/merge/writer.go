package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/importpipeline"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Result is what MergeFiles returns: the export file path, reimport
// summary (if requested), and basic counts.
type Result struct {
	ExportPath   string
	MessageCount int
	MemberCount  int
	SessionID    string // empty unless Reimport was requested
}

// Options controls MergeFiles.
type Options struct {
	Name     string // conversation name written to meta.name
	Reimport bool   // re-enter the import pipeline on the written export
}

type mergeKey struct {
	ts         int64
	platformID string
	length     int
}

// MergeFiles runs the full merge: stages every source, keeps the
// first-processed copy of each
// (timestamp, sender, content-length) key, union-merges members with
// "last non-empty value wins", sorts by timestamp, and writes a canonical
// export. Sources are ordered by the caller to express conflict
// resolution preference — the first source to reach a given key wins it.
func MergeFiles(ctx context.Context, cfg config.Config, paths []string, opts Options) (Result, error) {
	sources, err := stageAll(ctx, cfg, paths)
	if err != nil {
		return Result{}, err
	}
	defer releaseSources(sources)

	members := make(map[string]model.ExportMember)
	seen := make(map[mergeKey]bool)
	var messages []model.ExportMessage
	var exportSources []model.ExportSource
	var platform model.Platform

	for _, src := range sources {
		count := 0
		rows, err := src.staging.DB.Query(ctx, `
			SELECT platform_id, account_name, group_nickname, avatar FROM member`)
		if err != nil {
			return Result{}, chatlaberrors.Classify(err)
		}
		for rows.Next() {
			var platformID, accountName, groupNickname, avatar string
			if err := rows.Scan(&platformID, &accountName, &groupNickname, &avatar); err != nil {
				rows.Close()
				return Result{}, chatlaberrors.Classify(err)
			}
			mergeMember(members, platformID, accountName, groupNickname, avatar)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return Result{}, chatlaberrors.Classify(err)
		}
		rows.Close()

		msgRows, err := src.staging.DB.Query(ctx, `
			SELECT sender_platform_id, sender_account_name, sender_group_nickname, ts, type, content
			FROM message ORDER BY ts`)
		if err != nil {
			return Result{}, chatlaberrors.Classify(err)
		}
		for msgRows.Next() {
			var platformID, accountName, groupNickname string
			var ts int64
			var typ int
			var content *string
			if err := msgRows.Scan(&platformID, &accountName, &groupNickname, &ts, &typ, &content); err != nil {
				msgRows.Close()
				return Result{}, chatlaberrors.Classify(err)
			}
			key := mergeKey{ts: ts, platformID: platformID, length: contentLen(content)}
			if seen[key] {
				continue
			}
			seen[key] = true
			messages = append(messages, model.ExportMessage{
				Sender:        platformID,
				AccountName:   accountName,
				GroupNickname: groupNickname,
				Timestamp:     ts,
				Type:          typ,
				Content:       content,
			})
			count++
		}
		if err := msgRows.Err(); err != nil {
			msgRows.Close()
			return Result{}, chatlaberrors.Classify(err)
		}
		msgRows.Close()

		if platform == "" {
			platform = src.meta.Platform
		}
		exportSources = append(exportSources, model.ExportSource{
			Filename:     filepath.Base(src.Path),
			Platform:     string(src.meta.Platform),
			MessageCount: count,
		})
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp < messages[j].Timestamp })

	exportMembers := make([]model.ExportMember, 0, len(members))
	for _, m := range members {
		exportMembers = append(exportMembers, m)
	}
	sort.Slice(exportMembers, func(i, j int) bool { return exportMembers[i].PlatformID < exportMembers[j].PlatformID })

	name := opts.Name
	if name == "" {
		name = "merged"
	}
	kind := model.KindGroup
	if len(exportMembers) <= 2 {
		kind = model.KindPrivate
	}

	export := model.CanonicalExport{
		ChatLab: model.ExportMeta{
			Version:   "1",
			Generator: "chatlab-merge",
		},
		Meta: model.ExportSessionMeta{
			Name:     name,
			Platform: platform,
			Type:     kind,
			Sources:  exportSources,
		},
		Members:  exportMembers,
		Messages: messages,
	}

	exportPath, err := writeExport(cfg, name, export)
	if err != nil {
		return Result{}, err
	}
	zerolog.Ctx(ctx).Info().
		Str("export_path", exportPath).
		Int("messages", len(messages)).
		Int("members", len(exportMembers)).
		Int("sources", len(sources)).
		Msg("Merge finished")

	result := Result{
		ExportPath:   exportPath,
		MessageCount: len(messages),
		MemberCount:  len(exportMembers),
	}

	if opts.Reimport {
		summary, err := importpipeline.Import(ctx, cfg, exportPath, nil)
		if err != nil {
			return result, err
		}
		result.SessionID = summary.SessionID
	}

	return result, nil
}

func mergeMember(members map[string]model.ExportMember, platformID, accountName, groupNickname, avatar string) {
	m, ok := members[platformID]
	if !ok {
		m = model.ExportMember{PlatformID: platformID}
	}
	if accountName != "" {
		m.AccountName = accountName
	}
	if groupNickname != "" {
		m.GroupNickname = groupNickname
	}
	if avatar != "" {
		m.Avatar = avatar
	}
	members[platformID] = m
}

func contentLen(content *string) int {
	if content == nil {
		return 0
	}
	return len(*content)
}

// writeExport writes the canonical export to
// <documents>/<AppName>/merged/<safe-name>_merged_<yyyymmdd>.json. A
// pre-set ExportedAt (from tests) is preserved; otherwise it is stamped
// here.
func writeExport(cfg config.Config, name string, export model.CanonicalExport) (string, error) {
	if err := os.MkdirAll(cfg.MergedDir(), 0o755); err != nil {
		return "", chatlaberrors.Classify(err)
	}
	if export.ChatLab.ExportedAt == 0 {
		export.ChatLab.ExportedAt = time.Now().Unix()
	}
	safe := safeFilename(name)
	filename := fmt.Sprintf("%s_merged_%s.json", safe, time.Now().Format("20060102"))
	path := filepath.Join(cfg.MergedDir(), filename)

	f, err := os.Create(path)
	if err != nil {
		return "", chatlaberrors.Classify(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(export); err != nil {
		return "", chatlaberrors.Classify(err)
	}
	return path, nil
}

func safeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "chat"
	}
	return out
}
