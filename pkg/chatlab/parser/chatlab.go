package parser

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tidwall/gjson"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// ChatLabParser re-parses this system's own canonical export format,
// identified by the top-level "chatlab" object. The merger optionally
// re-enters the import pipeline with a freshly written canonical export,
// and this parser is what that re-entry drives.
type ChatLabParser struct {
	BatchSize   int
	PrefixBytes int
}

type chatlabRawMessage struct {
	Sender        string  `json:"sender"`
	AccountName   string  `json:"accountName"`
	GroupNickname string  `json:"groupNickname"`
	Timestamp     int64   `json:"timestamp"`
	Type          int     `json:"type"`
	Content       *string `json:"content"`
}

func (p *ChatLabParser) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return config.Default().MessageBatchSize
}

func (p *ChatLabParser) prefixBytes() int {
	if p.PrefixBytes > 0 {
		return p.PrefixBytes
	}
	return 256 * 1024
}

func (p *ChatLabParser) Parse(ctx context.Context, path string, totalBytes int64, sink Sink) error {
	prefix, err := readPrefix(path, p.prefixBytes())
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	metaJSON := gjson.GetBytes(prefix, "meta")
	var meta model.ExportSessionMeta
	if metaJSON.Exists() {
		_ = json.Unmarshal([]byte(metaJSON.Raw), &meta)
	}
	if err := sink.OnMeta(ctx, Meta{
		Name:        meta.Name,
		Platform:    meta.Platform,
		Kind:        meta.Type,
		GroupID:     meta.GroupID,
		GroupAvatar: meta.GroupAvatar,
		Sources:     meta.Sources,
	}); err != nil {
		return sink.OnDone(ctx, err)
	}

	memberFile, err := os.Open(path)
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	var roster []SenderInfo
	_, err = StreamTopLevelArray(memberFile, "members", func(raw json.RawMessage, _ int64) error {
		var m model.ExportMember
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		roster = append(roster, SenderInfo{
			PlatformID:    m.PlatformID,
			AccountName:   m.AccountName,
			GroupNickname: m.GroupNickname,
			Avatar:        m.Avatar,
		})
		return nil
	})
	memberFile.Close()
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	if err := sink.OnMembers(ctx, roster); err != nil {
		return sink.OnDone(ctx, err)
	}

	batch := make([]ParsedMessage, 0, p.batchSize())
	var dropped, processed int64
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.OnMessages(ctx, batch); err != nil {
			return err
		}
		batch = make([]ParsedMessage, 0, p.batchSize())
		return nil
	}

	msgFile, err := os.Open(path)
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	defer msgFile.Close()

	_, err = StreamTopLevelArray(msgFile, "messages", func(raw json.RawMessage, offset int64) error {
		var m chatlabRawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			dropped++
			return nil
		}
		// Invalid timestamps and missing senders pass through; the
		// consuming sink owns that drop and its accounting.
		batch = append(batch, ParsedMessage{
			SenderPlatformID: m.Sender,
			AccountName:      m.AccountName,
			GroupNickname:    m.GroupNickname,
			TS:               m.Timestamp,
			Type:             model.NormalizeMessageType(m.Type),
			Content:          m.Content,
		})
		processed++
		if len(batch) >= p.batchSize() {
			if err := flush(); err != nil {
				return err
			}
			if err := sink.OnProgress(ctx, model.Progress{
				Stage:             model.StageParse,
				BytesRead:         offset,
				TotalBytes:        totalBytes,
				MessagesProcessed: processed,
				Percentage:        model.ComputePercentage(offset, totalBytes),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	if err := flush(); err != nil {
		return sink.OnDone(ctx, err)
	}
	if err := sink.OnProgress(ctx, model.Progress{
		Stage:             model.StageParse,
		BytesRead:         totalBytes,
		TotalBytes:        totalBytes,
		MessagesProcessed: processed,
		MessagesDropped:   dropped,
		Percentage:        100,
	}); err != nil {
		return sink.OnDone(ctx, err)
	}
	return sink.OnDone(ctx, nil)
}
