package parser

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tidwall/gjson"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// WeChatParser parses WeChat group/private chat exports:
//
//	{"wxid": "...", "nickname": "...", "isGroup": true,
//	 "members": [{"wxid":"...", "remark":"...", "nickname":"...", "avatar":"data:..."}],
//	 "messages": [{"wxid":"...", "nickname":"...", "createTime": 1700000000,
//	               "type": "text", "content": "hi"}],
//	 "avatars": {"<wxid>": "data:image/..."}}
//
// Very large WeChat exports carry a per-message "rawXml" field that is
// redundant with the already-normalized fields; for exports at or above its
// size threshold, WeChatTrimmer (pkg/chatlab/preprocess) strips it before
// this parser sees the file.
type WeChatParser struct {
	BatchSize   int
	PrefixBytes int
}

type wechatRawMessage struct {
	Wxid       string `json:"wxid"`
	Nickname   string `json:"nickname"`
	CreateTime any    `json:"createTime"`
	Type       string `json:"type"`
	Content    string `json:"content"`
}

func (p *WeChatParser) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return config.Default().MessageBatchSize
}

func (p *WeChatParser) prefixBytes() int {
	if p.PrefixBytes > 0 {
		return p.PrefixBytes
	}
	return 64 * 1024
}

func (p *WeChatParser) Parse(ctx context.Context, path string, totalBytes int64, sink Sink) error {
	prefix, err := readPrefix(path, p.prefixBytes())
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	meta := Meta{
		Name:     gjson.GetBytes(prefix, "nickname").String(),
		Platform: model.PlatformWeChat,
		Kind:     model.KindPrivate,
		GroupID:  gjson.GetBytes(prefix, "wxid").String(),
	}
	if gjson.GetBytes(prefix, "isGroup").Bool() {
		meta.Kind = model.KindGroup
	}
	if err := sink.OnMeta(ctx, meta); err != nil {
		return sink.OnDone(ctx, err)
	}

	avatars := map[string]string{}
	if avatarFile, err := os.Open(path); err == nil {
		if avatarSection, ok, _ := ExtractSection(avatarFile, "avatars"); ok {
			_ = json.Unmarshal(avatarSection, &avatars)
		}
		avatarFile.Close()
	}

	members := map[string]SenderInfo{}
	if memberFile, err := os.Open(path); err == nil {
		_, err := StreamTopLevelArray(memberFile, "members", func(raw json.RawMessage, _ int64) error {
			var m struct {
				Wxid     string `json:"wxid"`
				Remark   string `json:"remark"`
				Nickname string `json:"nickname"`
				Avatar   string `json:"avatar"`
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil
			}
			avatar := m.Avatar
			if avatar == "" {
				avatar = avatars[m.Wxid]
			}
			members[m.Wxid] = SenderInfo{
				PlatformID:    m.Wxid,
				AccountName:   m.Remark,
				GroupNickname: m.Nickname,
				Avatar:        avatar,
			}
			return nil
		})
		memberFile.Close()
		if err != nil {
			return sink.OnDone(ctx, err)
		}
	}

	msgFile, err := os.Open(path)
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	defer msgFile.Close()

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

	_, err = StreamTopLevelArray(msgFile, "messages", func(raw json.RawMessage, offset int64) error {
		var m wechatRawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			dropped++
			return nil
		}
		ts, ok := NormalizeTimestamp(m.CreateTime)
		if !ok {
			dropped++
			return nil
		}
		sender, known := members[m.Wxid]
		if !known && m.Wxid != "" {
			sender = SenderInfo{PlatformID: m.Wxid, GroupNickname: m.Nickname}
			members[m.Wxid] = sender
		}
		mt := mapWeChatType(m.Type, m.Content)
		var content *string
		if mt != model.MessageRecall {
			c := m.Content
			content = &c
		}
		batch = append(batch, ParsedMessage{
			SenderPlatformID: m.Wxid,
			AccountName:      sender.AccountName,
			GroupNickname:    sender.GroupNickname,
			TS:               ts,
			Type:             mt,
			Content:          content,
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

	roster := make([]SenderInfo, 0, len(members))
	for _, s := range members {
		roster = append(roster, s)
	}
	if err := sink.OnMembers(ctx, roster); err != nil {
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

func mapWeChatType(raw, content string) model.MessageType {
	switch raw {
	case "image":
		return model.MessageImage
	case "voice":
		return model.MessageVoice
	case "video":
		return model.MessageVideo
	case "file":
		return model.MessageFile
	case "emoji", "sticker":
		return model.MessageEmoji
	case "location":
		return model.MessageLocation
	case "redpacket":
		return model.MessageRedPacket
	case "transfer":
		return model.MessageTransfer
	case "card":
		return model.MessageContact
	case "share", "link":
		return model.MessageLink
	case "system":
		return model.MessageSystem
	case "recall":
		return model.MessageRecall
	case "text", "":
		return GuessTypeFromContent(content)
	default:
		return model.MessageOther
	}
}
