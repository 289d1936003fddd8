package parser

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/tidwall/gjson"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// QQParser parses QQ group/private chat exports:
//
//	{"qq": {"groupId": "...", "groupName": "...", "type": "group"},
//	 "msgList": [{"senderUin":"...", "senderName":"...", "nickname":"...",
//	              "time": 1700000000, "type": "text", "content": "hi"}],
//	 "avatars": {"<uin>": "data:image/..."}}
type QQParser struct {
	BatchSize int
	// PrefixBytes bounds the initial metadata read; defaults to 64KiB.
	PrefixBytes int
}

type qqRawMessage struct {
	SenderUin  string `json:"senderUin"`
	SenderName string `json:"senderName"`
	Nickname   string `json:"nickname"`
	Time       any    `json:"time"`
	Type       string `json:"type"`
	Content    string `json:"content"`
}

func (p *QQParser) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return config.Default().MessageBatchSize
}

func (p *QQParser) prefixBytes() int {
	if p.PrefixBytes > 0 {
		return p.PrefixBytes
	}
	return 64 * 1024
}

func (p *QQParser) Parse(ctx context.Context, path string, totalBytes int64, sink Sink) error {
	prefix, err := readPrefix(path, p.prefixBytes())
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	qqSection := gjson.GetBytes(prefix, "qq")
	meta := Meta{
		Name:     qqSection.Get("groupName").String(),
		Platform: model.PlatformQQ,
		Kind:     model.KindGroup,
		GroupID:  qqSection.Get("groupId").String(),
	}
	if qqSection.Get("type").String() == "private" {
		meta.Kind = model.KindPrivate
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

	msgFile, err := os.Open(path)
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	defer msgFile.Close()

	senders := map[string]SenderInfo{}
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

	_, err = StreamTopLevelArray(msgFile, "msgList", func(raw json.RawMessage, offset int64) error {
		var m qqRawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			dropped++
			return nil
		}
		ts, ok := NormalizeTimestamp(m.Time)
		if !ok {
			dropped++
			return nil
		}
		if _, seen := senders[m.SenderUin]; !seen && m.SenderUin != "" {
			senders[m.SenderUin] = SenderInfo{
				PlatformID:    m.SenderUin,
				AccountName:   m.SenderName,
				GroupNickname: m.Nickname,
				Avatar:        avatars[m.SenderUin],
			}
		}
		mt := mapQQType(m.Type, m.Content)
		var content *string
		if mt != model.MessageRecall {
			c := m.Content
			content = &c
		}
		batch = append(batch, ParsedMessage{
			SenderPlatformID: m.SenderUin,
			AccountName:      m.SenderName,
			GroupNickname:    m.Nickname,
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

	members := make([]SenderInfo, 0, len(senders))
	for _, s := range senders {
		members = append(members, s)
	}
	if err := sink.OnMembers(ctx, members); err != nil {
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

func mapQQType(raw, content string) model.MessageType {
	switch raw {
	case "image":
		return model.MessageImage
	case "voice":
		return model.MessageVoice
	case "video":
		return model.MessageVideo
	case "file":
		return model.MessageFile
	case "emoji":
		return model.MessageEmoji
	case "redpacket":
		return model.MessageRedPacket
	case "transfer":
		return model.MessageTransfer
	case "poke":
		return model.MessagePoke
	case "call":
		return model.MessageCall
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

// readPrefix reads up to n bytes from the start of path.
func readPrefix(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
