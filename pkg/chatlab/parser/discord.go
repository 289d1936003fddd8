package parser

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tidwall/gjson"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// DiscordParser parses DiscordChatExporter-style JSON exports:
//
//	{"guild": {"id": "...", "name": "..."}, "channel": {"id": "...", "name": "...", "type": "..."},
//	 "messages": [{"author": {"id":"...","name":"...","nickname":"...","avatarUrl":"..."},
//	               "timestamp": "2023-01-01T00:00:00Z", "type": "Default", "content": "hi",
//	               "attachments": [...], "embeds": [...]}]}
type DiscordParser struct {
	BatchSize   int
	PrefixBytes int
}

type discordRawAuthor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

type discordRawMessage struct {
	Author      discordRawAuthor `json:"author"`
	Timestamp   any              `json:"timestamp"`
	Type        string           `json:"type"`
	Content     string           `json:"content"`
	Attachments []any            `json:"attachments"`
	Embeds      []any            `json:"embeds"`
}

func (p *DiscordParser) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return config.Default().MessageBatchSize
}

func (p *DiscordParser) prefixBytes() int {
	if p.PrefixBytes > 0 {
		return p.PrefixBytes
	}
	return 64 * 1024
}

func (p *DiscordParser) Parse(ctx context.Context, path string, totalBytes int64, sink Sink) error {
	prefix, err := readPrefix(path, p.prefixBytes())
	if err != nil {
		return sink.OnDone(ctx, err)
	}
	channelName := gjson.GetBytes(prefix, "channel.name").String()
	meta := Meta{
		Name:     channelName,
		Platform: model.PlatformDiscord,
		Kind:     model.KindGroup,
		GroupID:  gjson.GetBytes(prefix, "guild.id").String(),
	}
	if gjson.GetBytes(prefix, "channel.type").String() == "DM" {
		meta.Kind = model.KindPrivate
	}
	if err := sink.OnMeta(ctx, meta); err != nil {
		return sink.OnDone(ctx, err)
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

	_, err = StreamTopLevelArray(msgFile, "messages", func(raw json.RawMessage, offset int64) error {
		var m discordRawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			dropped++
			return nil
		}
		ts, ok := NormalizeTimestamp(m.Timestamp)
		if !ok {
			dropped++
			return nil
		}
		if _, seen := senders[m.Author.ID]; !seen && m.Author.ID != "" {
			senders[m.Author.ID] = SenderInfo{
				PlatformID:    m.Author.ID,
				AccountName:   m.Author.Name,
				GroupNickname: m.Author.Nickname,
				Avatar:        m.Author.AvatarURL,
			}
		}
		mt := mapDiscordType(m.Type, m.Content, m.Attachments, m.Embeds)
		var content *string
		if mt != model.MessageRecall {
			c := m.Content
			content = &c
		}
		batch = append(batch, ParsedMessage{
			SenderPlatformID: m.Author.ID,
			AccountName:      m.Author.Name,
			GroupNickname:    m.Author.Nickname,
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

// mapDiscordType has no content-language heuristics to lean on (Discord
// exports are not Chinese-language chat text), so it relies entirely on the
// exporter's own type/attachment/embed fields.
func mapDiscordType(raw, content string, attachments, embeds []any) model.MessageType {
	switch raw {
	case "RecipientAdd", "RecipientRemove", "ChannelNameChange", "ChannelIconChange",
		"PinMessage", "GuildMemberJoin", "ThreadCreated":
		return model.MessageSystem
	case "ChannelPinnedMessage":
		return model.MessageSystem
	}
	if len(attachments) > 0 {
		return model.MessageFile
	}
	if len(embeds) > 0 && content == "" {
		return model.MessageLink
	}
	return model.MessageText
}
