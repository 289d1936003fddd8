package parser

import "github.com/xunchahaha/ChatLab/pkg/chatlab/format"

// ForFormat returns the Parser registered for a format id.
func ForFormat(id string) (Parser, bool) {
	switch id {
	case format.IDQQ:
		return &QQParser{}, true
	case format.IDWeChat:
		return &WeChatParser{}, true
	case format.IDDiscord:
		return &DiscordParser{}, true
	case format.IDChatLab:
		return &ChatLabParser{}, true
	default:
		return nil, false
	}
}
