package format

import (
	"regexp"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// Stable format ids used throughout the pipeline and the worker surface.
const (
	IDChatLab = "chatlab"
	IDQQ      = "qq"
	IDWeChat  = "wechat"
	IDDiscord = "discord"
)

// Default returns the registry of formats ChatLab ships with: its own
// canonical export plus the three supported third-party platform exports.
func Default() *Registry {
	return NewRegistry(
		Descriptor{
			ID:         IDChatLab,
			Name:       "ChatLab canonical export",
			Platform:   model.PlatformMixed,
			Priority:   0,
			Extensions: []string{"json"},
			Signature: Signature{
				RequiredFields: []string{"chatlab", "meta", "members", "messages"},
			},
		},
		Descriptor{
			ID:         IDQQ,
			Name:       "QQ chat export",
			Platform:   model.PlatformQQ,
			Priority:   10,
			Extensions: []string{"json"},
			Signature: Signature{
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`"qq"\s*:`),
				},
				RequiredFields: []string{"msgList"},
			},
		},
		Descriptor{
			ID:         IDWeChat,
			Name:       "WeChat chat export",
			Platform:   model.PlatformWeChat,
			Priority:   20,
			Extensions: []string{"json"},
			Signature: Signature{
				RequiredFields: []string{"wxid", "messages"},
			},
		},
		Descriptor{
			ID:         IDDiscord,
			Name:       "Discord chat export",
			Platform:   model.PlatformDiscord,
			Priority:   30,
			Extensions: []string{"json"},
			Signature: Signature{
				RequiredFields: []string{"guild", "channel", "messages"},
			},
		},
	)
}
