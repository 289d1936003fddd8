package parser

import (
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		wantTS int64
		wantOK bool
	}{
		{"integer seconds", float64(1700000000), 1700000000, true},
		{"integer milliseconds", float64(1700000000000), 1700000000, true},
		{"iso8601", "2023-11-14T22:13:20Z", 1700000000, true},
		{"datetime without zone", "2023-11-14 22:13:20", 0, true},
		{"negative", float64(-5), 0, false},
		{"implausibly old", float64(100), 0, false},
		{"empty string", "", 0, false},
		{"not a timestamp", "hello", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := NormalizeTimestamp(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeTimestamp(%v) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			// The zone-less layout parses as UTC; only check the exact value
			// where the case supplies one.
			if tt.wantTS != 0 && ts != tt.wantTS {
				t.Fatalf("NormalizeTimestamp(%v) = %d, want %d", tt.in, ts, tt.wantTS)
			}
		})
	}
}

func TestGuessTypeFromContent(t *testing.T) {
	tests := []struct {
		content string
		want    model.MessageType
	}{
		{"hello there", model.MessageText},
		{"[图片]", model.MessageImage},
		{"收到一个红包", model.MessageRedPacket},
		{"[语音]", model.MessageVoice},
		{"[视频]", model.MessageVideo},
		{"[文件]", model.MessageFile},
		{"[位置]", model.MessageLocation},
		{"张三撤回了一条消息", model.MessageRecall},
		{"", model.MessageText},
	}
	for _, tt := range tests {
		if got := GuessTypeFromContent(tt.content); got != tt.want {
			t.Errorf("GuessTypeFromContent(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestNormalizeMessageTypeUnknownMapsToOther(t *testing.T) {
	if got := model.NormalizeMessageType(42); got != model.MessageOther {
		t.Fatalf("expected unknown type to map to other, got %v", got)
	}
	if got := model.NormalizeMessageType(0); got != model.MessageText {
		t.Fatalf("expected 0 to stay text, got %v", got)
	}
}
