package parser

import (
	"strings"
	"time"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// plausibleYearMin/Max bound the plausibility window; messages whose year
// falls outside it are dropped.
const (
	plausibleYearMin = 1999
	plausibleYearMax = 2100
)

// NormalizeTimestamp accepts integer seconds, integer milliseconds
// (heuristically distinguished by magnitude), or an ISO-8601 string, and
// returns whole seconds. ok is false when the value is implausible and the
// message should be dropped.
func NormalizeTimestamp(raw any) (ts int64, ok bool) {
	switch v := raw.(type) {
	case float64:
		return normalizeNumericTimestamp(int64(v))
	case int64:
		return normalizeNumericTimestamp(v)
	case int:
		return normalizeNumericTimestamp(int64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return normalizeNumericTimestamp(t.Unix())
		}
		if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return normalizeNumericTimestamp(t.Unix())
		}
		return 0, false
	default:
		return 0, false
	}
}

// normalizeNumericTimestamp distinguishes seconds from milliseconds by
// magnitude: values beyond what a plausible "seconds" epoch would produce
// are assumed to be milliseconds.
func normalizeNumericTimestamp(v int64) (int64, bool) {
	if v < 0 {
		return 0, false
	}
	// year ~2200 in seconds is ~7.26e9; anything larger is almost
	// certainly milliseconds.
	const secondsCeiling = 7_258_118_400 // 2200-01-01T00:00:00Z
	seconds := v
	if v > secondsCeiling {
		seconds = v / 1000
	}
	year := time.Unix(seconds, 0).UTC().Year()
	if year < plausibleYearMin || year > plausibleYearMax {
		return 0, false
	}
	return seconds, true
}

// Textual-content markers backing GuessTypeFromContent, applied on top of
// the per-format mapping tables.
var (
	imageMarkers     = []string{"[图片]", "[照片]"}
	redPacketMarkers = []string{"红包", "[红包]"}
	voiceMarkers     = []string{"[语音]"}
	videoMarkers     = []string{"[视频]"}
	fileMarkers      = []string{"[文件]"}
	locationMarkers  = []string{"[位置]", "[地图]"}
	recallMarkers    = []string{"撤回了一条消息", "recalled a message"}
)

// GuessTypeFromContent classifies a message by content markers when a
// format has no explicit type field for it.
func GuessTypeFromContent(content string) model.MessageType {
	for _, m := range redPacketMarkers {
		if strings.Contains(content, m) {
			return model.MessageRedPacket
		}
	}
	for _, m := range imageMarkers {
		if strings.Contains(content, m) {
			return model.MessageImage
		}
	}
	for _, m := range voiceMarkers {
		if strings.Contains(content, m) {
			return model.MessageVoice
		}
	}
	for _, m := range videoMarkers {
		if strings.Contains(content, m) {
			return model.MessageVideo
		}
	}
	for _, m := range fileMarkers {
		if strings.Contains(content, m) {
			return model.MessageFile
		}
	}
	for _, m := range locationMarkers {
		if strings.Contains(content, m) {
			return model.MessageLocation
		}
	}
	for _, m := range recallMarkers {
		if strings.Contains(content, m) {
			return model.MessageRecall
		}
	}
	return model.MessageText
}
