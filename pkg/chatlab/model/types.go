// Package model holds the data types shared across the ingestion and
// query pipeline: sessions, members, messages, name history, and the
// uniform query filter.
package model

import "strconv"

// Platform is the source messaging platform tag for a session.
type Platform string

const (
	PlatformQQ      Platform = "qq"
	PlatformWeChat  Platform = "wechat"
	PlatformDiscord Platform = "discord"
	PlatformMixed   Platform = "mixed"
	PlatformUnknown Platform = "unknown"
)

// Kind is the conversation kind.
type Kind string

const (
	KindGroup   Kind = "group"
	KindPrivate Kind = "private"
)

// MessageType is the wire-stable message type enum. Base types are 0–19,
// interactive 20–39, system 80–89, other 99.
type MessageType int

const (
	MessageText      MessageType = 0
	MessageImage     MessageType = 1
	MessageVoice     MessageType = 2
	MessageVideo     MessageType = 3
	MessageFile      MessageType = 4
	MessageEmoji     MessageType = 5
	MessageLink      MessageType = 7
	MessageLocation  MessageType = 8
	MessageRedPacket MessageType = 20
	MessageTransfer  MessageType = 21
	MessagePoke      MessageType = 22
	MessageCall      MessageType = 23
	MessageShare     MessageType = 24
	MessageReply     MessageType = 25
	MessageForward   MessageType = 26
	MessageContact   MessageType = 27
	MessageSystem    MessageType = 80
	MessageRecall    MessageType = 81
	MessageOther     MessageType = 99
)

// KnownMessageTypes is the complete enum used to validate incoming types;
// anything not in this set maps to MessageOther.
var KnownMessageTypes = map[MessageType]struct{}{
	MessageText: {}, MessageImage: {}, MessageVoice: {}, MessageVideo: {},
	MessageFile: {}, MessageEmoji: {}, MessageLink: {}, MessageLocation: {},
	MessageRedPacket: {}, MessageTransfer: {}, MessagePoke: {}, MessageCall: {},
	MessageShare: {}, MessageReply: {}, MessageForward: {}, MessageContact: {},
	MessageSystem: {}, MessageRecall: {}, MessageOther: {},
}

// NormalizeMessageType maps an arbitrary integer onto the known enum,
// falling back to MessageOther for anything unrecognized.
func NormalizeMessageType(v int) MessageType {
	t := MessageType(v)
	if _, ok := KnownMessageTypes[t]; ok {
		return t
	}
	return MessageOther
}

// SystemAuthorName is excluded from every human-user-facing aggregate.
const SystemAuthorName = "系统消息"

// Session is a single imported conversation backed by one store file.
type Session struct {
	ID           string
	Name         string
	Platform     Platform
	Kind         Kind
	ImportedAt   int64
	GroupID      string
	GroupAvatar  string
	OwnerID      string
	GapThreshold int
}

// Member is a participant in a session, uniquely keyed within it by
// PlatformID.
type Member struct {
	ID            int64
	PlatformID    string
	AccountName   string
	GroupNickname string
	Aliases       []string
	Avatar        string
}

// NameKind distinguishes the two tracked name dimensions for a member.
type NameKind string

const (
	NameKindAccount  NameKind = "account_name"
	NameKindNickname NameKind = "group_nickname"
)

// NameHistoryEntry is a half-open [Start, End) interval of an observed name.
type NameHistoryEntry struct {
	ID       int64
	MemberID int64
	Kind     NameKind
	Name     string
	Start    int64
	End      *int64 // nil means open
}

// Message is a single imported message. ID is monotone in insertion
// order, not timestamp order.
type Message struct {
	ID                  int64
	SenderID            int64
	SenderAccountName   string
	SenderGroupNickname string
	TS                  int64
	Type                MessageType
	Content             *string
}

// SessionIndexEntry is a contiguous run of messages delimited by the
// inter-message gap threshold.
type SessionIndexEntry struct {
	ID             int64
	StartTS        int64
	EndTS          int64
	MessageCount   int
	FirstMessageID int64
}

// Filter is the uniform, conjunctively-composed query filter.
type Filter struct {
	StartTS  *int64
	EndTS    *int64
	MemberID *int64
}

// Where builds the SQL fragment and positional args for this filter,
// starting parameter numbering at argOffset+1 ($N placeholders). The
// system-author exclusion is always appended for human-facing aggregates
// when excludeSystem is true.
func (f Filter) Where(argOffset int, excludeSystem bool) (string, []any) {
	var clauses []string
	var args []any
	n := argOffset
	if f.StartTS != nil {
		n++
		clauses = append(clauses, sqlParam("ts >= ", n))
		args = append(args, *f.StartTS)
	}
	if f.EndTS != nil {
		n++
		clauses = append(clauses, sqlParam("ts <= ", n))
		args = append(args, *f.EndTS)
	}
	if f.MemberID != nil {
		n++
		clauses = append(clauses, sqlParam("sender_id = ", n))
		args = append(args, *f.MemberID)
	}
	if excludeSystem {
		n++
		clauses = append(clauses, sqlParam("sender_account_name != ", n))
		args = append(args, SystemAuthorName)
	}
	if len(clauses) == 0 {
		return "", args
	}
	out := " AND "
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out, args
}

func sqlParam(prefix string, n int) string {
	return prefix + "$" + strconv.Itoa(n)
}
