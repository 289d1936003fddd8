package model

// CanonicalExport is this system's own JSON export format, identified by
// the presence of the top-level "chatlab" object.
type CanonicalExport struct {
	ChatLab  ExportMeta        `json:"chatlab"`
	Meta     ExportSessionMeta `json:"meta"`
	Members  []ExportMember    `json:"members"`
	Messages []ExportMessage   `json:"messages"`
}

// ExportMeta identifies the export format itself.
type ExportMeta struct {
	Version     string `json:"version"`
	ExportedAt  int64  `json:"exportedAt"`
	Generator   string `json:"generator,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExportSource records one contributing source for a merged export.
type ExportSource struct {
	Filename     string `json:"filename"`
	Platform     string `json:"platform,omitempty"`
	MessageCount int    `json:"messageCount"`
}

// ExportSessionMeta is the conversation-level metadata of an export.
type ExportSessionMeta struct {
	Name        string         `json:"name"`
	Platform    Platform       `json:"platform"`
	Type        Kind           `json:"type"`
	Sources     []ExportSource `json:"sources,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	GroupAvatar string         `json:"groupAvatar,omitempty"`
}

// ExportMember is one roster entry in an export.
type ExportMember struct {
	PlatformID    string   `json:"platformId"`
	AccountName   string   `json:"accountName"`
	GroupNickname string   `json:"groupNickname,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	Avatar        string   `json:"avatar,omitempty"`
}

// ExportMessage is one message entry in an export, ordered by Timestamp
// ascending within the file.
type ExportMessage struct {
	Sender        string  `json:"sender"`
	AccountName   string  `json:"accountName"`
	GroupNickname string  `json:"groupNickname,omitempty"`
	Timestamp     int64   `json:"timestamp"`
	Type          int     `json:"type"`
	Content       *string `json:"content"`
}
