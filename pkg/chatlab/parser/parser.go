// Package parser implements the stream parsers: one per format, each
// driving a push-callback Sink through meta, members, message batches
// (interleaved with progress), and a terminal done. Inputs are read
// through an incremental byte pipeline; memory use is bounded by the
// current batch and parser-local caches.
package parser

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// SenderInfo is what a parser observes about a message sender while
// streaming, before any store round-trip.
type SenderInfo struct {
	PlatformID    string
	AccountName   string
	GroupNickname string
	Avatar        string
}

// ParsedMessage is a single message as produced by a parser, still keyed by
// the sender's platform id rather than an internal member id.
type ParsedMessage struct {
	SenderPlatformID string
	AccountName      string
	GroupNickname    string
	TS               int64
	Type             model.MessageType
	Content          *string
}

// Meta is the single meta event a parser emits first.
type Meta struct {
	Name        string
	Platform    model.Platform
	Kind        model.Kind
	GroupID     string
	GroupAvatar string
	Sources     []model.ExportSource
}

// Sink receives the ordered event sequence. Implementations must not
// retain slices passed to OnMessages beyond the call (the parser may reuse
// the backing array for the next batch).
type Sink interface {
	OnMeta(ctx context.Context, meta Meta) error
	OnMembers(ctx context.Context, members []SenderInfo) error
	OnMessages(ctx context.Context, batch []ParsedMessage) error
	OnProgress(ctx context.Context, progress model.Progress) error
	OnDone(ctx context.Context, err error) error
}

// Parser is the narrow capability interface every format implements.
type Parser interface {
	// Parse drives the event stream for the file at path into sink.
	// totalBytes is passed in by the caller (already stat'd) so Parse can
	// report percentage without re-stat'ing.
	Parse(ctx context.Context, path string, totalBytes int64, sink Sink) error
}
