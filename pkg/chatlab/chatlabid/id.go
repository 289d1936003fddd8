// Package chatlabid generates the opaque identifiers used across the
// pipeline.
package chatlabid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID builds "chat_<wall-ms>_<random-6>".
func NewSessionID() string {
	return NewSessionIDAt(time.Now())
}

// NewSessionIDAt is NewSessionID with an explicit wall-clock time, for tests.
func NewSessionIDAt(at time.Time) string {
	return fmt.Sprintf("chat_%d_%s", at.UnixMilli(), randomSuffix(6))
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to an
		// xid so the caller still gets a unique, if less readable, id.
		return xid.New().String()[:n]
	}
	var sb strings.Builder
	sb.Grow(n)
	for _, b := range buf {
		sb.WriteByte(idAlphabet[int(b)%len(idAlphabet)])
	}
	return sb.String()
}

// NewStagingID names a per-source staging store file (merge_*.db).
func NewStagingID() string {
	return "merge_" + xid.New().String()
}

// NewRequestID names a worker request id when the caller doesn't supply one.
func NewRequestID() string {
	return uuid.NewString()
}
