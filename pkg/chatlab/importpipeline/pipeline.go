// Package importpipeline drives a detected format's parser event stream
// into a freshly created session store with batched transactions,
// deferred indexing, and in-memory nickname-history tracking, and
// implements incremental import of an additional source into an existing
// session.
package importpipeline

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlabid"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/format"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/parser"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/preprocess"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// Import runs the full pipeline for a brand-new source file: detect,
// optionally preprocess, parse, persist, finalize. On any failure the
// partially created store and its sidecars are deleted.
func Import(ctx context.Context, cfg config.Config, sourcePath string, onProgress func(model.Progress) error) (Summary, error) {
	stat, err := os.Stat(sourcePath)
	if err != nil {
		return Summary{}, chatlaberrors.Newf(chatlaberrors.CodeIOError, "stat source: %v", err)
	}
	totalBytes := stat.Size()

	prefix, err := ReadDetectPrefix(sourcePath, cfg.SnifferPrefixBytes)
	if err != nil {
		return Summary{}, chatlaberrors.Newf(chatlaberrors.CodeIOError, "read prefix: %v", err)
	}
	descriptor, diagnosis := format.Default().Detect(prefix, ExtOf(sourcePath))
	if descriptor == nil {
		return Summary{}, chatlaberrors.UnrecognizedFormat(diagnosis)
	}

	parsePath := sourcePath
	if pp, ok := preprocess.ForFormat(descriptor.ID); ok && pp.NeedsPreprocess(sourcePath, totalBytes) {
		tempPath, err := pp.Preprocess(ctx, sourcePath, totalBytes, onProgress)
		if err != nil {
			return Summary{}, chatlaberrors.Classify(err)
		}
		defer os.Remove(tempPath)
		parsePath = tempPath
		if st, err := os.Stat(tempPath); err == nil {
			totalBytes = st.Size()
		}
	}

	p, ok := parser.ForFormat(descriptor.ID)
	if !ok {
		return Summary{}, chatlaberrors.Newf(chatlaberrors.CodeUnrecognizedFormat, "no parser registered for format %q", descriptor.ID)
	}

	sessionID := chatlabid.NewSessionID()
	dbPath := cfg.SessionDBPath(sessionID)
	sess, err := store.CreateSession(ctx, dbPath)
	if err != nil {
		return Summary{}, chatlaberrors.Classify(err)
	}

	log := zerolog.Ctx(ctx).With().Str("session_id", sessionID).Str("format", descriptor.ID).Logger()
	log.Debug().Str("path", sourcePath).Int64("total_bytes", totalBytes).Msg("Starting import")

	sink := newImportSink(cfg, sess, onProgress)
	parseErr := p.Parse(ctx, parsePath, totalBytes, sink)
	if parseErr != nil {
		log.Warn().Err(parseErr).Msg("Import failed, deleting partial session store")
		sess.Delete()
		return Summary{}, chatlaberrors.Classify(parseErr)
	}
	if err := sink.finalize(ctx); err != nil {
		log.Warn().Err(err).Msg("Import finalize failed, deleting partial session store")
		sess.Close()
		store.DeleteSessionFiles(dbPath)
		return Summary{}, chatlaberrors.Classify(err)
	}
	if err := sess.Close(); err != nil {
		store.DeleteSessionFiles(dbPath)
		return Summary{}, chatlaberrors.Classify(err)
	}
	log.Info().
		Int64("messages", sink.processed).
		Int64("dropped", sink.dropped).
		Int("members", len(sink.platformIDToMemberID)).
		Msg("Import finished")

	return Summary{
		SessionID:       sessionID,
		MessageCount:    sink.processed,
		MessagesDropped: sink.dropped,
		MemberCount:     len(sink.platformIDToMemberID),
	}, nil
}

func ExtOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}

func ReadDetectPrefix(path string, n int) ([]byte, error) {
	if n <= 0 {
		n = config.Default().SnifferPrefixBytes
	}
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
