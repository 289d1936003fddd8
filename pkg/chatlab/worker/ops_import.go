package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/format"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/importpipeline"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/query"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("import.stream", opImportStream)
	register("import.analyzeIncremental", opAnalyzeIncremental)
	register("import.incremental", opIncremental)
	register("import.parseFileInfo", opImportParseFileInfo)
}

func opImportStream(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	path, err := p.requireStr("path")
	if err != nil {
		return nil, err
	}
	summary, err := importpipeline.Import(ctx, h.cfg, path, bridgeProgress(progress))
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func opAnalyzeIncremental(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	path, err := p.requireStr("path")
	if err != nil {
		return nil, err
	}
	return importpipeline.AnalyzeIncremental(ctx, h.cfg, sessionID, path)
}

func opIncremental(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	path, err := p.requireStr("path")
	if err != nil {
		return nil, err
	}

	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	// Incremental opens its own handle to the session store rather than
	// going through the shared cache (it needs a single long-lived
	// transaction spanning the whole copy); evict the cached one first so
	// nothing else holds the file open underneath it, and let the cache
	// re-populate lazily on the next query against this session.
	h.evictSession(sessionID)

	counts, err := importpipeline.Incremental(ctx, h.cfg, sessionID, path, bridgeProgress(progress))
	if err != nil {
		return nil, err
	}

	// The copy above leaves any persisted session-index stale; regenerate
	// it with the threshold it was last built with.
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if threshold, has, err := store.IndexGapThreshold(ctx, s); err == nil && has {
		if _, err := query.BuildSessionIndex(ctx, s, threshold); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func opImportParseFileInfo(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	path, err := p.requireStr("path")
	if err != nil {
		return nil, err
	}
	return parseFileInfo(h, path)
}

// fileInfo is the result of import.parseFileInfo/merge.parseFileInfo: the
// sniffer's detection outcome without running the parser.
type fileInfo struct {
	Recognized bool
	FormatID   string
	FormatName string
	Platform   string
	Diagnosis  *model.Diagnosis
}

func parseFileInfo(h *Host, path string) (fileInfo, error) {
	prefix, err := importpipeline.ReadDetectPrefix(path, h.cfg.SnifferPrefixBytes)
	if err != nil {
		return fileInfo{}, chatlaberrors.Newf(chatlaberrors.CodeIOError, "read prefix: %v", err)
	}
	descriptor, diagnosis := format.Default().Detect(prefix, importpipeline.ExtOf(path))
	if descriptor == nil {
		return fileInfo{Recognized: false, Diagnosis: diagnosis}, nil
	}
	return fileInfo{
		Recognized: true,
		FormatID:   descriptor.ID,
		FormatName: descriptor.Name,
		Platform:   string(descriptor.Platform),
	}, nil
}

// bridgeProgress adapts worker's no-error progress sink to the pipeline's
// func(model.Progress) error contract. The pipeline itself doesn't poll
// ctx between batches; Abort still reaches an in-flight import because
// every dbutil Exec/Query call is context-scoped, so a cancelled context
// fails the next store round-trip instead of running to completion.
func bridgeProgress(progress func(model.Progress)) func(model.Progress) error {
	return func(p model.Progress) error {
		if progress != nil {
			progress(p)
		}
		return nil
	}
}
