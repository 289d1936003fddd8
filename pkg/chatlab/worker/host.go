// Package worker is the single dispatch surface for everything the core
// can do: a typed request/response envelope, a bounded cache of open
// session handles, per-session single-writer serialization, and
// cooperative cancellation checked at batch boundaries.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/migrate"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// handlerFunc is one operation's implementation. progress is nil-safe to
// call even when the caller supplied no onProgress callback.
type handlerFunc func(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error)

// longRunningOps get LongImportTimeoutSeconds instead of
// ShortQueryTimeoutSeconds.
var longRunningOps = map[string]bool{
	"import.stream":      true,
	"import.incremental": true,
	"merge.mergeFiles":   true,
	"migration.run":      true,
}

// Host is the dedicated execution context that owns all stores: the
// in-flight request table (for Abort), the open-handle cache, and the
// per-session single-writer locks.
type Host struct {
	cfg    config.Config
	logger zerolog.Logger
	soft   *migrate.SoftMigrator
	cache  *handleCache

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
	cancels      map[string]context.CancelFunc
}

// NewHost constructs a host over cfg, sweeping any staging stores left
// over from a prior run.
func NewHost(cfg config.Config, logger zerolog.Logger) *Host {
	_ = store.SweepStagingDir(cfg.TempDir())
	return &Host{
		cfg:          cfg,
		logger:       logger.With().Str("component", "worker").Logger(),
		soft:         migrate.NewSoftMigrator(),
		cache:        newHandleCache(cfg.OpenHandleCacheSize),
		sessionLocks: make(map[string]*sync.Mutex),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Close releases every cached session handle.
func (h *Host) Close() {
	h.cache.closeAll()
}

// Submit dispatches req synchronously, posting progress through
// onProgress (which may be nil) and returning the wire-level response.
// Callers driving many requests concurrently run Submit from their own
// goroutine per request; the per-session lock below is what keeps writes
// against one session serialized regardless of caller concurrency.
func (h *Host) Submit(ctx context.Context, req model.WorkerRequest, onProgress func(model.ProgressEvent)) model.WorkerResponse {
	log := h.logger.With().Str("request_id", req.ID).Str("op", req.Op).Logger()

	handler, ok := ops[req.Op]
	if !ok {
		err := chatlaberrors.Newf(chatlaberrors.CodeParseError, "unknown operation %q", req.Op)
		return errorResponse(req.ID, err)
	}

	timeout := time.Duration(h.cfg.ShortQueryTimeoutSeconds) * time.Second
	if longRunningOps[req.Op] {
		timeout = time.Duration(h.cfg.LongImportTimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(log.WithContext(ctx), timeout)
	h.registerCancel(req.ID, cancel)
	defer h.clearCancel(req.ID)
	defer cancel()

	progress := func(p model.Progress) {
		if onProgress != nil {
			onProgress(model.ProgressEvent{ID: req.ID, Progress: p})
		}
	}

	log.Debug().Msg("dispatching request")
	result, err := handler(runCtx, h, req, progress)
	if err != nil {
		cerr := chatlaberrors.Classify(err)
		log.Warn().Str("code", string(cerr.Code)).Str("error", cerr.Message).Msg("request failed")
		return errorResponse(req.ID, cerr)
	}
	return model.WorkerResponse{ID: req.ID, OK: true, Result: result}
}

// Abort cancels an in-flight request's context. Long-running handlers
// consult it between message batches and between merge stages; an aborted
// operation rolls back its transaction and deletes partial artifacts.
func (h *Host) Abort(requestID string) bool {
	h.mu.Lock()
	cancel, ok := h.cancels[requestID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (h *Host) registerCancel(id string, cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancels[id] = cancel
	h.mu.Unlock()
}

func (h *Host) clearCancel(id string) {
	h.mu.Lock()
	delete(h.cancels, id)
	h.mu.Unlock()
}

// sessionLock returns the single mutex serializing writes against
// sessionID, creating it on first use.
func (h *Host) sessionLock(sessionID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.sessionLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		h.sessionLocks[sessionID] = l
	}
	return l
}

// openSession fetches a cached handle or opens a fresh one, applying any
// pending soft migrations on first use per session.
func (h *Host) openSession(ctx context.Context, sessionID string) (*store.SessionStore, error) {
	s, err := h.cache.get(h.cfg, sessionID)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	if err := h.soft.EnsureMemberColumns(ctx, s.DB, sessionID); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return s, nil
}

// evictSession drops a cached handle, closing it first. Delete operations
// must call this before removing the store's files so the cache never
// outlives the session.
func (h *Host) evictSession(sessionID string) {
	h.cache.evict(sessionID)
}

func errorResponse(id string, err *chatlaberrors.Error) model.WorkerResponse {
	return model.WorkerResponse{ID: id, OK: false, Error: err.ToWorkerError()}
}
