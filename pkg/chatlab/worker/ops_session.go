package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/query"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("session.getAll", opSessionGetAll)
	register("session.get", opSessionGet)
	register("session.rename", opSessionRename)
	register("session.delete", opSessionDelete)
	register("session.updateOwnerId", opSessionUpdateOwnerID)
	register("session.updateGapThreshold", opSessionUpdateGapThreshold)
	register("session.generateIndex", opSessionGenerateIndex)
	register("session.hasIndex", opSessionHasIndex)
	register("session.indexStats", opSessionIndexStats)
	register("session.clearIndex", opSessionClearIndex)
	register("session.list", opSessionListIndex)
}

func opSessionGetAll(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	return store.ListSessions(ctx, h.cfg.DatabasesDir())
}

func opSessionGet(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	return store.GetSessionByID(ctx, h.cfg.DatabasesDir(), sessionID)
}

func opSessionRename(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	name, err := p.requireStr("name")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := store.Rename(ctx, s, name); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opSessionDelete(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	// Evict before deleting the files: the cache must never outlive a
	// deleted session.
	h.evictSession(sessionID)
	if err := store.DeleteSessionFiles(h.cfg.SessionDBPath(sessionID)); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opSessionUpdateOwnerID(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	memberID, err := p.requireI64("memberId")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := store.SetOwner(ctx, s, memberID); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opSessionUpdateGapThreshold(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	seconds, err := p.requireI64("gapThresholdSeconds")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := store.SetGapThreshold(ctx, s, int(seconds)); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opSessionGenerateIndex(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	gapThreshold := p.intDefault("gapThresholdSeconds", 0)
	if gapThreshold <= 0 {
		if stored, ok, _ := store.GapThreshold(ctx, s); ok {
			gapThreshold = stored
		} else {
			gapThreshold = h.cfg.DefaultGapThresholdSeconds
		}
	}
	entries, err := query.BuildSessionIndex(ctx, s, gapThreshold)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func opSessionHasIndex(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_, has, err := store.IndexGapThreshold(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return has, nil
}

func opSessionIndexStats(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Stats(ctx, s)
}

func opSessionClearIndex(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := query.Clear(ctx, s); err != nil {
		return nil, err
	}
	return nil, nil
}

// opSessionListIndex returns the persisted session-index entries
// themselves, not the roster of sessions (that's session.getAll).
func opSessionListIndex(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := store.SessionIndex(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return entries, nil
}
