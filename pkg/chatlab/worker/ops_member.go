package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("member.list", opMemberList)
	register("member.updateAliases", opMemberUpdateAliases)
	register("member.delete", opMemberDelete)
	register("member.nameHistory", opMemberNameHistory)
}

func opMemberList(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	members, err := store.ListMembers(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return members, nil
}

func opMemberUpdateAliases(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	memberID, err := p.requireI64("memberId")
	if err != nil {
		return nil, err
	}
	aliases := p.strSlice("aliases")
	lock := h.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := store.SetAliases(ctx, s, memberID, aliases); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opMemberDelete(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
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
	if err := store.DeleteMember(ctx, s, memberID); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}

func opMemberNameHistory(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	memberID, err := p.requireI64("memberId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := store.NameHistory(ctx, s, memberID)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return history, nil
}
