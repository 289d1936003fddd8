package worker

import (
	"context"
	"sort"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/query"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("msg.search", opMsgSearch)
	register("msg.context", opMsgContext)
	register("msg.recent", opMsgRecent)
	register("msg.allRecent", opMsgAllRecent)
	register("msg.between", opMsgBetween)
	register("msg.before", opMsgBefore)
	register("msg.after", opMsgAfter)
	register("msg.filterWithContext", opMsgFilterWithContext)
	register("msg.fromSessions", opMsgFromSessions)
}

// taggedMessage is a message annotated with the session it came from, the
// shape both msg.allRecent and msg.fromSessions return since they span
// more than one session store.
type taggedMessage struct {
	SessionID string
	Message   model.Message
}

func msgPageQuery(p payload) query.PageQuery {
	q := query.PageQuery{Filter: p.filter(), Keywords: p.strSlice("keywords"), PageSize: p.intDefault("pageSize", 0)}
	if id, ok := p.i64("senderId"); ok {
		q.SenderID = &id
	}
	return q
}

func opMsgSearch(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Search(ctx, s, p.filter(), p.strSlice("keywords"), p.intDefault("limit", 0))
}

func opMsgContext(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	seeds := p.i64Slice("messageIds")
	k := p.intDefault("k", 5)
	return query.ContextWindow(ctx, s, seeds, k)
}

func opMsgRecent(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Recent(ctx, s, p.filter(), p.intDefault("limit", 50))
}

// opMsgAllRecent fans out across every known session and merges the most
// recent messages from each, newest first, truncated to limit.
func opMsgAllRecent(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	limit := p.intDefault("limit", 50)

	sessions, err := store.ListSessions(ctx, h.cfg.DatabasesDir())
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}

	var out []taggedMessage
	for _, sess := range sessions {
		s, err := h.openSession(ctx, sess.ID)
		if err != nil {
			continue
		}
		messages, err := query.Recent(ctx, s, model.Filter{}, limit)
		if err != nil {
			continue
		}
		for _, m := range messages {
			out = append(out, taggedMessage{SessionID: sess.ID, Message: m})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Message.TS > out[j].Message.TS })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func opMsgBetween(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Between(ctx, s, p.filter(), p.intDefault("limit", 1000))
}

func opMsgBefore(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	cursor, err := p.requireI64("cursor")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Before(ctx, s, cursor, msgPageQuery(p))
}

func opMsgAfter(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	cursor, err := p.requireI64("cursor")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.After(ctx, s, cursor, msgPageQuery(p))
}

func opMsgFilterWithContext(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	k := p.intDefault("k", 5)
	limit := p.intDefault("limit", 200)
	return query.FilterWithContext(ctx, s, p.filter(), p.strSlice("keywords"), k, limit)
}

// opMsgFromSessions runs the same keyword search across an explicit set
// of session ids and merges the results, tagged by session.
func opMsgFromSessions(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionIDs := p.strSlice("sessionIds")
	if len(sessionIDs) == 0 {
		return nil, chatlaberrors.Newf(chatlaberrors.CodeParseError, "missing required field %q", "sessionIds")
	}
	limit := p.intDefault("limit", 200)
	keywords := p.strSlice("keywords")
	f := p.filter()

	var out []taggedMessage
	for _, sessionID := range sessionIDs {
		s, err := h.openSession(ctx, sessionID)
		if err != nil {
			continue
		}
		page, err := query.Search(ctx, s, f, keywords, limit)
		if err != nil {
			continue
		}
		for _, m := range page.Messages {
			out = append(out, taggedMessage{SessionID: sessionID, Message: m})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Message.TS < out[j].Message.TS })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
