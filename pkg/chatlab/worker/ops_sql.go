package worker

import (
	"context"
	"time"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/query"
)

func init() {
	register("sql.execute", opSQLExecute)
	register("sql.schema", opSQLSchema)
}

func opSQLExecute(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	stmt, err := p.requireStr("sql")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rowLimit := p.intDefault("rowLimit", h.cfg.RawSQLRowLimit)
	if h.cfg.RawSQLTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(h.cfg.RawSQLTimeoutSeconds)*time.Second)
		defer cancel()
	}
	return query.Execute(ctx, s, stmt, rowLimit)
}

func opSQLSchema(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.Schema(ctx, s)
}
