package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/migrate"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

func init() {
	register("migration.check", opMigrationCheck)
	register("migration.run", opMigrationRun)
}

// migrationStatus is the result of migration.check.
type migrationStatus struct {
	CurrentVersion int
	UpToDate       bool
	PendingSteps   []string
}

func opMigrationCheck(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := migrate.Default()
	current, err := migrate.CurrentVersion(ctx, s.DB)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	pending, err := m.Pending(ctx, s.DB)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	descriptions := make([]string, len(pending))
	for i, step := range pending {
		descriptions[i] = step.Description
	}
	return migrationStatus{CurrentVersion: current, UpToDate: len(pending) == 0, PendingSteps: descriptions}, nil
}

func opMigrationRun(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
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
	if err := migrate.Default().Upgrade(ctx, s.DB); err != nil {
		return nil, chatlaberrors.Newf(chatlaberrors.CodeMigrationRequired, "%v", err)
	}
	return nil, nil
}
