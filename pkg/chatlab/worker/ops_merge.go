package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/merge"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("merge.parseFileInfo", opMergeParseFileInfo)
	register("merge.checkConflicts", opMergeCheckConflicts)
	register("merge.mergeFiles", opMergeMergeFiles)
	register("merge.clearCache", opMergeClearCache)
}

func opMergeParseFileInfo(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	path, err := p.requireStr("path")
	if err != nil {
		return nil, err
	}
	return parseFileInfo(h, path)
}

func opMergeCheckConflicts(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	paths := p.strSlice("paths")
	if len(paths) < 2 {
		return nil, chatlaberrors.Newf(chatlaberrors.CodeParseError, "merge.checkConflicts requires at least two paths")
	}
	return merge.CheckConflicts(ctx, h.cfg, paths)
}

func opMergeMergeFiles(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	paths := p.strSlice("paths")
	if len(paths) < 2 {
		return nil, chatlaberrors.Newf(chatlaberrors.CodeParseError, "merge.mergeFiles requires at least two paths")
	}
	opts := merge.Options{
		Name:     p.strDefault("name", "merged"),
		Reimport: p.boolDefault("reimport", false),
	}
	return merge.MergeFiles(ctx, h.cfg, paths, opts)
}

// opMergeClearCache sweeps every staging store left in the temp
// directory on demand, the same sweep NewHost runs at startup. Useful
// after cancelling a merge mid-flight.
func opMergeClearCache(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	if err := store.SweepStagingDir(h.cfg.TempDir()); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return nil, nil
}
