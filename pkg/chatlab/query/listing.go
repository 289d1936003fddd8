package query

import (
	"context"
	"math"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// Search runs a keyword OR-group against filter, newest id last; it's
// After(cursor=0, ...) under the hood since search and forward-paging
// share the same filter/keyword/sender shape.
func Search(ctx context.Context, s *store.SessionStore, f model.Filter, keywords []string, limit int) (Page, error) {
	return After(ctx, s, 0, PageQuery{Filter: f, Keywords: keywords, PageSize: limit})
}

// Recent returns the most recent n messages matching filter, ascending
// by id: the most-recent window is exactly what Before already computes
// when seeded past the largest possible id.
func Recent(ctx context.Context, s *store.SessionStore, f model.Filter, n int) ([]model.Message, error) {
	page, err := Before(ctx, s, math.MaxInt64, PageQuery{Filter: f, PageSize: n})
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// Between returns every message in [filter.StartTS, filter.EndTS] up to
// limit, ascending.
func Between(ctx context.Context, s *store.SessionStore, f model.Filter, limit int) (Page, error) {
	return After(ctx, s, 0, PageQuery{Filter: f, PageSize: limit})
}

// FilterWithContext finds every message matching filter/keywords, then
// expands each into its +/-k context window and returns the union,
// id-ordered.
func FilterWithContext(ctx context.Context, s *store.SessionStore, f model.Filter, keywords []string, k, limit int) ([]model.Message, error) {
	matches, err := Search(ctx, s, f, keywords, limit)
	if err != nil {
		return nil, err
	}
	if len(matches.Messages) == 0 {
		return nil, nil
	}
	seeds := make([]int64, len(matches.Messages))
	for i, m := range matches.Messages {
		seeds[i] = m.ID
	}
	return ContextWindow(ctx, s, seeds, k)
}
