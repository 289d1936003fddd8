package worker

import (
	"context"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/query"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func init() {
	register("query.availableYears", opQueryAvailableYears)
	register("query.memberActivity", opQueryMemberActivity)
	register("query.hourly", opQueryHourly)
	register("query.daily", opQueryDaily)
	register("query.weekday", opQueryWeekday)
	register("query.monthly", opQueryMonthly)
	register("query.yearly", opQueryYearly)
	register("query.lengthDistribution", opQueryLengthDistribution)
	register("query.typeDistribution", opQueryTypeDistribution)
	register("query.timeRange", opQueryTimeRange)

	register("query.repeat", opQueryRepeat)
	register("query.catchphrase", opQueryCatchphrase)
	register("query.nightOwl", opQueryNightOwl)
	register("query.dragonKing", opQueryDragonKing)
	register("query.diving", opQueryDiving)
	register("query.monologue", opQueryMonologue)
	register("query.mention", opQueryMention)
	register("query.mentionGraph", opQueryMentionGraph)
	register("query.laugh", opQueryLaugh)
	register("query.memeBattle", opQueryMemeBattle)
	register("query.checkIn", opQueryCheckIn)
}

// sessionFilterHandler is the shape shared by every query.* op: open the
// session, pull the uniform filter from the payload, run one query.*
// function. Declared once and reused by each handler below instead of
// repeating the open+filter boilerplate per operation.
func sessionFilterHandler(fn func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error)) handlerFunc {
	return func(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
		p := newPayload(req.Payload)
		sessionID, err := p.requireStr("sessionId")
		if err != nil {
			return nil, err
		}
		s, err := h.openSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return fn(ctx, s, p.filter())
	}
}

func opQueryAvailableYears(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return query.AvailableYears(ctx, s)
}

var opQueryMemberActivity = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.MemberActivityReport(ctx, s, f)
})

var opQueryHourly = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Hourly(ctx, s, f)
})

var opQueryDaily = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.DailyTrend(ctx, s, f)
})

var opQueryWeekday = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Weekday(ctx, s, f)
})

var opQueryMonthly = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Monthly(ctx, s, f)
})

var opQueryYearly = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Yearly(ctx, s, f)
})

var opQueryLengthDistribution = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.LengthDistribution(ctx, s, f)
})

var opQueryTypeDistribution = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.TypeDistribution(ctx, s, f)
})

func opQueryTimeRange(ctx context.Context, h *Host, req model.WorkerRequest, progress func(model.Progress)) (any, error) {
	p := newPayload(req.Payload)
	sessionID, err := p.requireStr("sessionId")
	if err != nil {
		return nil, err
	}
	s, err := h.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	min, max, err := query.TimeRange(ctx, s, p.filter())
	if err != nil {
		return nil, err
	}
	return timeRangeResult{Start: min, End: max}, nil
}

type timeRangeResult struct {
	Start *int64
	End   *int64
}

var opQueryRepeat = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.RepeatChains(ctx, s, f)
})

var opQueryCatchphrase = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Catchphrases(ctx, s, f)
})

var opQueryNightOwl = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.NightOwl(ctx, s, f)
})

var opQueryDragonKing = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.DragonKing(ctx, s, f)
})

var opQueryDiving = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Diving(ctx, s, f)
})

var opQueryMonologue = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.MonologueReport(ctx, s, f)
})

var opQueryMention = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.MentionAnalysis(ctx, s, f)
})

var opQueryMentionGraph = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.MentionGraph(ctx, s, f)
})

var opQueryLaugh = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.Laugh(ctx, s, f)
})

var opQueryMemeBattle = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.MemeBattle(ctx, s, f)
})

var opQueryCheckIn = sessionFilterHandler(func(ctx context.Context, s *store.SessionStore, f model.Filter) (any, error) {
	return query.CheckIn(ctx, s, f)
})
