package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// PageQuery is one paging request: the uniform filter plus an optional
// sender refinement and keyword OR-group.
type PageQuery struct {
	Filter   model.Filter
	SenderID *int64
	Keywords []string // OR-matched with LIKE
	PageSize int
}

// Page is a window of messages plus whether more rows exist beyond it.
type Page struct {
	Messages []model.Message
	HasMore  bool
}

func (q PageQuery) extraWhere(argOffset int) (string, []any) {
	var clauses []string
	var args []any
	n := argOffset
	if q.SenderID != nil {
		n++
		clauses = append(clauses, sqlPlaceholder("sender_id = ", n))
		args = append(args, *q.SenderID)
	}
	if len(q.Keywords) > 0 {
		var ors []string
		for _, kw := range q.Keywords {
			n++
			ors = append(ors, sqlPlaceholder("content LIKE ", n))
			args = append(args, "%"+kw+"%")
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func sqlPlaceholder(prefix string, n int) string {
	return prefix + "$" + strconv.Itoa(n)
}

func pageSize(q PageQuery) int {
	if q.PageSize <= 0 {
		return 50
	}
	return q.PageSize
}

// After returns the window of messages with id > cursor, ascending,
// honoring filter/sender/keywords, with hasMore computed by over-fetching
// one extra row.
func After(ctx context.Context, s *store.SessionStore, cursor int64, q PageQuery) (Page, error) {
	// Paging lists messages rather than aggregating them, so system-author
	// rows stay visible here.
	where, args := q.Filter.Where(1, false)
	extra, extraArgs := q.extraWhere(1 + len(args))
	args = append(args, extraArgs...)
	limit := pageSize(q)

	query := `SELECT id, sender_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message WHERE id > $1` + where + extra + ` ORDER BY id ASC LIMIT ` + strconv.Itoa(limit+1)
	allArgs := append([]any{cursor}, args...)
	return runPage(ctx, s, query, allArgs, limit, false)
}

// Before returns the window of messages with id < cursor, in id-descending
// fetch order re-sorted ascending for display, with the same hasMore rule.
func Before(ctx context.Context, s *store.SessionStore, cursor int64, q PageQuery) (Page, error) {
	where, args := q.Filter.Where(1, false)
	extra, extraArgs := q.extraWhere(1 + len(args))
	args = append(args, extraArgs...)
	limit := pageSize(q)

	query := `SELECT id, sender_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message WHERE id < $1` + where + extra + ` ORDER BY id DESC LIMIT ` + strconv.Itoa(limit+1)
	allArgs := append([]any{cursor}, args...)
	return runPage(ctx, s, query, allArgs, limit, true)
}

func runPage(ctx context.Context, s *store.SessionStore, query string, args []any, limit int, reverse bool) (Page, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return Page{}, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var typ int
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderAccountName, &m.SenderGroupNickname, &m.TS, &typ, &m.Content); err != nil {
			return Page{}, chatlaberrors.Classify(err)
		}
		m.Type = model.MessageType(typ)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return Page{}, chatlaberrors.Classify(err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if reverse {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return Page{Messages: messages, HasMore: hasMore}, nil
}

// ContextWindow returns the union of [id-k, id+k] across every seed id,
// deduplicated and id-ordered.
func ContextWindow(ctx context.Context, s *store.SessionStore, seeds []int64, k int) ([]model.Message, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	ids := make(map[int64]bool)
	for _, seed := range seeds {
		for id := seed - int64(k); id <= seed+int64(k); id++ {
			ids[id] = true
		}
	}
	var minID, maxID int64
	first := true
	for id := range ids {
		if first || id < minID {
			minID = id
		}
		if first || id > maxID {
			maxID = id
		}
		first = false
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, sender_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message WHERE id BETWEEN $1 AND $2 ORDER BY id ASC`, minID, maxID)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var typ int
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderAccountName, &m.SenderGroupNickname, &m.TS, &typ, &m.Content); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		if !ids[m.ID] {
			continue
		}
		m.Type = model.MessageType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}
