package worker

import (
	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// payload is a thin accessor over a request's untyped field map. Rather
// than define one struct type per operation, handlers pull the fields
// they need (session id, filter bounds, cursors, keyword lists, member
// id, raw sql) and reject anything missing or mistyped as a parse_error.
type payload map[string]any

func newPayload(p map[string]any) payload {
	if p == nil {
		return payload{}
	}
	return payload(p)
}

func (p payload) str(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p payload) strDefault(key, def string) string {
	if s, ok := p.str(key); ok && s != "" {
		return s
	}
	return def
}

func (p payload) requireStr(key string) (string, error) {
	s, ok := p.str(key)
	if !ok || s == "" {
		return "", chatlaberrors.Newf(chatlaberrors.CodeParseError, "missing required string field %q", key)
	}
	return s, nil
}

func (p payload) strSlice(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p payload) i64(key string) (int64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (p payload) i64Ptr(key string) *int64 {
	if n, ok := p.i64(key); ok {
		return &n
	}
	return nil
}

func (p payload) requireI64(key string) (int64, error) {
	n, ok := p.i64(key)
	if !ok {
		return 0, chatlaberrors.Newf(chatlaberrors.CodeParseError, "missing required integer field %q", key)
	}
	return n, nil
}

func (p payload) intDefault(key string, def int) int {
	if n, ok := p.i64(key); ok {
		return int(n)
	}
	return def
}

func (p payload) boolDefault(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// filter builds the uniform model.Filter from the "startTs"/"endTs"/
// "memberId" payload fields.
func (p payload) filter() model.Filter {
	var f model.Filter
	if v, ok := p.i64("startTs"); ok {
		f.StartTS = &v
	}
	if v, ok := p.i64("endTs"); ok {
		f.EndTS = &v
	}
	if v, ok := p.i64("memberId"); ok {
		f.MemberID = &v
	}
	return f
}

func (p payload) i64Slice(key string) []int64 {
	v, ok := p[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case int64:
			out = append(out, n)
		case int:
			out = append(out, int64(n))
		case float64:
			out = append(out, int64(n))
		}
	}
	return out
}
