// Package query implements the read-only aggregate and analysis layer
// over a session store: member activity, time-bucketed distributions,
// message-length histograms, nickname history, named behavioral
// analyses, paging, context windows, and raw SQL.
package query

import (
	"context"
	"math"
	"sort"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// MemberActivity is one member's share of the filtered message set;
// Percentage is round(count/total*10000)/100.
type MemberActivity struct {
	MemberID      int64
	AccountName   string
	GroupNickname string
	Count         int64
	Percentage    float64
}

// MemberActivityReport counts messages per sender within filter, sorted
// descending by count.
func MemberActivityReport(ctx context.Context, s *store.SessionStore, f model.Filter) ([]MemberActivity, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT sender_id, sender_account_name, sender_group_nickname, COUNT(*)
		FROM message WHERE 1=1`+where+`
		GROUP BY sender_id`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var out []MemberActivity
	var total int64
	for rows.Next() {
		var a MemberActivity
		if err := rows.Scan(&a.MemberID, &a.AccountName, &a.GroupNickname, &a.Count); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		total += a.Count
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	for i := range out {
		if total > 0 {
			out[i].Percentage = math.Round(float64(out[i].Count)/float64(total)*10000) / 100
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// Bucket is one count at a given integer bucket key (hour 0-23, weekday
// 1-7, month 1-12, or year).
type Bucket struct {
	Key   int
	Count int64
}

func bucketQuery(ctx context.Context, s *store.SessionStore, f model.Filter, strftimeFmt string, keyRange []int) ([]Bucket, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT CAST(strftime('`+strftimeFmt+`', ts, 'unixepoch', 'localtime') AS INTEGER), COUNT(*)
		FROM message WHERE 1=1`+where+`
		GROUP BY 1`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var key int
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, chatlaberrors.Classify(err)
	}

	out := make([]Bucket, len(keyRange))
	for i, k := range keyRange {
		out[i] = Bucket{Key: k, Count: counts[k]}
	}
	return out, nil
}

func hourRange() []int {
	r := make([]int, 24)
	for i := range r {
		r[i] = i
	}
	return r
}

func weekdayRange() []int { return []int{1, 2, 3, 4, 5, 6, 7} }

func monthRange() []int {
	r := make([]int, 12)
	for i := range r {
		r[i] = i + 1
	}
	return r
}

// Hourly buckets the filtered messages by local hour-of-day (0-23), every
// hour materialized even if empty.
func Hourly(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Bucket, error) {
	return bucketQuery(ctx, s, f, "%H", hourRange())
}

// Weekday buckets by local weekday, Mon=1 ... Sun=7. SQLite's %w yields
// Sun=0..Sat=6; Sunday is remapped to 7.
func Weekday(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Bucket, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT CAST(strftime('%w', ts, 'unixepoch', 'localtime') AS INTEGER), COUNT(*)
		FROM message WHERE 1=1`+where+`
		GROUP BY 1`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sqliteDow int
		var n int64
		if err := rows.Scan(&sqliteDow, &n); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		dow := sqliteDow
		if dow == 0 {
			dow = 7
		}
		counts[dow] = n
	}
	if err := rows.Err(); err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	weekdays := weekdayRange()
	out := make([]Bucket, len(weekdays))
	for i, k := range weekdays {
		out[i] = Bucket{Key: k, Count: counts[k]}
	}
	return out, nil
}

// Monthly buckets by local calendar month (1-12).
func Monthly(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Bucket, error) {
	return bucketQuery(ctx, s, f, "%m", monthRange())
}

// Yearly buckets by local calendar year; only years present in the data
// are returned, since the range is open-ended.
func Yearly(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Bucket, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT CAST(strftime('%Y', ts, 'unixepoch', 'localtime') AS INTEGER), COUNT(*)
		FROM message WHERE 1=1`+where+`
		GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AvailableYears lists the distinct local years present in the session,
// ascending — used by UIs to populate a year picker before calling Yearly.
func AvailableYears(ctx context.Context, s *store.SessionStore) ([]int, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT DISTINCT CAST(strftime('%Y', ts, 'unixepoch', 'localtime') AS INTEGER)
		FROM message ORDER BY 1`)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// DayCount is one calendar day's message count; days with no messages
// have no row.
type DayCount struct {
	Date  string // YYYY-MM-DD, local
	Count int64
}

// DailyTrend returns one row per local calendar day with at least one
// filtered message, ascending by date.
func DailyTrend(ctx context.Context, s *store.SessionStore, f model.Filter) ([]DayCount, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT strftime('%Y-%m-%d', ts, 'unixepoch', 'localtime'), COUNT(*)
		FROM message WHERE 1=1`+where+`
		GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LengthBucket is a message-count within one length range: fixed ranges
// chosen to separate short acknowledgements, ordinary chat, and
// long-form text.
type LengthBucket struct {
	Label string
	Min   int
	Max   int // -1 means unbounded
	Count int64
}

var lengthRanges = []LengthBucket{
	{Label: "0-4", Min: 0, Max: 4},
	{Label: "5-19", Min: 5, Max: 19},
	{Label: "20-49", Min: 20, Max: 49},
	{Label: "50-99", Min: 50, Max: 99},
	{Label: "100-299", Min: 100, Max: 299},
	{Label: "300+", Min: 300, Max: -1},
}

// LengthDistribution buckets filtered text-bearing messages by content
// length into the fixed ranges above.
func LengthDistribution(ctx context.Context, s *store.SessionStore, f model.Filter) ([]LengthBucket, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT LENGTH(content) FROM message WHERE content IS NOT NULL`+where, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	out := make([]LengthBucket, len(lengthRanges))
	copy(out, lengthRanges)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		for i := range out {
			if n >= out[i].Min && (out[i].Max == -1 || n <= out[i].Max) {
				out[i].Count++
				break
			}
		}
	}
	return out, rows.Err()
}

// TypeBucket is a per-MessageType count.
type TypeBucket struct {
	Type  model.MessageType
	Count int64
}

// TypeDistribution counts filtered messages per MessageType.
func TypeDistribution(ctx context.Context, s *store.SessionStore, f model.Filter) ([]TypeBucket, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT type, COUNT(*) FROM message WHERE 1=1`+where+` GROUP BY type ORDER BY 2 DESC`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []TypeBucket
	for rows.Next() {
		var t int
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		out = append(out, TypeBucket{Type: model.MessageType(t), Count: n})
	}
	return out, rows.Err()
}

// TimeRange returns (min ts, max ts) or (nil, nil) when the filter matches
// nothing; a thin re-export of store.TimeRange for query-layer callers.
func TimeRange(ctx context.Context, s *store.SessionStore, f model.Filter) (*int64, *int64, error) {
	min, max, err := store.TimeRange(ctx, s, f)
	if err != nil {
		return nil, nil, chatlaberrors.Classify(err)
	}
	return min, max, nil
}

// NicknameHistory re-exports store.NameHistory for the query layer's
// uniform access pattern.
func NicknameHistory(ctx context.Context, s *store.SessionStore, memberID int64) ([]model.NameHistoryEntry, error) {
	out, err := store.NameHistory(ctx, s, memberID)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	return out, nil
}
