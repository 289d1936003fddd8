package query

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// behaviorRow is the minimal per-message projection every analysis below
// scans; loaded once per call, filtered and ordered by ts ascending.
type behaviorRow struct {
	id            int64
	senderID      int64
	accountName   string
	groupNickname string
	ts            int64
	typ           model.MessageType
	content       string
	hasContent    bool
}

func loadBehaviorRows(ctx context.Context, s *store.SessionStore, f model.Filter) ([]behaviorRow, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT id, sender_id, sender_account_name, sender_group_nickname, ts, type, content
		FROM message WHERE 1=1`+where+`
		ORDER BY ts ASC, id ASC`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()

	var out []behaviorRow
	for rows.Next() {
		var r behaviorRow
		var content *string
		var typ int
		if err := rows.Scan(&r.id, &r.senderID, &r.accountName, &r.groupNickname, &r.ts, &typ, &content); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		r.typ = model.MessageType(typ)
		if content != nil {
			r.content = *content
			r.hasContent = true
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RepeatChain is a run of ≥3 consecutive messages sharing identical
// content — the "接龙" phenomenon where a group repeats the same line.
type RepeatChain struct {
	Content        string
	Length         int
	StartMessageID int64
	StartTS        int64
	Participants   int
}

// RepeatChains finds every maximal run of ≥3 consecutive messages (in
// timestamp order) with identical non-empty content.
func RepeatChains(ctx context.Context, s *store.SessionStore, f model.Filter) ([]RepeatChain, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	var out []RepeatChain
	i := 0
	for i < len(rows) {
		if !rows[i].hasContent || strings.TrimSpace(rows[i].content) == "" {
			i++
			continue
		}
		j := i + 1
		participants := map[int64]bool{rows[i].senderID: true}
		for j < len(rows) && rows[j].hasContent && rows[j].content == rows[i].content {
			participants[rows[j].senderID] = true
			j++
		}
		if j-i >= 3 {
			out = append(out, RepeatChain{
				Content:        rows[i].content,
				Length:         j - i,
				StartMessageID: rows[i].id,
				StartTS:        rows[i].ts,
				Participants:   len(participants),
			})
		}
		i = j
	}
	return out, nil
}

// Catchphrase is one member's most-repeated short message.
type Catchphrase struct {
	MemberID int64
	Name     string
	Content  string
	Count    int64
}

const catchphraseMaxLen = 12
const catchphraseMinCount = 3

// Catchphrases finds, per member, the short (<=12 rune) message content
// they repeated most often, for members with at least one qualifying
// phrase repeated >=3 times.
func Catchphrases(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Catchphrase, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	type key struct {
		member  int64
		content string
	}
	counts := make(map[key]int64)
	names := make(map[int64]string)
	for _, r := range rows {
		if !r.hasContent {
			continue
		}
		c := strings.TrimSpace(r.content)
		if c == "" || len([]rune(c)) > catchphraseMaxLen {
			continue
		}
		counts[key{r.senderID, c}]++
		if names[r.senderID] == "" {
			names[r.senderID] = displayName(r.accountName, r.groupNickname)
		}
	}
	best := make(map[int64]Catchphrase)
	for k, n := range counts {
		if n < catchphraseMinCount {
			continue
		}
		cur, ok := best[k.member]
		if !ok || n > cur.Count {
			best[k.member] = Catchphrase{MemberID: k.member, Name: names[k.member], Content: k.content, Count: n}
		}
	}
	out := make([]Catchphrase, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func displayName(accountName, groupNickname string) string {
	if groupNickname != "" {
		return groupNickname
	}
	return accountName
}

// NightOwlEntry ranks a member by how many messages they sent during
// local night hours (00:00-04:59).
type NightOwlEntry struct {
	MemberID int64
	Name     string
	Count    int64
}

// NightOwl ranks members by message count sent between midnight and 5am
// local time, descending.
func NightOwl(ctx context.Context, s *store.SessionStore, f model.Filter) ([]NightOwlEntry, error) {
	where, args := f.Where(0, true)
	rows, err := s.DB.Query(ctx, `
		SELECT sender_id, sender_account_name, sender_group_nickname, COUNT(*)
		FROM message
		WHERE CAST(strftime('%H', ts, 'unixepoch', 'localtime') AS INTEGER) < 5`+where+`
		GROUP BY sender_id ORDER BY 4 DESC`, args...)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []NightOwlEntry
	for rows.Next() {
		var e NightOwlEntry
		var accountName, groupNickname string
		if err := rows.Scan(&e.MemberID, &accountName, &groupNickname, &e.Count); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		e.Name = displayName(accountName, groupNickname)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DragonKingEntry counts how many calendar days a member posted the most
// messages of anyone that day (龙王, "the day's most talkative member").
type DragonKingEntry struct {
	MemberID int64
	Name     string
	DaysWon  int
}

// DragonKing finds, for every local calendar day with activity, the
// member who sent the most messages that day, then ranks members by how
// many days they won.
func DragonKing(ctx context.Context, s *store.SessionStore, f model.Filter) ([]DragonKingEntry, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	perDay := make(map[string]map[int64]int64)
	names := make(map[int64]string)
	for _, r := range rows {
		day := localDate(r.ts)
		if perDay[day] == nil {
			perDay[day] = make(map[int64]int64)
		}
		perDay[day][r.senderID]++
		if names[r.senderID] == "" {
			names[r.senderID] = displayName(r.accountName, r.groupNickname)
		}
	}
	wins := make(map[int64]int)
	for _, counts := range perDay {
		var winner int64 = -1
		var best int64 = -1
		for member, n := range counts {
			if n > best || (n == best && member < winner) {
				best = n
				winner = member
			}
		}
		if winner >= 0 {
			wins[winner]++
		}
	}
	out := make([]DragonKingEntry, 0, len(wins))
	for member, n := range wins {
		out = append(out, DragonKingEntry{MemberID: member, Name: names[member], DaysWon: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DaysWon > out[j].DaysWon })
	return out, nil
}

// localDate matches the %Y-%m-%d local-date bucketing SQLite's 'localtime'
// modifier produces in DailyTrend, recomputed here in Go since this pass
// already holds every row in memory.
func localDate(ts int64) string {
	return time.Unix(ts, 0).Local().Format("2006-01-02")
}

// DivingEntry flags a roster member who sent very few messages relative
// to the session, i.e. "lurks" rather than participates (潜水).
type DivingEntry struct {
	MemberID     int64
	Name         string
	MessageCount int64
}

const divingThreshold = 3

// Diving returns roster members with fewer than divingThreshold messages
// in the filtered set, ascending by count.
func Diving(ctx context.Context, s *store.SessionStore, f model.Filter) ([]DivingEntry, error) {
	activity, err := MemberActivityReport(ctx, s, f)
	if err != nil {
		return nil, err
	}
	active := make(map[int64]bool)
	counts := make(map[int64]int64)
	for _, a := range activity {
		active[a.MemberID] = true
		counts[a.MemberID] = a.Count
	}
	members, err := store.ListMembers(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	var out []DivingEntry
	for _, m := range members {
		count := counts[m.ID]
		if count < divingThreshold {
			out = append(out, DivingEntry{MemberID: m.ID, Name: displayName(m.AccountName, m.GroupNickname), MessageCount: count})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageCount < out[j].MessageCount })
	return out, nil
}

// Monologue is the longest consecutive run of messages from one sender
// uninterrupted by any other sender (独白, talking with no reply).
type Monologue struct {
	MemberID       int64
	Name           string
	Length         int
	StartMessageID int64
	StartTS        int64
	EndTS          int64
}

// MonologueReport finds the single longest such run per member, returned
// sorted by Length descending.
func MonologueReport(ctx context.Context, s *store.SessionStore, f model.Filter) ([]Monologue, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	best := make(map[int64]Monologue)
	i := 0
	for i < len(rows) {
		j := i + 1
		for j < len(rows) && rows[j].senderID == rows[i].senderID {
			j++
		}
		length := j - i
		member := rows[i].senderID
		if cur, ok := best[member]; !ok || length > cur.Length {
			best[member] = Monologue{
				MemberID:       member,
				Name:           displayName(rows[i].accountName, rows[i].groupNickname),
				Length:         length,
				StartMessageID: rows[i].id,
				StartTS:        rows[i].ts,
				EndTS:          rows[j-1].ts,
			}
		}
		i = j
	}
	out := make([]Monologue, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Length > out[j].Length })
	return out, nil
}

// MentionEdge is one directed mention count between two members, detected
// by matching "@name" against known account/group names.
type MentionEdge struct {
	FromMemberID int64
	ToMemberID   int64
	Count        int64
}

var mentionPattern = regexp.MustCompile(`@([^\s@，,。:：]{1,32})`)

// MentionGraph builds the directed mention graph over the filtered
// message set: for each message, every "@name" token is matched against
// the roster's account/group names to find the mentioned member.
func MentionGraph(ctx context.Context, s *store.SessionStore, f model.Filter) ([]MentionEdge, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	members, err := store.ListMembers(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	byName := make(map[string]int64)
	for _, m := range members {
		if m.AccountName != "" {
			byName[m.AccountName] = m.ID
		}
		if m.GroupNickname != "" {
			byName[m.GroupNickname] = m.ID
		}
	}

	counts := make(map[[2]int64]int64)
	for _, r := range rows {
		if !r.hasContent {
			continue
		}
		for _, match := range mentionPattern.FindAllStringSubmatch(r.content, -1) {
			name := match[1]
			toID, ok := byName[name]
			if !ok || toID == r.senderID {
				continue
			}
			counts[[2]int64{r.senderID, toID}]++
		}
	}
	out := make([]MentionEdge, 0, len(counts))
	for k, n := range counts {
		out = append(out, MentionEdge{FromMemberID: k[0], ToMemberID: k[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// MentionStat is one member's inbound/outbound mention totals.
type MentionStat struct {
	MemberID     int64
	Name         string
	MentionedBy  int64 // times this member was @-mentioned
	MentionsSent int64 // times this member @-mentioned someone else
}

// MentionAnalysis aggregates MentionGraph into per-member totals.
func MentionAnalysis(ctx context.Context, s *store.SessionStore, f model.Filter) ([]MentionStat, error) {
	edges, err := MentionGraph(ctx, s, f)
	if err != nil {
		return nil, err
	}
	members, err := store.ListMembers(ctx, s)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	names := make(map[int64]string)
	stats := make(map[int64]*MentionStat)
	for _, m := range members {
		names[m.ID] = displayName(m.AccountName, m.GroupNickname)
		stats[m.ID] = &MentionStat{MemberID: m.ID, Name: names[m.ID]}
	}
	for _, e := range edges {
		if stat, ok := stats[e.FromMemberID]; ok {
			stat.MentionsSent += e.Count
		}
		if stat, ok := stats[e.ToMemberID]; ok {
			stat.MentionedBy += e.Count
		}
	}
	out := make([]MentionStat, 0, len(stats))
	for _, stat := range stats {
		if stat.MentionedBy > 0 || stat.MentionsSent > 0 {
			out = append(out, *stat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MentionedBy > out[j].MentionedBy })
	return out, nil
}

var laughPattern = regexp.MustCompile(`(?i)(哈哈+|233+|笑死|lol+|lmao|xswl|hhh+)`)

// LaughEntry counts laughter-pattern occurrences per member.
type LaughEntry struct {
	MemberID int64
	Name     string
	Count    int64
}

// Laugh counts, per member, how many filtered messages matched a
// laughter pattern ("哈哈", "233", "lol", "hhh", ...).
func Laugh(ctx context.Context, s *store.SessionStore, f model.Filter) ([]LaughEntry, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64)
	names := make(map[int64]string)
	for _, r := range rows {
		if !r.hasContent || !laughPattern.MatchString(r.content) {
			continue
		}
		counts[r.senderID]++
		if names[r.senderID] == "" {
			names[r.senderID] = displayName(r.accountName, r.groupNickname)
		}
	}
	out := make([]LaughEntry, 0, len(counts))
	for member, n := range counts {
		out = append(out, LaughEntry{MemberID: member, Name: names[member], Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// MemeBattleRound is one burst of consecutive image messages from
// multiple members within a short time window (斗图).
type MemeBattleRound struct {
	StartTS      int64
	Participants int
	ImageCount   int
	WinnerID     int64
	WinnerName   string
}

const memeBattleGapSeconds = 120

// MemeBattle finds runs of consecutive image-type messages (gaps <=2min)
// involving >=2 distinct senders, reporting each round's image count and
// the member who contributed the most images in it.
func MemeBattle(ctx context.Context, s *store.SessionStore, f model.Filter) ([]MemeBattleRound, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	var images []behaviorRow
	for _, r := range rows {
		if r.typ == model.MessageImage {
			images = append(images, r)
		}
	}

	var out []MemeBattleRound
	i := 0
	for i < len(images) {
		j := i + 1
		for j < len(images) && images[j].ts-images[j-1].ts <= memeBattleGapSeconds {
			j++
		}
		group := images[i:j]
		perSender := make(map[int64]int)
		names := make(map[int64]string)
		for _, r := range group {
			perSender[r.senderID]++
			names[r.senderID] = displayName(r.accountName, r.groupNickname)
		}
		if len(perSender) >= 2 {
			var winner int64
			var best int
			for member, n := range perSender {
				if n > best {
					best = n
					winner = member
				}
			}
			out = append(out, MemeBattleRound{
				StartTS:      group[0].ts,
				Participants: len(perSender),
				ImageCount:   len(group),
				WinnerID:     winner,
				WinnerName:   names[winner],
			})
		}
		i = j
	}
	return out, nil
}

// CheckInEntry ranks members by how many calendar days they were the
// first to send a message (打卡, "check-in").
type CheckInEntry struct {
	MemberID int64
	Name     string
	Days     int
}

// CheckIn finds, for every local day with activity, the first sender of
// that day, then ranks members by how many days they were first.
func CheckIn(ctx context.Context, s *store.SessionStore, f model.Filter) ([]CheckInEntry, error) {
	rows, err := loadBehaviorRows(ctx, s, f)
	if err != nil {
		return nil, err
	}
	firstOfDay := make(map[string]behaviorRow)
	for _, r := range rows {
		day := localDate(r.ts)
		if _, ok := firstOfDay[day]; !ok {
			firstOfDay[day] = r
		}
	}
	days := make(map[int64]int)
	names := make(map[int64]string)
	for _, r := range firstOfDay {
		days[r.senderID]++
		names[r.senderID] = displayName(r.accountName, r.groupNickname)
	}
	out := make([]CheckInEntry, 0, len(days))
	for member, n := range days {
		out = append(out, CheckInEntry{MemberID: member, Name: names[member], Days: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Days > out[j].Days })
	return out, nil
}
