package importpipeline

import "github.com/xunchahaha/ChatLab/pkg/chatlab/model"

// nameEntry is one observed-name interval, open until the next entry's
// Start is known.
type nameEntry struct {
	Name  string
	Start int64
}

// perMemberNames holds the in-memory, change-only history for one
// platform id across both name kinds: on observed change, a (name,
// start=timestamp) entry is appended to the affected kind's list.
type perMemberNames struct {
	Account  []nameEntry
	Nickname []nameEntry
}

// nicknameTracker is the whole-import in-memory structure; it is
// discarded after the post-parse compaction step writes its final state
// to member_name_history. Persisting per message would force a
// read-before-write on every insert.
type nicknameTracker struct {
	byPlatformID map[string]*perMemberNames
}

func newNicknameTracker() *nicknameTracker {
	return &nicknameTracker{byPlatformID: make(map[string]*perMemberNames)}
}

// Observe records one message's sender-attached names, appending a new
// entry to either list only when the observed name differs from the most
// recently recorded one for that (platform id, kind).
func (t *nicknameTracker) Observe(platformID, accountName, groupNickname string, ts int64) {
	if platformID == "" {
		return
	}
	pm, ok := t.byPlatformID[platformID]
	if !ok {
		pm = &perMemberNames{}
		t.byPlatformID[platformID] = pm
	}
	pm.Account = appendOnChange(pm.Account, accountName, ts)
	pm.Nickname = appendOnChange(pm.Nickname, groupNickname, ts)
}

func appendOnChange(entries []nameEntry, name string, ts int64) []nameEntry {
	if len(entries) > 0 && entries[len(entries)-1].Name == name {
		return entries
	}
	return append(entries, nameEntry{Name: name, Start: ts})
}

// compactedEntry is a finished, ready-to-persist history interval.
type compactedEntry struct {
	Kind  model.NameKind
	Name  string
	Start int64
	End   *int64 // nil for the open (latest) entry
}

// compact turns one kind's change-only entry list into closed/open
// intervals: requires at least two entries to persist anything, closes
// each entry's end at the next entry's start, leaves the last entry open.
func compact(kind model.NameKind, entries []nameEntry) ([]compactedEntry, string) {
	if len(entries) == 0 {
		return nil, ""
	}
	latest := entries[len(entries)-1].Name
	if len(entries) < 2 {
		return nil, latest
	}
	out := make([]compactedEntry, 0, len(entries))
	for i, e := range entries {
		var end *int64
		if i+1 < len(entries) {
			next := entries[i+1].Start
			end = &next
		}
		out = append(out, compactedEntry{Kind: kind, Name: e.Name, Start: e.Start, End: end})
	}
	return out, latest
}

// PerMember returns, for one platform id, the persist-ready compacted
// history for both kinds plus the latest name of each — the latest name
// updates the member row even when history itself doesn't qualify for
// persistence (a single name observed throughout still becomes the
// member's current name).
func (t *nicknameTracker) PerMember(platformID string) (accountEntries, nicknameEntries []compactedEntry, latestAccount, latestNickname string) {
	pm, ok := t.byPlatformID[platformID]
	if !ok {
		return nil, nil, "", ""
	}
	accountEntries, latestAccount = compact(model.NameKindAccount, pm.Account)
	nicknameEntries, latestNickname = compact(model.NameKindNickname, pm.Nickname)
	return
}

// PlatformIDs returns every platform id the tracker observed, for
// iterating during the final compaction pass.
func (t *nicknameTracker) PlatformIDs() []string {
	out := make([]string, 0, len(t.byPlatformID))
	for id := range t.byPlatformID {
		out = append(out, id)
	}
	return out
}
