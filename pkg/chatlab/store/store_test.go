package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

func newTestSession(t *testing.T) *SessionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := CreateSession(context.Background(), path)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSessionRefusesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := CreateSession(ctx, path)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	s.Close()

	if _, err := CreateSession(ctx, path); err == nil {
		t.Fatal("expected CreateSession to refuse an existing file")
	}
}

func TestOpenSessionMissingFile(t *testing.T) {
	if _, err := OpenSession(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatal("expected OpenSession to fail on a nonexistent path")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	if err := InsertMeta(ctx, s, "Study Group", model.PlatformQQ, model.KindGroup, 1000, "group-1", "avatar.png"); err != nil {
		t.Fatalf("InsertMeta: %v", err)
	}
	sess, err := GetMeta(ctx, s, "chat_123")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if sess.Name != "Study Group" || sess.Platform != model.PlatformQQ || sess.Kind != model.KindGroup {
		t.Fatalf("unexpected meta: %+v", sess)
	}
	if sess.ID != "chat_123" {
		t.Fatalf("expected GetMeta to stamp the caller-supplied id, got %q", sess.ID)
	}

	if err := Rename(ctx, s, "Renamed Group"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	sess, err = GetMeta(ctx, s, "chat_123")
	if err != nil {
		t.Fatalf("GetMeta after rename: %v", err)
	}
	if sess.Name != "Renamed Group" {
		t.Fatalf("expected renamed name, got %q", sess.Name)
	}
}

func TestOwnerLazySidecar(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	if _, ok, err := Owner(ctx, s); err != nil || ok {
		t.Fatalf("expected no owner before SetOwner, got ok=%v err=%v", ok, err)
	}
	if err := SetOwner(ctx, s, 42); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	id, ok, err := Owner(ctx, s)
	if err != nil || !ok || id != 42 {
		t.Fatalf("expected owner 42, got id=%d ok=%v err=%v", id, ok, err)
	}
	// SetOwner replaces, never accumulates.
	if err := SetOwner(ctx, s, 7); err != nil {
		t.Fatalf("SetOwner again: %v", err)
	}
	id, ok, err = Owner(ctx, s)
	if err != nil || !ok || id != 7 {
		t.Fatalf("expected owner to have been replaced with 7, got id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestGapThresholdLazySidecar(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	if _, ok, err := GapThreshold(ctx, s); err != nil || ok {
		t.Fatalf("expected no preference before SetGapThreshold, got ok=%v err=%v", ok, err)
	}
	if err := SetGapThreshold(ctx, s, 900); err != nil {
		t.Fatalf("SetGapThreshold: %v", err)
	}
	seconds, ok, err := GapThreshold(ctx, s)
	if err != nil || !ok || seconds != 900 {
		t.Fatalf("expected 900s preference, got seconds=%d ok=%v err=%v", seconds, ok, err)
	}
}

func TestMemberUpsertOnlyOverwritesNonEmptyFields(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	id, err := UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice", GroupNickname: "Al"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	// Upsert again with an empty nickname: should not clobber the existing one.
	id2, err := UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice2"})
	if err != nil {
		t.Fatalf("UpsertMember again: %v", err)
	}
	if id != id2 {
		t.Fatalf("expected upsert by platform id to return the same internal id, got %d then %d", id, id2)
	}
	m, ok, err := GetMember(ctx, s, id)
	if err != nil || !ok {
		t.Fatalf("GetMember: ok=%v err=%v", ok, err)
	}
	if m.AccountName != "alice2" {
		t.Fatalf("expected account name to update to alice2, got %q", m.AccountName)
	}
	if m.GroupNickname != "Al" {
		t.Fatalf("expected nickname to survive the empty-field upsert, got %q", m.GroupNickname)
	}
}

func TestMemberAliasesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	id, err := UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if err := SetAliases(ctx, s, id, []string{"al", "ally"}); err != nil {
		t.Fatalf("SetAliases: %v", err)
	}
	m, _, err := GetMember(ctx, s, id)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if len(m.Aliases) != 2 || m.Aliases[0] != "al" || m.Aliases[1] != "ally" {
		t.Fatalf("unexpected aliases: %v", m.Aliases)
	}
}

func TestDeleteMemberRemovesNameHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	id, err := UpsertMember(ctx, s, model.Member{PlatformID: "p1"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if err := InsertNameHistory(ctx, s, model.NameHistoryEntry{MemberID: id, Kind: model.NameKindAccount, Name: "alice", Start: 1}); err != nil {
		t.Fatalf("InsertNameHistory: %v", err)
	}
	if err := DeleteMember(ctx, s, id); err != nil {
		t.Fatalf("DeleteMember: %v", err)
	}
	if _, ok, err := GetMember(ctx, s, id); err != nil || ok {
		t.Fatalf("expected member to be gone, ok=%v err=%v", ok, err)
	}
	hist, err := NameHistory(ctx, s, id)
	if err != nil {
		t.Fatalf("NameHistory: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("expected name history to be deleted alongside the member, got %v", hist)
	}
}

func TestMessageInsertAndTimeRange(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	id, err := UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	for _, ts := range []int64{100, 300, 200} {
		if _, err := InsertMessage(ctx, s, id, "alice", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	count, err := MessageCount(ctx, s)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 messages, got %d err=%v", count, err)
	}
	min, max, err := TimeRange(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("TimeRange: %v", err)
	}
	if min == nil || max == nil || *min != 100 || *max != 300 {
		t.Fatalf("unexpected time range: min=%v max=%v", min, max)
	}
}

func TestTimeRangeEmptySession(t *testing.T) {
	s := newTestSession(t)
	min, max, err := TimeRange(context.Background(), s, model.Filter{})
	if err != nil {
		t.Fatalf("TimeRange: %v", err)
	}
	if min != nil || max != nil {
		t.Fatalf("expected nil/nil time range for an empty session, got min=%v max=%v", min, max)
	}
}

func TestSessionIndexReplaceAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	entries := []model.SessionIndexEntry{
		{StartTS: 100, EndTS: 200, MessageCount: 5, FirstMessageID: 1},
		{StartTS: 500, EndTS: 600, MessageCount: 2, FirstMessageID: 6},
	}
	if err := ReplaceSessionIndex(ctx, s, 600, entries); err != nil {
		t.Fatalf("ReplaceSessionIndex: %v", err)
	}
	got, err := SessionIndex(ctx, s)
	if err != nil {
		t.Fatalf("SessionIndex: %v", err)
	}
	if len(got) != 2 || got[0].StartTS != 100 || got[1].StartTS != 500 {
		t.Fatalf("unexpected index entries: %+v", got)
	}
	threshold, ok, err := IndexGapThreshold(ctx, s)
	if err != nil || !ok || threshold != 600 {
		t.Fatalf("expected threshold 600, got %d ok=%v err=%v", threshold, ok, err)
	}

	if err := ClearSessionIndex(ctx, s); err != nil {
		t.Fatalf("ClearSessionIndex: %v", err)
	}
	got, err = SessionIndex(ctx, s)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty index after clear, got %v err=%v", got, err)
	}
	if _, ok, _ := IndexGapThreshold(ctx, s); ok {
		t.Fatal("expected no threshold after ClearSessionIndex")
	}
}

func TestListSessionsSkipsNonDBFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := CreateSession(ctx, filepath.Join(dir, "chat_1.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := InsertMeta(ctx, s, "Session One", model.PlatformQQ, model.KindGroup, 1, "", ""); err != nil {
		t.Fatalf("InsertMeta: %v", err)
	}
	if err := SetOwner(ctx, s, 3); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	s.Close()

	sessions, err := ListSessions(ctx, dir)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected exactly one session (wal/shm sidecars excluded), got %d: %+v", len(sessions), sessions)
	}
	if sessions[0].ID != "chat_1" || sessions[0].Name != "Session One" || sessions[0].OwnerID != "3" {
		t.Fatalf("unexpected session summary: %+v", sessions[0])
	}
}

func TestListSessionsEmptyDirectory(t *testing.T) {
	sessions, err := ListSessions(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected a missing databases dir to be treated as empty, got err=%v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %v", sessions)
	}
}

func TestGetSessionByID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := CreateSession(ctx, filepath.Join(dir, "chat_2.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := InsertMeta(ctx, s, "Session Two", model.PlatformDiscord, model.KindPrivate, 2, "", ""); err != nil {
		t.Fatalf("InsertMeta: %v", err)
	}
	s.Close()

	sess, err := GetSessionByID(ctx, dir, "chat_2")
	if err != nil {
		t.Fatalf("GetSessionByID: %v", err)
	}
	if sess.Name != "Session Two" || sess.Platform != model.PlatformDiscord {
		t.Fatalf("unexpected session: %+v", sess)
	}
}
