package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func testHost(t *testing.T) (*Host, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DocumentsRoot = dir
	for _, d := range []string{cfg.DatabasesDir(), cfg.TempDir(), cfg.MergedDir(), cfg.SettingsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("MkdirAll %q: %v", d, err)
		}
	}
	h := NewHost(cfg, zerolog.Nop())
	t.Cleanup(h.Close)
	return h, cfg
}

func newWorkerTestSession(t *testing.T, cfg config.Config, sessionID string) {
	t.Helper()
	ctx := context.Background()
	s, err := store.CreateSession(ctx, cfg.SessionDBPath(sessionID))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	if err := store.InsertMeta(ctx, s, "Original Name", model.PlatformQQ, model.KindGroup, 1, "", ""); err != nil {
		t.Fatalf("InsertMeta: %v", err)
	}
}

func TestDispatchTableCoversWireOperations(t *testing.T) {
	want := []string{
		"import.stream", "import.analyzeIncremental", "import.incremental", "import.parseFileInfo",
		"session.getAll", "session.get", "session.rename", "session.delete", "session.updateOwnerId",
		"session.updateGapThreshold", "session.generateIndex", "session.hasIndex", "session.indexStats",
		"session.clearIndex", "session.list",
		"member.list", "member.nameHistory", "member.updateAliases", "member.delete",
		"query.memberActivity", "query.hourly", "query.weekday", "query.monthly", "query.yearly",
		"query.availableYears", "query.daily", "query.lengthDistribution", "query.typeDistribution",
		"query.timeRange", "query.repeat", "query.catchphrase", "query.nightOwl", "query.dragonKing",
		"query.diving", "query.monologue", "query.mentionGraph", "query.mention", "query.laugh",
		"query.memeBattle", "query.checkIn",
		"msg.after", "msg.before", "msg.context", "msg.search", "msg.recent", "msg.between",
		"msg.filterWithContext", "msg.allRecent", "msg.fromSessions",
		"sql.execute", "sql.schema",
		"merge.parseFileInfo", "merge.checkConflicts", "merge.mergeFiles", "merge.clearCache",
		"migration.check", "migration.run",
	}
	for _, op := range want {
		if _, ok := ops[op]; !ok {
			t.Errorf("expected operation %q to be registered", op)
		}
	}
}

func TestSubmitUnknownOperation(t *testing.T) {
	h, _ := testHost(t)
	resp := h.Submit(context.Background(), model.WorkerRequest{ID: "r1", Op: "bogus.op"}, nil)
	if resp.OK {
		t.Fatal("expected an unknown op to fail")
	}
	if resp.Error == nil || resp.Error.Code != string(chatlaberrorsCodeParseError) {
		t.Fatalf("expected a parse_error response, got %+v", resp.Error)
	}
}

func TestSubmitSessionRenameRoundTrip(t *testing.T) {
	h, cfg := testHost(t)
	newWorkerTestSession(t, cfg, "chat_1")

	resp := h.Submit(context.Background(), model.WorkerRequest{
		ID: "r1", Op: "session.rename",
		Payload: map[string]any{"sessionId": "chat_1", "name": "New Name"},
	}, nil)
	if !resp.OK {
		t.Fatalf("expected rename to succeed, got error %+v", resp.Error)
	}

	getResp := h.Submit(context.Background(), model.WorkerRequest{
		ID: "r2", Op: "session.get",
		Payload: map[string]any{"sessionId": "chat_1"},
	}, nil)
	if !getResp.OK {
		t.Fatalf("expected session.get to succeed, got error %+v", getResp.Error)
	}
	sess, ok := getResp.Result.(model.Session)
	if !ok {
		t.Fatalf("expected a model.Session result, got %T", getResp.Result)
	}
	if sess.Name != "New Name" {
		t.Fatalf("expected renamed session, got %+v", sess)
	}
}

func TestSubmitMissingRequiredFieldIsParseError(t *testing.T) {
	h, _ := testHost(t)
	resp := h.Submit(context.Background(), model.WorkerRequest{
		ID: "r1", Op: "session.rename",
		Payload: map[string]any{"sessionId": "chat_1"},
	}, nil)
	if resp.OK {
		t.Fatal("expected missing 'name' field to fail")
	}
	if resp.Error.Code != "parse_error" {
		t.Fatalf("expected parse_error, got %q", resp.Error.Code)
	}
}

func TestAbortCancelsRegisteredRequest(t *testing.T) {
	h, _ := testHost(t)
	if h.Abort("never-submitted") {
		t.Fatal("expected Abort to report false for an unknown request id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.registerCancel("r1", cancel)
	if !h.Abort("r1") {
		t.Fatal("expected Abort to find and cancel the registered request")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected the context to be cancelled after Abort")
	}
	h.clearCancel("r1")
	if h.Abort("r1") {
		t.Fatal("expected Abort to report false once the request has been cleared")
	}
}

func TestSessionLockReturnsSameMutexPerSession(t *testing.T) {
	h, _ := testHost(t)
	a := h.sessionLock("chat_1")
	b := h.sessionLock("chat_1")
	if a != b {
		t.Fatal("expected sessionLock to return the same *sync.Mutex for repeated calls")
	}
	c := h.sessionLock("chat_2")
	if a == c {
		t.Fatal("expected distinct sessions to get distinct locks")
	}
}

func TestHandleCacheEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DocumentsRoot = dir
	if err := os.MkdirAll(cfg.DatabasesDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, id := range []string{"chat_1", "chat_2", "chat_3"} {
		s, err := store.CreateSession(context.Background(), cfg.SessionDBPath(id))
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		s.Close()
	}

	cache := newHandleCache(2)
	if _, err := cache.get(cfg, "chat_1"); err != nil {
		t.Fatalf("get chat_1: %v", err)
	}
	if _, err := cache.get(cfg, "chat_2"); err != nil {
		t.Fatalf("get chat_2: %v", err)
	}
	// Touch chat_1 again so chat_2 becomes the least recently used.
	if _, err := cache.get(cfg, "chat_1"); err != nil {
		t.Fatalf("get chat_1 again: %v", err)
	}
	if _, err := cache.get(cfg, "chat_3"); err != nil {
		t.Fatalf("get chat_3: %v", err)
	}

	if _, ok := cache.entries["chat_2"]; ok {
		t.Fatal("expected chat_2 to have been evicted as least recently used")
	}
	if _, ok := cache.entries["chat_1"]; !ok {
		t.Fatal("expected chat_1 to remain cached (recently touched)")
	}
	if _, ok := cache.entries["chat_3"]; !ok {
		t.Fatal("expected chat_3 to remain cached (just inserted)")
	}
	cache.closeAll()
}

func TestHandleCacheEvict(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DocumentsRoot = dir
	if err := os.MkdirAll(cfg.DatabasesDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	s, err := store.CreateSession(context.Background(), cfg.SessionDBPath("chat_1"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	s.Close()

	cache := newHandleCache(4)
	if _, err := cache.get(cfg, "chat_1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	cache.evict("chat_1")
	if _, ok := cache.entries["chat_1"]; ok {
		t.Fatal("expected explicit evict to drop the cached handle")
	}
}

func TestSessionDeleteEvictsCacheBeforeRemovingFiles(t *testing.T) {
	h, cfg := testHost(t)
	newWorkerTestSession(t, cfg, "chat_1")

	// Populate the cache first.
	if _, err := h.openSession(context.Background(), "chat_1"); err != nil {
		t.Fatalf("openSession: %v", err)
	}

	resp := h.Submit(context.Background(), model.WorkerRequest{
		ID: "r1", Op: "session.delete",
		Payload: map[string]any{"sessionId": "chat_1"},
	}, nil)
	if !resp.OK {
		t.Fatalf("expected delete to succeed, got %+v", resp.Error)
	}
	if _, err := os.Stat(cfg.SessionDBPath("chat_1")); !os.IsNotExist(err) {
		t.Fatalf("expected the session file to be removed, stat err=%v", err)
	}
}

// chatlaberrorsCodeParseError avoids importing chatlaberrors just for one
// constant comparison in TestSubmitUnknownOperation above.
const chatlaberrorsCodeParseError = "parse_error"

func TestSubmitMemberUpdateAliasesCoercesJSONFloatMemberID(t *testing.T) {
	h, cfg := testHost(t)
	newWorkerTestSession(t, cfg, "chat_1")
	ctx := context.Background()
	s, err := store.OpenSession(cfg.SessionDBPath("chat_1"))
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	memberID, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	s.Close()

	// A JSON-decoded request payload carries numbers as float64, never int64.
	resp := h.Submit(ctx, model.WorkerRequest{
		ID: "r1", Op: "member.updateAliases",
		Payload: map[string]any{
			"sessionId": "chat_1",
			"memberId":  float64(memberID),
			"aliases":   []any{"al", "ally"},
		},
	}, nil)
	if !resp.OK {
		t.Fatalf("expected member.updateAliases to succeed, got %+v", resp.Error)
	}

	listResp := h.Submit(ctx, model.WorkerRequest{
		ID: "r2", Op: "member.list",
		Payload: map[string]any{"sessionId": "chat_1"},
	}, nil)
	if !listResp.OK {
		t.Fatalf("expected member.list to succeed, got %+v", listResp.Error)
	}
	members, ok := listResp.Result.([]model.Member)
	if !ok || len(members) != 1 {
		t.Fatalf("expected a single member, got %T %v", listResp.Result, listResp.Result)
	}
	if len(members[0].Aliases) != 2 || members[0].Aliases[0] != "al" {
		t.Fatalf("unexpected aliases: %v", members[0].Aliases)
	}
}

func TestParseFileInfoDetectsFormat(t *testing.T) {
	h, _ := testHost(t)
	path := filepath.Join(t.TempDir(), "export.json")
	content := `{"chatlab":"1","meta":{},"members":[],"messages":[]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fi, err := parseFileInfo(h, path)
	if err != nil {
		t.Fatalf("parseFileInfo: %v", err)
	}
	if !fi.Recognized || !strings.Contains(fi.FormatID, "chatlab") {
		t.Fatalf("expected the chatlab format to be detected, got %+v", fi)
	}
}
