package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func newTestSessionWithMessages(t *testing.T, n int) (*store.SessionStore, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	memberID, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "p1", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	for i := 0; i < n; i++ {
		content := "hello"
		if _, err := store.InsertMessage(ctx, s, memberID, "alice", "", int64(1000+i), model.MessageText, &content); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	return s, memberID
}

func TestAfterPagesForwardWithHasMore(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 5)
	ctx := context.Background()

	page, err := After(ctx, s, 0, PageQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(page.Messages) != 2 || !page.HasMore {
		t.Fatalf("expected 2 messages with more remaining, got %d hasMore=%v", len(page.Messages), page.HasMore)
	}
	if page.Messages[0].ID != 1 || page.Messages[1].ID != 2 {
		t.Fatalf("expected ascending ids 1,2, got %d,%d", page.Messages[0].ID, page.Messages[1].ID)
	}

	page2, err := After(ctx, s, page.Messages[len(page.Messages)-1].ID, PageQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("After page 2: %v", err)
	}
	if page2.Messages[0].ID != 3 {
		t.Fatalf("expected page 2 to continue at id 3, got %d", page2.Messages[0].ID)
	}
}

func TestAfterLastPageHasMoreFalse(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 3)
	page, err := After(context.Background(), s, 0, PageQuery{PageSize: 10})
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(page.Messages) != 3 || page.HasMore {
		t.Fatalf("expected all 3 messages with no more, got %d hasMore=%v", len(page.Messages), page.HasMore)
	}
}

func TestBeforeReturnsAscendingWindow(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 5)
	page, err := Before(context.Background(), s, 4, PageQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("Before: %v", err)
	}
	// ids < 4, descending fetch (3, 2) re-sorted ascending.
	if len(page.Messages) != 2 || page.Messages[0].ID != 2 || page.Messages[1].ID != 3 {
		t.Fatalf("unexpected window: %+v", page.Messages)
	}
}

func TestRecentUsesBeforeMaxInt(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 5)
	msgs, err := Recent(context.Background(), s, model.Filter{}, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != 4 || msgs[1].ID != 5 {
		t.Fatalf("expected the 2 most recent messages ascending (4,5), got %+v", msgs)
	}
}

func TestContextWindowDedupsOverlap(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 10)
	msgs, err := ContextWindow(context.Background(), s, []int64{3, 4}, 1)
	if err != nil {
		t.Fatalf("ContextWindow: %v", err)
	}
	// seeds 3,4 with k=1 -> ids {2,3,4} union {3,4,5} = {2,3,4,5}, no dupes.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 deduplicated messages, got %d: %+v", len(msgs), msgs)
	}
	for i, m := range msgs {
		if m.ID != int64(2+i) {
			t.Fatalf("expected ascending contiguous ids 2..5, got %+v", msgs)
		}
	}
}

func TestContextWindowEmptySeeds(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 3)
	msgs, err := ContextWindow(context.Background(), s, nil, 2)
	if err != nil || msgs != nil {
		t.Fatalf("expected nil, nil for no seeds, got %v %v", msgs, err)
	}
}

func TestSearchMatchesKeyword(t *testing.T) {
	ctx := context.Background()
	s, memberID := newTestSessionWithMessages(t, 0)
	greeting := "good morning everyone"
	farewell := "goodbye for now"
	if _, err := store.InsertMessage(ctx, s, memberID, "alice", "", 1, model.MessageText, &greeting); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, memberID, "alice", "", 2, model.MessageText, &farewell); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	page, err := Search(ctx, s, model.Filter{}, []string{"morning"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Messages) != 1 || *page.Messages[0].Content != greeting {
		t.Fatalf("expected only the morning message to match, got %+v", page.Messages)
	}
}

func TestBetweenHonorsTimestampFilter(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 5) // ts 1000..1004
	start, end := int64(1001), int64(1002)
	page, err := Between(context.Background(), s, model.Filter{StartTS: &start, EndTS: &end}, 10)
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 messages within [1001,1002], got %d: %+v", len(page.Messages), page.Messages)
	}
}
