package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func TestBuildSessionIndexSplitsOnGap(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()

	memberID, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "p1"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	// Two clusters: ts 0,10,20 (tight) then 1000,1010 (tight), a gap of 980s
	// between them with a 300s threshold.
	for _, ts := range []int64{0, 10, 20, 1000, 1010} {
		if _, err := store.InsertMessage(ctx, s, memberID, "", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	entries, err := BuildSessionIndex(ctx, s, 300)
	if err != nil {
		t.Fatalf("BuildSessionIndex: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries split on the gap, got %d: %+v", len(entries), entries)
	}
	if entries[0].MessageCount != 3 || entries[0].StartTS != 0 || entries[0].EndTS != 20 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].MessageCount != 2 || entries[1].StartTS != 1000 || entries[1].EndTS != 1010 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}

	stats, err := Stats(ctx, s)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.EntryCount != 2 || stats.GapThreshold != 300 || !stats.HasIndex {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := Clear(ctx, s); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err = Stats(ctx, s)
	if err != nil {
		t.Fatalf("Stats after clear: %v", err)
	}
	if stats.HasIndex {
		t.Fatal("expected no index after Clear")
	}
}

func TestBuildSessionIndexSingleEntryWhenNoGapExceeded(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	memberID, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "p1"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	for _, ts := range []int64{0, 100, 200} {
		if _, err := store.InsertMessage(ctx, s, memberID, "", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	entries, err := BuildSessionIndex(ctx, s, 300)
	if err != nil {
		t.Fatalf("BuildSessionIndex: %v", err)
	}
	if len(entries) != 1 || entries[0].MessageCount != 3 {
		t.Fatalf("expected a single merged entry, got %+v", entries)
	}
}
