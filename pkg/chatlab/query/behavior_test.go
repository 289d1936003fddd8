package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func TestRepeatChainsFindsRunsOfThreeOrMore(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()

	alice, _ := store.UpsertMember(ctx, s, model.Member{PlatformID: "a"})
	bob, _ := store.UpsertMember(ctx, s, model.Member{PlatformID: "b"})

	same := "666"
	other := "hi"
	// alice, bob, alice all say "666" (a 3-run, 2 participants), then bob
	// says something different, which is only a 1-run and doesn't qualify.
	msgs := []struct {
		sender  int64
		content string
	}{
		{alice, same}, {bob, same}, {alice, same}, {bob, other},
	}
	for i, m := range msgs {
		c := m.content
		if _, err := store.InsertMessage(ctx, s, m.sender, "", "", int64(i), model.MessageText, &c); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	chains, err := RepeatChains(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("RepeatChains: %v", err)
	}
	if len(chains) != 1 {
		t.Fatalf("expected exactly one qualifying chain, got %+v", chains)
	}
	if chains[0].Content != same || chains[0].Length != 3 || chains[0].Participants != 2 {
		t.Fatalf("unexpected chain: %+v", chains[0])
	}
}

func TestRepeatChainsIgnoresShortRuns(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	alice, _ := store.UpsertMember(ctx, s, model.Member{PlatformID: "a"})
	c := "ok"
	if _, err := store.InsertMessage(ctx, s, alice, "", "", 0, model.MessageText, &c); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, alice, "", "", 1, model.MessageText, &c); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	chains, err := RepeatChains(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("RepeatChains: %v", err)
	}
	if len(chains) != 0 {
		t.Fatalf("expected a 2-message run not to qualify, got %+v", chains)
	}
}

func TestDragonKingRanksByDaysWon(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	alice, _ := store.UpsertMember(ctx, s, model.Member{PlatformID: "a", AccountName: "alice"})
	bob, _ := store.UpsertMember(ctx, s, model.Member{PlatformID: "b", AccountName: "bob"})

	dayOneBase := int64(1700000000)
	dayTwoBase := dayOneBase + 86400*30 // comfortably a different calendar day
	// Day one: alice sends 2, bob sends 1 -> alice wins day one.
	for _, ts := range []int64{dayOneBase, dayOneBase + 1} {
		if _, err := store.InsertMessage(ctx, s, alice, "alice", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	if _, err := store.InsertMessage(ctx, s, bob, "bob", "", dayOneBase+2, model.MessageText, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	// Day two: bob sends 3, alice sends 1 -> bob wins day two.
	for _, ts := range []int64{dayTwoBase, dayTwoBase + 1, dayTwoBase + 2} {
		if _, err := store.InsertMessage(ctx, s, bob, "bob", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	if _, err := store.InsertMessage(ctx, s, alice, "alice", "", dayTwoBase+3, model.MessageText, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	entries, err := DragonKing(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("DragonKing: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both members to have won a day, got %+v", entries)
	}
	for _, e := range entries {
		if e.DaysWon != 1 {
			t.Fatalf("expected each member to have won exactly one day, got %+v", e)
		}
	}
}
