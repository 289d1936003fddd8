package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

func TestMemberActivityReportPercentageAndOrder(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()

	alice, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "a", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	bob, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "b", AccountName: "bob"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.InsertMessage(ctx, s, alice, "alice", "", int64(i), model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	if _, err := store.InsertMessage(ctx, s, bob, "bob", "", 3, model.MessageText, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	report, err := MemberActivityReport(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("MemberActivityReport: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("expected 2 members, got %d", len(report))
	}
	if report[0].MemberID != alice || report[0].Count != 3 {
		t.Fatalf("expected alice (3 messages) to sort first, got %+v", report[0])
	}
	if report[0].Percentage != 75 {
		t.Fatalf("expected 75%% for 3/4, got %v", report[0].Percentage)
	}
	if report[1].Percentage != 25 {
		t.Fatalf("expected 25%% for 1/4, got %v", report[1].Percentage)
	}
}

func TestMemberActivityReportExcludesSystemAuthor(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	alice, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "a", AccountName: "alice"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	sysMember, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "sys"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, alice, "alice", "", 1, model.MessageText, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, sysMember, model.SystemAuthorName, "", 2, model.MessageSystem, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	report, err := MemberActivityReport(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("MemberActivityReport: %v", err)
	}
	if len(report) != 1 || report[0].MemberID != alice {
		t.Fatalf("expected system-authored messages excluded, got %+v", report)
	}
}

func TestLengthDistributionBucketsByContentLength(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	member, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "a"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	short := "hi"
	long := make([]byte, 350)
	for i := range long {
		long[i] = 'x'
	}
	longStr := string(long)
	if _, err := store.InsertMessage(ctx, s, member, "", "", 1, model.MessageText, &short); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, member, "", "", 2, model.MessageText, &longStr); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	buckets, err := LengthDistribution(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("LengthDistribution: %v", err)
	}
	var shortCount, longCount int64
	for _, b := range buckets {
		if b.Label == "0-4" {
			shortCount = b.Count
		}
		if b.Label == "300+" {
			longCount = b.Count
		}
	}
	if shortCount != 1 || longCount != 1 {
		t.Fatalf("expected 1 short and 1 long message, got buckets %+v", buckets)
	}
}

func TestTypeDistributionCountsPerType(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	member, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "a"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, member, "", "", 1, model.MessageText, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, member, "", "", 2, model.MessageImage, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := store.InsertMessage(ctx, s, member, "", "", 3, model.MessageImage, nil); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	dist, err := TypeDistribution(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("TypeDistribution: %v", err)
	}
	if len(dist) != 2 || dist[0].Type != model.MessageImage || dist[0].Count != 2 {
		t.Fatalf("expected MessageImage (2) to sort first, got %+v", dist)
	}
}

func TestDailyTrendGroupsByLocalDate(t *testing.T) {
	ctx := context.Background()
	s, err := store.CreateSession(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer s.Close()
	member, err := store.UpsertMember(ctx, s, model.Member{PlatformID: "a"})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	for _, ts := range []int64{0, 3600, 200000} {
		if _, err := store.InsertMessage(ctx, s, member, "", "", ts, model.MessageText, nil); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	days, err := DailyTrend(ctx, s, model.Filter{})
	if err != nil {
		t.Fatalf("DailyTrend: %v", err)
	}
	if len(days) == 0 {
		t.Fatal("expected at least one day bucket")
	}
	var total int64
	for _, d := range days {
		total += d.Count
	}
	if total != 3 {
		t.Fatalf("expected daily trend to account for all 3 messages, got total %d across %+v", total, days)
	}
}
