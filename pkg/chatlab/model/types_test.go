package model

import "testing"

func TestNormalizeMessageTypeKnown(t *testing.T) {
	if got := NormalizeMessageType(int(MessageImage)); got != MessageImage {
		t.Fatalf("expected MessageImage passthrough, got %v", got)
	}
}

func TestNormalizeMessageTypeUnknownFallsBackToOther(t *testing.T) {
	if got := NormalizeMessageType(12345); got != MessageOther {
		t.Fatalf("expected unknown type to normalize to MessageOther, got %v", got)
	}
}

func TestFilterWhereEmpty(t *testing.T) {
	var f Filter
	clause, args := f.Where(0, false)
	if clause != "" || len(args) != 0 {
		t.Fatalf("expected empty filter to produce no clause, got %q %v", clause, args)
	}
}

func TestFilterWhereComposesConjunctively(t *testing.T) {
	start := int64(100)
	end := int64(200)
	member := int64(7)
	f := Filter{StartTS: &start, EndTS: &end, MemberID: &member}

	clause, args := f.Where(0, true)
	want := " AND ts >= $1 AND ts <= $2 AND sender_id = $3 AND sender_account_name != $4"
	if clause != want {
		t.Fatalf("unexpected clause:\n got: %q\nwant: %q", clause, want)
	}
	if len(args) != 4 || args[0] != start || args[1] != end || args[2] != member || args[3] != SystemAuthorName {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestFilterWhereRespectsArgOffset(t *testing.T) {
	start := int64(1)
	f := Filter{StartTS: &start}
	clause, args := f.Where(3, false)
	if clause != " AND ts >= $4" {
		t.Fatalf("expected placeholder numbering to continue from offset, got %q", clause)
	}
	if len(args) != 1 {
		t.Fatalf("expected a single arg, got %v", args)
	}
}
