package query

import (
	"context"
	"strings"
	"testing"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
)

func TestExecuteRejectsMultipleStatements(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 1)
	_, err := Execute(context.Background(), s, "SELECT 1; SELECT 2", 0)
	assertSQLError(t, err)
}

func TestExecuteRejectsWriteKeyword(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 1)
	_, err := Execute(context.Background(), s, "DELETE FROM message", 0)
	assertSQLError(t, err)
}

func TestExecuteRejectsNonSelect(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 1)
	_, err := Execute(context.Background(), s, "EXPLAIN SELECT 1", 0)
	assertSQLError(t, err)
}

func assertSQLError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a rejection error")
	}
	ce, ok := err.(*chatlaberrors.Error)
	if !ok {
		t.Fatalf("expected *chatlaberrors.Error, got %T", err)
	}
	if ce.Code != chatlaberrors.CodeSQLError {
		t.Fatalf("expected CodeSQLError, got %q", ce.Code)
	}
}

func TestExecuteReturnsRows(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 3)
	res, err := Execute(context.Background(), s, "SELECT COUNT(*) AS n FROM message", 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Columns) != 1 || res.Columns[0] != "n" {
		t.Fatalf("unexpected columns: %v", res.Columns)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(res.Rows))
	}
}

func TestExecuteAddsImplicitLimit(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 5)
	res, err := Execute(context.Background(), s, "SELECT id FROM message", 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected the caller-supplied row limit to apply, got %d rows", len(res.Rows))
	}
}

func TestSchemaListsTables(t *testing.T) {
	s, _ := newTestSessionWithMessages(t, 0)
	stmts, err := Schema(context.Background(), s)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	found := false
	for _, stmt := range stmts {
		if strings.Contains(stmt, "CREATE TABLE") && strings.Contains(stmt, "message") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the message table's CREATE statement to appear in schema, got %v", stmts)
	}
}
