package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/chatlaberrors"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// RawSQLResult is the row-serialized output of a read-only query.
type RawSQLResult struct {
	Columns []string
	Rows    [][]any
}

// rawSQLTimeout bounds wall-clock execution when the caller doesn't
// supply a shorter one.
const rawSQLTimeout = 30 * time.Second

// rawSQLRowLimit bounds the row count returned when the caller's query
// has no LIMIT of its own.
const rawSQLRowLimit = 1000

// Execute runs a user-supplied read-only SQL statement against the
// session store, row-serializing the result. Only a single SELECT (or
// WITH) is permitted; anything else is rejected before touching the
// database.
func Execute(ctx context.Context, s *store.SessionStore, sql string, rowLimit int) (RawSQLResult, error) {
	if err := validateReadOnly(sql); err != nil {
		return RawSQLResult{}, err
	}
	if rowLimit <= 0 {
		rowLimit = rawSQLRowLimit
	}
	bounded := sql
	if !strings.Contains(strings.ToUpper(sql), "LIMIT") {
		bounded = strings.TrimRight(strings.TrimSpace(sql), ";") + fmt.Sprintf(" LIMIT %d", rowLimit)
	}

	ctx, cancel := context.WithTimeout(ctx, rawSQLTimeout)
	defer cancel()

	rows, err := s.DB.Query(ctx, bounded)
	if err != nil {
		return RawSQLResult{}, chatlaberrors.Newf(chatlaberrors.CodeSQLError, "%v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return RawSQLResult{}, chatlaberrors.Newf(chatlaberrors.CodeSQLError, "%v", err)
	}

	result := RawSQLResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return RawSQLResult{}, chatlaberrors.Newf(chatlaberrors.CodeSQLError, "%v", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return RawSQLResult{}, chatlaberrors.Newf(chatlaberrors.CodeSQLError, "%v", err)
	}
	return result, nil
}

var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "REPLACE",
	"ATTACH", "DETACH", "VACUUM", "PRAGMA", "REINDEX", "TRIGGER",
}

// validateReadOnly rejects anything but a single statement starting with
// SELECT or WITH; multiple statements and any write/DDL keyword are refused.
func validateReadOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if strings.Contains(strings.TrimRight(trimmed, ";"), ";") {
		return chatlaberrors.New(chatlaberrors.CodeSQLError, "only a single statement is permitted")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return chatlaberrors.New(chatlaberrors.CodeSQLError, "only read-only SELECT queries are permitted")
	}
	for _, kw := range writeKeywords {
		if strings.Contains(upper, kw) {
			return chatlaberrors.Newf(chatlaberrors.CodeSQLError, "query contains disallowed keyword %q", kw)
		}
	}
	return nil
}

// Schema returns the session store's table/index definitions for the
// `sql.schema` worker operation, read from sqlite_master.
func Schema(ctx context.Context, s *store.SessionStore) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY type, name`)
	if err != nil {
		return nil, chatlaberrors.Classify(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, chatlaberrors.Classify(err)
		}
		out = append(out, stmt)
	}
	return out, rows.Err()
}
