package migrate

import (
	"context"
	"strings"
	"sync"

	"go.mau.fi/util/dbutil"
)

// SoftMigrator performs idempotent column-presence migrations lazily on
// first use per session, with the per-session check memoized for the
// process lifetime. Distinct from the versioned Migrator because these
// exist purely to tolerate stores written by an earlier schema that
// predates the `aliases`/`avatar` columns, not to track a version number.
type SoftMigrator struct {
	mu      sync.Mutex
	checked map[string]bool
}

// NewSoftMigrator returns a migrator with an empty memoization set.
func NewSoftMigrator() *SoftMigrator {
	return &SoftMigrator{checked: make(map[string]bool)}
}

// EnsureMemberColumns adds the member.aliases and member.avatar columns
// when absent, exactly once per sessionID for this process's lifetime.
func (m *SoftMigrator) EnsureMemberColumns(ctx context.Context, db *dbutil.Database, sessionID string) error {
	m.mu.Lock()
	if m.checked[sessionID] {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	cols, err := columnNames(ctx, db, "member")
	if err != nil {
		return err
	}
	if !cols["aliases"] {
		if _, err := db.Exec(ctx, `ALTER TABLE member ADD COLUMN aliases TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return err
		}
	}
	if !cols["avatar"] {
		if _, err := db.Exec(ctx, `ALTER TABLE member ADD COLUMN avatar TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.checked[sessionID] = true
	m.mu.Unlock()
	return nil
}

func columnNames(ctx context.Context, db *dbutil.Database, table string) (map[string]bool, error) {
	rows, err := db.Query(ctx, `PRAGMA table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// quoteIdent guards against the only identifiers this package ever passes
// in (fixed internal table names) containing characters PRAGMA's
// non-parameterizable syntax can't otherwise bind.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
