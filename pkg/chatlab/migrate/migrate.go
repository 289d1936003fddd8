// Package migrate implements the schema migrator: an ordered list of
// versioned steps applied to a store inside a single transaction, plus
// idempotent soft-migrations performed lazily on first use per session.
//
// This intentionally does not build on go.mau.fi/util/dbutil's own
// upgrade-table machinery; ChatLab's stores carry a single, simple
// `schema_version` row instead, and the startup report (trailing-store
// count, pending step descriptions) needs direct access to the pending
// list anyway.
package migrate

import (
	"context"
	"fmt"

	"go.mau.fi/util/dbutil"
)

// Step is one versioned migration: the version it upgrades a store *to*,
// a human-readable description surfaced by migration.check, and the SQL
// it runs.
type Step struct {
	Version     int
	Description string
	Apply       func(ctx context.Context, db *dbutil.Database) error
}

// Migrator holds the ordered list of schema steps a store may need.
type Migrator struct {
	Steps []Step
}

// Default returns the migrator for the schema versions this build knows
// about. New steps are appended here as the schema evolves; Version must
// increase monotonically by one per step.
func Default() *Migrator {
	return &Migrator{Steps: []Step{
		// Version 1 is the original baseline schema; nothing upgrades to it.
		{
			Version:     2,
			Description: "add member.aliases and member.avatar columns",
			Apply:       addMemberAliasAvatarColumns,
		},
	}}
}

// addMemberAliasAvatarColumns brings a v1 store's member table up to the
// current shape. Stores created at v2 already carry both columns, so the
// additions check for presence first.
func addMemberAliasAvatarColumns(ctx context.Context, db *dbutil.Database) error {
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
	return nil
}

// CurrentVersion reads a store's schema_version row; a store with no such
// row (pre-migrator stores, unlikely in practice but handled defensively)
// is treated as version 0.
func CurrentVersion(ctx context.Context, db *dbutil.Database) (int, error) {
	row := db.QueryRow(ctx, `SELECT version FROM schema_version LIMIT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, nil
	}
	return v, nil
}

// Pending returns the steps that have not yet been applied to db.
func (m *Migrator) Pending(ctx context.Context, db *dbutil.Database) ([]Step, error) {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []Step
	for _, s := range m.Steps {
		if s.Version > current {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// Upgrade applies every pending step to db in a single transaction and
// advances the recorded schema_version.
func (m *Migrator) Upgrade(ctx context.Context, db *dbutil.Database) error {
	pending, err := m.Pending(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	return db.DoTxn(ctx, nil, func(ctx context.Context) error {
		latest := pending[len(pending)-1].Version
		for _, step := range pending {
			if err := step.Apply(ctx, db); err != nil {
				return fmt.Errorf("migration %d (%s): %w", step.Version, step.Description, err)
			}
		}
		_, err := db.Exec(ctx, `UPDATE schema_version SET version = $1`, latest)
		return err
	})
}
