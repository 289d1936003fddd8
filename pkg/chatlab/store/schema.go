// Package store implements the per-session and per-staging embedded
// relational stores, wrapping go.mau.fi/util/dbutil over a file-backed
// SQLite database: context-scoped QueryRow/Query/Exec against a
// *dbutil.Database, $N placeholders, single-writer connection pools.
package store

import (
	"context"

	"go.mau.fi/util/dbutil"
)

// SchemaVersion is the current per-session schema version this build
// writes and expects (pkg/chatlab/migrate tracks and upgrades older
// stores to it). Version 2 added member.aliases and member.avatar.
const SchemaVersion = 2

// sessionSchema creates the base tables. Secondary indexes are created
// separately by CreateSessionIndexes once bulk import has finished:
// deferring them is what makes bulk insert throughput acceptable.
const sessionSchema = `
CREATE TABLE IF NOT EXISTS meta (
	name TEXT NOT NULL,
	platform TEXT NOT NULL,
	type TEXT NOT NULL,
	imported_at INTEGER NOT NULL,
	group_id TEXT NOT NULL DEFAULT '',
	group_avatar TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS member (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform_id TEXT NOT NULL UNIQUE,
	account_name TEXT NOT NULL DEFAULT '',
	group_nickname TEXT NOT NULL DEFAULT '',
	aliases TEXT NOT NULL DEFAULT '[]',
	avatar TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS member_name_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id INTEGER NOT NULL REFERENCES member(id),
	name_type TEXT NOT NULL,
	name TEXT NOT NULL,
	start_ts INTEGER NOT NULL,
	end_ts INTEGER
);

CREATE TABLE IF NOT EXISTS message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL REFERENCES member(id),
	sender_account_name TEXT NOT NULL DEFAULT '',
	sender_group_nickname TEXT NOT NULL DEFAULT '',
	ts INTEGER NOT NULL,
	type INTEGER NOT NULL,
	content TEXT
);

CREATE TABLE IF NOT EXISTS session_index (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_ts INTEGER NOT NULL,
	end_ts INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	first_message_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_index_meta (
	gap_threshold INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
`

// createSessionIndexes are the secondary indexes created after bulk
// import completes.
const createSessionIndexes = `
CREATE INDEX IF NOT EXISTS idx_message_ts ON message(ts);
CREATE INDEX IF NOT EXISTS idx_message_sender_id ON message(sender_id);
CREATE INDEX IF NOT EXISTS idx_member_name_history_member_id ON member_name_history(member_id);
`

// stagingSchema is the minimal schema for a staging store:
// meta (including the source file name), member keyed by platform id, and
// message without the normalized sender join (messages carry the sender
// platform id directly).
const stagingSchema = `
CREATE TABLE IF NOT EXISTS meta (
	name TEXT NOT NULL,
	platform TEXT NOT NULL,
	type TEXT NOT NULL,
	source_filename TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS member (
	platform_id TEXT NOT NULL,
	account_name TEXT NOT NULL DEFAULT '',
	group_nickname TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (platform_id)
);

CREATE TABLE IF NOT EXISTS message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_platform_id TEXT NOT NULL,
	sender_account_name TEXT NOT NULL DEFAULT '',
	sender_group_nickname TEXT NOT NULL DEFAULT '',
	ts INTEGER NOT NULL,
	type INTEGER NOT NULL,
	content TEXT
);

CREATE INDEX IF NOT EXISTS idx_staging_message_ts ON message(ts);
CREATE INDEX IF NOT EXISTS idx_staging_message_sender ON message(sender_platform_id);
`

func applySessionSchema(ctx context.Context, db *dbutil.Database) error {
	_, err := db.Exec(ctx, sessionSchema)
	return err
}

// CreateSessionIndexes creates the deferred secondary indexes; called once
// at the end of a bulk import.
func CreateSessionIndexes(ctx context.Context, db *dbutil.Database) error {
	_, err := db.Exec(ctx, createSessionIndexes)
	return err
}

func applyStagingSchema(ctx context.Context, db *dbutil.Database) error {
	_, err := db.Exec(ctx, stagingSchema)
	return err
}
