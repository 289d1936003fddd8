// Package config holds the ambient, process-lifetime settings for the
// core. Nothing here is a package-level global; the whole struct is
// passed into worker.NewHost at construction.
package config

import (
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Config is the full set of pipeline and query tunables.
type Config struct {
	// AppName names the per-application subdirectory under DocumentsRoot.
	AppName string `yaml:"app_name" json:"appName"`
	// DocumentsRoot is the root directory owning databases/, temp/,
	// merged/, and settings/.
	DocumentsRoot string `yaml:"documents_root" json:"documentsRoot"`

	// SnifferPrefixBytes is the bounded prefix read by the sniffer.
	SnifferPrefixBytes int `yaml:"sniffer_prefix_bytes" json:"snifferPrefixBytes"`

	// MessageBatchSize is the parser's emitted-batch size.
	MessageBatchSize int `yaml:"message_batch_size" json:"messageBatchSize"`
	// CommitEvery is the import pipeline's transaction-commit cadence in
	// messages.
	CommitEvery int `yaml:"commit_every" json:"commitEvery"`
	// CheckpointEvery is the WAL checkpoint cadence in messages.
	CheckpointEvery int `yaml:"checkpoint_every" json:"checkpointEvery"`

	// DefaultGapThresholdSeconds is the session-index inter-message gap
	// default.
	DefaultGapThresholdSeconds int `yaml:"default_gap_threshold_seconds" json:"defaultGapThresholdSeconds"`

	// ShortQueryTimeoutSeconds bounds every worker request not covered by
	// LongImportTimeoutSeconds.
	ShortQueryTimeoutSeconds int `yaml:"short_query_timeout_seconds" json:"shortQueryTimeoutSeconds"`
	// LongImportTimeoutSeconds bounds the import.stream, import.incremental,
	// merge.mergeFiles and migration.run worker requests.
	LongImportTimeoutSeconds int `yaml:"long_import_timeout_seconds" json:"longImportTimeoutSeconds"`

	// OpenHandleCacheSize bounds the worker's open read-handle cache.
	OpenHandleCacheSize int `yaml:"open_handle_cache_size" json:"openHandleCacheSize"`

	// RawSQLRowLimit and RawSQLTimeoutSeconds bound sql.execute.
	RawSQLRowLimit       int `yaml:"raw_sql_row_limit" json:"rawSqlRowLimit"`
	RawSQLTimeoutSeconds int `yaml:"raw_sql_timeout_seconds" json:"rawSqlTimeoutSeconds"`
}

// Default returns the documented defaults for every tunable.
func Default() Config {
	return Config{
		AppName:                    "ChatLab",
		DocumentsRoot:              ".",
		SnifferPrefixBytes:         8 * 1024,
		MessageBatchSize:           5000,
		CommitEvery:                50000,
		CheckpointEvery:            200000,
		DefaultGapThresholdSeconds: 1800,
		ShortQueryTimeoutSeconds:   30,
		LongImportTimeoutSeconds:   600,
		OpenHandleCacheSize:        16,
		RawSQLRowLimit:             10000,
		RawSQLTimeoutSeconds:       5,
	}
}

// Load reads a settings file, filling in any zero-valued field from
// Default(). Files under settings/ are JSON and are parsed tolerantly
// (comments and trailing commas survive hand editing); a .yaml/.yml path
// is parsed as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := readFileIfExists(path)
	if err != nil {
		return cfg, err
	}
	if data == nil {
		return cfg, nil
	}
	var override Config
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, &override)
	} else {
		err = json5.Unmarshal(data, &override)
	}
	if err != nil {
		return cfg, err
	}
	mergeNonZero(&cfg, override)
	return cfg, nil
}

func mergeNonZero(dst *Config, src Config) {
	if src.AppName != "" {
		dst.AppName = src.AppName
	}
	if src.DocumentsRoot != "" {
		dst.DocumentsRoot = src.DocumentsRoot
	}
	if src.SnifferPrefixBytes != 0 {
		dst.SnifferPrefixBytes = src.SnifferPrefixBytes
	}
	if src.MessageBatchSize != 0 {
		dst.MessageBatchSize = src.MessageBatchSize
	}
	if src.CommitEvery != 0 {
		dst.CommitEvery = src.CommitEvery
	}
	if src.CheckpointEvery != 0 {
		dst.CheckpointEvery = src.CheckpointEvery
	}
	if src.DefaultGapThresholdSeconds != 0 {
		dst.DefaultGapThresholdSeconds = src.DefaultGapThresholdSeconds
	}
	if src.ShortQueryTimeoutSeconds != 0 {
		dst.ShortQueryTimeoutSeconds = src.ShortQueryTimeoutSeconds
	}
	if src.LongImportTimeoutSeconds != 0 {
		dst.LongImportTimeoutSeconds = src.LongImportTimeoutSeconds
	}
	if src.OpenHandleCacheSize != 0 {
		dst.OpenHandleCacheSize = src.OpenHandleCacheSize
	}
	if src.RawSQLRowLimit != 0 {
		dst.RawSQLRowLimit = src.RawSQLRowLimit
	}
	if src.RawSQLTimeoutSeconds != 0 {
		dst.RawSQLTimeoutSeconds = src.RawSQLTimeoutSeconds
	}
}

// DatabasesDir is <documents>/<AppName>/databases.
func (c Config) DatabasesDir() string {
	return filepath.Join(c.DocumentsRoot, c.AppName, "databases")
}

// TempDir is <documents>/<AppName>/temp, home to staging stores.
func (c Config) TempDir() string {
	return filepath.Join(c.DocumentsRoot, c.AppName, "temp")
}

// MergedDir is <documents>/<AppName>/merged, home to canonical exports.
func (c Config) MergedDir() string {
	return filepath.Join(c.DocumentsRoot, c.AppName, "merged")
}

// SettingsDir is <documents>/<AppName>/settings.
func (c Config) SettingsDir() string {
	return filepath.Join(c.DocumentsRoot, c.AppName, "settings")
}

// SessionDBPath is <databases>/<sessionId>.db.
func (c Config) SessionDBPath(sessionID string) string {
	return filepath.Join(c.DatabasesDir(), sessionID+".db")
}
