package store

import "context"

// InsertStagingMeta records the staging store's source metadata: unlike
// session meta it carries no imported_at/group fields, only enough to
// identify which platform/kind/file the staged rows came from.
func InsertStagingMeta(ctx context.Context, s *StagingStore, name string, platform, kind, sourceFilename string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO meta (name, platform, type, source_filename) VALUES ($1, $2, $3, $4)`,
		name, platform, kind, sourceFilename)
	return err
}

// UpsertStagingMember records a staging-store member keyed directly by
// platform id; later name/avatar observations overwrite earlier ones
// outright since staging rows are discarded after one merge/incremental
// pass and need no change history of their own.
func UpsertStagingMember(ctx context.Context, s *StagingStore, m SenderRow) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO member (platform_id, account_name, group_nickname, avatar)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform_id) DO UPDATE SET
			account_name = CASE WHEN excluded.account_name != '' THEN excluded.account_name ELSE member.account_name END,
			group_nickname = CASE WHEN excluded.group_nickname != '' THEN excluded.group_nickname ELSE member.group_nickname END,
			avatar = CASE WHEN excluded.avatar != '' THEN excluded.avatar ELSE member.avatar END`,
		m.PlatformID, m.AccountName, m.GroupNickname, m.Avatar)
	return err
}

// SenderRow is the staging member shape; kept separate from model.Member
// since staging has no internal id or alias history.
type SenderRow struct {
	PlatformID    string
	AccountName   string
	GroupNickname string
	Avatar        string
}

// InsertStagingMessage inserts one staged message row keyed directly by
// sender platform id.
func InsertStagingMessage(ctx context.Context, s *StagingStore, platformID, accountName, groupNickname string, ts int64, typ int, content *string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO message (sender_platform_id, sender_account_name, sender_group_nickname, ts, type, content)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		platformID, accountName, groupNickname, ts, typ, content)
	return err
}
