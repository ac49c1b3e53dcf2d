package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildConfig is the per-guild feature configuration. The detection engine
// treats a missing row as "anti-raid disabled".
type GuildConfig struct {
	GuildID         string
	AntiraidEnabled bool
	StrictMode      bool
	ModlogChannel   string
	XPEnabled       bool
}

type ModerationLog struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Action      string
	Details     string
	CreatedAt   time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildConfig returns the guild's configuration and whether a row exists.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT antiraid_enabled, strict_mode, COALESCE(modlog_channel, ''), xp_enabled
		FROM guild_config WHERE guild_id = ?`, guildID)

	cfg := GuildConfig{GuildID: guildID}
	var antiraid, strict, xp int
	err := row.Scan(&antiraid, &strict, &cfg.ModlogChannel, &xp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GuildConfig{GuildID: guildID}, false, nil
		}
		return GuildConfig{}, false, err
	}
	cfg.AntiraidEnabled = antiraid == 1
	cfg.StrictMode = strict == 1
	cfg.XPEnabled = xp == 1
	return cfg, true, nil
}

func (s *Store) UpsertGuildConfig(ctx context.Context, cfg GuildConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_config (guild_id, antiraid_enabled, strict_mode, modlog_channel, xp_enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			antiraid_enabled = excluded.antiraid_enabled,
			strict_mode = excluded.strict_mode,
			modlog_channel = excluded.modlog_channel,
			xp_enabled = excluded.xp_enabled
	`,
		cfg.GuildID,
		boolToInt(cfg.AntiraidEnabled),
		boolToInt(cfg.StrictMode),
		cfg.ModlogChannel,
		boolToInt(cfg.XPEnabled),
	)
	return err
}

func (s *Store) AddModerationLog(ctx context.Context, log ModerationLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_logs (guild_id, user_id, moderator_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.ModeratorID, log.Action, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListModerationLogs(ctx context.Context, guildID string, since time.Time) ([]ModerationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, action, details, created_at
		FROM moderation_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ModerationLog
	for rows.Next() {
		var log ModerationLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.ModeratorID, &log.Action, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// CountModerationLogs returns per-action totals since the cutoff. An
// empty guildID counts across all guilds.
func (s *Store) CountModerationLogs(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM moderation_logs
		WHERE (? = '' OR guild_id = ?) AND created_at >= ?
		GROUP BY action
	`, guildID, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func (s *Store) CleanupModerationLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM moderation_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func (s *Store) AddDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_blocklist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_blocklist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainBlock(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM domain_blocklist WHERE guild_id = ? ORDER BY domain`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
