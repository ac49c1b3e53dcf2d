package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type XPRecord struct {
	GuildID   string
	UserID    string
	XP        int
	Messages  int
	OptedOut  bool
	UpdatedAt time.Time
}

// AddXP increments a user's XP and message count, returning the new total.
// Opted-out users are left untouched and report zero.
func (s *Store) AddXP(ctx context.Context, guildID, userID string, amount int) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int
	var optedOut int
	row := tx.QueryRowContext(ctx, `
		SELECT xp, opted_out FROM user_xp WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	scanErr := row.Scan(&current, &optedOut)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}
	if optedOut == 1 {
		err = tx.Commit()
		return 0, err
	}

	total := current + amount
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_xp (guild_id, user_id, xp, messages, opted_out, updated_at)
		VALUES (?, ?, ?, 1, 0, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			xp = excluded.xp,
			messages = user_xp.messages + 1,
			updated_at = excluded.updated_at
	`, guildID, userID, total, now.Unix())
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) GetXP(ctx context.Context, guildID, userID string) (XPRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, xp, messages, opted_out, updated_at
		FROM user_xp WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var rec XPRecord
	var optedOut int
	var updated int64
	err := row.Scan(&rec.GuildID, &rec.UserID, &rec.XP, &rec.Messages, &optedOut, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return XPRecord{GuildID: guildID, UserID: userID}, nil
		}
		return XPRecord{}, err
	}
	rec.OptedOut = optedOut == 1
	rec.UpdatedAt = time.Unix(updated, 0)
	return rec, nil
}

func (s *Store) Leaderboard(ctx context.Context, guildID string, limit int) ([]XPRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, xp, messages, opted_out, updated_at
		FROM user_xp
		WHERE guild_id = ? AND opted_out = 0
		ORDER BY xp DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []XPRecord
	for rows.Next() {
		var rec XPRecord
		var optedOut int
		var updated int64
		if err := rows.Scan(&rec.GuildID, &rec.UserID, &rec.XP, &rec.Messages, &optedOut, &updated); err != nil {
			return nil, err
		}
		rec.OptedOut = optedOut == 1
		rec.UpdatedAt = time.Unix(updated, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetXPOptOut flips a user's gamification opt-out flag.
func (s *Store) SetXPOptOut(ctx context.Context, guildID, userID string, optOut bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_xp (guild_id, user_id, xp, messages, opted_out, updated_at)
		VALUES (?, ?, 0, 0, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			opted_out = excluded.opted_out,
			updated_at = excluded.updated_at
	`, guildID, userID, boolToInt(optOut), time.Now().Unix())
	return err
}
