package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MainPlayerKey is the user id used when none is configured.
const MainPlayerKey = "main_user"

type PlayerRepo struct {
	db DBTX
}

func NewPlayerRepo(db DBTX) *PlayerRepo {
	return &PlayerRepo{db: db}
}

const playerColumns = `user_id, level, total_xp, strength, intelligence, discipline, wealth, charisma,
	current_streak, last_activity_date, created_at, updated_at`

func (r *PlayerRepo) Get(ctx context.Context, userID string) (*Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = ?`, userID)

	var (
		p            Player
		lastActivity sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&p.UserID, &p.Level, &p.TotalXP, &p.Strength, &p.Intelligence, &p.Discipline, &p.Wealth,
		&p.Charisma, &p.CurrentStreak, &lastActivity, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("player get: %w", err)
	}
	if p.LastActivityDate, err = parseNullTime(lastActivity); err != nil {
		return nil, fmt.Errorf("player get: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("player get: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("player get: %w", err)
	}
	return &p, nil
}

// GetOrCreate returns the user's player, inserting a fresh row on first access.
func (r *PlayerRepo) GetOrCreate(ctx context.Context, userID string) (*Player, error) {
	p, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	now := formatTime(time.Now())
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO players (user_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, now, now); err != nil {
		return nil, fmt.Errorf("player insert: %w", err)
	}
	return r.Get(ctx, userID)
}

func (r *PlayerRepo) Update(ctx context.Context, p *Player) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET level = ?, total_xp = ?, strength = ?, intelligence = ?, discipline = ?, wealth = ?, charisma = ?,
			current_streak = ?, last_activity_date = ?, updated_at = ?
		WHERE user_id = ?
	`, p.Level, p.TotalXP, p.Strength, p.Intelligence, p.Discipline, p.Wealth, p.Charisma,
		p.CurrentStreak, formatTimePtr(p.LastActivityDate), formatTime(p.UpdatedAt), p.UserID)
	if err != nil {
		return fmt.Errorf("player update: %w", err)
	}
	return nil
}

// SetLevel rewrites only the level projection, and only while total_xp still
// equals totalXP, so a stale read never overwrites newer progress.
func (r *PlayerRepo) SetLevel(ctx context.Context, userID string, level, totalXP int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players SET level = ? WHERE user_id = ? AND total_xp = ?
	`, level, userID, totalXP)
	if err != nil {
		return fmt.Errorf("player set level: %w", err)
	}
	return expectOneRow(res, "player set level")
}

func (r *PlayerRepo) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("player delete: %w", err)
	}
	return nil
}
