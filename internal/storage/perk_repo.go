package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PerkRepo struct {
	db DBTX
}

func NewPerkRepo(db DBTX) *PerkRepo {
	return &PerkRepo{db: db}
}

const perkColumns = `id, user_id, name, description, skill_required, level_required, icon, feature_key, is_unlocked, unlocked_at, created_at`

// InsertDefaults inserts catalog perks for the user, skipping feature keys that already exist.
func (r *PerkRepo) InsertDefaults(ctx context.Context, userID string, perks []Perk) error {
	now := formatTime(time.Now())
	for _, p := range perks {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO perks (user_id, name, description, skill_required, level_required, icon, feature_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, feature_key) DO NOTHING
		`, userID, p.Name, p.Description, p.SkillRequired, p.LevelRequired, p.Icon, p.FeatureKey, now)
		if err != nil {
			return fmt.Errorf("perk insert %s: %w", p.FeatureKey, err)
		}
	}
	return nil
}

// ListLockedUpTo returns the user's still-locked perks for skill with level_required <= level.
func (r *PerkRepo) ListLockedUpTo(ctx context.Context, userID, skill string, level int) ([]Perk, error) {
	return r.query(ctx, `SELECT `+perkColumns+` FROM perks
		WHERE user_id = ? AND skill_required = ? AND level_required <= ? AND is_unlocked = 0
		ORDER BY level_required ASC, id ASC`, userID, skill, level)
}

// Unlock flips a locked perk to unlocked. It returns ErrConflict when the perk
// was already unlocked, so callers never report the same perk twice.
func (r *PerkRepo) Unlock(ctx context.Context, userID string, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE perks SET is_unlocked = 1, unlocked_at = ?
		WHERE id = ? AND user_id = ? AND is_unlocked = 0
	`, formatTime(at), id, userID)
	if err != nil {
		return fmt.Errorf("perk unlock: %w", err)
	}
	return expectOneRow(res, "perk unlock")
}

func (r *PerkRepo) List(ctx context.Context, userID string) ([]Perk, error) {
	return r.query(ctx, `SELECT `+perkColumns+` FROM perks WHERE user_id = ?
		ORDER BY skill_required ASC, level_required ASC`, userID)
}

func (r *PerkRepo) ListBySkill(ctx context.Context, userID, skill string) ([]Perk, error) {
	return r.query(ctx, `SELECT `+perkColumns+` FROM perks WHERE user_id = ? AND skill_required = ?
		ORDER BY level_required ASC`, userID, skill)
}

func (r *PerkRepo) ListUnlocked(ctx context.Context, userID string) ([]Perk, error) {
	return r.query(ctx, `SELECT `+perkColumns+` FROM perks WHERE user_id = ? AND is_unlocked = 1
		ORDER BY unlocked_at DESC`, userID)
}

func (r *PerkRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM perks WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("perk delete: %w", err)
	}
	return nil
}

func (r *PerkRepo) query(ctx context.Context, q string, args ...any) ([]Perk, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("perk list: %w", err)
	}
	defer rows.Close()

	var out []Perk
	for rows.Next() {
		var (
			p          Perk
			unlocked   int
			unlockedAt sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.SkillRequired, &p.LevelRequired,
			&p.Icon, &p.FeatureKey, &unlocked, &unlockedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("perk scan: %w", err)
		}
		p.IsUnlocked = unlocked != 0
		if p.UnlockedAt, err = parseNullTime(unlockedAt); err != nil {
			return nil, fmt.Errorf("perk scan: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("perk scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("perk rows: %w", err)
	}
	return out, nil
}
