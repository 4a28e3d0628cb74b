package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SkillRepo struct {
	db DBTX
}

func NewSkillRepo(db DBTX) *SkillRepo {
	return &SkillRepo{db: db}
}

const skillColumns = `id, user_id, name, description, icon, color, current_xp, current_level, total_xp, created_at, updated_at`

// InsertDefaults inserts the given skills, skipping names the user already has.
func (r *SkillRepo) InsertDefaults(ctx context.Context, userID string, skills []Skill) error {
	now := formatTime(time.Now())
	for _, s := range skills {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO skills (user_id, name, description, icon, color, current_xp, current_level, total_xp, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, 1, 0, ?, ?)
			ON CONFLICT(user_id, name) DO NOTHING
		`, userID, s.Name, s.Description, s.Icon, s.Color, now, now)
		if err != nil {
			return fmt.Errorf("skill insert %s: %w", s.Name, err)
		}
	}
	return nil
}

func (r *SkillRepo) GetByName(ctx context.Context, userID, name string) (*Skill, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE user_id = ? AND name = ?`, userID, name)
	s, err := scanSkill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("skill get: %w", err)
	}
	return s, nil
}

func (r *SkillRepo) List(ctx context.Context, userID string) ([]Skill, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("skill list: %w", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("skill scan: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("skill rows: %w", err)
	}
	return out, nil
}

func (r *SkillRepo) Update(ctx context.Context, s *Skill) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE skills SET current_xp = ?, current_level = ?, total_xp = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, s.CurrentXP, s.CurrentLevel, s.TotalXP, formatTime(s.UpdatedAt), s.ID, s.UserID)
	if err != nil {
		return fmt.Errorf("skill update: %w", err)
	}
	return nil
}

func (r *SkillRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("skill delete: %w", err)
	}
	return nil
}

func scanSkill(row scanner) (*Skill, error) {
	var (
		s         Skill
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.Icon, &s.Color,
		&s.CurrentXP, &s.CurrentLevel, &s.TotalXP, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
